package utils

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateNanoIDWithPrefix returns ids like "emsg_k3j9..." used as primary keys.
func GenerateNanoIDWithPrefix(prefix string, size int) string {
	id, err := gonanoid.Generate(idAlphabet, size)
	if err != nil {
		panic(err)
	}
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}

// SyntheticMessageID builds the identifier used when a message carries no Message-ID header.
// It is deterministic so a re-fetch of the same UID deduplicates.
func SyntheticMessageID(uid uint32, host string) string {
	return fmt.Sprintf("<uid-%d@%s>", uid, host)
}
