package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Your INVOICE #123", "invoice"))
	assert.True(t, ContainsFold("anything", ""))
	assert.False(t, ContainsFold("Receipt", "invoice"))
}

func TestStripSpaces(t *testing.T) {
	assert.Equal(t, "abcdefghijklmnop", StripSpaces("abcd efgh ijkl mnop"))
	assert.Equal(t, "", StripSpaces("  "))
}

func TestSyntheticMessageID(t *testing.T) {
	assert.Equal(t, "<uid-42@imap.example.com>", SyntheticMessageID(42, "imap.example.com"))
}

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("emsg", 16)
	assert.Len(t, id, len("emsg_")+16)
	assert.Regexp(t, `^emsg_[a-z0-9]{16}$`, id)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "ação", Truncate("ação!", 4))
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "", Truncate("x", 0))
}
