package utils

import "time"

const DateLayout = "2006-01-02"

func Now() time.Time {
	return time.Now().UTC()
}
