package utils

import "time"

// GetTimestamp returns the current wall-clock time in nanoseconds.
func GetTimestamp() int64 {
	return time.Now().UnixNano()
}
