package schema

import "time"

// Window is a half-open interval [StartMillis, EndMillis) in epoch milliseconds.
// StartMillis may be negative; such windows reach back to the beginning of time.
type Window struct {
	StartMillis int64 `json:"startTimeMillis"`
	EndMillis   int64 `json:"endTimeMillis"`
}

// Contains reports whether the instant ms falls inside the window.
func (w Window) Contains(ms int64) bool {
	return ms >= w.StartMillis && ms < w.EndMillis
}

// Overlaps reports whether the two windows share at least one millisecond.
func (w Window) Overlaps(other Window) bool {
	return w.StartMillis < other.EndMillis && other.StartMillis < w.EndMillis
}

// Duration is the width of the window.
func (w Window) Duration() time.Duration {
	return time.Duration(w.EndMillis-w.StartMillis) * time.Millisecond
}

// MillisToTime converts epoch milliseconds to a UTC time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
