package delivery

import (
	"time"
	"unicode/utf8"
)

// Defaults for SizeTiered.
const (
	DefaultThreshold  = 500
	DefaultSmallDelay = 50 * time.Millisecond
	DefaultLargeDelay = 300 * time.Millisecond
)

// DelayPolicy decides how long to wait between a pasted block and the
// carriage return that submits it.
type DelayPolicy interface {
	SubmitDelay(text string) time.Duration
}

// SizeTiered picks Large when text has more than Threshold characters.
type SizeTiered struct {
	Threshold int
	Small     time.Duration
	Large     time.Duration
}

// DefaultPolicy returns the 500 character / 50ms / 300ms policy.
func DefaultPolicy() SizeTiered {
	return SizeTiered{
		Threshold: DefaultThreshold,
		Small:     DefaultSmallDelay,
		Large:     DefaultLargeDelay,
	}
}

// SubmitDelay implements DelayPolicy. Characters are counted as runes of the
// unencoded text.
func (p SizeTiered) SubmitDelay(text string) time.Duration {
	if utf8.RuneCountInString(text) > p.Threshold {
		return p.Large
	}
	return p.Small
}

// FixedDelay always waits the same duration.
type FixedDelay time.Duration

// SubmitDelay implements DelayPolicy
func (d FixedDelay) SubmitDelay(string) time.Duration {
	return time.Duration(d)
}
