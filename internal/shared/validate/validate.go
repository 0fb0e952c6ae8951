// Package validate bounds payloads that end up pasted into a terminal.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Payload size limits (in bytes)
const (
	MaxTextSize    = 256 * 1024 // single submit or composed context blob
	MaxTitleLength = 256        // characters
	MaxPathLength  = 4096
	MaxImagePaths  = 32
)

// ErrInvalid marks a payload rejected by this package
var ErrInvalid = errors.New("invalid payload")

// String validates a string field with length and content checks. Length
// is counted in characters.
func String(value, fieldName string, minLen, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%w: %s is required", ErrInvalid, fieldName)
		}
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%w: %s must be at least %d characters", ErrInvalid, fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%w: %s must not exceed %d characters", ErrInvalid, fieldName, maxLen)
	}

	// Null bytes truncate paths and titles downstream
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%w: %s contains invalid characters", ErrInvalid, fieldName)
	}
	return nil
}

// Size checks that value is at most maxSize bytes
func Size(value, fieldName string, maxSize int) error {
	if len(value) > maxSize {
		return fmt.Errorf("%w: %s size %d bytes exceeds maximum %d bytes", ErrInvalid, fieldName, len(value), maxSize)
	}
	return nil
}

// Text validates text submitted to a terminal
func Text(value string) error {
	return Size(value, "text", MaxTextSize)
}

// Paths validates a list of file paths
func Paths(paths []string, fieldName string) error {
	if len(paths) > MaxImagePaths {
		return fmt.Errorf("%w: %s has %d entries, maximum %d", ErrInvalid, fieldName, len(paths), MaxImagePaths)
	}
	for _, p := range paths {
		if err := String(p, fieldName, 1, MaxPathLength, true); err != nil {
			return err
		}
	}
	return nil
}
