package delivery

import (
	"errors"
	"strings"
)

// Bracketed-paste markers and the submit keystroke.
const (
	PasteStart = "\x1b[200~"
	PasteEnd   = "\x1b[201~"
	SubmitKey  = "\r"
)

// ErrEmptyText is returned when there is nothing to deliver.
var ErrEmptyText = errors.New("delivery: empty text")

// IsMultiline reports whether text must be sent as a bracketed paste.
func IsMultiline(text string) bool {
	return strings.ContainsRune(text, '\n')
}

// Encode returns the wire form of text. Multi-line text is wrapped in paste
// markers without a trailing carriage return.
func Encode(text string) string {
	if IsMultiline(text) {
		return PasteStart + text + PasteEnd
	}
	return text + SubmitKey
}

// Decode recovers the logical input from a wire payload. Payloads that are
// neither pasted nor submitted are returned unchanged.
func Decode(wire string) string {
	if strings.HasPrefix(wire, PasteStart) && strings.HasSuffix(wire, PasteEnd) && len(wire) >= len(PasteStart)+len(PasteEnd) {
		return wire[len(PasteStart) : len(wire)-len(PasteEnd)]
	}
	return strings.TrimSuffix(wire, SubmitKey)
}
