// Package id provides identifier types and generation for termhost.
//
// Generated identifiers are prefixed ULIDs:
//   - Lexicographic sortability: process generations sort by spawn time
//   - Prefixed types: proj_*, doc_*, proc_*, conn_* are readable in logs
//   - Type safety: separate types prevent passing a document ID as a project ID
//
// Project and document identifiers usually come from the host application and
// are opaque to termhost; they only need to pass ValidateExternal.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// ProjectID identifies the project a terminal session belongs to
type ProjectID string

// DocumentID identifies a document whose content can be shared into a session
type DocumentID string

// ProcessID identifies one spawned child process of a session.
// A restart always produces a new ProcessID.
type ProcessID string

// ConnectionID identifies a streaming client attached to a session
type ConnectionID string

// ============================================================================
// ID Prefixes (for debugging and type identification)
// ============================================================================

const (
	ProjectPrefix    = "proj"
	DocumentPrefix   = "doc"
	ProcessPrefix    = "proc"
	ConnectionPrefix = "conn"
)

// MaxExternalLength bounds identifiers supplied by the host application.
const MaxExternalLength = 128

var (
	// ErrEmpty is returned for empty external identifiers
	ErrEmpty = errors.New("identifier is empty")
	// ErrInvalid is returned for identifiers with unsafe characters or length
	ErrInvalid = errors.New("identifier is invalid")

	safePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewProjectID generates a project ID for hosts that do not bring their own
func NewProjectID() ProjectID {
	return ProjectID(Default().GenerateWithPrefix(ProjectPrefix))
}

// NewDocumentID generates a document ID
func NewDocumentID() DocumentID {
	return DocumentID(Default().GenerateWithPrefix(DocumentPrefix))
}

// NewProcessID generates a process identity for one spawn
func NewProcessID() ProcessID {
	return ProcessID(Default().GenerateWithPrefix(ProcessPrefix))
}

// NewConnectionID generates a streaming connection ID
func NewConnectionID() ConnectionID {
	return ConnectionID(Default().GenerateWithPrefix(ConnectionPrefix))
}

func (id ProjectID) String() string    { return string(id) }
func (id DocumentID) String() string   { return string(id) }
func (id ProcessID) String() string    { return string(id) }
func (id ConnectionID) String() string { return string(id) }

// ============================================================================
// Validation
// ============================================================================

// ValidateExternal checks an identifier supplied by the host application.
// Accepted identifiers are safe to embed in file names and URLs.
func ValidateExternal(value string) error {
	if value == "" {
		return ErrEmpty
	}
	if len(value) > MaxExternalLength || !safePattern.MatchString(value) {
		return fmt.Errorf("%w: %q", ErrInvalid, value)
	}
	if value == "." || value == ".." {
		return fmt.Errorf("%w: %q", ErrInvalid, value)
	}
	return nil
}

// ParseProjectID validates and converts a host-supplied project identifier
func ParseProjectID(value string) (ProjectID, error) {
	if err := ValidateExternal(value); err != nil {
		return "", fmt.Errorf("project id: %w", err)
	}
	return ProjectID(value), nil
}

// ParseDocumentID validates and converts a host-supplied document identifier
func ParseDocumentID(value string) (DocumentID, error) {
	if err := ValidateExternal(value); err != nil {
		return "", fmt.Errorf("document id: %w", err)
	}
	return DocumentID(value), nil
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Timestamp extracts the timestamp from a ULID, with or without prefix
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(stripPrefix(id))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

func stripPrefix(id string) string {
	if len(id) > ulid.EncodedSize && id[len(id)-ulid.EncodedSize-1] == '_' {
		return id[len(id)-ulid.EncodedSize:]
	}
	return id
}
