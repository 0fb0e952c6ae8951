// Package history keeps a bounded, ordered record of commands submitted to a
// terminal session.
//
// The store has no internal lock. It is owned by a single session, which
// serializes access; other callers must synchronize externally.
package history

// DefaultLimit is the number of entries retained when no limit is given.
const DefaultLimit = 1000

// Store is a bounded FIFO of commands in chronological order.
type Store struct {
	entries []string
	limit   int
}

// New creates a store holding at most DefaultLimit entries
func New() *Store {
	return NewWithLimit(DefaultLimit)
}

// NewWithLimit creates a store with a custom bound. Non-positive limits
// fall back to DefaultLimit.
func NewWithLimit(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{limit: limit}
}

// Add appends cmd, evicting the oldest entries past the bound.
// Empty commands are ignored.
func (s *Store) Add(cmd string) {
	if cmd == "" {
		return
	}
	s.entries = append(s.entries, cmd)
	if over := len(s.entries) - s.limit; over > 0 {
		// copy down so the backing array does not grow without bound
		n := copy(s.entries, s.entries[over:])
		clear(s.entries[n:])
		s.entries = s.entries[:n]
	}
}

// Clear removes all entries
func (s *Store) Clear() {
	s.entries = nil
}

// EntryAt returns the entry offset positions back from the newest one.
// EntryAt(0) is the most recent command.
func (s *Store) EntryAt(offsetFromEnd int) (string, bool) {
	idx := len(s.entries) - 1 - offsetFromEnd
	if offsetFromEnd < 0 || idx < 0 {
		return "", false
	}
	return s.entries[idx], true
}

// Entries returns a copy of all entries, oldest first
func (s *Store) Entries() []string {
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of stored entries
func (s *Store) Len() int {
	return len(s.entries)
}

// Limit returns the configured bound
func (s *Store) Limit() int {
	return s.limit
}

// Restore replaces the contents with entries, keeping the most recent ones
// that fit and skipping empty strings.
func (s *Store) Restore(entries []string) {
	s.Clear()
	for _, e := range entries {
		s.Add(e)
	}
}
