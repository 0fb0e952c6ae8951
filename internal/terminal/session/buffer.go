package session

import "sync"

// Buffer is a thread-safe circular buffer for terminal output.
// When full, the oldest bytes are overwritten.
type Buffer struct {
	data []byte
	size int
	head int
	tail int
	full bool
	mu   sync.Mutex
}

// NewBuffer creates a buffer holding up to size bytes
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends p, overwriting the oldest data when full
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range p {
		b.data[b.tail] = c
		b.tail = (b.tail + 1) % b.size
		if b.full {
			b.head = b.tail
		} else if b.tail == b.head {
			b.full = true
		}
	}

	return len(p), nil
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lenLocked()
}

func (b *Buffer) lenLocked() int {
	switch {
	case b.full:
		return b.size
	case b.tail >= b.head:
		return b.tail - b.head
	default:
		return b.size - b.head + b.tail
	}
}

// ReadAll returns all buffered data and empties the buffer
func (b *Buffer) ReadAll() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.lenLocked()
	result := make([]byte, n)
	if n == 0 {
		return result
	}

	if b.head < b.tail {
		copy(result, b.data[b.head:b.tail])
	} else {
		first := copy(result, b.data[b.head:])
		copy(result[first:], b.data[:b.tail])
	}

	b.head = b.tail
	b.full = false
	return result
}

// Reset discards buffered data
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head, b.tail, b.full = 0, 0, false
}
