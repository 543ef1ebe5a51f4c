package logging

import (
	"os"
	"sync"
)

// RingBuffer keeps the most recent log output in memory so it can be written
// out when the daemon dies. It implements io.Writer; once full, new bytes
// overwrite the oldest ones.
type RingBuffer struct {
	mu      sync.Mutex
	buf     []byte
	next    int // index of the next byte to write
	wrapped bool
}

// NewRingBuffer creates a ring buffer holding size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1024 * 1024
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Write never fails and always reports len(p) bytes written.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	size := len(rb.buf)
	if n >= size {
		copy(rb.buf, p[n-size:])
		rb.next = 0
		rb.wrapped = true
		return n, nil
	}

	copied := copy(rb.buf[rb.next:], p)
	if copied < n {
		copy(rb.buf, p[copied:])
		rb.wrapped = true
	}
	rb.next = (rb.next + n) % size
	if rb.next == 0 && n > 0 {
		rb.wrapped = true
	}
	return n, nil
}

// Bytes returns the buffered output, oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.wrapped {
		return append([]byte(nil), rb.buf[:rb.next]...)
	}
	out := make([]byte, 0, len(rb.buf))
	out = append(out, rb.buf[rb.next:]...)
	return append(out, rb.buf[:rb.next]...)
}

// DumpToFile writes Bytes() to path, replacing any existing file.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o600)
}
