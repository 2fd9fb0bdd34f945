// Package stream consumes Ollama's newline-delimited JSON chat stream and
// hands each text token to a sink as soon as its line is complete.
package stream

import "bytes"

// LineBuffer holds bytes received but not yet resolved into a complete line.
// Chunks are appended with Write; complete lines are taken out with Next.
// Whatever follows the last newline stays buffered until more bytes arrive.
type LineBuffer struct {
	buf []byte
	off int // start of unconsumed data
}

// Write appends a chunk. It never fails.
func (b *LineBuffer) Write(p []byte) (int, error) {
	if b.off > 0 {
		n := copy(b.buf, b.buf[b.off:])
		b.buf = b.buf[:n]
		b.off = 0
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Next removes the next complete line from the buffer and returns it without
// its "\n" (or "\r\n") terminator. ok is false when no newline is buffered.
// The returned slice is only valid until the next call to Write.
func (b *LineBuffer) Next() (line []byte, ok bool) {
	i := bytes.IndexByte(b.buf[b.off:], '\n')
	if i < 0 {
		return nil, false
	}
	line = b.buf[b.off : b.off+i]
	b.off += i + 1
	return bytes.TrimSuffix(line, []byte("\r")), true
}

// Remaining returns the buffered bytes that do not yet form a complete line.
func (b *LineBuffer) Remaining() []byte {
	return b.buf[b.off:]
}

// Len reports how many unconsumed bytes are buffered.
func (b *LineBuffer) Len() int {
	return len(b.buf) - b.off
}
