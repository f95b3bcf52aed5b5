package ingest

import "sync"

// logTail keeps the most recent lines of feeder output for the status page.
type logTail struct {
	mu           sync.Mutex
	maxLineBytes int
	ring         []string
	next         int
	filled       bool
}

func newLogTail(maxLines int, maxLineBytes int) *logTail {
	if maxLines < 0 {
		maxLines = 0
	}
	if maxLineBytes <= 0 {
		maxLineBytes = 16 * 1024
	}
	return &logTail{maxLineBytes: maxLineBytes, ring: make([]string, maxLines)}
}

func (t *logTail) add(line string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.ring) == 0 {
		return
	}
	if len(line) > t.maxLineBytes {
		line = line[:t.maxLineBytes]
	}
	t.ring[t.next] = line
	t.next++
	if t.next == len(t.ring) {
		t.next = 0
		t.filled = true
	}
}

// lines returns the buffered output oldest first.
func (t *logTail) lines() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.filled {
		out := make([]string, 0, t.next)
		out = append(out, t.ring[:t.next]...)
		return out
	}
	out := make([]string, 0, len(t.ring))
	out = append(out, t.ring[t.next:]...)
	out = append(out, t.ring[:t.next]...)
	return out
}
