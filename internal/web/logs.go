package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

const (
	defaultLogLines    = 1000
	defaultLogTail     = 200
	maxLogTail         = 5000
	maxPartialLogBytes = 64 * 1024
)

// LogBuffer keeps the most recent log lines in memory so the UI can show
// them without shell access to the device. It is an io.Writer so it can be
// teed with stderr via log.SetOutput.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = defaultLogLines
	}
	return &LogBuffer{max: maxLines}
}

// Write splits the chunk into lines at '\n'. Bytes after the last newline
// are held until the line completes; a runaway unterminated line is flushed
// once it exceeds maxPartialLogBytes so it cannot grow without bound.
func (b *LogBuffer) Write(p []byte) (int, error) {
	if b == nil {
		return len(p), nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := append(b.partial, p...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		b.appendLocked(string(buf[:i]))
		buf = buf[i+1:]
	}
	if len(buf) > maxPartialLogBytes {
		b.appendLocked(string(buf))
		buf = nil
	}
	b.partial = buf
	return len(p), nil
}

func (b *LogBuffer) appendLocked(line string) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append(b.lines[:0], b.lines[over:]...)
		b.dropped += uint64(over)
	}
}

// Snapshot returns up to tail most recent lines, oldest first, and the
// count of lines dropped from the front of the buffer so far.
func (b *LogBuffer) Snapshot(tail int) ([]string, uint64) {
	if b == nil {
		return nil, 0
	}
	if tail <= 0 {
		tail = defaultLogTail
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.lines)
	if tail > n {
		tail = n
	}
	out := make([]string, tail)
	copy(out, b.lines[n-tail:])
	return out, b.dropped
}

type logsResponse struct {
	Lines   []string `json:"lines"`
	Dropped uint64   `json:"dropped"`
}

func (b *LogBuffer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		tail := defaultLogTail
		if v := strings.TrimSpace(r.URL.Query().Get("tail")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "tail must be an integer", http.StatusBadRequest)
				return
			}
			if n < 1 || n > maxLogTail {
				http.Error(w, fmt.Sprintf("tail must be in [1, %d]", maxLogTail), http.StatusBadRequest)
				return
			}
			tail = n
		}

		lines, dropped := b.Snapshot(tail)
		w.Header().Set("Cache-Control", "no-store")

		if r.URL.Query().Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			if dropped > 0 {
				_, _ = fmt.Fprintf(w, "# dropped %d earlier lines\n", dropped)
			}
			for _, l := range lines {
				_, _ = fmt.Fprintln(w, l)
			}
			return
		}

		out, err := json.MarshalIndent(logsResponse{Lines: lines, Dropped: dropped}, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)
		_, _ = w.Write([]byte("\n"))
	})
}
