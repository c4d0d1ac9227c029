// Package transcript accumulates the final speech segments of a live lecture.
//
// The [Log] is session-scoped and append-only: interim STT hypotheses never
// enter it, only committed finals. The full text is the single source for
// summary generation and export; the tail feeds analysis prompts that only
// need recent context.
package transcript

import (
	"strings"
	"sync"
	"time"
)

// Log is an append-only record of final transcript segments.
// It is safe for concurrent use: the STT reader appends while the pipeline
// scheduler reads tails.
type Log struct {
	mu      sync.RWMutex
	full    strings.Builder
	count   int
	started time.Time
	now     func() time.Time
}

// New returns an empty Log. The now func is used for elapsed-time stamping;
// nil means time.Now.
func New(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{
		started: now(),
		now:     now,
	}
}

// Append adds a final segment to the log. Whitespace-only segments are ignored.
func (l *Log) Append(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count > 0 {
		l.full.WriteByte(' ')
	}
	l.full.WriteString(trimmed)
	l.count++
}

// Full returns all segments joined with single spaces.
func (l *Log) Full() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.full.String()
}

// Tail returns the last n characters of the full text, or the entire text when
// it is shorter than n. Non-positive n returns the empty string.
func (l *Log) Tail(n int) string {
	if n <= 0 {
		return ""
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	full := l.full.String()
	if len(full) <= n {
		return full
	}
	return full[len(full)-n:]
}

// ElapsedSeconds returns the seconds since the log was created.
func (l *Log) ElapsedSeconds() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.now().Sub(l.started).Seconds()
}

// Len returns the number of stored segments.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}
