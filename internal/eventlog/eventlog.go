// Package eventlog holds the ordered, append-only log of one recording.
package eventlog

import (
	"sync"
	"time"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// Entry is a captured event and the time elapsed since the previous entry.
type Entry struct {
	Event *dom.Event
	Delay time.Duration
}

// Log is safe for concurrent use. The delay clock advances only when an
// entry is appended.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	prev    float64
	hasPrev bool
}

// New returns an empty log.
func New() *Log { return &Log{} }

// Append records ev. The first entry's delay is 0; later delays are the
// timestamp difference to the previous entry, clamped at 0.
func (l *Log) Append(ev *dom.Event) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var delay time.Duration
	if l.hasPrev {
		delay = models.MillisDuration(ev.TimeStamp - l.prev)
		if delay < 0 {
			delay = 0
		}
	}
	l.prev = ev.TimeStamp
	l.hasPrev = true

	e := Entry{Event: ev, Delay: delay}
	l.entries = append(l.entries, e)
	return e
}

// Reset discards every entry and the delay clock.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.prev = 0
	l.hasPrev = false
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the log in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}
