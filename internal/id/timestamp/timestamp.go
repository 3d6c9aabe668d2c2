// Package timestamp generates job IDs from the current UTC time at
// microsecond resolution, e.g. "20240102030405123456".
package timestamp

import (
	"strings"
	"sync"
	"time"
)

const layout = "20060102150405.000000"

// Generator creates strictly increasing timestamp IDs.
type Generator struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// New creates a Generator. A nil now uses time.Now.
func New(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// NewID returns the next ID. Two calls within the same microsecond yield
// distinct IDs by advancing the second one.
func (g *Generator) NewID() (string, error) {
	g.mu.Lock()
	t := g.now().UTC().Truncate(time.Microsecond)
	if !t.After(g.last) {
		t = g.last.Add(time.Microsecond)
	}
	g.last = t
	g.mu.Unlock()
	return Format(t), nil
}

// Format renders t in the job ID layout.
func Format(t time.Time) string {
	return strings.Replace(t.UTC().Format(layout), ".", "", 1)
}
