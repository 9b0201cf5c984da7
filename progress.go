package realhttp

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
)

// Event identifies what a Progress value describes.
type Event int

const (
	EventUpload Event = iota
	EventDownload
	EventResumed
	EventFailed
)

func (e Event) String() string {
	switch e {
	case EventUpload:
		return "upload"
	case EventDownload:
		return "download"
	case EventResumed:
		return "resumed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress describes the state of an in-flight transfer at one point in
// time. Percentage is 0 whenever ExpectedBytes is unknown (<= 0) — a
// deliberate decision: a plain 0, never NaN, so callers can compare
// Progress values with == without special-casing.
type Progress struct {
	Event          Event
	CurrentBytes   int64
	ExpectedBytes  int64 // -1 or 0 when unknown
	Percentage     float64
	PartialData    []byte // only set when Event == EventFailed and bytes are resumable
}

// String renders a human-readable summary, e.g. "download 500 kB / 2.0 MB
// (25%)". Byte formatting is delegated to go-humanize.
func (p Progress) String() string {
	if p.ExpectedBytes <= 0 {
		return fmt.Sprintf("%s %s", p.Event, humanize.Bytes(uint64(max0(p.CurrentBytes))))
	}

	return fmt.Sprintf("%s %s / %s (%.0f%%)",
		p.Event,
		humanize.Bytes(uint64(max0(p.CurrentBytes))),
		humanize.Bytes(uint64(max0(p.ExpectedBytes))),
		p.Percentage*100,
	)
}

func max0(n int64) int64 {
	if n < 0 {
		return 0
	}

	return n
}

// computePercentage derives Percentage from current/expected, returning 0
// when expected is unknown.
func computePercentage(current, expected int64) float64 {
	if expected <= 0 {
		return 0
	}

	pct := float64(current) / float64(expected)
	if pct > 1 {
		pct = 1
	}

	return pct
}

// ProgressFunc receives Progress updates for a single request. It must not
// block — the data loader delivers updates synchronously from its read
// loop.
type ProgressFunc func(Progress)

// progressSignal is a single-writer cell holding the latest Progress value,
// observed by zero-or-more registered callbacks. No backpressure is needed
// because progress events are low-frequency and idempotent to re-read.
type progressSignal struct {
	mu        sync.Mutex
	latest    Progress
	observers []ProgressFunc
}

func newProgressSignal() *progressSignal {
	return &progressSignal{}
}

// Subscribe registers fn to be called on every subsequent update. It does
// not retroactively deliver the latest value.
func (s *progressSignal) Subscribe(fn ProgressFunc) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, fn)
}

// Latest returns the most recently published Progress value.
func (s *progressSignal) Latest() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latest
}

// publish stores p as the latest value and fans it out to every observer,
// single-writer: only the data loader's read loop calls this for a given
// request.
func (s *progressSignal) publish(p Progress) {
	s.mu.Lock()
	s.latest = p
	observers := append([]ProgressFunc(nil), s.observers...)
	s.mu.Unlock()

	for _, obs := range observers {
		obs(p)
	}
}
