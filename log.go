package actum

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSlowThreshold is the elapsed time past which a query counts as
// slow.
const DefaultSlowThreshold = 100 * time.Millisecond

// LogEntry is one recorded statement: SQL text, ordered bindings,
// elapsed time and the moment it ran. Failed statements are recorded
// too, with the elapsed time up to the failure.
type LogEntry struct {
	ID       uuid.UUID
	Query    string
	Bindings []any
	Duration time.Duration
	Time     time.Time
	Failed   bool
}

// SlowQueryHook is called when a recorded entry exceeds the slow
// threshold.
type SlowQueryHook func(entry LogEntry)

// QueryLog is the append-only record of executed statements. Entries
// accumulate while logging is enabled and are cleared explicitly. The
// inspection methods are derived views and never mutate the log.
type QueryLog struct {
	mu            sync.Mutex
	enabled       bool
	entries       []LogEntry
	slowThreshold time.Duration
	slowHook      SlowQueryHook
}

// NewQueryLog returns an enabled log with the default slow threshold
// and a slog-based slow-query hook.
func NewQueryLog() *QueryLog {
	return &QueryLog{
		enabled:       true,
		slowThreshold: DefaultSlowThreshold,
		slowHook: func(e LogEntry) {
			slog.Warn("slow query detected", "duration", e.Duration, "query", e.Query, "args", e.Bindings)
		},
	}
}

// Enable turns recording on.
func (l *QueryLog) Enable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = true
}

// Disable turns recording off. Existing entries are kept.
func (l *QueryLog) Disable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = false
}

// Enabled reports whether recording is on.
func (l *QueryLog) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// SetSlowThreshold updates the slow threshold.
func (l *QueryLog) SetSlowThreshold(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slowThreshold = d
}

// SlowThreshold returns the current slow threshold.
func (l *QueryLog) SlowThreshold() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slowThreshold
}

// SetSlowHook replaces the slow-query callback. A nil hook disables it.
func (l *QueryLog) SetSlowHook(hook SlowQueryHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slowHook = hook
}

// Record appends an entry if logging is enabled and fires the slow
// hook when the entry exceeds the threshold.
func (l *QueryLog) Record(query string, bindings []any, duration time.Duration, failed bool) {
	l.mu.Lock()
	if !l.enabled {
		l.mu.Unlock()
		return
	}
	entry := LogEntry{
		ID:       uuid.New(),
		Query:    query,
		Bindings: bindings,
		Duration: duration,
		Time:     time.Now(),
		Failed:   failed,
	}
	l.entries = append(l.entries, entry)
	hook := l.slowHook
	slow := duration > l.slowThreshold
	l.mu.Unlock()
	if slow && hook != nil {
		hook(entry)
	}
}

// Entries returns a snapshot of the recorded entries.
func (l *QueryLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns the number of recorded entries.
func (l *QueryLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// TotalDuration returns the summed elapsed time of all entries.
func (l *QueryLog) TotalDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total time.Duration
	for _, e := range l.entries {
		total += e.Duration
	}
	return total
}

// AvgDuration returns the mean elapsed time, or zero for an empty log.
func (l *QueryLog) AvgDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return 0
	}
	var total time.Duration
	for _, e := range l.entries {
		total += e.Duration
	}
	return total / time.Duration(len(l.entries))
}

// SlowCount returns the number of entries exceeding the configured
// slow threshold.
func (l *QueryLog) SlowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Duration > l.slowThreshold {
			n++
		}
	}
	return n
}

// Clear drops all recorded entries.
func (l *QueryLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
