package heal

import (
	"sync"
	"time"
)

// DefaultHistoryCapacity is the number of entries kept when no capacity is set.
const DefaultHistoryCapacity = 100

// EscalationReason is recorded on every escalation entry.
const EscalationReason = "critical_service_healing_failed"

// HealingRecord summarizes one healing cycle.
type HealingRecord struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Unhealthy  []string          `json:"unhealthyServices"`
	Results    map[string]Result `json:"results"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
}

// EscalationRecord marks critical dependencies that failed healing.
type EscalationRecord struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Failed           []string  `json:"failedServices"`
	Reason           string    `json:"reason"`
	RestartTriggered bool      `json:"restartTriggered"`
}

// EntryKind tags a history entry.
type EntryKind string

const (
	EntryHealing    EntryKind = "healing"
	EntryEscalation EntryKind = "emergency_restart"
)

// Entry is one history item. Exactly one of Healing and Escalation is set,
// matching Kind.
type Entry struct {
	Kind       EntryKind         `json:"type"`
	Healing    *HealingRecord    `json:"healing,omitempty"`
	Escalation *EscalationRecord `json:"escalation,omitempty"`
}

// Timestamp returns the time of the underlying record.
func (e Entry) Timestamp() time.Time {
	switch {
	case e.Healing != nil:
		return e.Healing.Timestamp
	case e.Escalation != nil:
		return e.Escalation.Timestamp
	default:
		return time.Time{}
	}
}

// History is a bounded FIFO log of healing and escalation entries.
// When full, appending evicts the oldest entry.
type History struct {
	mu    sync.RWMutex
	buf   []Entry
	start int // index of the oldest entry
	n     int
}

// NewHistory creates a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{buf: make([]Entry, capacity)}
}

// Append adds an entry, evicting the oldest when full.
func (h *History) Append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = e
		h.n++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

// Entries returns all entries, oldest first.
func (h *History) Entries() []Entry {
	return h.Recent(h.Cap())
}

// Recent returns up to n of the newest entries, oldest first.
func (h *History) Recent(n int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > h.n {
		n = h.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]Entry, n)
	first := h.start + h.n - n
	for i := range out {
		out[i] = h.buf[(first+i)%len(h.buf)]
	}
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return len(h.buf)
}
