package heal

import "time"

// recentHistorySize is how many entries Stats includes.
const recentHistorySize = 10

// Stats is a point-in-time view of the healing loop.
type Stats struct {
	TotalRecords     int            `json:"totalAttempts"`
	RecentRecords    int            `json:"recentAttempts"`
	CurrentlyHealing bool           `json:"currentlyHealing"`
	InCooldown       []string       `json:"servicesInCooldown"`
	Attempts         map[string]int `json:"attempts"`
	IntervalMs       int64          `json:"healingInterval"`
	CooldownMs       int64          `json:"healingCooldown"`
	MaxAttempts      int            `json:"maxAttempts"`
	SkippedCycles    int64          `json:"skippedCycles"`
	LastCycleAt      *time.Time     `json:"lastCycleAt,omitempty"`
	RecentHistory    []Entry        `json:"recentHistory"`
}

// Stats returns the current healing statistics.
func (o *Orchestrator) Stats() Stats {
	recent := o.history.Recent(recentHistorySize)
	if recent == nil {
		recent = []Entry{}
	}

	attempts := make(map[string]int)
	for name, st := range o.policy.Tracked() {
		attempts[name] = st.Attempts
	}

	cooldown := o.policy.InCooldown()
	if cooldown == nil {
		cooldown = []string{}
	}

	s := Stats{
		TotalRecords:     o.history.Len(),
		RecentRecords:    len(recent),
		CurrentlyHealing: o.Healing(),
		InCooldown:       cooldown,
		Attempts:         attempts,
		IntervalMs:       o.config.Interval.Milliseconds(),
		CooldownMs:       o.policy.Cooldown().Milliseconds(),
		MaxAttempts:      o.policy.MaxAttempts(),
		SkippedCycles:    o.skipped.Load(),
		RecentHistory:    recent,
	}

	o.mu.Lock()
	if !o.lastCycleAt.IsZero() {
		t := o.lastCycleAt
		s.LastCycleAt = &t
	}
	o.mu.Unlock()

	return s
}
