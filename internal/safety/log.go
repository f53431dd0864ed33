package safety

import (
	"sync"
	"time"

	"solderbot/internal/events"
)

// SecurityEvent is one entry of the security log.
type SecurityEvent struct {
	Time     time.Time       `json:"time"`
	Kind     string          `json:"kind"`
	Severity events.Severity `json:"severity"`
	Message  string          `json:"message"`
	Zone     string          `json:"zone,omitempty"`
	User     string          `json:"user,omitempty"`
}

// maxLogEntries bounds the in-memory security log.
const maxLogEntries = 10000

type securityLog struct {
	mu      sync.Mutex
	entries []SecurityEvent
}

func (l *securityLog) add(e SecurityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if n := len(l.entries); n > maxLogEntries {
		l.entries = append([]SecurityEvent(nil), l.entries[n-maxLogEntries:]...)
	}
}

// between returns entries with from <= Time <= to. A zero bound is open.
func (l *securityLog) between(from, to time.Time) []SecurityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []SecurityEvent
	for _, e := range l.entries {
		if !from.IsZero() && e.Time.Before(from) {
			continue
		}
		if !to.IsZero() && e.Time.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (l *securityLog) criticalSince(t time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.Time.Before(t) {
			return false
		}
		if e.Severity == events.SeverityCritical {
			return true
		}
	}
	return false
}
