package bot

import (
	"log"
	"sync"
	"time"
)

type statusSlot struct {
	msg    string
	lastAt time.Time
}

// statusTracker dedupes repeated status lines: the same message for the
// same slot is re-logged only after minInterval. Skip reasons repeat on
// every tick inside the window, this keeps the log readable. Safe for
// concurrent use; the tracker's refresh loops share one instance.
type statusTracker struct {
	prefix      string
	minInterval time.Duration

	mu    sync.Mutex
	slots map[string]statusSlot
}

func newStatusTracker(prefix string, minInterval time.Duration) *statusTracker {
	if minInterval < 0 {
		minInterval = 0
	}
	return &statusTracker{
		prefix:      prefix,
		minInterval: minInterval,
		slots:       make(map[string]statusSlot),
	}
}

func (s *statusTracker) Set(slot, msg string) {
	if s == nil || slot == "" || msg == "" {
		return
	}
	s.mu.Lock()
	if s.slots == nil {
		s.slots = make(map[string]statusSlot)
	}
	now := time.Now()
	prev := s.slots[slot]
	if prev.msg == msg && !prev.lastAt.IsZero() && now.Sub(prev.lastAt) < s.minInterval {
		s.mu.Unlock()
		return
	}
	s.slots[slot] = statusSlot{msg: msg, lastAt: now}
	s.mu.Unlock()
	log.Printf("%s status %s=%s", s.prefix, slot, msg)
}
