package services

import (
	"sync"
	"time"
)

// MatchTimers holds one cancellable, fire-once expiry timer per match id.
// Cancel is idempotent, and a timer firing concurrently with a Cancel is a
// safe no-op: the callback only runs if its entry is still the registered
// one at fire time.
type MatchTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewMatchTimers() *MatchTimers {
	return &MatchTimers{timers: make(map[string]*time.Timer)}
}

// Start schedules fn to run once after d. A previous timer for the same
// match id is cancelled first.
func (mt *MatchTimers) Start(matchID string, d time.Duration, fn func()) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if prev, ok := mt.timers[matchID]; ok {
		prev.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		mt.mu.Lock()
		current, ok := mt.timers[matchID]
		if !ok || current != timer {
			mt.mu.Unlock()
			return
		}
		delete(mt.timers, matchID)
		mt.mu.Unlock()
		fn()
	})
	mt.timers[matchID] = timer
}

// Cancel stops and forgets the timer for matchID, if one exists.
func (mt *MatchTimers) Cancel(matchID string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if timer, ok := mt.timers[matchID]; ok {
		timer.Stop()
		delete(mt.timers, matchID)
	}
}
