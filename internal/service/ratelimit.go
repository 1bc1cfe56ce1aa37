package service

import (
	"sync"
	"time"
)

// CooldownLimiter enforces a fixed wait between consecutive actions by
// the same user.  The map of last-action instants is process-local and
// guarded by a mutex; it is injected into the ticket service rather
// than living in a package-level variable so lifetime and teardown are
// explicit.
//
// The message-posting cooldown is the only class backed by this
// limiter.  It is deliberately not persisted: the window is one
// second, so a process restart merely resets the cooldown early.  The
// ticket-creation cooldown is derived from the most recent persisted
// ticket instead and therefore survives restarts (see
// TicketService.CreateTicket).
type CooldownLimiter struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewCooldownLimiter returns a limiter with the given window.  now is
// the clock; pass time.Now outside tests.
func NewCooldownLimiter(window time.Duration, now func() time.Time) *CooldownLimiter {
	if now == nil {
		now = time.Now
	}
	return &CooldownLimiter{
		window: window,
		now:    now,
		last:   make(map[string]time.Time),
	}
}

// Allow records an action for id if the cooldown has elapsed and
// returns (0, true).  Otherwise it returns the remaining wait and
// false, leaving the recorded instant untouched.  Check and record are
// one atomic step so two concurrent calls cannot both pass.
func (l *CooldownLimiter) Allow(id string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if prev, ok := l.last[id]; ok {
		if elapsed := now.Sub(prev); elapsed < l.window {
			return l.window - elapsed, false
		}
	}
	l.last[id] = now
	return 0, true
}

// Reset clears the recorded instant for id.  Used when a recorded
// action is rolled back before becoming visible.
func (l *CooldownLimiter) Reset(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.last, id)
}
