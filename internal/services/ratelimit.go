package services

import (
	"sync"
	"time"
)

// Rule caps how many times one subject may perform one action inside a
// rolling window.
type Rule struct {
	Max    int
	Window time.Duration
}

func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"trade_create": {Max: 10, Window: time.Minute},
		"trade_accept": {Max: 20, Window: time.Minute},
		"gift_send":    {Max: 5, Window: time.Minute},
		"profile_save": {Max: 12, Window: time.Minute},
		"purchase":     {Max: 6, Window: time.Minute},
	}
}

// RateLimiter keeps a sliding window of call timestamps per (subject,
// action). State is plain owned maps behind a mutex so isolated instances
// can run side by side in tests.
type RateLimiter struct {
	mu      sync.Mutex
	rules   map[string]Rule
	windows map[string][]time.Time
	now     func() time.Time
}

func NewRateLimiter(rules map[string]Rule, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		rules:   rules,
		windows: make(map[string][]time.Time),
		now:     now,
	}
}

// Allow records and admits the call unless the subject is already at the
// action's capacity. A rejected call is not recorded, so hammering a full
// window does not extend the lockout. Actions without a rule are unmetered.
func (l *RateLimiter) Allow(subject, action string) bool {
	rule, metered := l.rules[action]
	if !metered || rule.Max <= 0 {
		return true
	}
	now := l.now()
	key := subject + "|" + action

	l.mu.Lock()
	defer l.mu.Unlock()
	window := pruneBefore(l.windows[key], now.Add(-rule.Window))
	if len(window) >= rule.Max {
		l.windows[key] = window
		return false
	}
	l.windows[key] = append(window, now)
	return true
}

// Prune drops fully stale windows; meant for the periodic maintenance hook.
func (l *RateLimiter) Prune() int {
	now := l.now()
	var widest time.Duration
	for _, rule := range l.rules {
		if rule.Window > widest {
			widest = rule.Window
		}
	}
	cutoff := now.Add(-widest)

	l.mu.Lock()
	defer l.mu.Unlock()
	pruned := 0
	for key, window := range l.windows {
		kept := pruneBefore(window, cutoff)
		if len(kept) == 0 {
			delete(l.windows, key)
			pruned++
			continue
		}
		l.windows[key] = kept
	}
	return pruned
}

func pruneBefore(window []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(window) && !window[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return window
	}
	return append(window[:0:0], window[idx:]...)
}
