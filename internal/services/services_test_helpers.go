package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"collectibles/internal/catalog"
	"collectibles/internal/profile"
	"collectibles/internal/store"
	"collectibles/internal/websocket"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memSnapshots is an in-memory SnapshotStore with scriptable failures.
type memSnapshots struct {
	mu        sync.Mutex
	rows      map[string][]byte
	owners    map[string]string
	failLoads int
	loadErr   error
	saveErr   error
	loadCalls int
	saveCalls int
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{
		rows:   make(map[string][]byte),
		owners: make(map[string]string),
	}
}

func (s *memSnapshots) put(accountID string, p *profile.Profile) {
	raw, _ := json.Marshal(p)
	s.mu.Lock()
	s.rows[accountID] = raw
	s.mu.Unlock()
}

func (s *memSnapshots) Load(_ context.Context, accountID string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCalls++
	if s.failLoads > 0 {
		s.failLoads--
		return nil, s.loadErr
	}
	raw, ok := s.rows[accountID]
	if !ok {
		return nil, nil
	}
	var p profile.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *memSnapshots) Claim(_ context.Context, accountID, ownerToken string, p *profile.Profile) error {
	raw, _ := json.Marshal(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[accountID] = ownerToken
	s.rows[accountID] = raw
	return nil
}

func (s *memSnapshots) Save(_ context.Context, accountID, ownerToken string, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.owners[accountID] != ownerToken {
		return store.ErrOwnedElsewhere
	}
	raw, _ := json.Marshal(p)
	s.rows[accountID] = raw
	s.saveCalls++
	return nil
}

func (s *memSnapshots) Release(_ context.Context, accountID, ownerToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[accountID] == ownerToken {
		delete(s.owners, accountID)
	}
	return nil
}

// stubNotifier records pushes for assertion.
type stubNotifier struct {
	mu     sync.Mutex
	pushes []websocket.Notification
}

func (n *stubNotifier) Push(_ string, notification websocket.Notification) {
	n.mu.Lock()
	n.pushes = append(n.pushes, notification)
	n.mu.Unlock()
}

func (n *stubNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, p := range n.pushes {
		if p.Type == eventType {
			total++
		}
	}
	return total
}

// world wires the full in-memory service stack for a test.
type world struct {
	clock    *fakeClock
	snaps    *memSnapshots
	cat      *catalog.Catalog
	limits   catalog.Limits
	notifier *stubNotifier
	profiles *Profiles
	ledger   *Ledger
	limiter  *RateLimiter
	trades   *Trades
	gifts    *Gifts
}

func newWorld(t *testing.T) *world {
	t.Helper()
	clock := newFakeClock()
	snaps := newMemSnapshots()
	cat := catalog.Default()
	limits := catalog.DefaultLimits()
	notifier := &stubNotifier{}
	profiles := NewProfiles(snaps, nil, cat, limits, ProfilesConfig{
		CheckoutTimeout: time.Second,
		Retries:         3,
		RetryDelay:      time.Millisecond,
		SaveDebounce:    5 * time.Second,
		ShutdownGrace:   100 * time.Millisecond,
	}, clock.Now)
	ledger := NewLedger(profiles, cat, limits, nil, notifier, clock.Now)
	trades := NewTrades(profiles, ledger, nil, nil, notifier, cat, limits, clock.Now)
	gifts := NewGifts(profiles, ledger, nil, notifier, cat, limits, clock.Now)
	return &world{
		clock:    clock,
		snaps:    snaps,
		cat:      cat,
		limits:   limits,
		notifier: notifier,
		profiles: profiles,
		ledger:   ledger,
		trades:   trades,
		gifts:    gifts,
	}
}

func (w *world) checkout(t *testing.T, accountID string) *profile.Profile {
	t.Helper()
	p, err := w.profiles.Checkout(context.Background(), accountID, "")
	if err != nil {
		t.Fatalf("checkout %s: %v", accountID, err)
	}
	return p
}

func (w *world) give(t *testing.T, accountID, item string, count int64) {
	t.Helper()
	err := w.profiles.With(accountID, func(p *profile.Profile) error {
		p.AdjustItem(item, count)
		return nil
	})
	if err != nil {
		t.Fatalf("give %s %d %s: %v", accountID, count, item, err)
	}
}

func (w *world) itemCount(t *testing.T, accountID, item string) int64 {
	t.Helper()
	var count int64
	err := w.profiles.With(accountID, func(p *profile.Profile) error {
		count = p.ItemCount(item)
		return nil
	})
	if err != nil {
		t.Fatalf("itemCount %s %s: %v", accountID, item, err)
	}
	return count
}

func (w *world) balance(t *testing.T, accountID, currency string) int64 {
	t.Helper()
	var balance int64
	err := w.profiles.With(accountID, func(p *profile.Profile) error {
		balance = p.CurrencyBalance(currency)
		return nil
	})
	if err != nil {
		t.Fatalf("balance %s %s: %v", accountID, currency, err)
	}
	return balance
}
