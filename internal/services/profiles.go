package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"collectibles/internal/catalog"
	"collectibles/internal/profile"
	"collectibles/internal/store"

	"github.com/google/uuid"
)

type SnapshotStore interface {
	Load(ctx context.Context, accountID string) (*profile.Profile, error)
	Claim(ctx context.Context, accountID, ownerToken string, p *profile.Profile) error
	Save(ctx context.Context, accountID, ownerToken string, p *profile.Profile) error
	Release(ctx context.Context, accountID, ownerToken string) error
}

type LinkStore interface {
	Associate(ctx context.Context, accountID, platformUserID string) error
}

type ProfilesConfig struct {
	CheckoutTimeout time.Duration
	Retries         int
	RetryDelay      time.Duration
	SaveDebounce    time.Duration
	ShutdownGrace   time.Duration
}

func DefaultProfilesConfig() ProfilesConfig {
	return ProfilesConfig{
		CheckoutTimeout: 10 * time.Second,
		Retries:         3,
		RetryDelay:      500 * time.Millisecond,
		SaveDebounce:    5 * time.Second,
		ShutdownGrace:   15 * time.Second,
	}
}

type entry struct {
	mu         sync.Mutex
	profile    *profile.Profile
	ownerToken string
	// fallback profiles were never loaded from the durable layer; their
	// saves are always no-ops and their state dies with the session.
	fallback bool
	dirty    bool
	lastSave time.Time
}

// Profiles owns the single mutable in-memory record per active account.
// The durable layer owns it between sessions; nothing outside this type
// mutates a profile except through With.
type Profiles struct {
	snapshots SnapshotStore
	links     LinkStore
	cat       *catalog.Catalog
	limits    catalog.Limits
	cfg       ProfilesConfig
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	loading map[string]struct{}

	// invoked when the durable layer reports the record claimed elsewhere;
	// the orchestrator uses it to end the owning session.
	onForcedRelease func(accountID string)
	// invoked just before a session's profile is released, while it is
	// still checked out; the trade service cancels pending trades here.
	onSessionEnd func(accountID string)
}

func NewProfiles(snapshots SnapshotStore, links LinkStore, cat *catalog.Catalog, limits catalog.Limits, cfg ProfilesConfig, now func() time.Time) *Profiles {
	if now == nil {
		now = time.Now
	}
	return &Profiles{
		snapshots: snapshots,
		links:     links,
		cat:       cat,
		limits:    limits,
		cfg:       cfg,
		now:       now,
		entries:   make(map[string]*entry),
		loading:   make(map[string]struct{}),
	}
}

func (m *Profiles) SetOnForcedRelease(fn func(accountID string)) { m.onForcedRelease = fn }
func (m *Profiles) SetOnSessionEnd(fn func(accountID string))    { m.onSessionEnd = fn }

// Checkout loads the account's profile and takes ownership of it for this
// process. It is idempotent for an already-checked-out account and returns
// ErrBusy when another checkout of the same account is still in flight.
// Exhausted retries degrade to a memory-only fallback rather than blocking
// the player.
func (m *Profiles) Checkout(ctx context.Context, accountID, platformUserID string) (*profile.Profile, error) {
	m.mu.Lock()
	if existing, ok := m.entries[accountID]; ok {
		m.mu.Unlock()
		return existing.profile, nil
	}
	if _, inFlight := m.loading[accountID]; inFlight {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.loading[accountID] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.loading, accountID)
		m.mu.Unlock()
	}()

	loadCtx, cancel := context.WithTimeout(ctx, m.cfg.CheckoutTimeout)
	defer cancel()

	var loaded *profile.Profile
	var corrupted, fallback bool
	var lastErr error
	for attempt := 1; attempt <= m.cfg.Retries; attempt++ {
		p, err := m.snapshots.Load(loadCtx, accountID)
		if err == nil {
			loaded = p
			lastErr = nil
			break
		}
		if errors.Is(err, store.ErrCorrupted) {
			// Reported, but the player is still served best-effort.
			log.Printf("[profiles] CRITICAL: snapshot for %s is corrupted, serving repaired template", accountID)
			corrupted = true
			lastErr = nil
			break
		}
		lastErr = err
		if ctx.Err() != nil {
			// The initiating session ended mid-wait; nothing stays checked out.
			return nil, ctx.Err()
		}
		if attempt < m.cfg.Retries {
			select {
			case <-loadCtx.Done():
			case <-time.After(m.cfg.RetryDelay):
			}
		}
		if loadCtx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		log.Printf("[profiles] DEGRADED: load for %s exhausted retries (%v); serving memory-only fallback, progress will NOT save", accountID, lastErr)
		fallback = true
	}

	now := m.now()
	if loaded == nil {
		loaded = profile.NewFromTemplate(accountID, now)
	}
	profile.Reconcile(loaded, accountID, now)
	if fixes := profile.AutoFix(loaded, m.cat, m.limits, now); fixes > 0 {
		log.Printf("[profiles] repaired %d issue(s) on %s", fixes, accountID)
	}
	if corrupted {
		loaded.AppendSecurityFlag(profile.SecurityFlag{
			Kind:      "snapshot_corrupted",
			Detail:    "served repaired template",
			Timestamp: now,
		}, m.limits.SecurityFlagRing)
	}
	loaded.Stats.Sessions++
	loaded.LastSeenAt = now.UTC()

	e := &entry{
		profile:    loaded,
		ownerToken: uuid.NewString(),
		fallback:   fallback,
		dirty:      true,
	}
	if !fallback {
		if err := m.snapshots.Claim(loadCtx, accountID, e.ownerToken, loaded); err != nil {
			log.Printf("[profiles] DEGRADED: claim for %s failed (%v); serving memory-only fallback", accountID, err)
			e.fallback = true
		} else if m.links != nil && platformUserID != "" {
			if err := m.links.Associate(loadCtx, accountID, platformUserID); err != nil {
				log.Printf("[profiles] associate %s -> %s failed: %v", accountID, platformUserID, err)
			}
		}
	}

	m.mu.Lock()
	m.entries[accountID] = e
	m.mu.Unlock()
	return loaded, nil
}

// Get is the non-blocking lookup; nil when the account is not checked out.
func (m *Profiles) Get(accountID string) *profile.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[accountID]; ok {
		return e.profile
	}
	return nil
}

// With runs fn under the account's lock and marks the profile dirty. Every
// mutation in the ledger and exchange services goes through here.
func (m *Profiles) With(accountID string, fn func(p *profile.Profile) error) error {
	m.mu.Lock()
	e, ok := m.entries[accountID]
	m.mu.Unlock()
	if !ok {
		return ErrProfileUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.profile); err != nil {
		return err
	}
	e.dirty = true
	return nil
}

// ValidationReport is the read-only integrity view of a checked-out profile.
type ValidationReport struct {
	AccountID string          `json:"account_id"`
	Degraded  bool            `json:"degraded"`
	Issues    []profile.Issue `json:"issues"`
}

// Report validates the in-memory profile without repairing it.
func (m *Profiles) Report(accountID string) (ValidationReport, error) {
	report := ValidationReport{AccountID: accountID, Degraded: m.IsFallback(accountID)}
	err := m.With(accountID, func(p *profile.Profile) error {
		report.Issues = profile.Validate(p, m.cat, m.limits, m.now())
		return nil
	})
	if err != nil {
		return ValidationReport{}, err
	}
	return report, nil
}

func (m *Profiles) IsFallback(accountID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[accountID]; ok {
		return e.fallback
	}
	return false
}

// Save flushes the account's profile, at most once per debounce interval.
// The bool reports whether a write actually happened.
func (m *Profiles) Save(ctx context.Context, accountID string) bool {
	m.mu.Lock()
	e, ok := m.entries[accountID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return m.saveEntry(ctx, accountID, e, false)
}

func (m *Profiles) saveEntry(ctx context.Context, accountID string, e *entry, force bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fallback {
		return false
	}
	now := m.now()
	if !force && now.Sub(e.lastSave) < m.cfg.SaveDebounce {
		return false
	}
	if !force && !e.dirty {
		return false
	}
	if err := m.snapshots.Save(ctx, accountID, e.ownerToken, e.profile); err != nil {
		if errors.Is(err, store.ErrOwnedElsewhere) {
			log.Printf("[profiles] %s was claimed by another process, forcing release", accountID)
			e.mu.Unlock()
			m.forceInvalidate(accountID)
			e.mu.Lock()
			return false
		}
		log.Printf("[profiles] save for %s failed: %v", accountID, err)
		return false
	}
	e.lastSave = now
	e.dirty = false
	return true
}

// forceInvalidate drops the local handle without flushing; the durable
// record now belongs to someone else.
func (m *Profiles) forceInvalidate(accountID string) {
	m.mu.Lock()
	delete(m.entries, accountID)
	m.mu.Unlock()
	if m.onForcedRelease != nil {
		m.onForcedRelease(accountID)
	}
}

// Release ends the account's session: pending trades are cancelled through
// the hook, the profile gets a final flush, and durable ownership is handed
// back.
func (m *Profiles) Release(ctx context.Context, accountID string) {
	m.mu.Lock()
	e, ok := m.entries[accountID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if m.onSessionEnd != nil {
		m.onSessionEnd(accountID)
	}
	m.saveEntry(ctx, accountID, e, true)
	if !e.fallback {
		if err := m.snapshots.Release(ctx, accountID, e.ownerToken); err != nil {
			log.Printf("[profiles] ownership release for %s failed: %v", accountID, err)
		}
	}
	m.mu.Lock()
	delete(m.entries, accountID)
	m.mu.Unlock()
}

// ActiveIDs lists the currently checked-out accounts; the expiry sweeps walk
// these.
func (m *Profiles) ActiveIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids
}

// FlushDirty is the autosave hook: a debounced save across every checked-out
// account.
func (m *Profiles) FlushDirty(ctx context.Context) int {
	flushed := 0
	for _, id := range m.ActiveIDs() {
		if m.Save(ctx, id) {
			flushed++
		}
	}
	return flushed
}

// Shutdown drains in-flight checkouts within the grace window, then flushes
// and releases every non-fallback profile.
func (m *Profiles) Shutdown(ctx context.Context) {
	deadline := m.now().Add(m.cfg.ShutdownGrace)
	for {
		m.mu.Lock()
		pending := len(m.loading)
		m.mu.Unlock()
		if pending == 0 || m.now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	for _, id := range m.ActiveIDs() {
		m.Release(ctx, id)
	}
}
