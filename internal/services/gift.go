package services

import (
	"sync"
	"time"

	"collectibles/internal/catalog"
	"collectibles/internal/profile"
	"collectibles/internal/validator"
	"collectibles/internal/websocket"

	"github.com/google/uuid"
)

// Gifts implements the one-way exchange: single consent from the sender,
// separate claim by the recipient. The item leaves the sender before the
// gift record exists anywhere; a gift that cannot be delivered is rolled
// back, and a rejected gift is destroyed with no compensating credit.
type Gifts struct {
	profiles *Profiles
	ledger   *Ledger
	limiter  *RateLimiter
	notifier Notifier
	cat      *catalog.Catalog
	limits   catalog.Limits
	now      func() time.Time

	mu    sync.Mutex
	daily map[string]*dailyCount
}

type dailyCount struct {
	day   string
	count int
}

func NewGifts(profiles *Profiles, ledger *Ledger, limiter *RateLimiter, notifier Notifier, cat *catalog.Catalog, limits catalog.Limits, now func() time.Time) *Gifts {
	if now == nil {
		now = time.Now
	}
	return &Gifts{
		profiles: profiles,
		ledger:   ledger,
		limiter:  limiter,
		notifier: notifier,
		cat:      cat,
		limits:   limits,
		now:      now,
		daily:    make(map[string]*dailyCount),
	}
}

func (g *Gifts) Send(fromID, toID, item string, count int64, message string) (*profile.Gift, error) {
	if fromID == toID {
		return nil, ErrSelfGift
	}
	if _, ok := g.cat.Lookup(item); !ok {
		return nil, ErrInvalidItem
	}
	if count <= 0 || count > g.limits.AmountCeiling {
		return nil, ErrInvalidAmount
	}
	cleaned, err := validator.SanitizeMessage(message, g.limits.MessageSoftLimit, g.limits.MessageHardLimit)
	if err != nil {
		return nil, ErrMessageTooLong
	}
	if g.limiter != nil && !g.limiter.Allow(fromID, "gift_send") {
		return nil, ErrRateLimited
	}
	if !g.underDailyQuota(fromID) {
		return nil, ErrDailyLimitReached
	}

	// Debit first: a gift record must never exist unless the item has
	// already left the sender.
	if err := g.ledger.Debit(fromID, Item(item), count, "gift_send"); err != nil {
		return nil, err
	}

	now := g.now()
	gift := &profile.Gift{
		ID:        uuid.NewString(),
		FromID:    fromID,
		Item:      item,
		Count:     count,
		Message:   cleaned,
		SentAt:    now.UTC(),
		ExpiresAt: now.Add(g.limits.GiftTTL).UTC(),
	}
	err = g.profiles.With(toID, func(p *profile.Profile) error {
		if p.Prefs != nil && !p.Prefs.AllowGifts {
			return ErrOptedOut
		}
		if len(p.Gifts) >= g.limits.MaxPendingGifts {
			return ErrTooManyPending
		}
		stored := *gift
		p.Gifts[gift.ID] = &stored
		return nil
	})
	if err != nil {
		// Recipient unreachable, full, or opted out: return the item to
		// the sender.
		if _, compErr := g.ledger.Credit(fromID, Item(item), count, "gift_send:rollback"); compErr != nil {
			return nil, compErr
		}
		return nil, err
	}

	g.bumpDaily(fromID)
	_ = g.profiles.With(fromID, func(p *profile.Profile) error {
		if p.Stats != nil {
			p.Stats.GiftsSent++
		}
		return nil
	})
	if g.notifier != nil {
		g.notifier.Push(toID, websocket.Notification{Type: "gift_received", Payload: map[string]string{"gift_id": gift.ID}})
	}
	return gift, nil
}

// Claim credits the recipient and removes the pending record. Expired gifts
// are evicted on contact and report ErrExpired with no inventory change.
func (g *Gifts) Claim(id, by string) (int64, error) {
	var gift *profile.Gift
	err := g.profiles.With(by, func(p *profile.Profile) error {
		pending, ok := p.Gifts[id]
		if !ok {
			return ErrNotFound
		}
		if g.now().After(pending.ExpiresAt) {
			delete(p.Gifts, id)
			return ErrExpired
		}
		gift = pending
		delete(p.Gifts, id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if _, err := g.ledger.Credit(by, Item(gift.Item), gift.Count, "gift_claim"); err != nil {
		// Put the record back so the claim can be retried.
		_ = g.profiles.With(by, func(p *profile.Profile) error {
			p.Gifts[gift.ID] = gift
			return nil
		})
		return 0, err
	}
	_ = g.profiles.With(by, func(p *profile.Profile) error {
		if p.Stats != nil {
			p.Stats.GiftsClaimed++
		}
		return nil
	})
	return gift.Count, nil
}

type ClaimResult struct {
	GiftID string
	Item   string
	Count  int64
	Err    error
}

// ClaimAll claims every pending gift independently; one failure does not
// block the rest.
func (g *Gifts) ClaimAll(by string) []ClaimResult {
	pending := make(map[string]string)
	_ = g.profiles.With(by, func(p *profile.Profile) error {
		for id, gift := range p.Gifts {
			pending[id] = gift.Item
		}
		return nil
	})
	results := make([]ClaimResult, 0, len(pending))
	for id, item := range pending {
		count, err := g.Claim(id, by)
		results = append(results, ClaimResult{GiftID: id, Item: item, Count: count, Err: err})
	}
	return results
}

// Reject removes the pending record outright. There is no escrow account, so
// the item is permanently destroyed; nothing is credited anywhere.
func (g *Gifts) Reject(id, by string) error {
	return g.profiles.With(by, func(p *profile.Profile) error {
		if _, ok := p.Gifts[id]; !ok {
			return ErrNotFound
		}
		delete(p.Gifts, id)
		return nil
	})
}

func (g *Gifts) ListFor(accountID string) ([]*profile.Gift, error) {
	var gifts []*profile.Gift
	err := g.profiles.With(accountID, func(p *profile.Profile) error {
		for _, gift := range p.Gifts {
			clone := *gift
			gifts = append(gifts, &clone)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gifts, nil
}

// SweepExpired evicts expired gifts across every currently checked-out
// account.
func (g *Gifts) SweepExpired() int {
	now := g.now()
	evicted := 0
	for _, accountID := range g.profiles.ActiveIDs() {
		_ = g.profiles.With(accountID, func(p *profile.Profile) error {
			for id, gift := range p.Gifts {
				if now.After(gift.ExpiresAt) {
					delete(p.Gifts, id)
					evicted++
				}
			}
			return nil
		})
	}
	g.pruneDaily()
	return evicted
}

func (g *Gifts) dayKey() string {
	return g.now().UTC().Format("2006-01-02")
}

func (g *Gifts) underDailyQuota(accountID string) bool {
	day := g.dayKey()
	g.mu.Lock()
	defer g.mu.Unlock()
	counter, ok := g.daily[accountID]
	if !ok || counter.day != day {
		return g.limits.GiftDailyQuota > 0
	}
	return counter.count < g.limits.GiftDailyQuota
}

func (g *Gifts) bumpDaily(accountID string) {
	day := g.dayKey()
	g.mu.Lock()
	defer g.mu.Unlock()
	counter, ok := g.daily[accountID]
	if !ok || counter.day != day {
		g.daily[accountID] = &dailyCount{day: day, count: 1}
		return
	}
	counter.count++
}

func (g *Gifts) pruneDaily() {
	day := g.dayKey()
	g.mu.Lock()
	defer g.mu.Unlock()
	for accountID, counter := range g.daily {
		if counter.day != day {
			delete(g.daily, accountID)
		}
	}
}
