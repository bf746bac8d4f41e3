package services

import (
	"sync"
	"time"

	"collectibles/internal/catalog"
	"collectibles/internal/profile"
	"collectibles/internal/websocket"

	"github.com/google/uuid"
)

// IndexGrace is how long a resolved trade stays findable in the index after
// completion or cancellation, so a client refreshing mid-resolution still
// sees the terminal status instead of a 404.
const IndexGrace = time.Minute

// Trades implements the two-party exchange protocol. One logical trade is
// replicated into both participants' profiles plus a non-owning id index;
// all three copies are updated together, and that replication is an
// invariant, not an optimization target.
type Trades struct {
	profiles *Profiles
	ledger   *Ledger
	limiter  *RateLimiter
	anomaly  AnomalyRecorder
	notifier Notifier
	cat      *catalog.Catalog
	limits   catalog.Limits
	now      func() time.Time

	mu      sync.Mutex
	index   map[string]*profile.Trade
	retired map[string]time.Time

	// runs between the two transfer legs of complete; tests use it to
	// interleave holdings changes against the saga.
	betweenLegs func()
}

func NewTrades(profiles *Profiles, ledger *Ledger, limiter *RateLimiter, anomaly AnomalyRecorder, notifier Notifier, cat *catalog.Catalog, limits catalog.Limits, now func() time.Time) *Trades {
	if now == nil {
		now = time.Now
	}
	return &Trades{
		profiles: profiles,
		ledger:   ledger,
		limiter:  limiter,
		anomaly:  anomaly,
		notifier: notifier,
		cat:      cat,
		limits:   limits,
		now:      now,
		index:    make(map[string]*profile.Trade),
		retired:  make(map[string]time.Time),
	}
}

// Create opens a pending trade. Items are not escrowed: the initiator's
// holdings are checked now, both sides are re-validated at accept and again
// at completion.
func (t *Trades) Create(fromID, toID string, offered, requested map[string]int64) (*profile.Trade, error) {
	if fromID == toID {
		return nil, ErrSelfTrade
	}
	if err := t.validateSide(offered); err != nil {
		return nil, err
	}
	if err := t.validateSide(requested); err != nil {
		return nil, err
	}
	if len(offered) == 0 && len(requested) == 0 {
		return nil, ErrInvalidAmount
	}
	if t.limiter != nil && !t.limiter.Allow(fromID, "trade_create") {
		return nil, ErrRateLimited
	}

	err := t.profiles.With(fromID, func(p *profile.Profile) error {
		if pendingTradeCount(p) >= t.limits.MaxPendingTrades {
			return ErrTooManyPending
		}
		return holdsItems(p, offered)
	})
	if err != nil {
		return nil, err
	}
	err = t.profiles.With(toID, func(p *profile.Profile) error {
		if p.Prefs != nil && !p.Prefs.AllowTrades {
			return ErrOptedOut
		}
		if pendingTradeCount(p) >= t.limits.MaxPendingTrades {
			return ErrTooManyPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := t.now()
	trade := &profile.Trade{
		ID:        uuid.NewString(),
		FromID:    fromID,
		ToID:      toID,
		Offered:   copyLines(offered),
		Requested: copyLines(requested),
		Status:    profile.TradePending,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(t.limits.TradeTTL).UTC(),
	}
	t.mu.Lock()
	t.index[trade.ID] = cloneTrade(trade)
	t.mu.Unlock()
	if err := t.storeCopies(trade); err != nil {
		t.mu.Lock()
		delete(t.index, trade.ID)
		t.mu.Unlock()
		return nil, err
	}

	t.push(toID, "trade_offered", trade)
	return cloneTrade(trade), nil
}

// Accept sets the caller's consent flag; the moment both flags are set the
// trade completes. Both sides' current holdings are re-validated here
// because nothing was escrowed at creation.
func (t *Trades) Accept(id, by string) error {
	trade, err := t.pendingTrade(id, by)
	if err != nil {
		return err
	}
	if err := t.validateHoldings(trade); err != nil {
		return err
	}

	// Consent is merged into the index copy under the lock: two parties
	// accepting at once must see each other's flag, not overwrite it. Only
	// the merge that flips the second flag runs completion, so a repeated
	// accept can never trigger the exchange twice.
	t.mu.Lock()
	indexed, ok := t.index[id]
	if !ok || indexed.Status != profile.TradePending {
		t.mu.Unlock()
		return ErrNotFound
	}
	var already bool
	if indexed.FromID == by {
		already = indexed.FromAccepted
		indexed.FromAccepted = true
	} else {
		already = indexed.ToAccepted
		indexed.ToAccepted = true
	}
	merged := cloneTrade(indexed)
	t.mu.Unlock()

	if err := t.storeCopies(merged); err != nil {
		return err
	}
	if !already && merged.FromAccepted && merged.ToAccepted {
		return t.complete(merged)
	}
	t.push(merged.Other(by), "trade_accepted", merged)
	return nil
}

// Cancel voids a pending trade. Either participant may cancel, as may the
// system sentinel. Nothing was escrowed, so no resources move.
func (t *Trades) Cancel(id, by string) error {
	trade, err := t.pendingTrade(id, by)
	if err != nil {
		return err
	}
	trade.Status = profile.TradeCancelled
	t.retire(trade)
	t.removeCopies(trade)
	t.push(trade.FromID, "trade_cancelled", trade)
	t.push(trade.ToID, "trade_cancelled", trade)
	return nil
}

// Get returns the indexed copy, including recently resolved trades still in
// their grace period.
func (t *Trades) Get(id string) (*profile.Trade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if trade, ok := t.index[id]; ok {
		return cloneTrade(trade), nil
	}
	return nil, ErrNotFound
}

func (t *Trades) ListFor(accountID string) ([]*profile.Trade, error) {
	var trades []*profile.Trade
	err := t.profiles.With(accountID, func(p *profile.Profile) error {
		for _, trade := range p.Trades {
			trades = append(trades, cloneTrade(trade))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// SweepExpired expires pending trades past their deadline and evicts
// resolved trades whose index grace elapsed. Meant for the periodic
// maintenance hook.
func (t *Trades) SweepExpired() int {
	now := t.now()
	t.mu.Lock()
	var stale []*profile.Trade
	for _, trade := range t.index {
		if trade.Status == profile.TradePending && now.After(trade.ExpiresAt) {
			stale = append(stale, cloneTrade(trade))
		}
	}
	for id, deadline := range t.retired {
		if now.After(deadline) {
			delete(t.index, id)
			delete(t.retired, id)
		}
	}
	t.mu.Unlock()

	for _, trade := range stale {
		trade.Status = profile.TradeExpired
		t.retire(trade)
		t.removeCopies(trade)
	}
	return len(stale)
}

// EndSession force-cancels every pending trade the departing account is
// party to.
func (t *Trades) EndSession(accountID string) {
	t.mu.Lock()
	var involved []string
	for id, trade := range t.index {
		if trade.Status == profile.TradePending && trade.Participant(accountID) {
			involved = append(involved, id)
		}
	}
	t.mu.Unlock()
	for _, id := range involved {
		_ = t.Cancel(id, SystemActor)
	}
}

// complete runs the exchange as a saga of two item transfers. A failure on
// the second transfer reverses the first; the trade then stays pending so
// the parties can retry or cancel.
func (t *Trades) complete(trade *profile.Trade) error {
	if err := t.validateHoldings(trade); err != nil {
		t.resetConsent(trade.ID)
		return err
	}

	moved, err := t.moveLines(trade.FromID, trade.ToID, trade.Offered, "trade:"+trade.ID)
	if err != nil {
		t.reverseLines(trade.ToID, trade.FromID, moved, "trade_rollback:"+trade.ID)
		t.resetConsent(trade.ID)
		return err
	}
	if t.betweenLegs != nil {
		t.betweenLegs()
	}
	movedBack, err := t.moveLines(trade.ToID, trade.FromID, trade.Requested, "trade:"+trade.ID)
	if err != nil {
		t.reverseLines(trade.FromID, trade.ToID, movedBack, "trade_rollback:"+trade.ID)
		t.reverseLines(trade.ToID, trade.FromID, trade.Offered, "trade_rollback:"+trade.ID)
		t.resetConsent(trade.ID)
		return err
	}

	trade.Status = profile.TradeCompleted
	t.retire(trade)
	t.removeCopies(trade)
	for _, accountID := range []string{trade.FromID, trade.ToID} {
		_ = t.profiles.With(accountID, func(p *profile.Profile) error {
			if p.Stats != nil {
				p.Stats.TradesCompleted++
			}
			return nil
		})
		if t.anomaly != nil {
			t.anomaly.Record(Sample{Subject: accountID, Kind: "trade", Amount: 1})
		}
		t.push(accountID, "trade_completed", trade)
	}
	return nil
}

// pendingTrade resolves id to a mutable pending copy after authorization and
// opportunistic expiry.
func (t *Trades) pendingTrade(id, by string) (*profile.Trade, error) {
	t.mu.Lock()
	indexed, ok := t.index[id]
	t.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	trade := cloneTrade(indexed)
	if by != SystemActor && !trade.Participant(by) {
		return nil, ErrNotParticipant
	}
	if trade.Status != profile.TradePending {
		return nil, ErrNotFound
	}
	if t.now().After(trade.ExpiresAt) {
		trade.Status = profile.TradeExpired
		t.retire(trade)
		t.removeCopies(trade)
		return nil, ErrExpired
	}
	return trade, nil
}

func (t *Trades) validateHoldings(trade *profile.Trade) error {
	err := t.profiles.With(trade.FromID, func(p *profile.Profile) error {
		return holdsItems(p, trade.Offered)
	})
	if err != nil {
		return err
	}
	return t.profiles.With(trade.ToID, func(p *profile.Profile) error {
		return holdsItems(p, trade.Requested)
	})
}

func (t *Trades) moveLines(fromID, toID string, lines map[string]int64, reason string) (map[string]int64, error) {
	moved := make(map[string]int64, len(lines))
	for code, count := range lines {
		if err := t.ledger.Transfer(fromID, toID, Item(code), count, reason); err != nil {
			return moved, err
		}
		moved[code] = count
	}
	return moved, nil
}

func (t *Trades) reverseLines(fromID, toID string, lines map[string]int64, reason string) {
	for code, count := range lines {
		_ = t.ledger.Transfer(fromID, toID, Item(code), count, reason)
	}
}

// storeCopies writes fresh clones into both profiles. The embed is gated on
// the index still holding a pending entry so a writer racing a concurrent
// resolution cannot resurrect a copy that removeCopies already deleted.
func (t *Trades) storeCopies(trade *profile.Trade) error {
	for _, accountID := range []string{trade.FromID, trade.ToID} {
		err := t.profiles.With(accountID, func(p *profile.Profile) error {
			t.mu.Lock()
			indexed, ok := t.index[trade.ID]
			pending := ok && indexed.Status == profile.TradePending
			t.mu.Unlock()
			if pending {
				p.Trades[trade.ID] = cloneTrade(trade)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// removeCopies deletes the embedded copies; a released party's copy is left
// for that profile's next session to resolve.
func (t *Trades) removeCopies(trade *profile.Trade) {
	for _, accountID := range []string{trade.FromID, trade.ToID} {
		_ = t.profiles.With(accountID, func(p *profile.Profile) error {
			delete(p.Trades, trade.ID)
			return nil
		})
	}
}

// resetConsent clears both flags after a failed completion so either party
// may accept again once the holdings recover.
func (t *Trades) resetConsent(id string) {
	t.mu.Lock()
	indexed, ok := t.index[id]
	if !ok || indexed.Status != profile.TradePending {
		t.mu.Unlock()
		return
	}
	indexed.FromAccepted = false
	indexed.ToAccepted = false
	reverted := cloneTrade(indexed)
	t.mu.Unlock()
	_ = t.storeCopies(reverted)
}

// retire keeps the terminal status findable for the grace period.
func (t *Trades) retire(trade *profile.Trade) {
	t.mu.Lock()
	t.index[trade.ID] = cloneTrade(trade)
	t.retired[trade.ID] = t.now().Add(IndexGrace)
	t.mu.Unlock()
}

func (t *Trades) push(accountID, event string, trade *profile.Trade) {
	if t.notifier == nil {
		return
	}
	t.notifier.Push(accountID, websocket.Notification{Type: event, Payload: map[string]string{"trade_id": trade.ID}})
}

func (t *Trades) validateSide(lines map[string]int64) error {
	if len(lines) > t.limits.MaxTradeLines {
		return ErrInvalidAmount
	}
	for code, count := range lines {
		if _, ok := t.cat.Lookup(code); !ok {
			return ErrInvalidItem
		}
		if count <= 0 || count > t.limits.MaxTradeLineCount {
			return ErrInvalidAmount
		}
	}
	return nil
}

func pendingTradeCount(p *profile.Profile) int {
	count := 0
	for _, trade := range p.Trades {
		if trade != nil && trade.Status == profile.TradePending {
			count++
		}
	}
	return count
}

func holdsItems(p *profile.Profile, lines map[string]int64) error {
	for code, count := range lines {
		if p.ItemCount(code) < count {
			return ErrInsufficientItems
		}
	}
	return nil
}

func copyLines(lines map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(lines))
	for code, count := range lines {
		out[code] = count
	}
	return out
}

func cloneTrade(t *profile.Trade) *profile.Trade {
	clone := *t
	clone.Offered = copyLines(t.Offered)
	clone.Requested = copyLines(t.Requested)
	return &clone
}
