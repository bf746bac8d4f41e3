package services

import (
	"log"
	"time"

	"collectibles/internal/catalog"
	"collectibles/internal/profile"
	"collectibles/internal/websocket"

	"github.com/google/uuid"
)

type ResourceType string

const (
	ResourceCurrency ResourceType = "currency"
	ResourceItem     ResourceType = "item"
)

type Resource struct {
	Type ResourceType
	Code string
}

func Coins() Resource { return Resource{Type: ResourceCurrency, Code: catalog.CurrencyCoins} }

func Gems() Resource { return Resource{Type: ResourceCurrency, Code: catalog.CurrencyGems} }

func Item(code string) Resource { return Resource{Type: ResourceItem, Code: code} }

type Cost struct {
	Resource Resource
	Amount   int64
}

type AnomalyRecorder interface {
	Record(sample Sample) bool
}

type Notifier interface {
	Push(accountID string, notification websocket.Notification)
}

// Ledger performs every validated mutation of account resources. Profiles
// must be checked out; all mutation happens under the profile lock, and
// every success appends a transaction record and fires a non-blocking
// anomaly sample.
type Ledger struct {
	profiles *Profiles
	cat      *catalog.Catalog
	limits   catalog.Limits
	anomaly  AnomalyRecorder
	notifier Notifier
	now      func() time.Time
}

func NewLedger(profiles *Profiles, cat *catalog.Catalog, limits catalog.Limits, anomaly AnomalyRecorder, notifier Notifier, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		profiles: profiles,
		cat:      cat,
		limits:   limits,
		anomaly:  anomaly,
		notifier: notifier,
		now:      now,
	}
}

func (l *Ledger) validate(res Resource, amount int64) error {
	if amount <= 0 || amount > l.limits.AmountCeiling {
		return ErrInvalidAmount
	}
	switch res.Type {
	case ResourceCurrency:
		if _, ok := catalog.CurrencyCap(res.Code); !ok {
			return ErrInvalidItem
		}
	case ResourceItem:
		if _, ok := l.cat.Lookup(res.Code); !ok {
			return ErrInvalidItem
		}
	default:
		return ErrInvalidItem
	}
	return nil
}

// Credit applies a positive delta. Currency credits clamp to the cap:
// a partial credit is success with the clamped delta, and ErrMaxExceeded is
// returned only when nothing at all could be applied. Items have no cap.
func (l *Ledger) Credit(accountID string, res Resource, amount int64, reason string) (int64, error) {
	if err := l.validate(res, amount); err != nil {
		return 0, err
	}
	var applied int64
	err := l.profiles.With(accountID, func(p *profile.Profile) error {
		var err error
		applied, err = creditLocked(p, res, amount, l.limits)
		if err != nil {
			return err
		}
		l.appendRecord(p, "credit", res, applied, reason)
		return nil
	})
	if err != nil {
		return 0, err
	}
	l.dispatch(accountID, res, applied)
	l.pushBalance(accountID, res)
	return applied, nil
}

// Debit removes exactly amount or fails.
func (l *Ledger) Debit(accountID string, res Resource, amount int64, reason string) error {
	if err := l.validate(res, amount); err != nil {
		return err
	}
	err := l.profiles.With(accountID, func(p *profile.Profile) error {
		if err := debitLocked(p, res, amount); err != nil {
			return err
		}
		l.appendRecord(p, "debit", res, -amount, reason)
		return nil
	})
	if err != nil {
		return err
	}
	l.dispatch(accountID, res, -amount)
	l.pushBalance(accountID, res)
	return nil
}

func (l *Ledger) Balance(accountID string, res Resource) (int64, error) {
	var balance int64
	err := l.profiles.With(accountID, func(p *profile.Profile) error {
		balance = balanceLocked(p, res)
		return nil
	})
	return balance, err
}

func (l *Ledger) CanAfford(accountID string, costs []Cost) bool {
	err := l.profiles.With(accountID, func(p *profile.Profile) error {
		return affordableLocked(p, costs)
	})
	return err == nil
}

// SpendMulti debits every cost or none. Affordability is pre-checked under
// the profile lock, then the debits run in sequence; if a later debit still
// fails, every already-applied debit is unwound with a compensating credit
// before the error returns. A saga, not a transaction: the durable layer
// has no multi-key commit to lean on.
func (l *Ledger) SpendMulti(accountID string, costs []Cost, reason string) error {
	if len(costs) == 0 {
		return ErrInvalidAmount
	}
	for _, cost := range costs {
		if err := l.validate(cost.Resource, cost.Amount); err != nil {
			return err
		}
	}
	err := l.profiles.With(accountID, func(p *profile.Profile) error {
		if err := affordableLocked(p, costs); err != nil {
			return err
		}
		for i, cost := range costs {
			if err := debitLocked(p, cost.Resource, cost.Amount); err != nil {
				for j := i - 1; j >= 0; j-- {
					_, _ = creditLocked(p, costs[j].Resource, costs[j].Amount, l.limits)
				}
				return err
			}
		}
		for _, cost := range costs {
			l.appendRecord(p, "debit", cost.Resource, -cost.Amount, reason)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, cost := range costs {
		l.dispatch(accountID, cost.Resource, -cost.Amount)
		l.pushBalance(accountID, cost.Resource)
	}
	return nil
}

// Transfer moves a resource between two accounts: debit then credit, with a
// compensating credit back to the source when the credit leg fails. For a
// capped currency the clamped remainder is burned and logged by the credit
// side; items are uncapped so transfers conserve totals exactly.
func (l *Ledger) Transfer(fromID, toID string, res Resource, amount int64, reason string) error {
	if err := l.Debit(fromID, res, amount, reason); err != nil {
		return err
	}
	if _, err := l.Credit(toID, res, amount, reason); err != nil {
		if _, compErr := l.Credit(fromID, res, amount, reason+":rollback"); compErr != nil {
			// Both the credit and its compensation failed; the source's
			// transaction records still show the orphaned debit.
			log.Printf("[ledger] compensation failed for %s after transfer to %s: %v", fromID, toID, compErr)
			return compErr
		}
		return err
	}
	return nil
}

func (l *Ledger) appendRecord(p *profile.Profile, kind string, res Resource, amount int64, reason string) {
	p.AppendTransaction(profile.TransactionRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Resource:  res.Code,
		Amount:    amount,
		Timestamp: l.now().UTC(),
		Detail:    reason,
	}, l.limits.TransactionRing)
	bumpStats(p, res, amount)
}

func (l *Ledger) dispatch(accountID string, res Resource, amount int64) {
	if l.anomaly == nil {
		return
	}
	kind := res.Code
	if res.Type == ResourceItem {
		kind = "items"
	}
	l.anomaly.Record(Sample{Subject: accountID, Kind: kind, Amount: amount})
}

func (l *Ledger) pushBalance(accountID string, res Resource) {
	if l.notifier == nil {
		return
	}
	p := l.profiles.Get(accountID)
	if p == nil {
		return
	}
	payload := map[string]any{"resource": res.Code}
	if res.Type == ResourceCurrency {
		payload["balance"] = p.CurrencyBalance(res.Code)
	} else {
		payload["count"] = p.ItemCount(res.Code)
	}
	l.notifier.Push(accountID, websocket.Notification{Type: "balance", Payload: payload})
}

func balanceLocked(p *profile.Profile, res Resource) int64 {
	if res.Type == ResourceCurrency {
		return p.CurrencyBalance(res.Code)
	}
	return p.ItemCount(res.Code)
}

func affordableLocked(p *profile.Profile, costs []Cost) error {
	need := make(map[Resource]int64, len(costs))
	for _, cost := range costs {
		need[cost.Resource] += cost.Amount
	}
	for res, amount := range need {
		if balanceLocked(p, res) < amount {
			if res.Type == ResourceCurrency {
				return ErrInsufficientFunds
			}
			return ErrInsufficientItems
		}
	}
	return nil
}

func creditLocked(p *profile.Profile, res Resource, amount int64, limits catalog.Limits) (int64, error) {
	if res.Type == ResourceCurrency {
		limit, _ := catalog.CurrencyCap(res.Code)
		balance := p.CurrencyBalance(res.Code)
		room := limit - balance
		if room <= 0 {
			return 0, ErrMaxExceeded
		}
		applied := amount
		if applied > room {
			applied = room
		}
		p.SetCurrency(res.Code, balance+applied)
		return applied, nil
	}
	if p.ItemCount(res.Code) == 0 {
		if p.Stats != nil {
			p.Stats.UniqueCollected++
		}
	}
	p.AdjustItem(res.Code, amount)
	return amount, nil
}

func debitLocked(p *profile.Profile, res Resource, amount int64) error {
	if res.Type == ResourceCurrency {
		balance := p.CurrencyBalance(res.Code)
		if balance < amount {
			return ErrInsufficientFunds
		}
		p.SetCurrency(res.Code, balance-amount)
		return nil
	}
	if p.ItemCount(res.Code) < amount {
		return ErrInsufficientItems
	}
	p.AdjustItem(res.Code, -amount)
	return nil
}

func bumpStats(p *profile.Profile, res Resource, amount int64) {
	if p.Stats == nil {
		return
	}
	switch {
	case res.Code == catalog.CurrencyCoins && amount > 0:
		p.Stats.CoinsEarned += amount
	case res.Code == catalog.CurrencyCoins && amount < 0:
		p.Stats.CoinsSpent += -amount
	case res.Code == catalog.CurrencyGems && amount > 0:
		p.Stats.GemsEarned += amount
	case res.Code == catalog.CurrencyGems && amount < 0:
		p.Stats.GemsSpent += -amount
	}
}
