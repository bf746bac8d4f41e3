package profile

import (
	"fmt"
	"time"

	"collectibles/internal/catalog"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

type Issue struct {
	Severity Severity
	Field    string
	Message  string
}

// Epoch is the earliest timestamp any stored profile can legitimately carry.
var Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// FutureTolerance bounds how far ahead of the validating clock a stored
// timestamp may sit before it is treated as corrupt.
const FutureTolerance = 24 * time.Hour

// Validate reports every structural and numeric invariant violation in a
// snapshot. It never mutates the profile.
func Validate(p *Profile, cat *catalog.Catalog, limits catalog.Limits, now time.Time) []Issue {
	var issues []Issue
	add := func(sev Severity, field, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if p.Inventory == nil {
		add(SeverityError, "inventory", "inventory map missing")
	}
	if p.Stats == nil {
		add(SeverityError, "stats", "stats block missing")
	}
	if p.Prefs == nil {
		add(SeverityError, "prefs", "prefs block missing")
	}
	if p.Trades == nil {
		add(SeverityError, "trades", "trades map missing")
	}
	if p.Gifts == nil {
		add(SeverityError, "gifts", "gifts map missing")
	}

	if p.Coins < 0 {
		add(SeverityCritical, "coins", "negative balance %d", p.Coins)
	} else if p.Coins > catalog.CoinsCap {
		add(SeverityError, "coins", "balance %d above cap %d", p.Coins, catalog.CoinsCap)
	}
	if p.Gems < 0 {
		add(SeverityCritical, "gems", "negative balance %d", p.Gems)
	} else if p.Gems > catalog.GemsCap {
		add(SeverityError, "gems", "balance %d above cap %d", p.Gems, catalog.GemsCap)
	}

	var sum int64
	for code, count := range p.Inventory {
		if count < 0 {
			add(SeverityError, "inventory."+code, "negative count %d", count)
			continue
		}
		if _, known := cat.Lookup(code); !known {
			// Unknown kinds are tolerated for forward compatibility.
			add(SeverityWarning, "inventory."+code, "unknown item kind")
		}
		sum += count
	}
	if p.Inventory != nil && p.InventoryTotal != sum {
		add(SeverityError, "inventory_total", "stored total %d, counted %d", p.InventoryTotal, sum)
	}

	if p.Stats != nil {
		validateStats(p.Stats, cat, add)
	}

	validateTimestamp(p.CreatedAt, "created_at", now, add)
	validateTimestamp(p.LastSeenAt, "last_seen_at", now, add)

	pendingTrades := 0
	for id, trade := range p.Trades {
		field := "trades." + id
		if trade == nil {
			add(SeverityError, field, "nil trade entry")
			continue
		}
		if !tradeStructValid(id, trade, p.AccountID) {
			add(SeverityError, field, "structurally invalid trade")
			continue
		}
		if trade.Status == TradePending {
			pendingTrades++
		}
	}
	if pendingTrades > limits.MaxPendingTrades {
		add(SeverityWarning, "trades", "%d pending trades, capacity %d", pendingTrades, limits.MaxPendingTrades)
	}

	for id, gift := range p.Gifts {
		field := "gifts." + id
		if gift == nil || !giftStructValid(id, gift) {
			add(SeverityError, field, "structurally invalid gift")
		}
	}
	if len(p.Gifts) > limits.MaxPendingGifts {
		add(SeverityWarning, "gifts", "%d pending gifts, capacity %d", len(p.Gifts), limits.MaxPendingGifts)
	}

	if limits.TransactionRing > 0 && len(p.Transactions) > limits.TransactionRing {
		add(SeverityInfo, "transactions", "ring holds %d records, cap %d", len(p.Transactions), limits.TransactionRing)
	}
	if limits.SecurityFlagRing > 0 && len(p.SecurityFlags) > limits.SecurityFlagRing {
		add(SeverityInfo, "security_flags", "ring holds %d flags, cap %d", len(p.SecurityFlags), limits.SecurityFlagRing)
	}
	return issues
}

// AutoFix applies every reversible safe-default repair and returns how many
// it made. It is idempotent: a second call on the result makes zero changes.
// Unverifiable state is never fabricated, only clamped or dropped.
func AutoFix(p *Profile, cat *catalog.Catalog, limits catalog.Limits, now time.Time) int {
	fixes := Reconcile(p, p.AccountID, now)

	if p.Coins < 0 {
		p.Coins = 0
		fixes++
	} else if p.Coins > catalog.CoinsCap {
		p.Coins = catalog.CoinsCap
		fixes++
	}
	if p.Gems < 0 {
		p.Gems = 0
		fixes++
	} else if p.Gems > catalog.GemsCap {
		p.Gems = catalog.GemsCap
		fixes++
	}

	var sum int64
	for code, count := range p.Inventory {
		if count < 0 {
			delete(p.Inventory, code)
			fixes++
			continue
		}
		if count == 0 {
			delete(p.Inventory, code)
			fixes++
			continue
		}
		sum += count
	}
	if p.InventoryTotal != sum {
		p.InventoryTotal = sum
		fixes++
	}

	fixes += fixStats(p.Stats, cat)

	if fixed, changed := clampTimestamp(p.CreatedAt, now); changed {
		p.CreatedAt = fixed
		fixes++
	}
	if fixed, changed := clampTimestamp(p.LastSeenAt, now); changed {
		p.LastSeenAt = fixed
		fixes++
	}

	for id, trade := range p.Trades {
		if trade == nil || !tradeStructValid(id, trade, p.AccountID) {
			delete(p.Trades, id)
			fixes++
		}
	}
	for id, gift := range p.Gifts {
		if gift == nil || !giftStructValid(id, gift) {
			delete(p.Gifts, id)
			fixes++
		}
	}

	if limits.TransactionRing > 0 && len(p.Transactions) > limits.TransactionRing {
		p.Transactions = p.Transactions[len(p.Transactions)-limits.TransactionRing:]
		fixes++
	}
	if limits.SecurityFlagRing > 0 && len(p.SecurityFlags) > limits.SecurityFlagRing {
		p.SecurityFlags = p.SecurityFlags[len(p.SecurityFlags)-limits.SecurityFlagRing:]
		fixes++
	}
	return fixes
}

func validateStats(s *Stats, cat *catalog.Catalog, add func(Severity, string, string, ...any)) {
	counters := map[string]int64{
		"sessions": s.Sessions, "packs_opened": s.PacksOpened,
		"unique_collected": s.UniqueCollected, "trades_completed": s.TradesCompleted,
		"gifts_sent": s.GiftsSent, "gifts_claimed": s.GiftsClaimed,
		"coins_earned": s.CoinsEarned, "coins_spent": s.CoinsSpent,
		"gems_earned": s.GemsEarned, "gems_spent": s.GemsSpent,
	}
	for name, value := range counters {
		if value < 0 {
			add(SeverityError, "stats."+name, "negative counter %d", value)
		}
	}
	if s.UniqueCollected > int64(cat.Size()) {
		add(SeverityError, "stats.unique_collected", "%d exceeds catalog size %d", s.UniqueCollected, cat.Size())
	}
}

func fixStats(s *Stats, cat *catalog.Catalog) int {
	if s == nil {
		return 0
	}
	fixes := 0
	clamp := func(v *int64) {
		if *v < 0 {
			*v = 0
			fixes++
		}
	}
	clamp(&s.Sessions)
	clamp(&s.PacksOpened)
	clamp(&s.UniqueCollected)
	clamp(&s.TradesCompleted)
	clamp(&s.GiftsSent)
	clamp(&s.GiftsClaimed)
	clamp(&s.CoinsEarned)
	clamp(&s.CoinsSpent)
	clamp(&s.GemsEarned)
	clamp(&s.GemsSpent)
	if limit := int64(cat.Size()); s.UniqueCollected > limit {
		s.UniqueCollected = limit
		fixes++
	}
	return fixes
}

func validateTimestamp(ts time.Time, field string, now time.Time, add func(Severity, string, string, ...any)) {
	if ts.IsZero() {
		add(SeverityError, field, "timestamp missing")
		return
	}
	if ts.Before(Epoch) {
		add(SeverityError, field, "timestamp %s predates epoch", ts.Format(time.RFC3339))
	}
	if ts.After(now.Add(FutureTolerance)) {
		add(SeverityError, field, "timestamp %s is future-shifted", ts.Format(time.RFC3339))
	}
}

func clampTimestamp(ts time.Time, now time.Time) (time.Time, bool) {
	if ts.Before(Epoch) {
		return Epoch, true
	}
	if ts.After(now.Add(FutureTolerance)) {
		return now.UTC(), true
	}
	return ts, false
}

func tradeStructValid(key string, t *Trade, owner string) bool {
	if t.ID == "" || t.ID != key {
		return false
	}
	if t.FromID == "" || t.ToID == "" || t.FromID == t.ToID {
		return false
	}
	if owner != "" && !t.Participant(owner) {
		return false
	}
	switch t.Status {
	case TradePending, TradeCompleted, TradeCancelled, TradeExpired:
	default:
		return false
	}
	if len(t.Offered) == 0 && len(t.Requested) == 0 {
		return false
	}
	for _, count := range t.Offered {
		if count <= 0 {
			return false
		}
	}
	for _, count := range t.Requested {
		if count <= 0 {
			return false
		}
	}
	return true
}

func giftStructValid(key string, g *Gift) bool {
	return g.ID != "" && g.ID == key && g.FromID != "" && g.Item != "" && g.Count > 0
}
