package profile

import "time"

// Reconcile patches an arbitrary decoded snapshot against the current
// template: missing substructures are recreated, the schema version is
// stamped, and nothing already present is touched. It is a pure function of
// its inputs and returns the number of fields it had to fill.
func Reconcile(p *Profile, accountID string, now time.Time) int {
	fixes := 0
	if p.AccountID == "" && accountID != "" {
		p.AccountID = accountID
		fixes++
	}
	if p.Inventory == nil {
		p.Inventory = make(map[string]int64)
		fixes++
	}
	if p.Stats == nil {
		p.Stats = &Stats{}
		fixes++
	}
	if p.Prefs == nil {
		p.Prefs = &Prefs{AllowTrades: true, AllowGifts: true, Locale: "en"}
		fixes++
	}
	if p.Trades == nil {
		p.Trades = make(map[string]*Trade)
		fixes++
	}
	if p.Gifts == nil {
		p.Gifts = make(map[string]*Gift)
		fixes++
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.UTC()
		fixes++
	}
	if p.LastSeenAt.IsZero() {
		p.LastSeenAt = now.UTC()
		fixes++
	}
	if p.SchemaVersion != SchemaVersion {
		p.SchemaVersion = SchemaVersion
		fixes++
	}
	return fixes
}
