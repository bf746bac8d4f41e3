package catalog

import "time"

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// ItemKind is one collectible category from the game catalog.
type ItemKind struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Rarity Rarity `json:"rarity"`
}

type Catalog struct {
	kinds map[string]ItemKind
	order []string
}

func New(kinds []ItemKind) *Catalog {
	c := &Catalog{kinds: make(map[string]ItemKind, len(kinds))}
	for _, kind := range kinds {
		if _, exists := c.kinds[kind.Code]; exists {
			continue
		}
		c.kinds[kind.Code] = kind
		c.order = append(c.order, kind.Code)
	}
	return c
}

// Default is the built-in launch catalog. Real deployments load this from
// configuration; the codes here double as fixtures in tests.
func Default() *Catalog {
	return New([]ItemKind{
		{Code: "sprout", Name: "Sprout", Rarity: RarityCommon},
		{Code: "pebble", Name: "Pebble", Rarity: RarityCommon},
		{Code: "ember", Name: "Ember", Rarity: RarityCommon},
		{Code: "ripple", Name: "Ripple", Rarity: RarityUncommon},
		{Code: "gale", Name: "Gale", Rarity: RarityUncommon},
		{Code: "frostfang", Name: "Frostfang", Rarity: RarityRare},
		{Code: "suncrest", Name: "Suncrest", Rarity: RarityRare},
		{Code: "voidbloom", Name: "Voidbloom", Rarity: RarityEpic},
		{Code: "starforge", Name: "Starforge", Rarity: RarityEpic},
		{Code: "chronolith", Name: "Chronolith", Rarity: RarityLegendary},
	})
}

func (c *Catalog) Lookup(code string) (ItemKind, bool) {
	kind, ok := c.kinds[code]
	return kind, ok
}

func (c *Catalog) Size() int {
	return len(c.order)
}

func (c *Catalog) Codes() []string {
	codes := make([]string, len(c.order))
	copy(codes, c.order)
	return codes
}

const (
	CurrencyCoins = "coins"
	CurrencyGems  = "gems"
)

const (
	CoinsCap int64 = 1_000_000_000
	GemsCap  int64 = 100_000
)

// CurrencyCap returns the hard cap for a currency code.
func CurrencyCap(code string) (int64, bool) {
	switch code {
	case CurrencyCoins:
		return CoinsCap, true
	case CurrencyGems:
		return GemsCap, true
	}
	return 0, false
}

// Limits collects the economy guardrails enforced by the services layer.
type Limits struct {
	MaxPendingTrades   int
	MaxPendingGifts    int
	GiftDailyQuota     int
	MaxTradeLines      int
	MaxTradeLineCount  int64
	MessageSoftLimit   int
	MessageHardLimit   int
	AmountCeiling      int64
	TransactionRing    int
	SecurityFlagRing   int
	TradeTTL           time.Duration
	GiftTTL            time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxPendingTrades:  5,
		MaxPendingGifts:   50,
		GiftDailyQuota:    20,
		MaxTradeLines:     6,
		MaxTradeLineCount: 999,
		MessageSoftLimit:  120,
		MessageHardLimit:  500,
		AmountCeiling:     1_000_000,
		TransactionRing:   100,
		SecurityFlagRing:  50,
		TradeTTL:          48 * time.Hour,
		GiftTTL:           7 * 24 * time.Hour,
	}
}
