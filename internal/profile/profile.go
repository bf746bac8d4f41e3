package profile

import "time"

// SchemaVersion is stamped on every snapshot; Reconcile upgrades older ones.
const SchemaVersion = 3

type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeCompleted TradeStatus = "completed"
	TradeCancelled TradeStatus = "cancelled"
	TradeExpired   TradeStatus = "expired"
)

type Profile struct {
	AccountID      string           `json:"account_id"`
	SchemaVersion  int              `json:"schema_version"`
	Coins          int64            `json:"coins"`
	Gems           int64            `json:"gems"`
	Inventory      map[string]int64 `json:"inventory"`
	InventoryTotal int64            `json:"inventory_total"`
	Stats          *Stats           `json:"stats"`
	Prefs          *Prefs           `json:"prefs"`
	Trades         map[string]*Trade `json:"trades"`
	Gifts          map[string]*Gift  `json:"gifts"`
	Transactions   []TransactionRecord `json:"transactions"`
	SecurityFlags  []SecurityFlag      `json:"security_flags"`
	CreatedAt      time.Time        `json:"created_at"`
	LastSeenAt     time.Time        `json:"last_seen_at"`
}

type Stats struct {
	Sessions        int64 `json:"sessions"`
	PacksOpened     int64 `json:"packs_opened"`
	UniqueCollected int64 `json:"unique_collected"`
	TradesCompleted int64 `json:"trades_completed"`
	GiftsSent       int64 `json:"gifts_sent"`
	GiftsClaimed    int64 `json:"gifts_claimed"`
	CoinsEarned     int64 `json:"coins_earned"`
	CoinsSpent      int64 `json:"coins_spent"`
	GemsEarned      int64 `json:"gems_earned"`
	GemsSpent       int64 `json:"gems_spent"`
}

type Prefs struct {
	AllowTrades bool   `json:"allow_trades"`
	AllowGifts  bool   `json:"allow_gifts"`
	Locale      string `json:"locale"`
}

// TransactionRecord is one immutable ledger entry. Profiles keep a capped
// ring of the most recent records.
type TransactionRecord struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Resource  string    `json:"resource"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail"`
}

type SecurityFlag struct {
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Trade is stored twice, once in each participant's profile. Both copies are
// updated together; the services layer treats that as an invariant.
type Trade struct {
	ID           string            `json:"id"`
	FromID       string            `json:"from_id"`
	ToID         string            `json:"to_id"`
	Offered      map[string]int64  `json:"offered"`
	Requested    map[string]int64  `json:"requested"`
	Status       TradeStatus       `json:"status"`
	FromAccepted bool              `json:"from_accepted"`
	ToAccepted   bool              `json:"to_accepted"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

func (t *Trade) Participant(accountID string) bool {
	return t.FromID == accountID || t.ToID == accountID
}

func (t *Trade) Other(accountID string) string {
	if t.FromID == accountID {
		return t.ToID
	}
	return t.FromID
}

// Gift lives only in the recipient's profile; presence means pending.
type Gift struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from_id"`
	Item      string    `json:"item"`
	Count     int64     `json:"count"`
	Message   string    `json:"message,omitempty"`
	SentAt    time.Time `json:"sent_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewFromTemplate builds the first-session profile for an account.
func NewFromTemplate(accountID string, now time.Time) *Profile {
	return &Profile{
		AccountID:     accountID,
		SchemaVersion: SchemaVersion,
		Coins:         500,
		Gems:          10,
		Inventory:     make(map[string]int64),
		Stats:         &Stats{},
		Prefs:         &Prefs{AllowTrades: true, AllowGifts: true, Locale: "en"},
		Trades:        make(map[string]*Trade),
		Gifts:         make(map[string]*Gift),
		CreatedAt:     now.UTC(),
		LastSeenAt:    now.UTC(),
	}
}

func (p *Profile) CurrencyBalance(code string) int64 {
	switch code {
	case "coins":
		return p.Coins
	case "gems":
		return p.Gems
	}
	return 0
}

func (p *Profile) SetCurrency(code string, value int64) {
	switch code {
	case "coins":
		p.Coins = value
	case "gems":
		p.Gems = value
	}
}

func (p *Profile) ItemCount(code string) int64 {
	return p.Inventory[code]
}

// AdjustItem applies a signed delta to one inventory line and keeps the
// derived total in step. Counts never go negative; zeroed lines are removed.
func (p *Profile) AdjustItem(code string, delta int64) {
	if p.Inventory == nil {
		p.Inventory = make(map[string]int64)
	}
	before := p.Inventory[code]
	next := max64(before+delta, 0)
	if next == 0 {
		delete(p.Inventory, code)
	} else {
		p.Inventory[code] = next
	}
	p.InventoryTotal = max64(p.InventoryTotal+next-before, 0)
}

func (p *Profile) AppendTransaction(rec TransactionRecord, ringSize int) {
	p.Transactions = append(p.Transactions, rec)
	if ringSize > 0 && len(p.Transactions) > ringSize {
		p.Transactions = p.Transactions[len(p.Transactions)-ringSize:]
	}
}

func (p *Profile) AppendSecurityFlag(flag SecurityFlag, ringSize int) {
	p.SecurityFlags = append(p.SecurityFlags, flag)
	if ringSize > 0 && len(p.SecurityFlags) > ringSize {
		p.SecurityFlags = p.SecurityFlags[len(p.SecurityFlags)-ringSize:]
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
