package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"collectibles/internal/auth"
	"collectibles/internal/catalog"
	"collectibles/internal/config"
	"collectibles/internal/profile"
	"collectibles/internal/services"
	"collectibles/internal/store"
	"collectibles/internal/websocket"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

const testOperatorKey = "ops-key"

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

// memReceiptLog keeps granted receipt ids with the store's duplicate
// semantics.
type memReceiptLog struct {
	mu   sync.Mutex
	rows map[string]string
}

func newMemReceiptLog() *memReceiptLog {
	return &memReceiptLog{rows: make(map[string]string)}
}

func (m *memReceiptLog) Insert(_ context.Context, receiptID, accountID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[receiptID]; ok {
		return store.ErrDuplicate
	}
	m.rows[receiptID] = accountID
	return nil
}

func (m *memReceiptLog) Delete(_ context.Context, receiptID string) error {
	m.mu.Lock()
	delete(m.rows, receiptID)
	m.mu.Unlock()
	return nil
}

// memSnapStore is the durable layer for handler tests: JSON rows in a map,
// owner tokens enforced the way the real store does.
type memSnapStore struct {
	mu     sync.Mutex
	rows   map[string][]byte
	owners map[string]string
}

func newMemSnapStore() *memSnapStore {
	return &memSnapStore{rows: make(map[string][]byte), owners: make(map[string]string)}
}

func (s *memSnapStore) Load(_ context.Context, accountID string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.rows[accountID]
	if !ok {
		return nil, nil
	}
	var p profile.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, store.ErrCorrupted
	}
	return &p, nil
}

func (s *memSnapStore) Claim(_ context.Context, accountID, ownerToken string, p *profile.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[accountID]; !ok {
		s.rows[accountID] = raw
	}
	s.owners[accountID] = ownerToken
	return nil
}

func (s *memSnapStore) Save(_ context.Context, accountID, ownerToken string, p *profile.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[accountID] != ownerToken {
		return store.ErrOwnedElsewhere
	}
	s.rows[accountID] = raw
	return nil
}

func (s *memSnapStore) Release(_ context.Context, accountID, ownerToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[accountID] == ownerToken {
		delete(s.owners, accountID)
	}
	return nil
}

type noopLinks struct{}

func (noopLinks) Associate(context.Context, string, string) error { return nil }

type memBanRows struct {
	mu   sync.Mutex
	rows map[string]store.Ban
}

func newMemBanRows() *memBanRows {
	return &memBanRows{rows: make(map[string]store.Ban)}
}

func (m *memBanRows) Insert(_ context.Context, _ store.Execer, ban store.Ban) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[ban.AccountID] = ban
	return nil
}

func (m *memBanRows) Lift(_ context.Context, _ store.Execer, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[accountID]; !ok {
		return 0, nil
	}
	delete(m.rows, accountID)
	return 1, nil
}

func (m *memBanRows) GetActive(_ context.Context, accountID string) (store.Ban, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ban, ok := m.rows[accountID]
	return ban, ok, nil
}

func (m *memBanRows) List(_ context.Context, _, _ int) ([]store.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]store.Ban, 0, len(m.rows))
	for _, ban := range m.rows {
		rows = append(rows, ban)
	}
	return rows, nil
}

type memAuditTrail struct {
	mu      sync.Mutex
	actions []string
}

func (m *memAuditTrail) Log(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
	return nil
}

// auditListDB backs the concrete audit store with canned rows for the
// admin listing endpoint.
type auditListDB struct {
	entries []store.AuditEntry
}

func (d auditListDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}

func (d auditListDB) GetContext(context.Context, any, string, ...any) error { return nil }

func (d auditListDB) SelectContext(_ context.Context, dest any, _ string, _ ...any) error {
	*dest.(*[]store.AuditEntry) = d.entries
	return nil
}

type testEnv struct {
	handler  *Handler
	router   http.Handler
	profiles *services.Profiles
	snaps    *memSnapStore
	banRows  *memBanRows
	audit    *memAuditTrail
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testOperatorKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash operator key: %v", err)
	}
	return config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		AdminKeyHash:   string(hash),
	}
}

func newTestEnv(t *testing.T, rules map[string]services.Rule) *testEnv {
	t.Helper()
	cfg := testConfig(t)
	cat := catalog.Default()
	limits := catalog.DefaultLimits()
	snaps := newMemSnapStore()
	profiles := services.NewProfiles(snaps, noopLinks{}, cat, limits, services.ProfilesConfig{
		CheckoutTimeout: time.Second,
		Retries:         1,
		RetryDelay:      time.Millisecond,
		SaveDebounce:    0,
		ShutdownGrace:   time.Second,
	}, nil)
	anomaly := services.NewAnomaly(services.DefaultThresholds(), nil, nil)
	if rules == nil {
		rules = services.DefaultRules()
	}
	limiter := services.NewRateLimiter(rules, nil)
	hub := websocket.NewHub()
	ledger := services.NewLedger(profiles, cat, limits, anomaly, hub, nil)
	trades := services.NewTrades(profiles, ledger, limiter, anomaly, hub, cat, limits, nil)
	gifts := services.NewGifts(profiles, ledger, limiter, hub, cat, limits, nil)
	auditTrail := &memAuditTrail{}
	purchases := services.NewPurchases(ledger, limiter, fakeTxRunner{}, auditTrail, newMemReceiptLog(), services.DefaultSKUs())
	banRows := newMemBanRows()
	bans := services.NewBans(fakeTxRunner{}, banRows, auditTrail, nil)
	auditStore := store.NewAuditStore(auditListDB{entries: []store.AuditEntry{
		{ID: "log-1", ActorID: "ops", Action: "ban", EntityType: "account", EntityID: "player-9"},
	}})
	handler := New(cfg, profiles, ledger, trades, gifts, purchases, bans, anomaly, limiter, auditStore, hub)
	env := &testEnv{
		handler:  handler,
		router:   handler.Routes(),
		profiles: profiles,
		snaps:    snaps,
		banRows:  banRows,
		audit:    auditTrail,
	}
	t.Cleanup(func() { profiles.Shutdown(context.Background()) })
	return env
}

func (e *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doAdmin(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("X-Operator-Key", testOperatorKey)
	req.Header.Set("X-Operator-Actor", "ops")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// startSession checks the account out over the wire and returns its token.
func (e *testEnv) startSession(t *testing.T, accountID string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/session/start", "", map[string]string{
		"account_id":       accountID,
		"platform_user_id": "platform-" + accountID,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("session start for %s: %d %s", accountID, rr.Code, rr.Body.String())
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("session start returned empty token")
	}
	return payload.Token
}

func (e *testEnv) give(t *testing.T, accountID, item string, count int64) {
	t.Helper()
	err := e.profiles.With(accountID, func(p *profile.Profile) error {
		p.AdjustItem(item, count)
		return nil
	})
	if err != nil {
		t.Fatalf("seed %s with %s: %v", accountID, item, err)
	}
}

func tokenFor(t *testing.T, accountID string) string {
	t.Helper()
	token, err := auth.IssueToken("secret", accountID, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	decodeBody(t, rr, &payload)
	return payload.Error
}
