package handlers

import (
	"net/http"
	"testing"

	"collectibles/internal/store"
)

func TestAdminSurfaceRequiresOperatorKey(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/admin/bans", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rr.Code)
	}
}

func TestBanEndsActiveSession(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")

	rr := env.doAdmin(t, http.MethodPost, "/admin/bans", map[string]any{
		"account_id": "player-1",
		"reason":     "duping",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("ban: %d %s", rr.Code, rr.Body.String())
	}

	// The session is gone and a fresh one is refused.
	if rr = env.do(t, http.MethodGet, "/profile", token, nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("banned session should lose its profile, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/session/start", "", map[string]string{"account_id": "player-1"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("banned account should not start a session, got %d", rr.Code)
	}
}

func TestBanRequiresReason(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.doAdmin(t, http.MethodPost, "/admin/bans", map[string]any{
		"account_id": "player-1",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUnbanOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	if rr := env.doAdmin(t, http.MethodPost, "/admin/bans", map[string]any{
		"account_id": "player-1", "reason": "duping",
	}); rr.Code != http.StatusCreated {
		t.Fatalf("ban: %d", rr.Code)
	}

	rr := env.doAdmin(t, http.MethodDelete, "/admin/bans/player-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unban: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/session/start", "", map[string]string{"account_id": "player-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("unbanned account should start a session, got %d", rr.Code)
	}
}

func TestListBansOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	env.doAdmin(t, http.MethodPost, "/admin/bans", map[string]any{
		"account_id": "player-1", "reason": "duping",
	})

	rr := env.doAdmin(t, http.MethodGet, "/admin/bans", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list bans: %d", rr.Code)
	}
	var bans []store.Ban
	decodeBody(t, rr, &bans)
	if len(bans) != 1 || bans[0].AccountID != "player-1" {
		t.Fatalf("unexpected bans: %#v", bans)
	}
}

func TestListAuditLogsOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.doAdmin(t, http.MethodGet, "/admin/audit?limit=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list audit: %d", rr.Code)
	}
	var entries []store.AuditEntry
	decodeBody(t, rr, &entries)
	if len(entries) != 1 || entries[0].Action != "ban" {
		t.Fatalf("unexpected entries: %#v", entries)
	}
}

func TestListAnomaliesRequiresSubject(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.doAdmin(t, http.MethodGet, "/admin/anomalies", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = env.doAdmin(t, http.MethodGet, "/admin/anomalies?subject=player-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Subject string `json:"subject"`
		Total   int    `json:"total"`
	}
	decodeBody(t, rr, &payload)
	if payload.Subject != "player-1" || payload.Total != 0 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
