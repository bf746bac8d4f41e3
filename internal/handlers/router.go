package handlers

import (
	"net/http"

	"collectibles/internal/config"
	"collectibles/internal/middleware"
	"collectibles/internal/services"
	"collectibles/internal/store"
	"collectibles/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg       config.Config
	profiles  *services.Profiles
	ledger    *services.Ledger
	trades    *services.Trades
	gifts     *services.Gifts
	purchases *services.Purchases
	bans      *services.Bans
	anomaly   *services.Anomaly
	limiter   *services.RateLimiter
	audit     *store.AuditStore
	hub       *websocket.Hub
}

func New(cfg config.Config, profiles *services.Profiles, ledger *services.Ledger, trades *services.Trades, gifts *services.Gifts, purchases *services.Purchases, bans *services.Bans, anomaly *services.Anomaly, limiter *services.RateLimiter, audit *store.AuditStore, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:       cfg,
		profiles:  profiles,
		ledger:    ledger,
		trades:    trades,
		gifts:     gifts,
		purchases: purchases,
		bans:      bans,
		anomaly:   anomaly,
		limiter:   limiter,
		audit:     audit,
		hub:       hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Post("/session/start", h.StartSession)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/session/end", h.EndSession)

	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/profile", h.GetProfile)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/profile/save", h.SaveProfile)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/balances", h.GetBalances)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/spend", h.Spend)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/transactions", h.ListTransactions)

	router.Route("/trades", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Post("/", h.CreateTrade)
		r.Get("/", h.ListTrades)
		r.Get("/{id}", h.GetTrade)
		r.Post("/{id}/accept", h.AcceptTrade)
		r.Post("/{id}/cancel", h.CancelTrade)
	})

	router.Route("/gifts", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Post("/", h.SendGift)
		r.Get("/", h.ListGifts)
		r.Post("/{id}/claim", h.ClaimGift)
		r.Post("/{id}/reject", h.RejectGift)
		r.Post("/claim-all", h.ClaimAllGifts)
	})

	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/purchases", h.GrantPurchase)

	router.Get("/ws/notifications", h.WSNotifications)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireOperator(h.cfg.AdminKeyHash))
		r.Post("/bans", h.BanAccount)
		r.Delete("/bans/{accountID}", h.UnbanAccount)
		r.Get("/bans", h.ListBans)
		r.Get("/audit", h.ListAuditLogs)
		r.Get("/anomalies", h.ListAnomalies)
		r.Get("/profiles/{accountID}/report", h.ProfileReport)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
