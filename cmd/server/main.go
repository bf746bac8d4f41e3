package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collectibles/internal/catalog"
	"collectibles/internal/config"
	"collectibles/internal/db"
	"collectibles/internal/handlers"
	"collectibles/internal/services"
	"collectibles/internal/store"
	"collectibles/internal/websocket"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	cat := catalog.Default()
	limits := catalog.DefaultLimits()

	snapshots := store.NewSnapshotStore(database)
	links := store.NewLinkStore(database)
	banRows := store.NewBanStore(database)
	audit := store.NewAuditStore(database)
	receipts := store.NewReceiptStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	profiles := services.NewProfiles(snapshots, links, cat, limits, services.ProfilesConfig{
		CheckoutTimeout: cfg.CheckoutTimeout,
		Retries:         cfg.CheckoutRetries,
		RetryDelay:      cfg.CheckoutDelay,
		SaveDebounce:    cfg.SaveDebounce,
		ShutdownGrace:   cfg.ShutdownGrace,
	}, nil)
	anomaly := services.NewAnomaly(services.DefaultThresholds(), nil, func(subject string, flag services.AnomalyFlag) {
		log.Printf("[anomaly] subject=%s kind=%s detail=%s", subject, flag.Kind, flag.Detail)
	})
	anomaly.Start()
	limiter := services.NewRateLimiter(services.DefaultRules(), nil)
	ledger := services.NewLedger(profiles, cat, limits, anomaly, hub, nil)
	trades := services.NewTrades(profiles, ledger, limiter, anomaly, hub, cat, limits, nil)
	gifts := services.NewGifts(profiles, ledger, limiter, hub, cat, limits, nil)
	skus := services.DefaultSKUs()
	if cfg.PurchaseSKUs != "" {
		skus, err = services.SKUsFromEnv(cfg.PurchaseSKUs)
		if err != nil {
			log.Fatalf("invalid PURCHASE_SKUS: %v", err)
		}
	}
	purchases := services.NewPurchases(ledger, limiter, txRunner, audit, receipts, skus)
	bans := services.NewBans(txRunner, banRows, audit, nil)

	// A takeover or a session end leaves no half-open trades behind.
	profiles.SetOnSessionEnd(trades.EndSession)
	profiles.SetOnForcedRelease(trades.EndSession)

	scheduler, err := services.StartScheduler(trades, gifts, limiter, profiles, cfg.SweepInterval, cfg.AutosaveInterval)
	if err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	handler := handlers.New(cfg, profiles, ledger, trades, gifts, purchases, bans, anomaly, limiter, audit, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("collectibles API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	scheduler.Stop()
	// Every active profile gets a final save before the process exits.
	profiles.Shutdown(ctx)
	anomaly.Stop()
}
