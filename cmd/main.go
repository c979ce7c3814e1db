package main

import (
	"context"
	"log"
	"sync"

	"github.com/jussrz/SOSit/internal/alerts"
	"github.com/jussrz/SOSit/internal/api"
	"github.com/jussrz/SOSit/internal/config"
	"github.com/jussrz/SOSit/internal/db"
	"github.com/jussrz/SOSit/internal/dispatch"
	"github.com/jussrz/SOSit/internal/fcm"
	"github.com/jussrz/SOSit/internal/kafka"
	"github.com/jussrz/SOSit/internal/logging"
	"github.com/jussrz/SOSit/internal/ws"
	"github.com/jussrz/SOSit/pkg/telegram"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Push transport and credential source
	transport, tokens, err := fcm.Setup(cfg)
	if err != nil {
		log.Fatalf("Failed to set up push transport: %v", err)
	}

	// Live fallback channel for clients with an open session
	hub := ws.NewHub(logger)

	dispatcher := dispatch.New(transport, dbConn, logger, dispatch.Options{
		MaxConcurrent: cfg.Dispatch.MaxConcurrent,
		RatePerSecond: cfg.Dispatch.RatePerSecond,
		SendTimeout:   cfg.Dispatch.SendTimeout,
	}, hub.Publish)

	svc := alerts.New(dbConn, tokens, dispatcher, logger, cfg.Dispatch.RadiusKm)
	if pager := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.OpsChatID, logger); pager != nil {
		svc.SetOpsNotifier(pager.Notify)
	}

	// Kafka consumer runs only when a broker is configured; HTTP is the
	// primary trigger surface.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	if cfg.Kafka.Broker != "" {
		consumer := kafka.NewConsumer(cfg, svc, logger)
		defer consumer.Close()
		consumer.Start(ctx, &wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	}

	// Start API server
	handler := api.NewHandler(svc, dbConn, hub, logger)
	router := api.NewRouter(logger, cfg, handler)
	logger.Infof("Starting API server on %s", cfg.API.Port)
	if err := router.Run(cfg.API.Port); err != nil {
		logger.Errorf("API server failed: %v", err)
	}
	cancel()
	wg.Wait()
}
