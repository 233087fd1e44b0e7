// Copyright (c) 2023-2025 RapidaAI
// Realtime Relay - bridges browser meeting sessions to the realtime
// transcription endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	internal_session "github.com/rapidaai/realtime-relay/internal/session"
	internal_upstream "github.com/rapidaai/realtime-relay/internal/upstream"
	relay_routers "github.com/rapidaai/realtime-relay/api/relay-api/router"
	"github.com/rapidaai/realtime-relay/config"
	"github.com/rapidaai/realtime-relay/pkg/commons"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("failed to initialize config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Fatalf("invalid application config: %v", err)
	}

	logger, err := commons.NewApplicationLoggerWithOptions(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))

	registry := internal_session.NewRegistry(logger)
	connector := internal_upstream.NewConnector(cfg, logger)

	relay_routers.RealtimeApiRoute(cfg, engine, logger, connector, registry)
	relay_routers.HealthCheckRoutes(cfg, engine, logger, registry)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("%s %s listening on %s", cfg.Name, cfg.Version, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		registry.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("server terminated: %v", err)
	}
}
