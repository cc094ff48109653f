package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wisefido-patient-status/internal/config"
	httpapi "wisefido-patient-status/internal/http"
	"wisefido-patient-status/internal/metrics"
	"wisefido-patient-status/internal/repository"
	"wisefido-patient-status/internal/service"
	"wisefido-patient-status/internal/store"

	"wisefido-patient-status/owl-common/database"
	"wisefido-patient-status/owl-common/logger"
	"wisefido-patient-status/owl-common/mqtt"
	owlredis "wisefido-patient-status/owl-common/redis"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-patient-status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := owlredis.NewRedisClient(&cfg.Redis)
	if err := owlredis.Ping(ctx, redisClient); err != nil {
		// keep serving; /healthz reports the outage and requests fail with 500
		log.Warn("Redis not reachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	kv := store.NewRedisKV(redisClient)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector("wisefido_patient_status", reg)

	// status-change event sinks
	var sinks []service.EventPublisher
	if cfg.Events.Stream != "" {
		sinks = append(sinks, service.NewRedisStreamPublisher(redisClient, cfg.Events.Stream, cfg.Events.StreamMaxLen))
	}
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		if c, err := mqtt.NewClient(&cfg.MQTT.Broker, log); err == nil {
			mqttClient = c
			sinks = append(sinks, service.NewMQTTPublisher(c, cfg.MQTT.TopicPrefix, cfg.MQTT.Timeout))
		} else {
			log.Warn("MQTT enabled but connection failed, events will not be published to MQTT", zap.Error(err))
		}
	}
	if cfg.Events.WebhookURL != "" {
		sinks = append(sinks, service.NewWebhookPublisher(cfg.Events.WebhookURL, cfg.Events.WebhookTimeout, log))
	}
	events := service.NewFanoutPublisher(log, m, sinks...)
	log.Info("Event sinks configured", zap.Int("count", events.Len()))

	svc := service.NewPatientStatusService(kv, log,
		service.WithEventPublisher(events),
		service.WithMetrics(m),
	)

	// identities: Postgres users table when DB is enabled and reachable, demo users otherwise
	var db *sql.DB
	var identities repository.IdentityProvider
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err == nil {
			db = d
			identities = repository.NewPostgresIdentityProvider(db, log)
			log.Info("DB enabled for identity lookup")
		} else {
			log.Warn("DB enabled but connection failed, falling back to demo users", zap.Error(err))
		}
	}
	if identities == nil {
		mem := repository.NewMemoryIdentityProvider()
		if err := repository.SeedDemoUsers(mem); err != nil {
			log.Fatal("Failed to seed demo users", zap.Error(err))
		}
		identities = mem
	}

	tokens := service.NewTokenCodecs(cfg.Auth.TokenSecret, cfg.Auth.TokenIssuer, cfg.Auth.TokenTTL, cfg.Auth.AllowDemoTokens)
	if cfg.Auth.TokenSecret != "" && cfg.Auth.AllowDemoTokens {
		log.Warn("Unsigned demo tokens accepted alongside signed tokens")
	}
	access := service.NewAccessControl(identities, log, tokens...)

	router := httpapi.NewRouter(m, log)
	router.RegisterPatientStatusRoutes(httpapi.NewPatientStatusHandler(svc, access, log))
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(access, log))
	router.RegisterProbeRoutes(httpapi.NewHealthHandler(func(ctx context.Context) error {
		return owlredis.Ping(ctx, redisClient)
	}, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = owlredis.Close(redisClient)
	if db != nil {
		_ = database.Close(db)
	}
}
