package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/agrosense/cropwatch/internal/classifier"
	"github.com/agrosense/cropwatch/internal/config"
	"github.com/agrosense/cropwatch/internal/persistence"
	"github.com/agrosense/cropwatch/internal/pipeline"
	"github.com/agrosense/cropwatch/internal/server"
	"github.com/agrosense/cropwatch/pkg/broker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// --- Database ---
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	store := persistence.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("schema migration failed: %v", err)
	}

	// --- MQTT ---
	mqCfg := &broker.Config{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		User:     cfg.MQTTUser,
		Password: cfg.MQTTPassword,
		ClientID: cfg.MQTTClientID,
	}
	mqClient, err := broker.NewConn(ctx, mqCfg)
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}
	consumer := broker.NewConsumer(mqClient, cfg.ImageTopic, nil)

	// --- Classifier ---
	scorer := classifier.NewClient(classifier.Config{
		Endpoint: cfg.ClassifierURL,
		Timeout:  cfg.ClassifierTimeout,
		Retries:  uint64(cfg.ClassifierRetries),
	})

	// --- Ingestion pipeline ---
	pipe := pipeline.New(consumer, scorer, store, pipeline.Config{
		Workers:         cfg.WorkerPoolSize,
		QueueSize:       cfg.QueueSize,
		ClassifyTimeout: cfg.ClassifierTimeout + 2*time.Second,
		ShutdownGrace:   cfg.ShutdownGrace,
	})
	pipeDone := make(chan struct{})
	go func() {
		pipe.Start(ctx)
		close(pipeDone)
	}()

	// --- HTTP ---
	api := server.New(store,
		server.WithBrokerCheck(mqClient.IsConnectionOpen),
		server.WithClassifierCheck(func() bool { return scorer.BreakerState() != gobreaker.StateOpen }),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("cropwatch HTTP listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	// The pipeline drains in-flight classifications within its grace period;
	// the process must not exit before that finishes.
	<-pipeDone
	log.Println("cropwatch: shutdown complete")
}
