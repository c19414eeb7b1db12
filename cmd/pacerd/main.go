package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/chatws"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/config"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/httpapi"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/inbound"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/persona"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/publish"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/queue"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/release"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/respond"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/schedule"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/subscribers"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/subscribers/logging"
	"github.com/ToldYaOnce/kx-reply-pacer/internal/subscribers/webhook"
)

func main() {
	logger := log.New(os.Stdout, "pacer ", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Printf("redis close error: %v", err)
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Fatalf("redis unreachable at %s: %v", cfg.RedisURL, err)
	}

	personaStore, err := persona.NewGormStore(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("failed to initialize persona store: %v", err)
	}
	defer func() {
		if err := personaStore.Close(); err != nil {
			logger.Printf("persona store close error: %v", err)
		}
	}()
	if err := seedPersonas(context.Background(), personaStore, cfg.PersonasFile); err != nil {
		logger.Fatalf("seed personas: %v", err)
	}

	releaseQueue := queue.NewRedisQueue(rdb, cfg.ConsumerName, logger, queue.WithShards(cfg.QueueShards))
	if err := releaseQueue.EnsureGroups(context.Background()); err != nil {
		logger.Fatalf("prepare release queue: %v", err)
	}

	scheduler := schedule.New(releaseQueue, personaStore, logger)

	hub := chatws.NewHub(logger)
	subs := []subscribers.Subscriber{logging.New(logger), hub, publish.NewRedisStream(rdb, "")}
	for idx, webhookURL := range cfg.WebhookURLs {
		subs = append(subs, webhook.New(fmt.Sprintf("webhook-%d", idx+1), webhookURL))
	}
	fanout := publish.NewFanout(logger, subs)

	consumer := release.NewConsumer(fanout, logger)
	runner := queue.NewRunner(releaseQueue, consumer, logger)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go runner.Run(runCtx)

	if cfg.ResponderURL != "" {
		responder := respond.NewHTTPResponder(cfg.ResponderURL, nil)
		listener := inbound.NewListener(rdb, responder, scheduler, cfg.ConsumerName, cfg.DefaultPersona, logger)
		if err := listener.EnsureConsumerGroup(context.Background()); err != nil {
			logger.Fatalf("prepare inbound stream: %v", err)
		}
		go listener.Run(runCtx)
	} else {
		logger.Printf("PACER_RESPONDER_URL not set, inbound stream listener disabled")
	}

	server := httpapi.NewServer(cfg.HTTPAddr, scheduler, hub, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("http server crashed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	runCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http server shutdown error: %v", err)
	}
}

// seedPersonas fills the store from the YAML file when one is configured, and
// falls back to the built-in profiles so a fresh deployment can schedule
// immediately.
func seedPersonas(ctx context.Context, store persona.Store, path string) error {
	profiles := persona.Defaults()
	if path != "" {
		loaded, err := persona.LoadFile(path)
		if err != nil {
			return err
		}
		profiles = loaded
	}
	return persona.SeedStore(ctx, store, profiles)
}
