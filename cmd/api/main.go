package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gidiconnect/gidi-ingest/internal/api"
	"github.com/gidiconnect/gidi-ingest/internal/config"
	"github.com/gidiconnect/gidi-ingest/internal/extract"
	"github.com/gidiconnect/gidi-ingest/internal/pipeline"
	"github.com/gidiconnect/gidi-ingest/internal/scheduler"
	"github.com/gidiconnect/gidi-ingest/internal/sources"
	"github.com/gidiconnect/gidi-ingest/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// Keep outlet rows in step with the scrape registry.
	registry := sources.DefaultRegistry()
	for _, src := range registry {
		if _, err := store.EnsureSource(src.Code, src.Name, src.BaseURL); err != nil {
			log.Fatalf("ensure source %s failed: %v", src.Code, err)
		}
	}

	fetcher := sources.NewClient(registry, sources.Options{
		UserAgent:    cfg.UserAgent,
		PerSourceCap: cfg.PerSourceCap,
		TotalCap:     cfg.MaxCandidates,
		Delay:        cfg.SourceDelay,
		Timeout:      cfg.FetchTimeout,
	})
	extractor := extract.New(cfg.FetchTimeout, cfg.UserAgent)
	pipe := pipeline.New(fetcher, extractor, store, cfg.FreshnessDays)

	sched, err := scheduler.New(cfg.CronSpec, pipe)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	sched.Start()

	r := gin.Default()
	api.NewServer(store, pipe).RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		log.Printf("starting api server at %s ...", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("server stopped")
}
