package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/skilltrend/pkg/config"
	"github.com/nicktill/skilltrend/pkg/live"
	"github.com/nicktill/skilltrend/pkg/logger"
	"github.com/nicktill/skilltrend/pkg/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logg.Sync()

	logg.Info("starting skilltrend daemon", "addr", cfg.Addr)

	store, err := server.InitializeStorage(cfg, logg)
	if err != nil {
		logg.Fatal("failed to initialize storage", "err", err)
	}

	registry := live.NewRegistry()
	producer := server.InitializeProducer(store, registry, cfg, logg)
	compactor, compactionMonitor := server.InitializeCompactor(store, cfg, logg)
	trendService, recorder, feed := server.InitializeServices(store, logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		feed.Run(ctx)
	}()

	if err := producer.Start(); err != nil {
		logg.Fatal("failed to start snapshot producer", "err", err)
	}

	stopCompaction := make(chan struct{})
	wg.Add(1)
	go server.RunCompaction(compactor, compactionMonitor, cfg.CompactionInterval(), logg, stopCompaction, &wg)

	stopGC := make(chan struct{})
	wg.Add(1)
	go server.RunBadgerGC(store, logg, stopGC, &wg)

	router := mux.NewRouter()
	server.SetupRoutes(router, store, registry, trendService, recorder, feed, compactionMonitor)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	go func() {
		logg.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("http server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutdown signal received")

	// Stop background work before waiting on the WaitGroup or we deadlock.
	producer.Stop()
	cancel()
	close(stopCompaction)
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Warn("http server shutdown", "err", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logg.Info("background tasks stopped")
	case <-time.After(5 * time.Second):
		logg.Warn("background tasks did not stop in time")
	}

	// Close storage last so in-flight work never races a closed DB.
	if err := store.Close(); err != nil {
		logg.Error("closing storage", "err", err)
	}

	logg.Info("skilltrend daemon exited")
}
