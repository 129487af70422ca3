package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"segmentation/pkg/api/segmentation"
	"segmentation/pkg/core/config"
	"segmentation/pkg/core/store"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "config/segmentation.yaml", "path to the YAML config")
	flag.Parse()

	// Load environment variables
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, closeStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		fmt.Printf("[FATAL] Failed to open fact store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	sessions := segmentation.NewSessionManager(cfg.EngineOptions(), cfg.Server.SessionTTL)
	sessions.StartCleanup(ctx, time.Hour)

	handler := segmentation.NewHandler(sessions, provider)
	handler.LevelName = cfg.LevelName

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("API server starting on %s (store: %s, depth: %d)...\n", cfg.Server.Addr, cfg.Store.Driver, cfg.Hierarchy.Depth)
	fmt.Println("  - POST   /api/segmentation/session")
	fmt.Println("  - DELETE /api/segmentation/session?session_id=")
	fmt.Println("  - POST   /api/segmentation/rebuild")
	fmt.Println("  - GET    /api/segmentation/view?session_id=")
	fmt.Println("  - POST   /api/segmentation/drill")
	fmt.Println("  - POST   /api/segmentation/back")
	fmt.Println("  - POST   /api/segmentation/reset")
	fmt.Println("  - POST   /api/segmentation/measure")
	fmt.Println("  - GET    /api/segmentation/report?session_id=&format=md|html")
	fmt.Println("  - GET    /metrics")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
