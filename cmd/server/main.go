package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vigil-dev/vigil/internal/api"
	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/database"
	"github.com/vigil-dev/vigil/internal/engine"
	"github.com/vigil-dev/vigil/internal/history"
	"github.com/vigil-dev/vigil/internal/incident"
	"github.com/vigil-dev/vigil/internal/jobs"
	"github.com/vigil-dev/vigil/internal/maintenance"
	"github.com/vigil-dev/vigil/internal/notification"
	"github.com/vigil-dev/vigil/internal/probe"
	"github.com/vigil-dev/vigil/internal/stats"
	"github.com/vigil-dev/vigil/internal/websocket"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	store, err := history.NewStore(cfg.History.DataDir)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer store.Close()

	hub := websocket.NewHub(cfg.JWTSecret, cfg.CORSOrigins)
	go hub.Run()

	dispatcher := notification.NewDispatcher(db)
	incidents := incident.NewManager(db)
	monitors := engine.NewGormMonitorStore(db)

	pipeline := engine.NewPipeline(
		monitors,
		store,
		incidents,
		dispatcher,
		hub,
		time.Duration(cfg.Checks.ConfirmationDelay)*time.Second,
		time.Duration(cfg.Checks.ConfirmationTimeout)*time.Second,
	)

	executor := probe.NewExecutor(db, pipeline)
	if err := executor.Start(); err != nil {
		log.Fatalf("Failed to start probe executor: %v", err)
	}
	defer executor.Stop()

	aggregator := stats.NewAggregator(db, store)
	evaluator := maintenance.NewEvaluator(db)

	scheduler := jobs.NewScheduler(db, store, aggregator, evaluator, cfg.History.RetentionDays)
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(api.RouterDeps{
		Config:      cfg,
		DB:          db,
		Store:       store,
		Executor:    executor,
		Aggregator:  aggregator,
		Incidents:   incidents,
		Maintenance: evaluator,
		Dispatcher:  dispatcher,
		Hub:         hub,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
