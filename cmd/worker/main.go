package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	_ "github.com/jackc/pgx/v5/stdlib"

	"shop-flow/internal/api"
	"shop-flow/internal/config"
	"shop-flow/internal/repository"
	"shop-flow/internal/worker"
)

func main() {
	godotenv.Load(".env.dev")

	api.SetupGlobalLogger("shop-flow-worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	userRepo := repository.NewPostgresUserRepository(db)
	notificationRepo := repository.NewPostgresNotificationRepository(db)

	w, err := worker.Start(cfg.NatsURL, userRepo, notificationRepo)
	if err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}
	defer w.Close()

	log.Println("Notification worker started, waiting for events...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down notification worker...")
}
