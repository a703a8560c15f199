package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"foodstash_app_echo/internal/jobs"
	"foodstash_app_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	paystack := services.NewPaystackService()
	email := services.NewEmailService()

	confirmations := services.NewConfirmationDispatcher(email)
	confirmations.Start()
	defer confirmations.Stop()

	reconciler := services.NewReconciler(db)

	log.Println("Worker started. Waiting for next tick...")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	autoDebit := jobs.NewAutoDebit(db, paystack, reconciler, confirmations)
	reminders := jobs.NewReminders(db, email)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		jobs.RunOnInterval(ctx, autoDebit, 24*time.Hour)
	}()
	go func() {
		defer wg.Done()
		jobs.RunOnInterval(ctx, reminders, 24*time.Hour)
	}()

	wg.Wait()
	log.Println("Worker stopped")
}
