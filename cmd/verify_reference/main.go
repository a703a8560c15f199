package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"foodstash_app_echo/internal/services"
)

// Operational tool for checking a gateway reference by hand, typically
// while investigating a payment a customer reports as missing.
func main() {
	reference := flag.String("reference", "", "Gateway transaction reference (mandatory)")
	flag.Parse()

	if *reference == "" {
		fmt.Println("Usage: verify_reference -reference <gateway_reference>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	if os.Getenv("PAYSTACK_SECRET_KEY") == "" {
		log.Fatal("PAYSTACK_SECRET_KEY is not set")
	}

	paystack := services.NewPaystackService()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := paystack.VerifyTransaction(ctx, *reference)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}

	fmt.Printf("Reference: %s\n", tx.Reference)
	fmt.Printf("Status:    %s\n", tx.Status)
	fmt.Printf("Amount:    %.2f\n", tx.Amount)
	fmt.Printf("Channel:   %s\n", tx.Channel)
	fmt.Printf("Customer:  %s\n", tx.CustomerEmail)
	if tx.AuthorizationCode != "" {
		fmt.Printf("Card:      %s ****%s (%s)\n", tx.CardType, tx.Last4, tx.Bank)
	}
}
