package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foodstash_app_echo/internal/handlers"
	appMiddleware "foodstash_app_echo/internal/middleware"
	"foodstash_app_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	authClient, err := services.InitFirebase()
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis is optional: without it the catalog cache and the webhook
	// payer lock are skipped
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	} else {
		log.Println("Warning: REDIS_URL not set, caching disabled")
	}

	// Services
	paystack := services.NewPaystackService()
	email := services.NewEmailService()

	confirmations := services.NewConfirmationDispatcher(email)
	confirmations.Start()
	defer confirmations.Stop()

	plans := services.NewPlanService(db, confirmations, email)
	reconciler := services.NewReconciler(db)
	dispatcher := services.NewWebhookDispatcher(db, plans, reconciler, confirmations, cache)

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	planHandler := handlers.NewPlanHandler(db, plans, reconciler, paystack, confirmations)
	webhookHandler := handlers.NewWebhookHandler(dispatcher, os.Getenv("PAYSTACK_SECRET_KEY"))
	methodHandler := handlers.NewPaymentMethodHandler(db, paystack)
	packHandler := handlers.NewFoodPackHandler(db, cache)
	referralHandler := handlers.NewReferralHandler(db)

	// Public routes
	e.POST("/webhooks/paystack", webhookHandler.HandlePaystack)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Protected routes
	protected := e.Group("")
	protected.Use(appMiddleware.RequireAuth(authClient, db))

	protected.GET("/food-packs", packHandler.ListFoodPacks)

	protected.GET("/plans", planHandler.ListPlans)
	protected.POST("/plans", planHandler.CreatePlan)
	protected.GET("/plans/:id", planHandler.GetPlan)
	protected.POST("/plans/:id/cancel", planHandler.CancelPlan)
	protected.POST("/plans/:id/payments", planHandler.RecordPayment)

	protected.GET("/payment-methods", methodHandler.ListPaymentMethods)
	protected.POST("/payment-methods", methodHandler.CreatePaymentMethod)
	protected.POST("/payment-methods/:id/default", methodHandler.SetDefaultPaymentMethod)
	protected.DELETE("/payment-methods/:id", methodHandler.DeletePaymentMethod)

	// Admin routes
	admin := protected.Group("/admin")
	admin.Use(appMiddleware.RequireAdmin())

	admin.POST("/food-packs", packHandler.CreateFoodPack)
	admin.POST("/plans/:id/payments", planHandler.AdminRecordPayment)
	admin.POST("/plans/:id/installments/:installmentId/revert", planHandler.AdminRevertPayment)
	admin.POST("/marketers", referralHandler.CreateMarketer)
	admin.GET("/referrals", referralHandler.ListReferrals)
	admin.GET("/commissions", referralHandler.ListCommissions)
	admin.POST("/commissions/:id/approve", referralHandler.ApproveCommission)
	admin.POST("/commissions/:id/pay", referralHandler.MarkCommissionPaid)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
