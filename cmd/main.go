package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"p2p-market/internal/auth"
	"p2p-market/internal/config"
	"p2p-market/internal/database"
	"p2p-market/internal/handlers"
	"p2p-market/internal/jobs"
	"p2p-market/internal/repository"
	"p2p-market/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// Initialize repository and services
	repo := repository.NewRepository(db)
	referralService := services.NewReferralService(db, cfg.App.ReferralRebatePct)
	tradeService := services.NewTradeService(db, repo, referralService, cfg.P2P.DefaultTimeLimitMin)
	authService := services.NewAuthService(db, referralService)
	userService := services.NewUserService(db)
	kycService := services.NewKYCService(db)
	taskService := services.NewTaskService(db)
	walletService := services.NewWalletService(db, cfg.App.WalletConnectBonus)
	adminService := services.NewAdminService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, adminService)
	userHandler := handlers.NewUserHandler(userService)
	tradeHandler := handlers.NewTradeHandler(tradeService, repo, cfg.App.UploadDir)
	kycHandler := handlers.NewKYCHandler(kycService, cfg.App.UploadDir)
	referralHandler := handlers.NewReferralHandler(referralService)
	taskHandler := handlers.NewTaskHandler(taskService)
	walletHandler := handlers.NewWalletHandler(walletService)
	adminHandler := handlers.NewAdminHandler(adminService, tradeService, kycService, taskService, repo)

	// Start trade expiry job
	expirer := jobs.NewTradeExpirer(tradeService, cfg.P2P.SweepInterval)
	go expirer.Start()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/api/auth")
	{
		authRoutes.POST("/wallet", authHandler.WalletLogin)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	// Authenticated /api/auth/me route
	authProtected := router.Group("/api/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// Public marketplace browsing
	router.GET("/api/p2p/trades", tradeHandler.ListOpenTrades)
	router.GET("/api/users/leaderboard", userHandler.GetLeaderboard)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// P2P trade lifecycle
		p2p := api.Group("/p2p/trades")
		{
			p2p.POST("", tradeHandler.CreateTrade)
			p2p.GET("/my", tradeHandler.ListMyTrades)
			p2p.GET("/:id", tradeHandler.GetTrade)
			p2p.DELETE("/:id", tradeHandler.DeleteTrade)
			p2p.POST("/:id/initiate", tradeHandler.AcceptTrade)
			p2p.POST("/:id/upload-proof", tradeHandler.UploadProof)
			p2p.GET("/:id/proofs", tradeHandler.ListProofs)
			p2p.POST("/:id/mark-paid", tradeHandler.MarkPaid)
			p2p.POST("/:id/confirm-payment", tradeHandler.ConfirmPayment)
			p2p.POST("/:id/reject-payment", tradeHandler.RejectPayment)
			p2p.POST("/:id/cancel", tradeHandler.CancelTrade)
			p2p.POST("/:id/dispute", tradeHandler.RaiseDispute)
			p2p.PUT("/:id/payment-details", tradeHandler.UpdatePaymentDetails)
			p2p.GET("/:id/messages", tradeHandler.ListMessages)
			p2p.POST("/:id/messages", tradeHandler.PostMessage)
		}

		// User endpoints
		api.GET("/users/:id", userHandler.GetProfile)
		api.PUT("/users/nickname", userHandler.UpdateNickname)
		api.GET("/users/balance-history", userHandler.GetBalanceHistory)

		// KYC endpoints
		api.POST("/kyc/submit", kycHandler.Submit)
		api.GET("/kyc/status", kycHandler.GetStatus)

		// Referral endpoints
		api.GET("/referrals/code", referralHandler.GetMyCode)
		api.POST("/referrals/apply", referralHandler.ApplyCode)
		api.GET("/referrals", referralHandler.GetMyReferrals)
		api.GET("/referrals/rebates", referralHandler.GetMyRebates)
		api.GET("/referrals/stats", referralHandler.GetMyStats)

		// Task endpoints
		api.GET("/tasks", taskHandler.ListTasks)
		api.GET("/tasks/completions", taskHandler.ListMyCompletions)
		api.POST("/tasks/:id/complete", taskHandler.CompleteTask)

		// Wallet endpoints
		api.POST("/wallet/connect", walletHandler.Connect)
		api.GET("/wallet", walletHandler.GetConnection)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(adminHandler.AdminMiddleware())
	{
		admin.GET("/dashboard", adminHandler.GetDashboard)
		admin.GET("/logs", adminHandler.GetLogs)
		admin.GET("/users", adminHandler.ListUsers)

		// Role management (super admin only)
		super := admin.Group("/users", adminHandler.SuperAdminMiddleware())
		{
			super.POST("/:id/promote", adminHandler.PromoteUser)
			super.DELETE("/:id/admin", adminHandler.DemoteAdmin)
		}

		// Trade oversight
		admin.GET("/trades", adminHandler.ListTrades)
		admin.GET("/trades/export", adminHandler.ExportTradesCSV)
		admin.GET("/trades/:id", adminHandler.GetTradeAudit)
		admin.POST("/trades/:id/force-complete", adminHandler.ForceCompleteTrade)
		admin.POST("/trades/:id/force-cancel", adminHandler.ForceCancelTrade)

		// Dispute resolution
		admin.GET("/disputes", adminHandler.ListDisputes)
		admin.POST("/disputes/:id/resolve", adminHandler.ResolveDispute)

		// KYC review
		admin.GET("/kyc/pending", adminHandler.ListPendingKYC)
		admin.POST("/kyc/:id/review", adminHandler.ReviewKYC)

		// Task management
		admin.POST("/tasks", adminHandler.CreateTask)
		admin.PUT("/tasks/:id/active", adminHandler.SetTaskActive)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	expirer.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
