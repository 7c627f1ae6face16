package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"referral-ledger/config"
	"referral-ledger/handlers"
	"referral-ledger/middleware"
	"referral-ledger/models"
	"referral-ledger/services"
	"referral-ledger/utils"
	"referral-ledger/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ReferralUser{},
		&models.ReferralCommission{},
		&models.ReferralStats{},
		&models.UserBadge{},
		&models.UserAchievement{},
		&models.Wallet{},
		&models.Notification{},
		&models.StatementExport{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifications := services.NewNotificationService(db)
	membership := services.NewMembershipClient(cfg.MembershipServiceURL, cfg.MembershipToken)
	commissionService := services.NewCommissionService(db, membership, services.DBWalletStore{}, notifications)
	statsService := services.NewStatsService(db)

	var statements *services.StatementService
	if cfg.StatementExport {
		uploader, err := utils.NewR2UploaderFromEnv(ctx)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		statements = services.NewStatementService(db, uploader)
	}

	sched, err := services.StartLedgerScheduler(ctx, statsService, statements, cfg.StatsReconcileEvery)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer sched.Shutdown()

	userSync := workers.NewReferralUserSyncWorker(db, cfg.SyncServiceURL, "/api/v1/public/profiles", cfg.ServiceToken)
	userSync.Start(ctx)

	walletSync := workers.NewWalletSyncClient(db, cfg.SyncServiceURL, cfg.ServiceToken)
	go workers.PollWallets(ctx, walletSync, cfg.WalletPollEvery)

	app := fiber.New()
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// EventSource clients cannot send gateway headers, so this stream sits
	// in front of the gateway check and authenticates its query token.
	if cfg.AuthServiceURL != "" {
		authClient := services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.ServiceToken)
		app.Get("/sse/notifications/stream", middleware.SSEAuthMiddleware(authClient), notifications.StreamUserNotificationsSSE)
	}

	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupReferralRoutes(app, commissionService, statsService, notifications)

	go func() {
		if err := app.Listen(cfg.Addr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Referral ledger running on %s", cfg.Addr)
	log.Printf("✅ CORS configured for origins: %s", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
