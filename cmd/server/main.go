package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/MML0/Assistant-Bot/internal/config"
	"github.com/MML0/Assistant-Bot/internal/handler"
	"github.com/MML0/Assistant-Bot/internal/llm"
	"github.com/MML0/Assistant-Bot/internal/middleware"
	"github.com/MML0/Assistant-Bot/internal/repository"
	"github.com/MML0/Assistant-Bot/internal/service"
	"github.com/MML0/Assistant-Bot/internal/telegram"
)

const expirySweepInterval = 1 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	repo, err := repository.New(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	// Completion client
	completer, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create completion client: %v", err)
	}

	// Create services
	userSvc := service.NewUserService(repo)
	entitlementSvc := service.NewEntitlementService(repo, cfg.LLM.DefaultModel)
	limiter := service.NewRateLimiter(repo, cfg.Limits.FreeDailyLimit, cfg.Limits.Timezone())
	window := service.NewContextWindow(repo, completer, cfg.Limits.HistoryLimit, cfg.Limits.HistorySlack)
	referralSvc := service.NewReferralService(repo, entitlementSvc, cfg.Limits.ReferralRewardDays)
	chatSvc := service.NewChatService(repo, entitlementSvc, limiter, window, completer, cfg.LLM, cfg.Limits.Timezone())

	// Create Telegram bot
	var bot *telegram.Bot
	if cfg.Telegram.BotToken != "" {
		bot, err = telegram.NewBot(cfg, userSvc, chatSvc, entitlementSvc, referralSvc, window)
		if err != nil {
			log.Printf("Warning: Failed to create Telegram bot: %v", err)
		} else {
			log.Printf("Telegram bot @%s initialized", bot.GetBotUsername())
		}
	}

	// Create handlers
	h := handler.New(cfg, repo)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Health check
	app.Get("/health", h.Health)

	// Internal endpoints (for cron jobs and operators)
	internal := app.Group("/internal", middleware.AdminAuth(cfg.Server.AdminToken))
	internal.Get("/stats", h.Stats)
	internal.Post("/cron/expire", h.CronExpire)

	// Start background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start Telegram bot long polling
	if bot != nil {
		go bot.StartPolling(ctx)
		log.Println("Telegram bot started with long polling")
	}

	go runExpirySweeper(ctx, repo, cfg.LLM.DefaultModel)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		cancel()
		_ = app.Shutdown()
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// runExpirySweeper periodically downgrades users whose pro access lapsed.
// Entitlement reads are lazy, so this only keeps stored rows tidy.
func runExpirySweeper(ctx context.Context, repo *repository.Repository, baselineModel string) {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := repo.DowngradeExpired(ctx, time.Now(), baselineModel)
			if err != nil {
				log.Printf("Error sweeping expired entitlements: %v", err)
				continue
			}
			if swept > 0 {
				log.Printf("Downgraded %d expired pro users", swept)
			}
		}
	}
}
