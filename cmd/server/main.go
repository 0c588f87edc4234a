package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/Williamonyango/Scented-muse-Backend/internal/config"
	"github.com/Williamonyango/Scented-muse-Backend/internal/database"
	"github.com/Williamonyango/Scented-muse-Backend/internal/routes"
	"github.com/Williamonyango/Scented-muse-Backend/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	var rdb *redis.Client
	var sessions services.SessionStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		sessions = services.NewRedisSessionStore(rdb, cfg.SessionTTL)
	} else {
		log.Println("REDIS_URL not set; using in-process payment sessions and unrevocable refresh tokens")
		sessions = services.NewMemorySessionStore(cfg.SessionTTL)
	}

	mpesa := services.NewMpesaService(services.MpesaConfig{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		ShortCode:      cfg.BusinessShortCode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.ServerURL + "/api/payments/mpesa/callback",
	})

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	payments := services.NewPaymentService(db, sessions, mpesa, telegram, cfg.RewardThreshold)

	app := fiber.New(fiber.Config{
		AppName:     "Scented Muse Backend",
		ReadTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Server is up and running")
	})

	routes.Register(app, db, rdb, payments, cfg)

	if _, err := mpesa.AccessToken(); err != nil {
		log.Printf("Daraja token warm-up failed: %v", err)
	}

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
