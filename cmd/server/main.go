package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/wagate/wagate/internal/audit"
	"github.com/wagate/wagate/internal/config"
	"github.com/wagate/wagate/internal/database"
	"github.com/wagate/wagate/internal/dispatch"
	"github.com/wagate/wagate/internal/gateway"
	"github.com/wagate/wagate/internal/handler"
	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/relay"
	"github.com/wagate/wagate/internal/repository"
	"github.com/wagate/wagate/internal/router"
	"github.com/wagate/wagate/internal/utils"
)

func main() {
	// .env is a local-dev convenience; in deployment the variables come
	// from the environment and the file is absent.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	messages := repository.NewMessageLogRepo(db)
	activity := repository.NewActivityLogRepo(db)
	settings := repository.NewSettingsRepo(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := seedAdmin(ctx, cfg, users); err != nil {
		cancel()
		log.Fatalf("seed admin: %v", err)
	}
	if _, err := settings.Get(ctx); err != nil { // materializes the defaults row
		cancel()
		log.Fatalf("settings: %v", err)
	}
	cancel()

	auditor := audit.NewRecorder(cfg.AMQPURL, activity)
	go audit.StartConsumer(cfg.AMQPURL, activity)

	engine := gateway.New(cfg.EngineURL)
	recorder := dispatch.New(engine, messages, cfg.CountryPrefix)
	hub := relay.New(func(token string) (utils.Claims, error) {
		return utils.ParseAccessToken(cfg.JWTSecret, token)
	})

	rdb := config.NewRedisClient()
	bucket := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, settings, auditor),
		WhatsApp: handler.NewWhatsAppHandler(engine, auditor),
		Message:  handler.NewMessageHandler(users, messages, recorder),
		Keys:     handler.NewKeyHandler(users, auditor),
		Admin:    handler.NewAdminHandler(cfg, users, messages, activity, settings, engine, auditor),
		WS:       handler.NewWSHandler(hub),
		WSEvent:  handler.NewWSEventHandler(hub, cfg.EngineSecret),
		Health:   handler.NewHealthHandler(db),

		JWTSecret: cfg.JWTSecret,
		Users:     users,
		Bucket:    bucket,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// seedAdmin guarantees the bootstrap admin account exists. An existing
// row is left untouched so a changed ADMIN_PASSWORD never silently
// rotates credentials on restart.
func seedAdmin(ctx context.Context, cfg config.Config, users *repository.UserRepo) error {
	if _, err := users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if err != repository.ErrNotFound {
		return err
	}

	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}
	apiKey, err := utils.GenerateAPIKey()
	if err != nil {
		return err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Status:       model.StatusActive,
		APIKey:       apiKey,
		RateLimit:    model.DefaultMaxRateLimit,
	}
	if err := users.Create(ctx, u); err != nil {
		return err
	}
	log.Printf("seeded admin account %s", cfg.AdminEmail)
	return nil
}
