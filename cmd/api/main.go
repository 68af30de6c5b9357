package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/seralvarez/casillero-backend/api/routes"
	authsvc "github.com/seralvarez/casillero-backend/internal/auth"
	"github.com/seralvarez/casillero-backend/internal/cart"
	"github.com/seralvarez/casillero-backend/internal/catalog"
	checkoutsvc "github.com/seralvarez/casillero-backend/internal/checkout"
	"github.com/seralvarez/casillero-backend/internal/pickup"
	"github.com/seralvarez/casillero-backend/internal/reservation"
	"github.com/seralvarez/casillero-backend/internal/settings"
	"github.com/seralvarez/casillero-backend/pkg/auth/session"
	"github.com/seralvarez/casillero-backend/pkg/config"
	"github.com/seralvarez/casillero-backend/pkg/db"
	"github.com/seralvarez/casillero-backend/pkg/logger"
	"github.com/seralvarez/casillero-backend/pkg/migrate"
	"github.com/seralvarez/casillero-backend/pkg/outbox"
	"github.com/seralvarez/casillero-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		Users:          authsvc.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	settingsService, err := settings.NewService(settings.ServiceParams{
		Repo:   settings.NewRepository(dbClient.DB()),
		Cache:  redisClient,
		Config: cfg.Pricing,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Repo:     catalogRepo,
		Settings: settingsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	windows, err := reservation.NewWindows(redisClient, cfg.Reservation)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation windows", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cartRepo,
		Tx:       dbClient,
		Products: catalogRepo,
		Windows:  windows,
		Settings: settingsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Orders:   checkoutsvc.NewRepository(dbClient.DB()),
		Carts:    cartRepo,
		Products: catalogRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Windows:  windows,
		Settings: settingsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	pickupService, err := pickup.NewService(pickup.ServiceParams{
		Logger:  logg,
		Orders:  pickup.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outboxService,
		Limiter: redisClient,
		Config:  cfg.PickupLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pickup service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Sessions:    sessionManager,
			Auth:        authService,
			Catalog:     catalogService,
			Cart:        cartService,
			Checkout:    checkoutService,
			Pickup:      pickupService,
			Settings:    settingsService,
			Reservation: windows,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
