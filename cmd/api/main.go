package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/cache"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/config"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/db"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/handlers"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/logger"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/catalog"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/tracer"
)

const serviceName = "gudang_be"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment: cfg.IsDevelopment(),
		Encoding:      cfg.Log.Encoding,
		Level:         cfg.Log.Level,
	})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		tp, err := tracer.InitTracer(serviceName, cfg.OTLPEndpoint, cfg.AppEnv)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(sctx)
			}()
		}
	}

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN, cfg.IsDevelopment())
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if err := gdb.AutoMigrate(&models.CatalogItem{}, &models.SyncRun{}, &models.User{}); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	rdb, err := realtime.NewRedis(cfg.Redis, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	hub := realtime.NewHub(log)
	go hub.Run(ctx)

	viewCache := cache.NewViewCache(rdb, cfg.ViewCacheTTL)
	notifier := realtime.NewViewNotifier(viewCache, rdb, hub, log)

	// remote tetap nil interface kalau kredensial belum diisi
	var remote catalog.Remote
	woo, err := woocommerce.NewWooService(woocommerce.Config{
		BaseURL:        cfg.Woo.BaseURL,
		ConsumerKey:    cfg.Woo.ConsumerKey,
		ConsumerSecret: cfg.Woo.ConsumerSecret,
		Timeout:        cfg.Woo.Timeout,
	}, log)
	switch {
	case errors.Is(err, woocommerce.ErrMissingCredentials):
		log.Warn("WooCommerce credentials missing, remote operations disabled")
	case err != nil:
		log.Fatal("woocommerce", zap.Error(err))
	default:
		remote = woo
	}

	store := catalog.NewGormStore(gdb)
	catalogH := handlers.NewCatalogHandler(
		catalog.NewSyncService(store, remote, notifier, log, cfg.Sync.MissingThreshold),
		catalog.NewSearchService(remote, log, cfg.Sync.SearchPageSize),
		catalog.NewPurchaseService(store, notifier, log),
		catalog.NewProductService(store, remote, viewCache, notifier, log, cfg.Sync.LowStockThreshold),
		hub,
		log,
	)

	if err := middleware.InitRateLimits(cfg.RateLimit.SearchQPS, cfg.RateLimit.SyncQPS); err != nil {
		log.Fatal("sentinel", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: handlers.ErrorHandler(log),
		// sync penuh bisa lama
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true, // cookie session
	}))

	// (opsional) biar preflight selalu kejawab
	app.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	var googleH *handlers.GoogleOAuthHandler
	if cfg.GoogleClientID != "" {
		googleH = &handlers.GoogleOAuthHandler{
			DB:               gdb,
			JWTSecret:        cfg.JWTSecret,
			Expires:          cfg.JWTExpiresMin,
			GoogleClientID:   cfg.GoogleClientID,
			GoogleSecret:     cfg.GoogleSecret,
			GoogleRedirect:   cfg.GoogleRedirect,
			FrontendBaseURL:  cfg.FrontendBaseURL,
			StaffEmailDomain: cfg.StaffEmailDomain,
			Log:              log,
		}
	}

	handlers.Register(app, handlers.Routes{
		JWTSecret: cfg.JWTSecret,
		Auth: &handlers.AuthHandler{
			DB:        gdb,
			JWTSecret: cfg.JWTSecret,
			Expires:   cfg.JWTExpiresMin,
			Log:       log,
		},
		Google:  googleH,
		Catalog: catalogH,
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	log.Info("listening", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Error("listen", zap.Error(err))
	}
}
