// Package main is the entrypoint for the DeliveryDesk API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/deliverydesk/deliverydesk/internal/cache"
	"github.com/deliverydesk/deliverydesk/internal/config"
	"github.com/deliverydesk/deliverydesk/internal/events"
	"github.com/deliverydesk/deliverydesk/internal/handler"
	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/middleware"
	"github.com/deliverydesk/deliverydesk/internal/repository"
	"github.com/deliverydesk/deliverydesk/internal/server"
	"github.com/deliverydesk/deliverydesk/internal/service"
	"github.com/deliverydesk/deliverydesk/migrations"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	if cfg.AutoMigrate {
		applied, err := repo.MigrateUp(ctx, migrations.FS)
		if err != nil {
			logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		logger.Info("migrations applied", "count", len(applied), "versions", applied)
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()

	// Audit trail: every mutation fans out to the Redis stream and, when
	// configured, to Kafka.
	emitter := events.NewEmitter(logger, recorder)
	emitter.AddSink("redis_stream", events.NewStreamPublisher(cacheClient.Client()))

	var kafkaPublisher *events.KafkaPublisher
	if brokers := cfg.GetKafkaBrokers(); len(brokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		emitter.AddSink("kafka", kafkaPublisher)
		logger.Info("kafka sink enabled", "brokers", brokers, "topic", cfg.KafkaTopic)
	}

	clock := service.Clock{Location: cfg.Location()}

	customerService := service.NewCustomerService(repo, cacheClient, emitter, logger, recorder)
	orderService := service.NewOrderService(repo, repo, cacheClient, emitter, logger, recorder, service.OrderOptions{
		Clock:          clock,
		LockPastOrders: cfg.LockPastOrders,
	})
	expenseService := service.NewExpenseService(repo, cacheClient, emitter, logger, recorder)
	reportService := service.NewReportService(repo, repo, cacheClient, logger, recorder, service.ReportOptions{
		Clock:        clock,
		MaxRangeDays: cfg.ReportMaxRangeDays,
		CacheTTL:     cfg.ReportCacheTTL,
	})
	authService := service.NewAuthService(repo, cacheClient, cacheClient, emitter, logger, recorder, service.AuthOptions{
		SessionTTL:       cfg.SessionTTL,
		RateLimitEnabled: cfg.LoginRateLimitEnabled,
		RatePerMinute:    cfg.LoginRateLimitPerMinute,
		RateBurst:        cfg.LoginRateLimitBurst,
	})
	auditService := service.NewAuditService(repo)

	created, err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		logger.Error("failed to bootstrap admin user", "error", err)
		os.Exit(1)
	}
	if created {
		logger.Info("bootstrap admin user created", "username", cfg.AdminUsername)
	}

	rt := routes{
		health:    handler.NewHealthHandler(repo, cacheClient),
		metrics:   handler.NewMetricsHandler(recorder),
		auth:      handler.NewAuthHandler(authService, handler.CookieConfig{Name: cfg.CookieName, Secure: cfg.CookieSecure}, logger),
		customers: handler.NewCustomerHandler(customerService, logger),
		orders:    handler.NewOrderHandler(orderService, customerService, logger, recorder),
		expenses:  handler.NewExpenseHandler(expenseService, logger),
		reports:   handler.NewReportHandler(reportService, logger, recorder),
		audit:     handler.NewAuditHandler(auditService, logger),
		sessions:  authService,
	}
	if cfg.StaticDir != "" {
		rt.static = handler.NewStaticHandler(cfg.StaticDir, authService, cfg.CookieName)
	}

	r := setupRouter(rt, cfg, logger)

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first so it stops last, after the emitter has flushed.
	if cfg.EventsWorkerEnabled {
		worker := events.NewWorker(cacheClient.Client(), repo, logger, events.NewConsumerID(), recorder)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("audit-worker", worker.Shutdown)
	}
	if kafkaPublisher != nil {
		srv.OnShutdown("kafka", func(context.Context) error {
			return kafkaPublisher.Close()
		})
	}
	srv.OnShutdown("event-emitter", emitter.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"timezone", cfg.Location().String(),
		"lock_past_orders", cfg.LockPastOrders,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routes bundles the handlers setupRouter mounts.
type routes struct {
	health    *handler.HealthHandler
	metrics   *handler.MetricsHandler
	auth      *handler.AuthHandler
	customers *handler.CustomerHandler
	orders    *handler.OrderHandler
	expenses  *handler.ExpenseHandler
	reports   *handler.ReportHandler
	audit     *handler.AuditHandler
	static    *handler.StaticHandler // nil when STATIC_DIR is unset
	sessions  middleware.SessionAuthenticator
}

const (
	datePattern = `{date:\d{4}-\d{2}-\d{2}}`
	idPattern   = `{id:\d+}`
)

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(rt routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins())))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)
	r.Get("/metrics", rt.metrics.Metrics)

	requireSession := middleware.RequireSession(middleware.SessionConfig{
		Logger:        logger,
		Authenticator: rt.sessions,
		CookieName:    cfg.CookieName,
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", rt.auth.Login)
		r.Post("/logout", rt.auth.Logout)
		r.With(requireSession).Get("/me", rt.auth.Me)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireSession)

		r.Get("/territories", rt.customers.Territories)

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", rt.customers.List)
			r.Post("/", rt.customers.Create)
			r.Post("/import", rt.customers.Import)
			r.Get("/"+idPattern, rt.customers.Get)
			r.Put("/"+idPattern, rt.customers.Update)
			r.Delete("/"+idPattern, rt.customers.Delete)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", rt.orders.List)
			r.Post("/", rt.orders.Create)
			r.Get("/"+datePattern, rt.orders.Daily)
			r.Get("/"+datePattern+"/sheet", rt.orders.DailySheet)
			r.Get("/"+idPattern, rt.orders.Get)
			r.Put("/"+idPattern, rt.orders.Update)
			r.Delete("/"+idPattern, rt.orders.Delete)
			r.Patch("/"+idPattern+"/status", rt.orders.SetStatus)
			r.Get("/"+idPattern+"/invoice", rt.orders.Invoice)
		})

		r.Get("/driver-expenses/"+datePattern, rt.expenses.Get)
		r.Put("/driver-expenses/"+datePattern, rt.expenses.Put)
		// Paths the dashboard page was written against.
		r.Get("/daily_driver_expense/"+datePattern, rt.expenses.Get)
		r.Post("/daily_driver_expense", rt.expenses.LegacySave)

		r.Get("/reports", rt.reports.Get)
		r.Get("/reports/export", rt.reports.Export)

		r.Get("/audit", rt.audit.List)
	})

	// Writes the customer and order pages send with the id in the body.
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/customers", rt.customers.Create)
		r.Put("/customers", rt.customers.LegacyUpdate)
		r.Delete("/customers", rt.customers.LegacyDelete)
		r.Post("/orders", rt.orders.Create)
		r.Put("/orders", rt.orders.LegacyUpdate)
	})

	if rt.static != nil {
		r.Get("/login", rt.static.Login)
		r.Get("/", rt.static.Page("dashboard.html"))
		r.Get("/customers", rt.static.Page("customers.html"))
		r.Get("/orders", rt.static.Page("orders.html"))
		r.Get("/reports", rt.static.Page("reports.html"))
		r.Handle("/static/*", rt.static.Assets())
	}

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
