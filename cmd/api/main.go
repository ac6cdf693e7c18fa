// Package main is the entrypoint for the search-demand analytics API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rentaldash/searchdemand/internal/cache"
	"github.com/rentaldash/searchdemand/internal/config"
	"github.com/rentaldash/searchdemand/internal/demand"
	"github.com/rentaldash/searchdemand/internal/handler"
	"github.com/rentaldash/searchdemand/internal/loader"
	"github.com/rentaldash/searchdemand/internal/metrics"
	"github.com/rentaldash/searchdemand/internal/middleware"
	"github.com/rentaldash/searchdemand/internal/repository"
	"github.com/rentaldash/searchdemand/internal/server"
	"github.com/rentaldash/searchdemand/internal/service"
)

var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	srv, err := setup(ctx, cfg, logger)
	if err != nil {
		os.Exit(1)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"aggregate_source", cfg.AggregateSource,
		"report_cache", cfg.RedisURL != "",
		"version", version,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setup connects backing services and assembles the server. Failures are logged here.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	var shutdowns []func(*server.Server)
	var closers []func()
	var deps []handler.Dependency

	// Aggregate source
	var source loader.Loader
	switch cfg.AggregateSource {
	case config.SourceHTTP:
		httpCfg := loader.DefaultHTTPConfig(cfg.AggregateSourceURL)
		httpCfg.Timeout = cfg.AggregateSourceTimeout
		source = loader.NewHTTPLoader(httpCfg, logger)
		logger.Info("using HTTP aggregate source", "url", redactURL(cfg.AggregateSourceURL))
	default:
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return nil, err
		}
		logger.Info("connected to database")
		source = loader.Func(repository.NewSearchAggregateRepository(repo).ListUpcoming)
		deps = append(deps, handler.Dependency{Name: "postgres", Checker: repo})
		closers = append(closers, repo.Close)
		shutdowns = append(shutdowns, func(s *server.Server) {
			s.OnShutdown("postgres", func(context.Context) error {
				repo.Close()
				return nil
			})
		})
	}

	// Report cache is optional. A nil interface, never a typed nil, disables it.
	var reportCache service.ReportCache
	redisDep := handler.Dependency{Name: "redis"}
	if cfg.RedisURL != "" {
		cacheClient, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			for _, closeFn := range closers {
				closeFn()
			}
			return nil, err
		}
		logger.Info("connected to Redis")
		reportCache = cacheClient
		redisDep.Checker = cacheClient
		shutdowns = append(shutdowns, func(s *server.Server) {
			s.OnShutdown("redis", func(context.Context) error { return cacheClient.Close() })
		})
	}
	deps = append(deps, redisDep)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	// Services and handlers
	reportService := service.NewReportService(
		source,
		demand.NewEngine(cfg.Thresholds()),
		reportCache,
		cfg.ReportCacheTTL,
		recorder,
		logger,
	)

	r := setupRouter(
		handler.New(version),
		handler.NewHealthHandler(deps...),
		handler.NewReportHandler(reportService, cfg.WindowDefaults(), logger),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		cfg,
		logger,
	)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	for _, register := range shutdowns {
		register(srv)
	}

	return srv, nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

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

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	reportHandler *handler.ReportHandler,
	metricsHandler http.Handler,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(corsCfg))

	r.Get("/", h.Index)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/analytics", func(r chi.Router) {
		r.Get("/search-demand", reportHandler.SearchDemand)
		r.Post("/search-demand", reportHandler.BuildReport)
		r.Get("/search-demand/export", reportHandler.Export)
		r.Get("/upcoming-checkins", reportHandler.UpcomingCheckins)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

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
