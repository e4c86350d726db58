package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gisst-archive/gisst/internal/api"
	"github.com/gisst-archive/gisst/internal/auth"
	"github.com/gisst-archive/gisst/internal/catalog"
	"github.com/gisst-archive/gisst/internal/clone"
	"github.com/gisst-archive/gisst/internal/config"
	"github.com/gisst-archive/gisst/internal/metrics"
	"github.com/gisst-archive/gisst/internal/scheduler"
	"github.com/gisst-archive/gisst/internal/search"
	"github.com/gisst-archive/gisst/internal/storage"
	"github.com/gisst-archive/gisst/internal/upload"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, dataDir string

	root := &cobra.Command{
		Use:   "gisstd",
		Short: "gisstd — the GISST preservation and replay archive server",
		Long: `gisstd serves the GISST delivery API: it stores content-addressed
game and platform files, catalogs the records that describe them, indexes
everything for search, and resumes v86 instances from saved state.`,
		RunE: func(cmd *cobra.Command, cArgs []string) error {
			return run(cmd.Context(), configPath, dataDir)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&configPath, "config", envOrDefault("GISST_CONFIG", "./gisst.toml"), "path to the TOML configuration file")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", envOrDefault("GISST_DATA_DIR", "./data"), "directory for server data (JWT signing keys)")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, cArgs []string) {
			fmt.Printf("gisstd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, configPath, dataDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := buildLogger(cfg.Env.RustLog)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting gisstd",
		zap.String("version", version),
		zap.String("listen_address", fmt.Sprintf("%s:%d", cfg.HTTP.ListenAddress, cfg.HTTP.ListenPort)),
		zap.String("base_url", cfg.HTTP.BaseURL),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- 1. Catalog (database + migrations) ---
	driver, dsn := parseDatabaseURL(cfg.Database.DatabaseURL)
	gormDB, err := catalog.New(catalog.Config{Driver: driver, DSN: dsn, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	defer sqlDB.Close()

	// --- 2. Repositories ---
	files := catalog.NewFileRepository(gormDB)
	objects := catalog.NewObjectRepository(gormDB)
	works := catalog.NewWorkRepository(gormDB)
	envs := catalog.NewEnvironmentRepository(gormDB)
	instances := catalog.NewInstanceRepository(gormDB)
	objectLinks := catalog.NewObjectLinkRepository(gormDB)
	states := catalog.NewStateRepository(gormDB)
	replays := catalog.NewReplayRepository(gormDB)
	saves := catalog.NewSaveRepository(gormDB)
	screenshots := catalog.NewScreenshotRepository(gormDB)
	creators := catalog.NewCreatorRepository(gormDB)
	users := catalog.NewUserRepository(gormDB)

	// --- 3. Blob store ---
	store, err := storage.New(cfg.Storage.RootFolderPath, cfg.Storage.TempFolderPath, cfg.Storage.FolderDepth)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	// --- 4. Search indexer + querier ---
	indexer, err := search.New(
		search.Config{Host: cfg.Search.MeiliURL, APIKey: cfg.Search.MeiliAPIKey},
		instances, states, replays, saves, creators, logger,
	)
	if err != nil {
		return fmt.Errorf("failed to connect search indexer: %w", err)
	}
	querier := search.NewQuerier(search.Config{Host: cfg.Search.MeiliExternalURL, APIKey: cfg.Search.MeiliSearchKey})

	// --- 5. Upload manager ---
	uploads := upload.New(store, cfg.Storage.ChunkSize)

	// --- 6. Clone engine ---
	cloneEngine := clone.New(gormDB, store, files, objects, states, envs, instances, objectLinks, indexer, logger, cfg.Clone.V86DumpScript)
	cloneEngine.NodeBin = cfg.Clone.NodeBin

	// --- 7. Auth ---
	jwtManager, err := buildJWTManager(dataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}
	redirectURL := strings.TrimSuffix(cfg.HTTP.BaseURL, "/") + "/auth/google/callback"
	oidcProvider := auth.NewGoogleOIDCProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, redirectURL, cfg.Auth.UserWhitelist, users, creators, jwtManager)
	authService := auth.NewAuthService(oidcProvider, jwtManager)

	// --- 8. Metrics. prometheus_endpoint gates whether metrics are
	// collected at all — this server exposes them pull-style on its own
	// /metrics route rather than pushing to the address it names, so the
	// value only toggles collection on/off. ---
	var m *metrics.Metrics
	if cfg.Env.PrometheusEndpoint != "" {
		m = metrics.New(prometheus.DefaultRegisterer)
		m.StartTableCensus(ctx, gormDB, time.Minute, logger)
	}

	// --- 9. Scheduler ---
	sched, err := scheduler.New(indexer, logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	reindexInterval := time.Duration(cfg.Clone.ReindexInterval) * time.Second
	if reindexInterval <= 0 {
		reindexInterval = time.Hour
	}
	if err := sched.Start(ctx, reindexInterval); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			logger.Warn("scheduler shutdown error", zap.Error(err))
		}
	}()

	// --- 10. HTTP server ---
	router := api.NewRouter(api.RouterConfig{
		AuthService:  authService,
		Logger:       logger,
		DB:           gormDB,
		Store:        store,
		Indexer:      indexer,
		Querier:      querier,
		Uploads:      uploads,
		CloneEngine:  cloneEngine,
		Files:        files,
		Objects:      objects,
		Works:        works,
		Environments: envs,
		Instances:    instances,
		ObjectLinks:  objectLinks,
		States:       states,
		Replays:      replays,
		Saves:        saves,
		Screenshots:  screenshots,
		Creators:     creators,
		Metrics:      m,
		BaseURL:      cfg.HTTP.BaseURL,
		Secure:       cfg.HTTP.DevSSL,
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.ListenAddress, cfg.HTTP.ListenPort)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		var serveErr error
		if cfg.HTTP.DevSSL {
			serveErr = httpSrv.ListenAndServeTLS(cfg.HTTP.DevCert, cfg.HTTP.DevKey)
		} else {
			serveErr = httpSrv.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(serveErr))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gisstd")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("gisstd stopped")
	return nil
}

// parseDatabaseURL splits a "driver://dsn" database_url into the driver
// name catalog.New expects and the remaining DSN. Postgres DSNs keep
// their full URL form since pgx parses it directly.
func parseDatabaseURL(raw string) (driver, dsn string) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "sqlite", raw
	}
	switch scheme {
	case "postgres", "postgresql":
		return "postgres", raw
	case "sqlite":
		return "sqlite", rest
	default:
		return scheme, rest
	}
}

// buildJWTManager loads RSA keys from the data directory if available, or
// generates ephemeral in-memory keys for development.
func buildJWTManager(dataDir string, logger *zap.Logger) (*auth.JWTManager, error) {
	privPath := filepath.Join(dataDir, "jwt_private.pem")
	pubPath := filepath.Join(dataDir, "jwt_public.pem")

	if _, err := os.Stat(privPath); err == nil {
		logger.Info("loading JWT keys from disk", zap.String("private", privPath))
		return auth.NewJWTManagerFromFiles(privPath, pubPath, "gisstd")
	}

	logger.Warn("JWT key files not found — using ephemeral in-memory keys (tokens will be invalidated on restart)",
		zap.String("expected_private", privPath),
	)
	return auth.NewJWTManagerGenerated("gisstd")
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch strings.ToLower(level) {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
