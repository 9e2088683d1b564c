package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kingprasham/dicom-c-sub004/internal/config"
	"github.com/kingprasham/dicom-c-sub004/internal/domain/measurement"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/db"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/metrics"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/middleware"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/orthanc"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "pacs-server",
		Short:        "DICOM measurement extraction service for Orthanc",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the measurement API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <instanceId> [instanceId...]",
		Short: "Extract measurements for one or more instances and print the JSON result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			study, _ := cmd.Flags().GetString("study")
			pretty, _ := cmd.Flags().GetBool("pretty")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env, os.Stderr).Level(zerolog.WarnLevel)

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			extractor := newExtractor(cfg, newOrthancClient(cfg, nil), logger, nil)
			extractor.SetRepository(st.repo)
			return runExtract(ctx, extractor, cmd.OutOrStdout(), args, study, pretty)
		},
	}
	cmd.Flags().String("study", "", "Orthanc study id used to include related structured reports")
	cmd.Flags().Bool("pretty", false, "Indent JSON output")
	return cmd
}

// runExtract prints a single Result for one id and a BatchResult otherwise,
// matching the HTTP API.
func runExtract(ctx context.Context, x *measurement.Extractor, out io.Writer, ids []string, study string, pretty bool) error {
	var v interface{}
	if len(ids) == 1 {
		v = x.Extract(ctx, ids[0], study)
	} else {
		v = x.ExtractBatch(ctx, ids, study)
	}
	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres extraction archive schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			migrator, closeFn, err := openMigrator(cmd.Context(), dir)
			if err != nil {
				return err
			}
			defer closeFn()

			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			migrator, closeFn, err := openMigrator(cmd.Context(), dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatuses(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
		c.Flags().String("dir", "./migrations", "Path to migrations directory")
		cmd.AddCommand(c)
	}
	return cmd
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir), pool.Close, nil
}

func printStatuses(out io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// store is the optional extraction archive with its health endpoint.
type store struct {
	repo   measurement.ExtractionRepository
	health echo.HandlerFunc
	close  func()
}

func (s *store) Close() {
	if s.close != nil {
		s.close()
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to extraction archive")
		return &store{
			repo:   measurement.NewExtractionRepoPG(pool),
			health: db.HealthHandler(pool),
			close:  pool.Close,
		}, nil
	case config.StoreMySQL:
		sqlDB, err := db.NewMySQL(ctx, cfg.MySQLDSN, int(cfg.DBMaxConns), int(cfg.DBMinConns))
		if err != nil {
			return nil, fmt.Errorf("connect to mysql: %w", err)
		}
		repo, err := measurement.NewExtractionRepoMySQL(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to extraction archive")
		return &store{
			repo:   repo,
			health: db.SQLHealthHandler(sqlDB),
			close:  func() { closeSQL(sqlDB, logger) },
		}, nil
	default:
		return &store{}, nil
	}
}

func closeSQL(sqlDB *sql.DB, logger zerolog.Logger) {
	if err := sqlDB.Close(); err != nil {
		logger.Error().Err(err).Msg("closing mysql archive")
	}
}

func newOrthancClient(cfg *config.Config, m *metrics.Metrics) *orthanc.Client {
	client := orthanc.NewClient(orthanc.Config{
		BaseURL:  cfg.OrthancURL,
		Username: cfg.OrthancUsername,
		Password: cfg.OrthancPassword,
		Timeout:  cfg.OrthancTimeout(),
		MaxRPS:   cfg.OrthancMaxRPS,
	})
	client.SetMetrics(m)
	return client
}

func newExtractor(cfg *config.Config, src measurement.TagSource, logger zerolog.Logger, m *metrics.Metrics) *measurement.Extractor {
	x := measurement.NewExtractor(src, logger)
	x.SetConcurrency(cfg.ExtractConcurrency)
	x.SetMaxDepth(cfg.MaxContentDepth)
	x.SetMetrics(m)
	return x
}

// orthancPinger is the subset of orthanc.Client used by the health check.
type orthancPinger interface {
	Ping(ctx context.Context) (*orthanc.SystemInfo, error)
}

func orthancHealthHandler(p orthancPinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		info, err := p.Ping(ctx)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"orthanc": info,
		})
	}
}

type serverDeps struct {
	extractor *measurement.Extractor
	orthanc   orthancPinger
	metrics   *metrics.Metrics
	dbHealth  echo.HandlerFunc
}

func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.Middleware(telemetry.Config{
		TracingEnabled: true,
		Metrics:        deps.metrics,
		SkipPaths:      []string{"/metrics"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if deps.orthanc != nil {
		e.GET("/health/orthanc", orthancHealthHandler(deps.orthanc))
	}
	if deps.dbHealth != nil {
		e.GET("/health/db", deps.dbHealth)
	}
	if deps.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.metrics.Handler()))
	}

	apiV1 := e.Group("/api/v1", middleware.RequestTimeout(cfg.RequestTimeout()))
	measurement.NewHandler(deps.extractor).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		bootLogger := newLogger(os.Getenv("ENV"), os.Stderr)
		bootLogger.Error().Err(err).Msg("failed to load config")
		return err
	}
	logger := newLogger(cfg.Env, os.Stdout)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	ctx := context.Background()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open extraction archive")
		return err
	}
	defer st.Close()

	client := newOrthancClient(cfg, m)
	extractor := newExtractor(cfg, client, logger, m)
	extractor.SetRepository(st.repo)

	e := newServer(cfg, logger, serverDeps{
		extractor: extractor,
		orthanc:   client,
		metrics:   m,
		dbHealth:  st.health,
	})

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().
			Str("addr", addr).
			Str("orthanc", client.BaseURL()).
			Str("store", cfg.StoreDriver).
			Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
