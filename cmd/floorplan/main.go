package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"floorplan/internal/common/config"
	"floorplan/internal/common/logging"
	"floorplan/internal/common/middleware"
	"floorplan/internal/floorplan/geometry"
	"floorplan/internal/floorplan/handlers"
	"floorplan/internal/floorplan/selection"
	"floorplan/internal/floorplan/session"
	"floorplan/internal/floorplan/source"
	"floorplan/internal/floorplan/svgdoc"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Floor Plan Service
// ============================================================

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	path := os.Getenv("FLOORPLAN_CONFIG")
	if path == "" {
		path = "floorplan.yml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer cleanup()

	deps, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	sessions := session.NewManager(deps, cfg.SessionTTL())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go sessions.Run(ctx, time.Minute)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Floor Plan Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(logger))
	app.Use(middleware.CORS(cfg.AllowOrigins))

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", handlers.LivenessProbe)
	app.Get("/health/ready", handlers.ReadinessProbe(func(context.Context) error {
		_, err := deps.BasePlan()
		return err
	}))

	// ============================================================
	// Session Routes
	// ============================================================

	handlers.NewSessionHandler(sessions, logger).Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("starting floor plan service", "addr", addr, "env", cfg.Environment, "sources", len(deps.Sources))
	return app.Listen(addr)
}

// buildDeps picks the fetcher for the data location, expands the source
// patterns and prepares the base plan loader.
func buildDeps(cfg *config.Config, logger *slog.Logger) (session.Deps, error) {
	deps := session.Deps{
		Concurrency: cfg.FetchConcurrency,
		SettleDelay: cfg.SettleDelay(),
		Viewport: selection.Viewport{
			Scale:   cfg.Viewport.Scale,
			OffsetX: cfg.Viewport.OffsetX,
			OffsetY: cfg.Viewport.OffsetY,
			Width:   cfg.Viewport.Width,
			Height:  cfg.Viewport.Height,
		},
		Panel:          geometry.XYWH(cfg.Panel.X, cfg.Panel.Y, cfg.Panel.Width, cfg.Panel.Height),
		BookingAccount: cfg.BookingAccount,
		Logger:         logger,
	}

	if cfg.BaseURL != "" {
		fetcher, err := source.NewHTTPFetcher(cfg.BaseURL, &http.Client{Timeout: 30 * time.Second})
		if err != nil {
			return deps, err
		}
		deps.Fetcher = fetcher
		deps.Sources = cfg.Sources
	} else {
		fsys := os.DirFS(cfg.Root)
		sources, err := source.Expand(fsys, cfg.Sources)
		if err != nil {
			return deps, err
		}
		if len(sources) == 0 {
			return deps, errors.New("source patterns matched no files")
		}
		deps.Fetcher = source.NewFSFetcher(fsys)
		deps.Sources = sources
	}

	deps.BasePlan = func() (*svgdoc.Document, error) {
		if cfg.FloorPlan == "" {
			return svgdoc.New(cfg.Viewport.Width, cfg.Viewport.Height), nil
		}
		f, err := os.Open(cfg.FloorPlan)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return svgdoc.Parse(f)
	}
	return deps, nil
}
