package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"PollTrends/internal/cleaning"
	"PollTrends/internal/config"
	"PollTrends/internal/infrastructure/chart"
	"PollTrends/internal/infrastructure/parser"
	"PollTrends/internal/infrastructure/storage"
	"PollTrends/internal/logging"
	"PollTrends/internal/ports"
	"PollTrends/internal/trend"
	"PollTrends/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	pipeline *usecase.Pipeline
}

// New builds the runnable application. The SQL archive is opened and migrated
// only when enabled in cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	registry := trend.NewRegistry()
	registry.Register(trend.NewMovingAverage(cfg.MovingAverage.Window, cfg.MovingAverage.Clip()))
	registry.Register(newGaussianProcess(cfg.GaussianProcess))

	estimators, err := registry.ResolveAll(cfg.Methods)
	if err != nil {
		return nil, fmt.Errorf("resolve methods: %w", err)
	}

	source := parser.NewHTMLTableSource(
		cfg.Source.URL,
		&http.Client{Timeout: cfg.Source.Timeout},
		baseLogger.With("component", "source.html"),
	)

	opts := cleaning.DefaultOptions()
	opts.RescalePercentages = cfg.Cleaning.Rescale()

	var (
		tableSinks []ports.TableSink
		trendSinks []ports.TrendSink
		renderer   ports.ChartRenderer
	)
	if path := cfg.Output.Path(cfg.Output.TableCSV); path != "" {
		tableSinks = append(tableSinks, storage.NewCSVTableStore(path))
	}
	if path := cfg.Output.Path(cfg.Output.TrendCSV); path != "" {
		trendSinks = append(trendSinks, storage.NewCSVTrendWriter(path))
	}
	if path := cfg.Output.Path(cfg.Output.TrendXLSX); path != "" {
		trendSinks = append(trendSinks, storage.NewXLSXTrendWriter(path))
	}
	if cfg.Output.ChartsEnabled() {
		renderer = chart.NewRenderer(cfg.Output.Dir, cfg.Band, baseLogger)
	}

	if cfg.Database.Enabled {
		db, err := storage.OpenDB(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		repo := storage.NewSQLRepository(db, cfg.Database.Driver)
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate archive: %w", err)
		}
		a.db = db
		tableSinks = append(tableSinks, repo)
		trendSinks = append(trendSinks, repo)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Assembler:  cleaning.NewAssembler(opts),
		Estimators: estimators,
		TableSinks: tableSinks,
		TrendSinks: trendSinks,
		Renderer:   renderer,
		Workers:    cfg.Workers,
		Logger:     baseLogger.With("component", "pipeline"),
	})
	return a, nil
}

// Run performs a full fetch, clean and trend pass.
func (a *Application) Run(ctx context.Context) (usecase.Report, error) {
	if a.pipeline == nil {
		return usecase.Report{}, errors.New("application is not initialised")
	}
	return a.pipeline.Run(ctx)
}

// Clean fetches and cleans the table without estimating trends.
func (a *Application) Clean(ctx context.Context) (usecase.Report, error) {
	if a.pipeline == nil {
		return usecase.Report{}, errors.New("application is not initialised")
	}
	return a.pipeline.Clean(ctx)
}

// Close releases the archive connection, if any.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func newGaussianProcess(cfg config.GaussianProcessConfig) *trend.GaussianProcess {
	gp := trend.NewGaussianProcess()
	gp.Restarts = cfg.Restarts
	gp.Alpha = cfg.Alpha
	gp.Nu = cfg.Nu
	gp.Seed = cfg.Seed
	return gp
}
