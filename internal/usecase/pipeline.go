package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"PollTrends/internal/cleaning"
	"PollTrends/internal/domain"
	"PollTrends/internal/ports"
	"PollTrends/internal/trend"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.TableSource
	Assembler  *cleaning.Assembler
	Estimators []trend.Estimator
	TableSinks []ports.TableSink
	TrendSinks []ports.TrendSink
	Renderer   ports.ChartRenderer
	Workers    int
	Logger     *slog.Logger
	NewRunID   func() string
}

// Pipeline implements the fetch, clean and trend workflow.
type Pipeline struct {
	source     ports.TableSource
	assembler  *cleaning.Assembler
	estimators []trend.Estimator
	tableSinks []ports.TableSink
	trendSinks []ports.TrendSink
	renderer   ports.ChartRenderer
	workers    int
	logger     *slog.Logger
	newRunID   func() string
}

// Report is the outcome of one run. Failures lists entities (and methods) without an estimate.
type Report struct {
	RunID       string
	Table       domain.CleanedTable
	Estimates   []domain.TrendEstimate
	Failures    []domain.EntityFailure
	Diagnostics domain.Diagnostics
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:     deps.Source,
		assembler:  deps.Assembler,
		estimators: deps.Estimators,
		tableSinks: deps.TableSinks,
		trendSinks: deps.TrendSinks,
		renderer:   deps.Renderer,
		workers:    deps.Workers,
		logger:     deps.Logger,
		newRunID:   deps.NewRunID,
	}
	if p.assembler == nil {
		p.assembler = cleaning.NewAssembler(cleaning.DefaultOptions())
	}
	if p.workers < 1 {
		p.workers = 1
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.newRunID == nil {
		p.newRunID = uuid.NewString
	}
	return p
}

// Clean fetches the source table, assembles it and hands it to the table sinks.
// A structural problem aborts with no partial table.
func (p *Pipeline) Clean(ctx context.Context) (Report, error) {
	if p.source == nil {
		return Report{}, errors.New("table source is not configured")
	}

	report := Report{RunID: p.newRunID()}
	logger := p.logger.With("run_id", report.RunID)

	if err := p.source.Fetch(ctx); err != nil {
		return Report{}, fmt.Errorf("fetch table: %w", err)
	}
	headers, err := p.source.HeaderLabels()
	if err != nil {
		return Report{}, fmt.Errorf("read header: %w", err)
	}
	rows, err := p.source.BodyRows()
	if err != nil {
		return Report{}, fmt.Errorf("read body: %w", err)
	}

	table, diags, err := p.assembler.Assemble(headers, rows)
	for _, d := range diags {
		logger.Warn(d.Message, d.Attrs()...)
	}
	if err != nil {
		return Report{}, fmt.Errorf("assemble table: %w", err)
	}
	report.Table = table
	report.Diagnostics = diags

	logger.Info("table cleaned", "entities", len(table.Entities), "rows", len(table.Records), "warnings", len(diags))

	for _, sink := range p.tableSinks {
		if err := sink.SaveTable(ctx, report.RunID, table); err != nil {
			return report, fmt.Errorf("save table: %w", err)
		}
	}
	return report, nil
}

// Run cleans the table, estimates every entity with every method and feeds sinks and renderer.
// Per-entity failures are reported, not returned.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report, err := p.Clean(ctx)
	if err != nil {
		return report, err
	}
	logger := p.logger.With("run_id", report.RunID)

	estimates, failures, err := p.Estimate(ctx, report.Table)
	if err != nil {
		return report, err
	}
	report.Estimates = estimates
	report.Failures = failures

	for _, f := range failures {
		logger.Error("entity trend failed", "entity", f.Entity, "method", f.Method, "error", f.Err)
		report.Diagnostics = append(report.Diagnostics, domain.Diagnostic{
			Level:   slog.LevelError,
			Kind:    domain.DiagEntityFailed,
			Row:     -1,
			Entity:  f.Entity,
			Message: f.Err.Error(),
		})
	}

	if len(estimates) == 0 {
		logger.Warn("no trend estimates produced")
		return report, nil
	}

	for _, sink := range p.trendSinks {
		if err := sink.SaveTrends(ctx, report.RunID, estimates); err != nil {
			return report, fmt.Errorf("save trends: %w", err)
		}
	}

	if p.renderer != nil {
		for _, est := range p.estimators {
			byMethod := filterMethod(estimates, est.Name())
			if len(byMethod) == 0 {
				continue
			}
			if err := p.renderer.Render(ctx, report.Table, est.Name(), byMethod); err != nil {
				return report, fmt.Errorf("render %s chart: %w", est.Name(), err)
			}
		}
	}

	logger.Info("trends estimated", "estimates", len(estimates), "failures", len(failures))
	return report, nil
}

type task struct {
	series    domain.EntitySeries
	estimator trend.Estimator
}

type outcome struct {
	estimate domain.TrendEstimate
	err      error
}

// Estimate runs every estimator on every entity of table. Results are ordered by
// entity then estimator, independent of worker scheduling.
func (p *Pipeline) Estimate(ctx context.Context, table domain.CleanedTable) ([]domain.TrendEstimate, []domain.EntityFailure, error) {
	var (
		tasks    []task
		failures []domain.EntityFailure
	)
	for _, entity := range table.Entities {
		series, err := trend.ExtractSeries(table, entity)
		if err != nil {
			failures = append(failures, domain.EntityFailure{Entity: entity, Err: err})
			continue
		}
		for _, est := range p.estimators {
			tasks = append(tasks, task{series: series, estimator: est})
		}
	}

	results := make([]outcome, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			est, err := t.estimator.Estimate(t.series)
			results[i] = outcome{estimate: est, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("estimate trends: %w", err)
	}

	estimates := make([]domain.TrendEstimate, 0, len(tasks))
	for i, res := range results {
		if res.err != nil {
			failures = append(failures, domain.EntityFailure{
				Entity: tasks[i].series.Entity,
				Method: tasks[i].estimator.Name(),
				Err:    res.err,
			})
			continue
		}
		estimates = append(estimates, res.estimate)
	}
	return estimates, failures, nil
}

func filterMethod(estimates []domain.TrendEstimate, method string) []domain.TrendEstimate {
	var out []domain.TrendEstimate
	for _, e := range estimates {
		if e.Method == method {
			out = append(out, e)
		}
	}
	return out
}
