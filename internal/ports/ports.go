package ports

import (
	"context"
	"time"

	"PollTrends/internal/domain"
)

// TableSource fetches a poll page and exposes its single table as raw text.
// HeaderLabels and BodyRows fail with a MisuseError until Fetch succeeded.
type TableSource interface {
	Fetch(ctx context.Context) error
	HeaderLabels() ([]string, error)
	BodyRows() ([][]string, error)
}

// TableSink persists the cleaned table of a run.
type TableSink interface {
	SaveTable(ctx context.Context, runID string, table domain.CleanedTable) error
}

// TrendSink persists the tabular projection of trend estimates.
type TrendSink interface {
	SaveTrends(ctx context.Context, runID string, estimates []domain.TrendEstimate) error
}

// ChartRenderer draws observations and estimates of one method.
type ChartRenderer interface {
	Render(ctx context.Context, table domain.CleanedTable, method string, estimates []domain.TrendEstimate) error
}

// Scheduler triggers periodic pipeline runs.
type Scheduler interface {
	Start(ctx context.Context, job func(context.Context, time.Time)) error
	Stop(ctx context.Context) error
}
