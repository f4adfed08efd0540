package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"PollTrends/internal/domain"
	"PollTrends/internal/ports"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const trendBatchSize = 500

var schema = []string{
	`CREATE TABLE IF NOT EXISTS poll_runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS poll_entities (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS poll_records (
		run_id TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		poll_date TEXT,
		pollster TEXT NOT NULL,
		sample DOUBLE PRECISION,
		PRIMARY KEY (run_id, row_index)
	)`,
	`CREATE TABLE IF NOT EXISTS poll_values (
		run_id TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		position INTEGER NOT NULL,
		value DOUBLE PRECISION,
		PRIMARY KEY (run_id, row_index, position)
	)`,
	`CREATE TABLE IF NOT EXISTS trend_points (
		run_id TEXT NOT NULL,
		estimate_index INTEGER NOT NULL,
		entity TEXT NOT NULL,
		method TEXT NOT NULL,
		point_date TEXT NOT NULL,
		day_offset INTEGER NOT NULL,
		center DOUBLE PRECISION NOT NULL,
		dispersion DOUBLE PRECISION,
		PRIMARY KEY (run_id, estimate_index, day_offset)
	)`,
}

// OpenDB opens and pings a database for one of the supported drivers.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}
	return db, nil
}

// SQLRepository archives cleaned tables and trend points per run.
type SQLRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var (
	_ ports.TableSink = (*SQLRepository)(nil)
	_ ports.TrendSink = (*SQLRepository)(nil)
)

// NewSQLRepository wires a sql.DB; driver selects the placeholder format.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		placeholder = sq.Dollar
	}
	return &SQLRepository{db: db, builder: sq.StatementBuilder.PlaceholderFormat(placeholder)}
}

// Migrate creates the archive tables when absent.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveTable stores the run header, entity order, records and values in one transaction.
func (r *SQLRepository) SaveTable(ctx context.Context, runID string, table domain.CleanedTable) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		run := r.builder.Insert("poll_runs").
			Columns("id", "created_at").
			Values(runID, time.Now().UTC().Format(time.RFC3339))
		if err := exec(ctx, tx, run); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if len(table.Entities) > 0 {
			entities := r.builder.Insert("poll_entities").Columns("run_id", "position", "name")
			for i, name := range table.Entities {
				entities = entities.Values(runID, i, name)
			}
			if err := exec(ctx, tx, entities); err != nil {
				return fmt.Errorf("insert entities: %w", err)
			}
		}

		for i, rec := range table.Records {
			record := r.builder.Insert("poll_records").
				Columns("run_id", "row_index", "poll_date", "pollster", "sample").
				Values(runID, i, nullDate(rec.Date), rec.Pollster, nullValue(rec.Sample))
			if err := exec(ctx, tx, record); err != nil {
				return fmt.Errorf("insert record %d: %w", i, err)
			}

			if len(rec.Values) == 0 {
				continue
			}
			values := r.builder.Insert("poll_values").Columns("run_id", "row_index", "position", "value")
			for j, v := range rec.Values {
				values = values.Values(runID, i, j, nullValue(v))
			}
			if err := exec(ctx, tx, values); err != nil {
				return fmt.Errorf("insert values of record %d: %w", i, err)
			}
		}
		return nil
	})
}

// LoadTable rebuilds the table stored for runID.
func (r *SQLRepository) LoadTable(ctx context.Context, runID string) (domain.CleanedTable, error) {
	var table domain.CleanedTable

	err := r.query(ctx, r.builder.Select("name").From("poll_entities").
		Where(sq.Eq{"run_id": runID}).OrderBy("position"),
		func(rows *sql.Rows) error {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			table.Entities = append(table.Entities, name)
			return nil
		})
	if err != nil {
		return domain.CleanedTable{}, fmt.Errorf("load entities: %w", err)
	}

	err = r.query(ctx, r.builder.Select("poll_date", "pollster", "sample").From("poll_records").
		Where(sq.Eq{"run_id": runID}).OrderBy("row_index"),
		func(rows *sql.Rows) error {
			var (
				date   sql.NullString
				rec    domain.PollRecord
				sample sql.NullFloat64
			)
			if err := rows.Scan(&date, &rec.Pollster, &sample); err != nil {
				return err
			}
			if date.Valid {
				parsed, err := parseDate(date.String)
				if err != nil {
					return err
				}
				rec.Date = parsed
			}
			rec.Sample = domain.Value{Number: sample.Float64, Valid: sample.Valid}
			rec.Values = make([]domain.Value, len(table.Entities))
			table.Records = append(table.Records, rec)
			return nil
		})
	if err != nil {
		return domain.CleanedTable{}, fmt.Errorf("load records: %w", err)
	}
	if len(table.Records) == 0 {
		return domain.CleanedTable{}, fmt.Errorf("run %s not found", runID)
	}

	err = r.query(ctx, r.builder.Select("row_index", "position", "value").From("poll_values").
		Where(sq.Eq{"run_id": runID}),
		func(rows *sql.Rows) error {
			var (
				row, pos int
				value    sql.NullFloat64
			)
			if err := rows.Scan(&row, &pos, &value); err != nil {
				return err
			}
			if row < 0 || row >= len(table.Records) || pos < 0 || pos >= len(table.Entities) {
				return fmt.Errorf("value at row %d position %d is out of range", row, pos)
			}
			table.Records[row].Values[pos] = domain.Value{Number: value.Float64, Valid: value.Valid}
			return nil
		})
	if err != nil {
		return domain.CleanedTable{}, fmt.Errorf("load values: %w", err)
	}

	return table, nil
}

// SaveTrends stores every point of every estimate; NaN dispersion is stored as NULL.
// Points are inserted in batches of trendBatchSize to stay under bind-variable limits.
func (r *SQLRepository) SaveTrends(ctx context.Context, runID string, estimates []domain.TrendEstimate) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for i, est := range estimates {
			for start := 0; start < len(est.Points); start += trendBatchSize {
				end := min(start+trendBatchSize, len(est.Points))
				insert := r.builder.Insert("trend_points").
					Columns("run_id", "estimate_index", "entity", "method", "point_date", "day_offset", "center", "dispersion")
				for _, p := range est.Points[start:end] {
					dispersion := sql.NullFloat64{Float64: p.Dispersion, Valid: !math.IsNaN(p.Dispersion)}
					insert = insert.Values(runID, i, est.Entity, est.Method, formatDate(p.Date), p.Offset, p.Center, dispersion)
				}
				if err := exec(ctx, tx, insert); err != nil {
					return fmt.Errorf("insert %s trend of %s: %w", est.Method, est.Entity, err)
				}
			}
		}
		return nil
	})
}

// LoadTrends returns the estimates stored for runID in their original order.
func (r *SQLRepository) LoadTrends(ctx context.Context, runID string) ([]domain.TrendEstimate, error) {
	var (
		estimates []domain.TrendEstimate
		lastIndex = -1
	)
	err := r.query(ctx, r.builder.
		Select("estimate_index", "entity", "method", "point_date", "day_offset", "center", "dispersion").
		From("trend_points").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("estimate_index", "day_offset"),
		func(rows *sql.Rows) error {
			var (
				index          int
				entity, method string
				date           string
				point          domain.TrendPoint
				dispersion     sql.NullFloat64
			)
			if err := rows.Scan(&index, &entity, &method, &date, &point.Offset, &point.Center, &dispersion); err != nil {
				return err
			}
			parsed, err := parseDate(date)
			if err != nil {
				return err
			}
			point.Date = parsed
			point.Dispersion = math.NaN()
			if dispersion.Valid {
				point.Dispersion = dispersion.Float64
			}
			if index != lastIndex {
				estimates = append(estimates, domain.TrendEstimate{Entity: entity, Method: method})
				lastIndex = index
			}
			last := &estimates[len(estimates)-1]
			last.Points = append(last.Points, point)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("load trends: %w", err)
	}
	return estimates, nil
}

func (r *SQLRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if r.db == nil {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLRepository) query(ctx context.Context, b sq.SelectBuilder, scan func(*sql.Rows) error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	for rows.Next() {
		if err := scan(rows); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan: %w", err)
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return fmt.Errorf("close rows: %w", closeErr)
	}
	return nil
}

func exec(ctx context.Context, tx *sql.Tx, b sq.InsertBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func nullDate(t time.Time) sql.NullString {
	return sql.NullString{String: formatDate(t), Valid: !t.IsZero()}
}

func nullValue(v domain.Value) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.Number, Valid: v.Valid}
}
