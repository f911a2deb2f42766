package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

const runsTable = "workflow_runs"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS workflow_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		communities JSONB NOT NULL DEFAULT '[]'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS workflow_runs_started_at_idx ON workflow_runs (started_at DESC)`,
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RunRepository persists workflow reports into Postgres.
type RunRepository struct {
	db     querier
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ ports.RunRecorder = (*RunRepository)(nil)

// NewRunRepository connects to dsn and makes sure the schema exists.
func NewRunRepository(ctx context.Context, dsn string, logger *slog.Logger) (*RunRepository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &RunRepository{db: pool, pool: pool, logger: logger}
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("run history connected", "table", runsTable)
	return repo, nil
}

// EnsureSchema creates the runs table when missing.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	for _, q := range schema {
		if _, err := r.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Record inserts or replaces one report.
func (r *RunRepository) Record(ctx context.Context, report domain.RunReport) error {
	query, args, err := insertRunQuery(report)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns up to limit reports, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]domain.RunReport, error) {
	query, args, err := recentRunsQuery(limit)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var reports []domain.RunReport
	for rows.Next() {
		var (
			report      domain.RunReport
			kind        string
			communities []byte
		)
		if err := rows.Scan(&report.ID, &kind, &report.StartedAt, &report.FinishedAt, &report.Err, &communities); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		report.Kind = domain.WorkflowKind(kind)
		if len(communities) > 0 {
			if err := json.Unmarshal(communities, &report.Communities); err != nil {
				r.logger.Warn("decode run communities", "run", report.ID, "error", err)
			}
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return reports, nil
}

// Close releases the pool.
func (r *RunRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func insertRunQuery(report domain.RunReport) (string, []any, error) {
	communities := report.Communities
	if communities == nil {
		communities = []domain.CommunityReport{}
	}
	payload, err := json.Marshal(communities)
	if err != nil {
		return "", nil, fmt.Errorf("encode communities: %w", err)
	}

	query, args, err := psql.Insert(runsTable).
		Columns("id", "kind", "started_at", "finished_at", "error", "communities").
		Values(report.ID, string(report.Kind), report.StartedAt.UTC(), report.FinishedAt.UTC(), report.Err, string(payload)).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			error = EXCLUDED.error,
			communities = EXCLUDED.communities`).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert: %w", err)
	}
	return query, args, nil
}

func recentRunsQuery(limit int) (string, []any, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := psql.Select("id", "kind", "started_at", "finished_at", "error", "communities").
		From(runsTable).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build select: %w", err)
	}
	return query, args, nil
}
