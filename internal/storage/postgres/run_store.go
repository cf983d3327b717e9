package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, config, seed, first_date, last_date, num_cycles, num_symbols,
	best_genome, best_score, return_pct, cycles, history, started_at, finished_at
`

// Insert adds a completed run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	genome, err := json.Marshal(r.BestGenome)
	if err != nil {
		return fmt.Errorf("marshal genome: %w", err)
	}
	cycles, err := json.Marshal(nonNil(r.Cycles))
	if err != nil {
		return fmt.Errorf("marshal cycles: %w", err)
	}
	history, err := json.Marshal(nonNil(r.History))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	query := `INSERT INTO optimization_runs (` + runColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
	)`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, cfg, r.Seed, r.FirstDate, r.LastDate, r.NumCycles, r.NumSymbols,
		genome, r.BestScore, r.ReturnPct, cycles, history, r.StartedAt, r.FinishedAt,
	)
	return mapError("insert optimization run", err)
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM optimization_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		return nil, mapError("get optimization run by id", err)
	}
	return r, nil
}

// List retrieves all runs, newest first.
func (s *RunStore) List(ctx context.Context) ([]*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM optimization_runs ORDER BY started_at DESC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list optimization runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan optimization run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate optimization runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord
	var cfg, genome, cycles, history []byte

	err := row.Scan(
		&r.RunID, &cfg, &r.Seed, &r.FirstDate, &r.LastDate, &r.NumCycles, &r.NumSymbols,
		&genome, &r.BestScore, &r.ReturnPct, &cycles, &history, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(cfg, &r.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := json.Unmarshal(genome, &r.BestGenome); err != nil {
		return nil, fmt.Errorf("unmarshal genome: %w", err)
	}
	if err := json.Unmarshal(cycles, &r.Cycles); err != nil {
		return nil, fmt.Errorf("unmarshal cycles: %w", err)
	}
	if err := json.Unmarshal(history, &r.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}

	r.FirstDate = domain.TruncateDate(r.FirstDate)
	r.LastDate = domain.TruncateDate(r.LastDate)
	return &r, nil
}

// nonNil keeps JSONB columns as arrays rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
