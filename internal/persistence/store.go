package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"jax-quant-backtester/libs/resilience"
)

// RunRecord is one persisted backtest (or sweep member) result.
type RunRecord struct {
	RunName            string
	Symbols            []string
	ShortWindow        int
	LongWindow         int
	InitialCash        float64
	FinalEquity        float64
	TotalReturn        float64
	Sharpe             float64
	MaxDrawdown        float64
	TotalCommission    float64
	TotalSlippageCost  float64
	Halted             bool
	HaltReason         string
	Extra              map[string]any
}

// Store wraps a pgxpool.Pool with the backtester's persistence operations.
type Store struct {
	pool *pgxpool.Pool
	cfg  Config
	cb   *resilience.CircuitBreaker
}

// Connect opens a pooled connection, retrying with exponential backoff,
// then applies embedded migrations before returning.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("persistence: parse DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	var pool *pgxpool.Pool
	delay := cfg.RetryDelay
	for attempt := 0; attempt <= cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			continue
		}
		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			err = pingErr
			continue
		}
		err = nil
		break
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: connect after %d attempts: %w", cfg.RetryAttempts+1, err)
	}

	if err := RunMigrations(cfg.DSN); err != nil {
		pool.Close()
		return nil, err
	}

	cbCfg := resilience.DefaultConfig("persistence.runs")
	cbCfg.OnStateChange = nil
	return &Store{pool: pool, cfg: cfg, cb: resilience.NewCircuitBreaker(cbCfg)}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// HealthCheck pings the database with a bounded timeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("persistence: health check failed: %w", err)
	}
	return nil
}

// InsertRun persists a single run and returns its generated id.
func (s *Store) InsertRun(ctx context.Context, r RunRecord) (int64, error) {
	const q = `
		INSERT INTO runs (
			run_name, symbols, short_window, long_window, initial_cash,
			final_equity, total_return, sharpe, max_drawdown,
			total_commission, total_slippage_cost, halted, halt_reason, extra
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	result, err := s.cb.ExecuteWithContext(ctx, func() (any, error) {
		var id int64
		scanErr := s.pool.QueryRow(ctx, q,
			r.RunName, r.Symbols, r.ShortWindow, r.LongWindow, r.InitialCash,
			r.FinalEquity, r.TotalReturn, r.Sharpe, r.MaxDrawdown,
			r.TotalCommission, r.TotalSlippageCost, r.Halted, nullableString(r.HaltReason), r.Extra,
		).Scan(&id)
		if scanErr != nil {
			return nil, scanErr
		}
		return id, nil
	})
	if err != nil {
		return 0, fmt.Errorf("persistence: insert run: %w", err)
	}
	return result.(int64), nil
}

// InsertRunsBulk persists many runs in chunks of 500 rows: each chunk is
// written in its own transaction, one INSERT per row.
func (s *Store) InsertRunsBulk(ctx context.Context, runs []RunRecord) error {
	if len(runs) == 0 {
		return nil
	}
	const chunkSize = 500
	for start := 0; start < len(runs); start += chunkSize {
		end := start + chunkSize
		if end > len(runs) {
			end = len(runs)
		}
		if err := s.insertChunk(ctx, runs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertChunk(ctx context.Context, chunk []RunRecord) error {
	_, err := s.cb.ExecuteWithContext(ctx, func() (any, error) {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("persistence: begin bulk insert tx: %w", err)
		}
		defer tx.Rollback(ctx)

		const q = `
			INSERT INTO runs (
				run_name, symbols, short_window, long_window, initial_cash,
				final_equity, total_return, sharpe, max_drawdown,
				total_commission, total_slippage_cost, halted, halt_reason, extra
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

		for _, r := range chunk {
			args := []any{
				r.RunName, r.Symbols, r.ShortWindow, r.LongWindow, r.InitialCash,
				r.FinalEquity, r.TotalReturn, r.Sharpe, r.MaxDrawdown,
				r.TotalCommission, r.TotalSlippageCost, r.Halted, nullableString(r.HaltReason), r.Extra,
			}
			if _, execErr := tx.Exec(ctx, q, args...); execErr != nil {
				return nil, fmt.Errorf("persistence: bulk insert row: %w", execErr)
			}
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return nil, fmt.Errorf("persistence: commit bulk insert tx: %w", commitErr)
		}
		return nil, nil
	})
	return err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
