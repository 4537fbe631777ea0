package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/player-console/internal/config"
	"github.com/player-console/internal/domain"
)

// Journal stores an audit record of every mutating console action
type Journal struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewJournal connects to PostgreSQL
func NewJournal(cfg *config.PostgresConfig, logger *slog.Logger) (*Journal, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Journal{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the connection pool
func (j *Journal) Close() {
	j.pool.Close()
}

// Ping checks the database connection
func (j *Journal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}

// RunMigrations creates the journal table
func (j *Journal) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS console_actions (
			id VARCHAR(36) PRIMARY KEY,
			account VARCHAR(128) NOT NULL,
			player_ref VARCHAR(128) NOT NULL DEFAULT '',
			kind VARCHAR(32) NOT NULL,
			target_id VARCHAR(128) NOT NULL DEFAULT '',
			succeeded BOOLEAN NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_console_actions_created ON console_actions(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_console_actions_player ON console_actions(account, player_ref, created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := j.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	j.logger.Info("database migrations completed")
	return nil
}

// RecordAction inserts one audit record
func (j *Journal) RecordAction(ctx context.Context, rec domain.ActionRecord) error {
	query := `
		INSERT INTO console_actions (id, account, player_ref, kind, target_id, succeeded, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := j.pool.Exec(ctx, query,
		rec.ID,
		rec.Account,
		rec.PlayerRef,
		string(rec.Kind),
		rec.TargetID,
		rec.Succeeded,
		rec.Message,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording action: %w", err)
	}
	return nil
}

const selectActions = `
	SELECT id, account, player_ref, kind, target_id, succeeded, message, created_at
	FROM console_actions
`

// ListActions returns the most recent records, newest first
func (j *Journal) ListActions(ctx context.Context, limit int) ([]domain.ActionRecord, error) {
	rows, err := j.pool.Query(ctx, selectActions+`ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	return scanActions(rows)
}

// ActionsForPlayer returns the most recent records for one player of an
// account, newest first
func (j *Journal) ActionsForPlayer(ctx context.Context, account, playerRef string, limit int) ([]domain.ActionRecord, error) {
	rows, err := j.pool.Query(ctx,
		selectActions+`WHERE account = $1 AND player_ref = $2 ORDER BY created_at DESC LIMIT $3`,
		account, playerRef, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing player actions: %w", err)
	}
	return scanActions(rows)
}

func scanActions(rows pgx.Rows) ([]domain.ActionRecord, error) {
	defer rows.Close()

	records := []domain.ActionRecord{}
	for rows.Next() {
		var (
			rec  domain.ActionRecord
			kind string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.Account,
			&rec.PlayerRef,
			&kind,
			&rec.TargetID,
			&rec.Succeeded,
			&rec.Message,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}
		rec.Kind = domain.ActionKind(kind)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}
	return records, nil
}
