package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS auditdesk_settings (
  key         TEXT PRIMARY KEY,
  value       TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps settings in the auditdesk_settings table.
type PostgresStore struct{ DB *pgxpool.Pool }

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing postgres dsn")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	return pgxpool.NewWithConfig(ctx, cfg)
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore { return &PostgresStore{DB: pool} }

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var e Entry
	err := s.DB.QueryRow(ctx, `
SELECT key,value,description,updated_at
FROM auditdesk_settings
WHERE key=$1
`, normalizeKey(key)).Scan(&e.Key, &e.Value, &e.Description, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, e Entry) error {
	key := normalizeKey(e.Key)
	if key == "" {
		return fmt.Errorf("missing settings key")
	}
	_, err := s.DB.Exec(ctx, `
INSERT INTO auditdesk_settings(key,value,description,updated_at)
VALUES($1,$2,$3,now())
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value,description=EXCLUDED.description,updated_at=now()
`, key, e.Value, strings.TrimSpace(e.Description))
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `SELECT key,value,description,updated_at FROM auditdesk_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.Key, &e.Value, &e.Description, &e.UpdatedAt)
		return e, err
	})
}
