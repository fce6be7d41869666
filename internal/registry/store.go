package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// DB is the narrow pgx surface the store needs; *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists domain configurations. The config body lives in a JSONB
// column; only the name and status are relational.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, name string) (*model.DomainConfig, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT config FROM domains WHERE name = $1`, name,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, zelferr.ErrDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get domain %s: %w", name, err)
	}

	var cfg model.DomainConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode domain %s: %w", name, err)
	}
	return &cfg, nil
}

func (s *Store) List(ctx context.Context) ([]*model.DomainConfig, error) {
	rows, err := s.db.Query(ctx, `SELECT config FROM domains ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var configs []*model.DomainConfig
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		var cfg model.DomainConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode domain: %w", err)
		}
		configs = append(configs, &cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return configs, nil
}

// Create inserts a new domain and fails when the name is taken.
func (s *Store) Create(ctx context.Context, cfg *model.DomainConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode domain %s: %w", cfg.Name, err)
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO domains (name, status, config, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (name) DO NOTHING`,
		cfg.Name, cfg.Status, raw,
	)
	if err != nil {
		return fmt.Errorf("insert domain %s: %w", cfg.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return zelferr.ErrDomainAlreadyRegistered
	}
	return nil
}

// Upsert replaces the stored config, inserting when absent.
func (s *Store) Upsert(ctx context.Context, cfg *model.DomainConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode domain %s: %w", cfg.Name, err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO domains (name, status, config, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (name) DO UPDATE SET status = $2, config = $3, updated_at = now()`,
		cfg.Name, cfg.Status, raw,
	)
	if err != nil {
		return fmt.Errorf("upsert domain %s: %w", cfg.Name, err)
	}
	return nil
}
