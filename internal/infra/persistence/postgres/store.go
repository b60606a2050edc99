// Package postgres persists the strategy roster and variable snapshots in
// PostgreSQL via pgx. Settings and variables live in separate tables so a
// variable sync on every fill never rewrites the roster row.
package postgres

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/folio/errs"
	"github.com/coachpo/folio/internal/domain/strategystore"
)

// Store is the PostgreSQL-backed strategystore.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by the provided pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pgx pool.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) ensurePool() error {
	if s == nil || s.pool == nil {
		return errs.New("postgres/store", errs.CodeStorage, errs.WithMessage("nil pool"))
	}
	return nil
}

// SaveSetting upserts the roster entry for the named instance.
func (s *Store) SaveSetting(ctx context.Context, name string, setting strategystore.Setting) error {
	if err := s.ensurePool(); err != nil {
		return err
	}
	instruments, err := json.Marshal(setting.Instruments)
	if err != nil {
		return errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
	}
	parameters, err := json.Marshal(setting.Parameters)
	if err != nil {
		return errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
	}
	const query = `
INSERT INTO strategy_settings (name, class, instruments, parameters, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (name) DO UPDATE
SET class = EXCLUDED.class,
    instruments = EXCLUDED.instruments,
    parameters = EXCLUDED.parameters,
    updated_at = now()`
	if _, err := s.pool.Exec(ctx, query, name, setting.Class, instruments, parameters); err != nil {
		return errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
	}
	return nil
}

// DeleteSetting removes the roster entry and any stored variables.
func (s *Store) DeleteSetting(ctx context.Context, name string) error {
	if err := s.ensurePool(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM strategy_settings WHERE name = $1`, name); err != nil {
		return errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM strategy_variables WHERE name = $1`, name); err != nil {
		return errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
	}
	return nil
}

// LoadSettings returns the full roster.
func (s *Store) LoadSettings(ctx context.Context) (map[string]strategystore.Setting, error) {
	if err := s.ensurePool(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT name, class, instruments, parameters FROM strategy_settings`)
	if err != nil {
		return nil, errs.New("postgres/store", errs.CodeStorage, errs.WithCause(err))
	}
	defer rows.Close()

	out := make(map[string]strategystore.Setting)
	for rows.Next() {
		var (
			name       string
			setting    strategystore.Setting
			rawSymbols []byte
			rawParams  []byte
		)
		if err := rows.Scan(&name, &setting.Class, &rawSymbols, &rawParams); err != nil {
			return nil, errs.New("postgres/store", errs.CodeStorage, errs.WithCause(err))
		}
		if err := json.Unmarshal(rawSymbols, &setting.Instruments); err != nil {
			return nil, errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
		}
		if len(rawParams) > 0 {
			if err := json.Unmarshal(rawParams, &setting.Parameters); err != nil {
				return nil, errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
			}
		}
		out[name] = setting
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New("postgres/store", errs.CodeStorage, errs.WithCause(err))
	}
	return out, nil
}

// SaveVariables upserts the variable snapshot for the named instance.
func (s *Store) SaveVariables(ctx context.Context, name string, variables map[string]any) error {
	if err := s.ensurePool(); err != nil {
		return err
	}
	payload, err := json.Marshal(variables)
	if err != nil {
		return errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
	}
	const query = `
INSERT INTO strategy_variables (name, variables, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE
SET variables = EXCLUDED.variables,
    updated_at = now()`
	if _, err := s.pool.Exec(ctx, query, name, payload); err != nil {
		return errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
	}
	return nil
}

// LoadVariables returns the stored snapshot, nil when none exists.
func (s *Store) LoadVariables(ctx context.Context, name string) (map[string]any, error) {
	if err := s.ensurePool(); err != nil {
		return nil, err
	}
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT variables FROM strategy_variables WHERE name = $1`, name).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
	}
	var variables map[string]any
	if err := json.Unmarshal(payload, &variables); err != nil {
		return nil, errs.New("postgres/store", errs.CodeStorage, errs.WithStrategy(name), errs.WithCause(err))
	}
	return variables, nil
}
