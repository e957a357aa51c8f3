package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PGStore persists collections as jsonb rows in the collections table, one
// row per collection, replaced wholesale on save.
type PGStore struct {
	pg *Postgres
}

func NewPGStore(pg *Postgres) *PGStore {
	return &PGStore{pg: pg}
}

func (s *PGStore) LoadCollection(ctx context.Context, name string, out any) error {
	var data []byte
	err := s.pg.Pool.QueryRow(ctx,
		`SELECT data FROM collections WHERE name = $1`, name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load collection %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode collection %s: %w", name, err)
	}
	return nil
}

func (s *PGStore) SaveCollection(ctx context.Context, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}
	_, err = s.pg.Pool.Exec(ctx,
		`INSERT INTO collections (name, data, updated_at)
		 VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		name, string(data),
	)
	if err != nil {
		return fmt.Errorf("save collection %s: %w", name, err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pg.Ping(ctx)
}

func (s *PGStore) Close() {
	s.pg.Close()
}
