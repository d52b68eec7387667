package character

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the character_definitions table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS character_definitions (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    display_name       TEXT NOT NULL DEFAULT '',
    description        TEXT NOT NULL DEFAULT '',
    avatar_ref         TEXT NOT NULL DEFAULT '',
    personality_traits JSONB NOT NULL DEFAULT '[]',
    model              JSONB NOT NULL DEFAULT '{}',
    enabled            BOOLEAN NOT NULL DEFAULT true,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_character_definitions_name ON character_definitions(name);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
// Structured sub-fields (traits, model config) are serialised as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// character_definitions table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("character: migrate: %w", err)
	}
	return nil
}

// Add implements [Store.Add].
func (s *PostgresStore) Add(ctx context.Context, def Definition) (Definition, error) {
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}

	if def.ID == "" {
		id, err := generateID()
		if err != nil {
			return Definition{}, fmt.Errorf("character: generate id: %w", err)
		}
		def.ID = id
	}

	traitsJSON, modelJSON, err := marshalFields(&def)
	if err != nil {
		return Definition{}, err
	}

	const query = `
		INSERT INTO character_definitions (
			id, name, display_name, description, avatar_ref,
			personality_traits, model, enabled
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		def.ID, def.Name, def.DisplayName, def.Description, def.AvatarRef,
		traitsJSON, modelJSON, def.Enabled,
	).Scan(&def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Definition{}, ErrDuplicateID
		}
		return Definition{}, fmt.Errorf("character: add: %w", err)
	}
	return def, nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Definition, error) {
	const query = `
		SELECT id, name, display_name, description, avatar_ref,
		       personality_traits, model, enabled, created_at, updated_at
		FROM character_definitions
		WHERE id = $1`

	var def Definition
	var traitsJSON, modelJSON []byte

	err := s.db.QueryRow(ctx, query, id).Scan(
		&def.ID, &def.Name, &def.DisplayName, &def.Description, &def.AvatarRef,
		&traitsJSON, &modelJSON, &def.Enabled, &def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Definition{}, ErrNotFound
		}
		return Definition{}, fmt.Errorf("character: get %q: %w", id, err)
	}

	if err := unmarshalFields(&def, traitsJSON, modelJSON); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// List implements [Store.List]. Filtering happens in SQL for the enabled
// flag and in memory for traits, which keeps the query simple at the small
// roster sizes a companion app carries.
func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Definition, error) {
	query := `
		SELECT id, name, display_name, description, avatar_ref,
		       personality_traits, model, enabled, created_at, updated_at
		FROM character_definitions`
	if opts.EnabledOnly {
		query += ` WHERE enabled`
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("character: list: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var def Definition
		var traitsJSON, modelJSON []byte

		if err := rows.Scan(
			&def.ID, &def.Name, &def.DisplayName, &def.Description, &def.AvatarRef,
			&traitsJSON, &modelJSON, &def.Enabled, &def.CreatedAt, &def.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("character: list scan: %w", err)
		}

		if err := unmarshalFields(&def, traitsJSON, modelJSON); err != nil {
			return nil, err
		}
		if !matchesOpts(def, ListOptions{Traits: opts.Traits}) {
			continue
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("character: list: %w", err)
	}
	return defs, nil
}

// Update implements [Store.Update].
func (s *PostgresStore) Update(ctx context.Context, def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	traitsJSON, modelJSON, err := marshalFields(&def)
	if err != nil {
		return err
	}

	const query = `
		UPDATE character_definitions SET
			name = $2, display_name = $3, description = $4, avatar_ref = $5,
			personality_traits = $6, model = $7, enabled = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query,
		def.ID, def.Name, def.DisplayName, def.Description, def.AvatarRef,
		traitsJSON, modelJSON, def.Enabled,
	).Scan(&def.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("character: update: %w", err)
	}
	return nil
}

// Remove implements [Store.Remove].
func (s *PostgresStore) Remove(ctx context.Context, id string) error {
	const query = `DELETE FROM character_definitions WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("character: remove %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkImport implements [Store.BulkImport] via per-row Upsert, which makes
// re-importing a YAML roster idempotent.
func (s *PostgresStore) BulkImport(ctx context.Context, defs []Definition) (int, error) {
	count := 0
	for _, d := range defs {
		if err := s.Upsert(ctx, &d); err != nil {
			return count, fmt.Errorf("character: bulk import at index %d (name %q): %w", count, d.Name, err)
		}
		count++
	}
	return count, nil
}

// Upsert creates or replaces a character definition. This is useful for
// importing definitions from YAML roster files. The definition is validated
// before persistence and receives a generated ID when it has none.
func (s *PostgresStore) Upsert(ctx context.Context, def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	if def.ID == "" {
		id, err := generateID()
		if err != nil {
			return fmt.Errorf("character: generate id: %w", err)
		}
		def.ID = id
	}

	traitsJSON, modelJSON, err := marshalFields(def)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO character_definitions (
			id, name, display_name, description, avatar_ref,
			personality_traits, model, enabled
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			avatar_ref = EXCLUDED.avatar_ref,
			personality_traits = EXCLUDED.personality_traits,
			model = EXCLUDED.model,
			enabled = EXCLUDED.enabled,
			updated_at = now()
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		def.ID, def.Name, def.DisplayName, def.Description, def.AvatarRef,
		traitsJSON, modelJSON, def.Enabled,
	).Scan(&def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("character: upsert: %w", err)
	}
	return nil
}

// marshalFields serialises the JSONB columns of def.
func marshalFields(def *Definition) (traits, model []byte, err error) {
	traits, err = json.Marshal(emptySlice(def.PersonalityTraits))
	if err != nil {
		return nil, nil, fmt.Errorf("character: marshal personality_traits: %w", err)
	}
	model, err = json.Marshal(def.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("character: marshal model: %w", err)
	}
	return traits, model, nil
}

// unmarshalFields deserialises the JSONB columns into def.
func unmarshalFields(def *Definition, traits, model []byte) error {
	if err := json.Unmarshal(traits, &def.PersonalityTraits); err != nil {
		return fmt.Errorf("character: unmarshal personality_traits: %w", err)
	}
	if err := json.Unmarshal(model, &def.Model); err != nil {
		return fmt.Errorf("character: unmarshal model: %w", err)
	}
	return nil
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice. This
// ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
