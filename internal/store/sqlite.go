package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fintalk-ai/agenthub/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	type         TEXT NOT NULL,
	instructions TEXT NOT NULL DEFAULT '',
	tools        TEXT NOT NULL DEFAULT '[]',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
`

// SQLiteStore is a Store backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the catalog at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// The catalog is touched by one interactive session at a time; a single
	// connection avoids SQLITE_BUSY on concurrent writes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Put inserts or replaces a descriptor.
func (s *SQLiteStore) Put(ctx context.Context, desc model.AgentDescriptor) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("store: put agent: %w", err)
	}
	now := time.Now().UTC()
	if desc.CreatedAt.IsZero() {
		desc.CreatedAt = now
	}
	desc.UpdatedAt = now

	tools, err := json.Marshal(desc.Tools)
	if err != nil {
		return fmt.Errorf("store: encode tools: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, type, instructions, tools, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			instructions = excluded.instructions,
			tools = excluded.tools,
			updated_at = excluded.updated_at`,
		desc.ID, desc.Name, string(desc.Type), desc.Instructions, string(tools),
		desc.CreatedAt.Format(time.RFC3339Nano), desc.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: put agent: %w", err)
	}
	return nil
}

// Get retrieves a descriptor by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.AgentDescriptor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, instructions, tools, created_at, updated_at
		 FROM agents WHERE id = ?`, id)

	desc, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return model.AgentDescriptor{}, ErrNotFound
	}
	if err != nil {
		return model.AgentDescriptor{}, fmt.Errorf("store: get agent: %w", err)
	}
	return desc, nil
}

// List returns all descriptors, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]model.AgentDescriptor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, instructions, tools, created_at, updated_at
		 FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	defer rows.Close()

	var out []model.AgentDescriptor
	for rows.Next() {
		desc, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan agent: %w", err)
		}
		out = append(out, desc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	return out, nil
}

// Delete removes a descriptor.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete agent: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (model.AgentDescriptor, error) {
	var (
		desc                 model.AgentDescriptor
		typ, tools           string
		createdAt, updatedAt string
	)
	if err := row.Scan(&desc.ID, &desc.Name, &typ, &desc.Instructions, &tools, &createdAt, &updatedAt); err != nil {
		return model.AgentDescriptor{}, err
	}
	desc.Type = model.AgentType(typ)
	if err := json.Unmarshal([]byte(tools), &desc.Tools); err != nil {
		return model.AgentDescriptor{}, fmt.Errorf("decode tools: %w", err)
	}
	var err error
	if desc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return model.AgentDescriptor{}, fmt.Errorf("parse created_at: %w", err)
	}
	if desc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return model.AgentDescriptor{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return desc, nil
}
