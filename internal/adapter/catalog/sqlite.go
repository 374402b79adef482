package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"maestro/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agents (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL DEFAULT '',
	tools         TEXT NOT NULL DEFAULT '[]',
	slug          TEXT NOT NULL DEFAULT '',
	is_public     INTEGER NOT NULL DEFAULT 1,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_public ON agents(is_public);
`

// SQLiteCatalog persists agents in a local SQLite database. It serves both as
// a standalone catalog source and as the local mirror for the syncer.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

// Close releases the underlying database handle.
func (c *SQLiteCatalog) Close() error { return c.db.Close() }

// ListPublicAgents implements domain.CatalogProvider.
func (c *SQLiteCatalog) ListPublicAgents(ctx context.Context) ([]domain.AgentDescriptor, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, description, system_prompt, tools, slug
		 FROM agents WHERE is_public = 1 ORDER BY name`)
	if err != nil {
		return nil, domain.NewDomainError("SQLiteCatalog.ListPublicAgents", domain.ErrCatalogUnavailable, err.Error())
	}
	defer rows.Close()

	var agents []domain.AgentDescriptor
	for rows.Next() {
		desc, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *desc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDomainError("SQLiteCatalog.ListPublicAgents", domain.ErrCatalogUnavailable, err.Error())
	}
	return agents, nil
}

// GetAgentByID implements domain.AgentResolver.
func (c *SQLiteCatalog) GetAgentByID(ctx context.Context, id string) (*domain.AgentDescriptor, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, name, description, system_prompt, tools, slug
		 FROM agents WHERE id = ? AND is_public = 1`, id)

	desc, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewDomainError("SQLiteCatalog.GetAgentByID", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return desc, nil
}

// UpsertAgents writes the given agents, replacing existing rows by ID.
func (c *SQLiteCatalog) UpsertAgents(ctx context.Context, agents []domain.AgentDescriptor) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO agents (id, name, description, system_prompt, tools, slug, is_public, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			system_prompt = excluded.system_prompt,
			tools = excluded.tools,
			slug = excluded.slug,
			is_public = 1,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range agents {
		tools, err := json.Marshal(a.Tools)
		if err != nil {
			return fmt.Errorf("marshal tools for %s: %w", a.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, a.ID, a.Name, a.Description, a.SystemPrompt, string(tools), a.Slug, now); err != nil {
			return fmt.Errorf("upsert agent %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// ReplaceAll swaps the catalog contents for the given set in one transaction.
// Used by the syncer so removed remote agents disappear locally.
func (c *SQLiteCatalog) ReplaceAll(ctx context.Context, agents []domain.AgentDescriptor) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM agents`); err != nil {
		return fmt.Errorf("clear agents: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range agents {
		tools, err := json.Marshal(a.Tools)
		if err != nil {
			return fmt.Errorf("marshal tools for %s: %w", a.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agents (id, name, description, system_prompt, tools, slug, is_public, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
			a.ID, a.Name, a.Description, a.SystemPrompt, string(tools), a.Slug, now); err != nil {
			return fmt.Errorf("insert agent %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*domain.AgentDescriptor, error) {
	var desc domain.AgentDescriptor
	var tools string
	if err := row.Scan(&desc.ID, &desc.Name, &desc.Description, &desc.SystemPrompt, &tools, &desc.Slug); err != nil {
		return nil, err
	}
	if tools != "" {
		if err := json.Unmarshal([]byte(tools), &desc.Tools); err != nil {
			return nil, fmt.Errorf("decode tools for %s: %w", desc.ID, err)
		}
	}
	return &desc, nil
}

var (
	_ domain.CatalogProvider = (*SQLiteCatalog)(nil)
	_ domain.AgentResolver   = (*SQLiteCatalog)(nil)
)
