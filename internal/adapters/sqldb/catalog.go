package sqldb

import (
	"context"
	"fmt"

	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/ports"
)

// Catalog reads table and column metadata from the backend's own
// introspection surface. It never caches: the agent must see DDL applied
// by other clients between runs.
type Catalog struct {
	db *DB
}

func NewCatalog(db *DB) *Catalog {
	return &Catalog{db: db}
}

var _ ports.SchemaCatalog = (*Catalog)(nil)

func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	var query string
	switch c.db.Dialect {
	case DialectSQLite:
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case DialectPostgres:
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`
	default:
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name`
	}

	rows, err := c.db.SQL.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (c *Catalog) Describe(ctx context.Context, table string) ([]ports.Column, error) {
	var (
		cols []ports.Column
		err  error
	)
	if c.db.Dialect == DialectSQLite {
		cols, err = c.describeSQLite(ctx, table)
	} else {
		cols, err = c.describeInformationSchema(ctx, table)
	}
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrTableNotFound, table)
	}
	return cols, nil
}

func (c *Catalog) describeSQLite(ctx context.Context, table string) ([]ports.Column, error) {
	rows, err := c.db.SQL.QueryContext(ctx, `SELECT name, type, "notnull" FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ports.Column
	for rows.Next() {
		var (
			col     ports.Column
			notNull int
		)
		if err := rows.Scan(&col.Name, &col.Type, &notNull); err != nil {
			return nil, err
		}
		col.Nullable = notNull == 0
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *Catalog) describeInformationSchema(ctx context.Context, table string) ([]ports.Column, error) {
	schema := "main"
	if c.db.Dialect == DialectPostgres {
		schema = "public"
	}
	query := c.db.bind(`SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`)

	rows, err := c.db.SQL.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ports.Column
	for rows.Next() {
		var (
			col      ports.Column
			nullable string
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		cols = append(cols, col)
	}
	return cols, rows.Err()
}
