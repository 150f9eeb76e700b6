package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"
)

const (
	DialectDuckDB   = "duckdb"
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DB wraps a sql.DB together with the dialect it speaks. The catalog needs
// the dialect to choose the right introspection queries; the stores need it
// for placeholder syntax.
type DB struct {
	SQL     *sql.DB
	Dialect string
}

// Open connects to a database by dialect name and verifies the connection.
// An empty DSN means an in-memory database for duckdb and sqlite; file
// paths get their parent directory created.
func Open(ctx context.Context, dialect, dsn string) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch dialect {
	case DialectDuckDB:
		ensureParentDir(dsn)
		db, err = sql.Open("duckdb", dsn)
	case DialectSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
		ensureParentDir(dsn)
		db, err = sql.Open("sqlite", dsn)
	case DialectPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect: %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// modernc's driver serializes writes per connection; a single
		// connection avoids SQLITE_BUSY under concurrent writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode = WAL;", "PRAGMA busy_timeout = 5000;"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply %q: %w", pragma, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	return &DB{SQL: db, Dialect: dialect}, nil
}

func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}

// bind rewrites ? placeholders into the $N form Postgres expects. DuckDB
// and SQLite take ? as-is.
func (d *DB) bind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func ensureParentDir(dsn string) {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
}
