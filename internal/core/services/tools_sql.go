package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/ports"
)

// maxObservationLen bounds tool output fed back into the prompt so one wide
// result set cannot blow the context window.
const maxObservationLen = 4096

// NewListTablesTool creates the table-listing tool.
func NewListTablesTool(catalog ports.SchemaCatalog) *domain.Tool {
	return &domain.Tool{
		Name:        "list_sql_database",
		Description: "Input is ignored. Returns a comma-separated list of all tables in the database.",
		Invoke: func(ctx context.Context, _ string) (string, error) {
			tables, err := catalog.ListTables(ctx)
			if err != nil {
				return "", fmt.Errorf("list tables: %w", err)
			}
			if len(tables) == 0 {
				return "(no tables)", nil
			}
			return strings.Join(tables, ", "), nil
		},
	}
}

// NewTableInfoTool creates the schema-inspection tool.
func NewTableInfoTool(catalog ports.SchemaCatalog) *domain.Tool {
	return &domain.Tool{
		Name:        "info_sql_database",
		Description: "Input is a comma-separated list of table names. Returns the columns and types of those tables. Use list_sql_database first to get valid table names.",
		Invoke: func(ctx context.Context, input string) (string, error) {
			names := splitTableNames(input)
			if len(names) == 0 {
				return "", fmt.Errorf("no table names given")
			}

			var b strings.Builder
			for i, name := range names {
				cols, err := catalog.Describe(ctx, name)
				if err != nil {
					return "", fmt.Errorf("table %q: %w", name, err)
				}
				if i > 0 {
					b.WriteString("\n")
				}
				fmt.Fprintf(&b, "%s:\n", name)
				for _, col := range cols {
					nullability := "NOT NULL"
					if col.Nullable {
						nullability = "NULL"
					}
					fmt.Fprintf(&b, "  %s %s %s\n", col.Name, col.Type, nullability)
				}
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

// NewQueryTool creates the SQL execution tool. Database errors are not tool
// failures: they come back as observation text enriched with a recovery
// hint, so the model can correct itself on the next turn.
func NewQueryTool(executor ports.QueryExecutor, advisor *ErrorRecoveryAdvisor, timeout time.Duration) *domain.Tool {
	return &domain.Tool{
		Name:        "query_sql_database",
		Description: "Input is a single syntactically correct SQL query. Returns the result rows, or an error message with a hint if the query fails. On error, rewrite the query and try again.",
		Invoke: func(ctx context.Context, input string) (string, error) {
			query := strings.TrimSpace(input)
			if query == "" {
				return "", fmt.Errorf("no query given")
			}

			execCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				execCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			rows, err := executor.Execute(execCtx, query)
			if err != nil {
				var dbErr *domain.DatabaseError
				if errors.As(err, &dbErr) {
					return fmt.Sprintf("Error: %s\nHint: %s", dbErr.Message, advisor.Advise(dbErr.Message)), nil
				}
				return "", err
			}

			if len(rows) == 0 {
				return "(no rows)", nil
			}
			out, err := json.Marshal(rows)
			if err != nil {
				return "", fmt.Errorf("encode rows: %w", err)
			}
			return truncateObservation(string(out)), nil
		},
	}
}

// NewValidateTool creates the advisory safety-check tool.
func NewValidateTool(validator *QueryValidator) *domain.Tool {
	return &domain.Tool{
		Name:        "validate_sql_query",
		Description: "Input is a SQL query. Checks it for destructive statements before execution and reports whether it is safe to run.",
		Invoke: func(_ context.Context, input string) (string, error) {
			verdict := validator.Validate(input)
			if verdict.Safe {
				return "The query is safe: no destructive statements found.", nil
			}
			return fmt.Sprintf("The query is unsafe: %s.", verdict.Reason), nil
		},
	}
}

// NewRecoverTool creates the error-remediation tool.
func NewRecoverTool(advisor *ErrorRecoveryAdvisor) *domain.Tool {
	return &domain.Tool{
		Name:        "recover_from_error",
		Description: "Input is a database error message. Returns a hint on how to fix the query that caused it.",
		Invoke: func(_ context.Context, input string) (string, error) {
			return advisor.Advise(input), nil
		},
	}
}

// RegisterSQLTools builds the standard five-tool registry for a SQL agent.
func RegisterSQLTools(reg *domain.ToolRegistry, catalog ports.SchemaCatalog, executor ports.QueryExecutor, validator *QueryValidator, advisor *ErrorRecoveryAdvisor, queryTimeout time.Duration) error {
	tools := []*domain.Tool{
		NewListTablesTool(catalog),
		NewTableInfoTool(catalog),
		NewQueryTool(executor, advisor, queryTimeout),
		NewValidateTool(validator),
		NewRecoverTool(advisor),
	}
	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func splitTableNames(input string) []string {
	var names []string
	for _, part := range strings.Split(input, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"'`)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func truncateObservation(s string) string {
	if len(s) > maxObservationLen {
		return s[:maxObservationLen] + "... (truncated)"
	}
	return s
}
