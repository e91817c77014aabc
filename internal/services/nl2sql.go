package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Default driver behind the SQL-execution collaborator.
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"skald/internal/models"
	"skald/internal/wrapper"
)

// QueryExecutor is the SQL-execution collaborator consumed by the
// natural-language query operation.
type QueryExecutor interface {
	// Schema renders the table definitions the model plans queries against.
	Schema(ctx context.Context) (string, error)
	// Execute runs one query and renders the result set as text.
	Execute(ctx context.Context, query string) (string, error)
}

// maxQueryRows caps how much of a result set is fed back into the model.
const maxQueryRows = 200

// SQLExecutor implements QueryExecutor over database/sql.
type SQLExecutor struct {
	db     *sql.DB
	driver string
}

func NewSQLExecutor(driver, dsn string) (*SQLExecutor, error) {
	if driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported query driver %q (only sqlite3 is wired in)", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open query database: %w", err)
	}
	log.Infof("Query executor initialized (driver: %s)", driver)
	return &SQLExecutor{db: db, driver: driver}, nil
}

func (e *SQLExecutor) Close() error { return e.db.Close() }

func (e *SQLExecutor) Schema(ctx context.Context) (string, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT name, sql FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("reflect schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var name, ddl string
		if err := rows.Scan(&name, &ddl); err != nil {
			return "", fmt.Errorf("scan schema row: %w", err)
		}
		fmt.Fprintf(&b, "%s\n\n", ddl)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate schema rows: %w", err)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("database has no tables")
	}
	return b.String(), nil
}

func (e *SQLExecutor) Execute(ctx context.Context, query string) (string, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("read result columns: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))
	b.WriteString("\n")

	count := 0
	values := make([]sql.RawBytes, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	for rows.Next() {
		if count >= maxQueryRows {
			fmt.Fprintf(&b, "... (truncated at %d rows)\n", maxQueryRows)
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return "", fmt.Errorf("scan result row: %w", err)
		}
		fields := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				fields[i] = "NULL"
			} else {
				fields[i] = string(v)
			}
		}
		b.WriteString(strings.Join(fields, " | "))
		b.WriteString("\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate result rows: %w", err)
	}
	return b.String(), nil
}

// QueryData answers a natural-language question against a database: the
// model plans a SQL query inside [SQL]...[/SQL] markers, the executor runs
// it, and a second completion turns the rows into a human answer.
func (o *Operations) QueryData(executor QueryExecutor) wrapper.Operation {
	return func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		if executor == nil {
			return nil, fmt.Errorf("%w: no query database configured", models.ErrValidation)
		}
		question, err := o.textOf(in)
		if err != nil {
			return nil, err
		}

		schema, err := executor.Schema(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvocationFailure, err)
		}

		system := opts.Prompt
		if system == "" {
			system = fmt.Sprintf(
				"You are a helpful data assistant. Answer the user's question by generating one SQL query "+
					"against the schema below, wrapped exactly as [SQL]your query[/SQL]. If the question needs "+
					"no query, answer directly.\n\nDatabase schema:\n%s", schema)
		}
		model := o.model(opts)

		plan, err := o.complete(ctx, system, question, model)
		if err != nil {
			return nil, err
		}

		query := extractSQL(plan.Text)
		if query == "" {
			// The model answered without needing the database.
			return resultOf(plan), nil
		}

		resultText, err := executor.Execute(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvocationFailure, err)
		}

		answer, err := o.complete(ctx, system, fmt.Sprintf(
			"Question: %s\n\nQuery results:\n%s\n\nGive a clear, human answer to the question using these results.",
			question, resultText), model)
		if err != nil {
			return nil, err
		}

		return &wrapper.Result{
			Text:         answer.Text,
			Payload:      map[string]any{"sql": query, "results": resultText},
			Model:        model,
			InputTokens:  plan.InputTokens + answer.InputTokens,
			OutputTokens: plan.OutputTokens + answer.OutputTokens,
		}, nil
	}
}

// extractSQL pulls the query out of [SQL]...[/SQL] markers.
func extractSQL(text string) string {
	start := strings.Index(text, "[SQL]")
	if start < 0 {
		return ""
	}
	rest := text[start+len("[SQL]"):]
	end := strings.Index(rest, "[/SQL]")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
