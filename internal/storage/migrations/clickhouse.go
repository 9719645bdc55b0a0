package migrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// ClickhouseConn is the part of a ClickHouse connection the runner uses.
type ClickhouseConn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

const createClickhouseVersions = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     UInt32,
		name        String,
		applied_at  DateTime64(3, 'UTC')
	)
	ENGINE = ReplacingMergeTree(applied_at)
	ORDER BY version
`

// RunClickhouseMigrations applies the embedded migrations missing from
// schema_migrations in the connection's database. ClickHouse has no
// transactions: a migration whose statements fail part way is retried from
// its first statement, so every statement must be idempotent (IF NOT EXISTS).
// It returns the number of migrations applied.
func RunClickhouseMigrations(ctx context.Context, conn ClickhouseConn, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	all, err := ClickhouseMigrations()
	if err != nil {
		return 0, err
	}
	if err := conn.Exec(ctx, createClickhouseVersions); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := clickhouseVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	todo := pending(all, applied)
	for i, m := range todo {
		if err := applyClickhouse(ctx, conn, m); err != nil {
			return i, fmt.Errorf("apply migration %s: %w", m.File(), err)
		}
		logger.Info("applied clickhouse migration",
			zap.Int("version", m.Version),
			zap.String("name", m.Name),
		)
	}

	logger.Debug("clickhouse schema up to date",
		zap.Int("applied", len(todo)),
		zap.Int("version", all[len(all)-1].Version),
	)
	return len(todo), nil
}

func clickhouseVersions(ctx context.Context, conn ClickhouseConn) (map[int]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations FINAL`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v uint32
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		applied[int(v)] = true
	}
	return applied, rows.Err()
}

func applyClickhouse(ctx context.Context, conn ClickhouseConn, m Migration) error {
	if err := validateNoSemicolonInStrings(m.SQL); err != nil {
		return err
	}
	// The driver runs one statement per Exec.
	for _, stmt := range splitStatements(m.SQL) {
		if err := conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return conn.Exec(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		uint32(m.Version), m.Name, time.Now().UTC(),
	)
}

// splitStatements splits a migration on semicolons after dropping blank and
// "--" comment lines. Migrations keep semicolons out of string literals and
// block comments; validateNoSemicolonInStrings enforces the first.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects SQL with a semicolon inside a
// single-quoted literal, which splitStatements would cut in two.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return fmt.Errorf("semicolon inside string literal at offset %d", i)
			}
		}
	}
	return nil
}
