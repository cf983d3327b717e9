package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "b3-genetic-lab/internal/storage/clickhouse"
)

const chVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version     UInt32,
    name        String,
    applied_at  DateTime DEFAULT now()
) ENGINE = MergeTree ORDER BY version`

// RunClickhouseMigrations ensures the database exists and applies pending embedded migrations.
// Returns a ClickHouse connection to the target database for reuse.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	conn, _, err := ApplyClickhouse(ctx, dsn)
	return conn, err
}

// ApplyClickhouse is RunClickhouseMigrations that also returns the migrations applied.
// ClickHouse has no DDL transactions, so a failed file leaves its earlier
// statements applied and is retried on the next run. Migrations must be idempotent.
func ApplyClickhouse(ctx context.Context, dsn string) (*chstore.Conn, []Migration, error) {
	all, err := Load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, nil, err
	}
	for _, m := range all {
		if err := validateNoSemicolonInStrings(m.SQL); err != nil {
			return nil, nil, fmt.Errorf("validate migration %s: %w", m.Name, err)
		}
	}

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := ensureDatabase(ctx, dsn, dbName); err != nil {
		return nil, nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	pending, err := chApplyPending(ctx, conn, all)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, pending, nil
}

func ensureDatabase(ctx context.Context, dsn, dbName string) error {
	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer adminConn.Close()

	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

func chApplyPending(ctx context.Context, conn *chstore.Conn, all []Migration) ([]Migration, error) {
	if err := conn.Exec(ctx, chVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := conn.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var v uint32
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[int(v)] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	rows.Close()

	pending := Pending(all, applied)
	for _, m := range pending {
		// The driver does not support multiquery in Exec.
		for _, stmt := range splitStatements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
		if err := conn.Exec(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", uint32(m.Version), m.Name); err != nil {
			return nil, fmt.Errorf("record migration %s: %w", m.Name, err)
		}
	}
	return pending, nil
}

// splitStatements splits SQL content into statements by semicolon after
// dropping -- comment lines. It does not understand string literals or
// block comments; validateNoSemicolonInStrings guards the first case.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects SQL with a semicolon inside a single-quoted string.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++ // escaped ''
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
