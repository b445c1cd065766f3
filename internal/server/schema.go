package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables this service needs if they do not exist
// yet, then verifies the columns the runtime depends on are present.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS "ChatSession" (
			"sessionId" TEXT PRIMARY KEY,
			"userId" TEXT,
			"healthContextJson" JSONB NOT NULL DEFAULT '{}'::jsonb,
			"createdAt" TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			"updatedAt" TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS "ChatSession_userId_idx" ON "ChatSession" ("userId")`,
		`CREATE TABLE IF NOT EXISTS "ChatMessage" (
			id TEXT PRIMARY KEY,
			"sessionId" TEXT NOT NULL REFERENCES "ChatSession" ("sessionId") ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			"createdAt" TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS "ChatMessage_sessionId_createdAt_idx" ON "ChatMessage" ("sessionId", "createdAt")`,
		`CREATE TABLE IF NOT EXISTS "HealthProfile" (
			"userId" TEXT PRIMARY KEY,
			"basicInfoJson" JSONB NOT NULL DEFAULT '{}'::jsonb,
			"medicalHistoryJson" JSONB NOT NULL DEFAULT '{}'::jsonb,
			"lifestyleJson" JSONB NOT NULL DEFAULT '{}'::jsonb,
			"vitalSignsJson" JSONB NOT NULL DEFAULT '[]'::jsonb,
			"createdAt" TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			"updatedAt" TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	requiredColumns := []struct {
		table  string
		column string
	}{
		{table: "ChatSession", column: "healthContextJson"},
		{table: "ChatMessage", column: "createdAt"},
		{table: "HealthProfile", column: "vitalSignsJson"},
	}
	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, pool, item.table, item.column)
		if err != nil {
			return fmt.Errorf("failed checking schema for %s.%s: %w", item.table, item.column, err)
		}
		if !ok {
			return fmt.Errorf("required column %s.%s is missing", item.table, item.column)
		}
	}
	return nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
