package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

//go:embed indexes.sql
var indexesSQL string

// ApplySchema creates the tables if they do not exist.
func (p *Pool) ApplySchema(ctx context.Context) error {
	return p.applyScript(ctx, "schema", schemaSQL)
}

// ApplyIndexes creates the secondary indexes if they do not exist.
func (p *Pool) ApplyIndexes(ctx context.Context) error {
	return p.applyScript(ctx, "indexes", indexesSQL)
}

func (p *Pool) applyScript(ctx context.Context, name, script string) error {
	stmts := SplitStatements(script)
	err := p.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		for i, stmt := range stmts {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d/%d: %w", i+1, len(stmts), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	p.log.Info("applied SQL script", "script", name, "statements", len(stmts))
	return nil
}

// SplitStatements splits a DDL script into individual statements,
// dropping comment-only lines and blanks. Good enough for the embedded
// scripts, which contain no procedural bodies or string literals with
// semicolons.
func SplitStatements(script string) []string {
	var stmts []string
	for _, raw := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if idx := strings.Index(line, "--"); idx >= 0 {
				line = line[:idx]
			}
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
