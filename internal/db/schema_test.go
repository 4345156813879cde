package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	script := `
-- leading comment
CREATE TABLE a (
    id SERIAL PRIMARY KEY -- trailing comment
);

-- between statements
CREATE INDEX idx_a ON a (id);
`
	stmts := SplitStatements(script)
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	assert.NotContains(t, stmts[0], "--")
	assert.Equal(t, "CREATE INDEX idx_a ON a (id)", stmts[1])
}

func TestSplitStatementsEmptyAndCommentOnly(t *testing.T) {
	assert.Empty(t, SplitStatements(""))
	assert.Empty(t, SplitStatements("-- only a comment\n\n;"))
}

func TestEmbeddedSchemaCoversAllTables(t *testing.T) {
	stmts := SplitStatements(schemaSQL)
	require.Len(t, stmts, 9)
	for _, stmt := range stmts {
		assert.True(t, strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS"), stmt)
	}

	for _, table := range []string{
		"pharmacopoeia_items", "inspectors", "laboratories",
		"inspector_lab_access", "conversations", "messages",
		"experiment_records", "experiment_data_points", "system_configs",
	} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestEmbeddedIndexesAreIdempotent(t *testing.T) {
	for _, stmt := range SplitStatements(indexesSQL) {
		assert.True(t, strings.HasPrefix(stmt, "CREATE INDEX IF NOT EXISTS"), stmt)
	}
}
