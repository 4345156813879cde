package db

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func pgErr(code, constraint string) error {
	return &pgconn.PgError{Code: code, ConstraintName: constraint}
}

func TestIsUniqueViolation(t *testing.T) {
	err := pgErr("23505", "uq_inspectors_employee_no")
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsConstraintViolation(err))
	assert.False(t, IsForeignKeyViolation(err))
	assert.Equal(t, "uq_inspectors_employee_no", ConstraintName(err))

	// Wrapped errors still classify.
	wrapped := fmt.Errorf("insert into inspectors: %w", err)
	assert.True(t, IsUniqueViolation(wrapped))
	assert.Equal(t, "uq_inspectors_employee_no", ConstraintName(wrapped))
}

func TestIsForeignKeyViolation(t *testing.T) {
	err := pgErr("23503", "experiment_records_inspector_id_fkey")
	assert.True(t, IsForeignKeyViolation(err))
	assert.True(t, IsConstraintViolation(err))
	assert.False(t, IsUniqueViolation(err))
}

func TestIsConstraintViolation(t *testing.T) {
	assert.True(t, IsConstraintViolation(pgErr("23502", "")))
	assert.True(t, IsConstraintViolation(pgErr("23514", "")))
	assert.False(t, IsConstraintViolation(pgErr("57014", "")))
	assert.False(t, IsConstraintViolation(nil))
	assert.False(t, IsConstraintViolation(assert.AnError))
	assert.Empty(t, ConstraintName(assert.AnError))
}
