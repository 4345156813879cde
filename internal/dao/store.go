// Package dao provides the generic record access layer and the
// per-table data access objects built on it. A Store binds one table
// to the shared pool; callers exchange Record maps keyed by column
// name, and every operation validates identifiers against the table's
// column allowlist before any SQL is assembled.
package dao

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/internal/metrics"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// DefaultBatchSize is the chunk size for BatchInsert when the caller
// passes zero.
const DefaultBatchSize = 500

// Store is the generic access layer for a single table.
type Store struct {
	pool  *db.Pool
	table string
	idCol string
	cols  map[string]struct{}
	log   *slog.Logger
}

// NewStore binds a table to the pool. columns is the full allowlist of
// column names the table exposes; anything outside it is rejected at
// statement-assembly time.
func NewStore(pool *db.Pool, log *slog.Logger, table, idCol string, columns []string) *Store {
	cols := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		cols[c] = struct{}{}
	}
	return &Store{
		pool:  pool,
		table: table,
		idCol: idCol,
		cols:  cols,
		log:   log.With("table", table),
	}
}

// Table returns the bound table name.
func (s *Store) Table() string { return s.table }

// IDColumn returns the bound primary-key column.
func (s *Store) IDColumn() string { return s.idCol }

// Insert writes one record and returns the generated primary key. The
// returned value is int64 for serial keys and string for text keys.
func (s *Store) Insert(ctx context.Context, rec types.Record) (any, error) {
	defer metrics.Observe(s.table, "insert", time.Now())
	query, args, err := s.buildInsert(rec)
	if err != nil {
		return nil, err
	}
	var id any
	err = s.pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, query, args...).Scan(&id)
	})
	if err != nil {
		s.log.Error("insert failed", "error", err)
		return nil, fmt.Errorf("insert into %s: %w", s.table, err)
	}
	return normalizeValue(id), nil
}

// InsertID is Insert for tables with integer primary keys.
func (s *Store) InsertID(ctx context.Context, rec types.Record) (int64, error) {
	raw, err := s.Insert(ctx, rec)
	if err != nil {
		return 0, err
	}
	id, ok := types.AsInt64(raw)
	if !ok {
		return 0, fmt.Errorf("insert into %s: non-integer key %T", s.table, raw)
	}
	return id, nil
}

// BatchInsert writes records in chunks of batchSize (DefaultBatchSize
// when zero) and returns the number of rows actually inserted. When a
// chunk fails, it is retried row by row on fresh connections; rows
// that still fail are logged, counted, and skipped rather than
// aborting the batch. onConflict, when non-empty, is appended to each
// statement after ON CONFLICT (for example "DO NOTHING").
func (s *Store) BatchInsert(ctx context.Context, recs []types.Record, batchSize int, onConflict string) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	defer metrics.Observe(s.table, "batch_insert", time.Now())
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	cols := sortedKeys(recs[0])
	if err := s.checkColumns(cols); err != nil {
		return 0, err
	}

	var inserted int64
	for start := 0; start < len(recs); start += batchSize {
		end := start + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		chunk := recs[start:end]

		n, err := s.insertChunk(ctx, cols, chunk, onConflict)
		if err == nil {
			inserted += n
			continue
		}
		if len(chunk) == 1 {
			s.log.Error("batch insert failed", "rows", 1, "error", err)
			return inserted, fmt.Errorf("batch insert into %s: %w", s.table, err)
		}
		s.log.Warn("chunk insert failed, retrying row by row",
			"rows", len(chunk), "error", err)
		inserted += s.insertRowByRow(ctx, cols, chunk, onConflict)
	}
	s.log.Info("batch insert complete", "requested", len(recs), "inserted", inserted)
	return inserted, nil
}

func (s *Store) insertChunk(ctx context.Context, cols []string, chunk []types.Record, onConflict string) (int64, error) {
	query, args := s.buildBatchInsert(cols, chunk, onConflict)
	var n int64
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		ct, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		n = ct.RowsAffected()
		return nil
	})
	return n, err
}

// insertRowByRow is the degraded path after a chunk failure. Each row
// runs in its own implicit transaction so one bad row cannot poison
// its neighbors.
func (s *Store) insertRowByRow(ctx context.Context, cols []string, chunk []types.Record, onConflict string) int64 {
	var inserted int64
	for i, rec := range chunk {
		n, err := s.insertChunk(ctx, cols, chunk[i:i+1], onConflict)
		if err != nil {
			metrics.BatchInsertFailure(s.table)
			s.log.Warn("row insert failed, skipping",
				"row", i, "id_hint", rec[s.idCol], "error", err)
			continue
		}
		inserted += n
	}
	return inserted
}

// GetByID fetches one record by primary key. Absence is
// types.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id any) (types.Record, error) {
	defer metrics.Observe(s.table, "get_by_id", time.Now())
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", s.table, s.idCol)
	recs, err := s.queryRecords(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get %s by id: %w", s.table, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s %v", types.ErrNotFound, s.table, id)
	}
	return recs[0], nil
}

// GetAll lists records with optional ordering and pagination.
func (s *Store) GetAll(ctx context.Context, opts types.ListOptions) ([]types.Record, error) {
	defer metrics.Observe(s.table, "get_all", time.Now())
	query, args, err := s.buildSelect(nil, opts)
	if err != nil {
		return nil, err
	}
	recs, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table, err)
	}
	return recs, nil
}

// FindBy lists records matching all criteria by equality. Empty
// criteria behaves like GetAll.
func (s *Store) FindBy(ctx context.Context, criteria types.Record, opts types.ListOptions) ([]types.Record, error) {
	defer metrics.Observe(s.table, "find_by", time.Now())
	query, args, err := s.buildSelect(criteria, opts)
	if err != nil {
		return nil, err
	}
	recs, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", s.table, err)
	}
	return recs, nil
}

// Update sets the given fields on the record with the given primary
// key and reports whether a row changed. An empty field map is a no-op
// that never reaches the database.
func (s *Store) Update(ctx context.Context, id any, fields types.Record) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	defer metrics.Observe(s.table, "update", time.Now())
	query, args, err := s.buildUpdate(id, fields)
	if err != nil {
		return false, err
	}
	var affected int64
	err = s.pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		ct, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		s.log.Error("update failed", "id", id, "error", err)
		return false, fmt.Errorf("update %s: %w", s.table, err)
	}
	return affected > 0, nil
}

// Delete removes the record with the given primary key and reports
// whether a row was removed.
func (s *Store) Delete(ctx context.Context, id any) (bool, error) {
	defer metrics.Observe(s.table, "delete", time.Now())
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", s.table, s.idCol)
	var affected int64
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		ct, err := conn.Exec(ctx, query, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		s.log.Error("delete failed", "id", id, "error", err)
		return false, fmt.Errorf("delete from %s: %w", s.table, err)
	}
	return affected > 0, nil
}

// ExecQuery runs an arbitrary parameterized statement. Statements
// beginning with SELECT or WITH return rows; anything else returns the
// affected-row count with a nil row slice.
func (s *Store) ExecQuery(ctx context.Context, query string, args ...any) ([]types.Record, int64, error) {
	defer metrics.Observe(s.table, "exec_query", time.Now())
	if isReadStatement(query) {
		recs, err := s.queryRecords(ctx, query, args...)
		if err != nil {
			return nil, 0, fmt.Errorf("query %s: %w", s.table, err)
		}
		return recs, 0, nil
	}
	var affected int64
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		ct, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("exec on %s: %w", s.table, err)
	}
	return nil, affected, nil
}

// InTx runs fn inside a single transaction on the shared pool.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return s.pool.WithTx(ctx, fn)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]types.Record, error) {
	var recs []types.Record
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		recs, err = CollectRecords(rows)
		return err
	})
	return recs, err
}

// CollectRecords drains rows into column-keyed Record maps,
// normalizing driver-specific values along the way.
func CollectRecords(rows pgx.Rows) ([]types.Record, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	var recs []types.Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(types.Record, len(fields))
		for i, f := range fields {
			rec[f.Name] = normalizeValue(vals[i])
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// normalizeValue maps pgx wire values onto plain Go types so Record
// consumers never see pgtype wrappers. DECIMAL columns arrive as
// pgtype.Numeric and are converted to float64, which covers the
// measurement ranges this schema stores.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case pgtype.Numeric:
		if !n.Valid {
			return nil
		}
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case *big.Int:
		return n.Int64()
	default:
		return v
	}
}
