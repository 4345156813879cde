package service

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// TableCount is one row of a database census.
type TableCount struct {
	Table string
	Rows  int64
}

// CountTables reports the row count of every application table, in
// schema order.
func CountTables(ctx context.Context, pool *db.Pool) ([]TableCount, error) {
	tables := []string{
		types.TableItems,
		types.TableInspectors,
		types.TableLaboratories,
		types.TableLabAccess,
		types.TableConversations,
		types.TableMessages,
		types.TableExperiments,
		types.TableDataPoints,
		types.TableSystemConfigs,
	}
	counts := make([]TableCount, 0, len(tables))
	err := pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		for _, table := range tables {
			var n int64
			if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
				return err
			}
			counts = append(counts, TableCount{Table: table, Rows: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
