package dao

import (
	"context"
	"log/slog"

	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// Laboratories accesses testing laboratories.
type Laboratories struct {
	*Store
}

func NewLaboratories(pool *db.Pool, log *slog.Logger) *Laboratories {
	return &Laboratories{NewStore(pool, log, types.TableLaboratories, types.IDLaboratories, types.LaboratoryColumns)}
}

// GetByCode fetches a laboratory by its unique code.
func (d *Laboratories) GetByCode(ctx context.Context, labCode string) (types.Record, error) {
	recs, err := d.FindBy(ctx, types.Record{"lab_code": labCode}, types.ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, types.ErrNotFound
	}
	return recs[0], nil
}

// UtilizationStats reports experiment volume per laboratory.
func (d *Laboratories) UtilizationStats(ctx context.Context) ([]types.Record, error) {
	query := `
		SELECT l.lab_id, l.lab_code, l.lab_name,
		       COUNT(e.experiment_id) AS experiment_count,
		       COUNT(CASE WHEN e.status = '进行中' THEN 1 END) AS ongoing_count
		FROM laboratories l
		LEFT JOIN experiment_records e ON e.lab_id = l.lab_id
		GROUP BY l.lab_id, l.lab_code, l.lab_name
		ORDER BY experiment_count DESC`
	recs, _, err := d.ExecQuery(ctx, query)
	return recs, err
}
