package dao

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// Experiments accesses experiment records and their data points.
type Experiments struct {
	*Store
	points *Store
}

func NewExperiments(pool *db.Pool, log *slog.Logger) *Experiments {
	return &Experiments{
		Store:  NewStore(pool, log, types.TableExperiments, types.IDExperiments, types.ExperimentColumns),
		points: NewStore(pool, log, types.TableDataPoints, types.IDDataPoints, types.DataPointColumns),
	}
}

// Points exposes the data-point table for callers that need the
// generic operations directly.
func (d *Experiments) Points() *Store { return d.points }

// NewExperimentNo mints an experiment number in the EXP<HEX10> form.
func NewExperimentNo() string {
	id := uuid.New()
	return "EXP" + strings.ToUpper(hex.EncodeToString(id[:])[:10])
}

// fillExperimentDefaults sets experiment_no, experiment_date, and
// status on records that lack them.
func fillExperimentDefaults(rec types.Record) {
	if _, ok := rec["experiment_no"]; !ok {
		rec["experiment_no"] = NewExperimentNo()
	}
	if _, ok := rec["experiment_date"]; !ok {
		rec["experiment_date"] = time.Now()
	}
	if _, ok := rec["status"]; !ok {
		rec["status"] = types.StatusInProgress
	}
}

// Create inserts one experiment with defaults filled.
func (d *Experiments) Create(ctx context.Context, rec types.Record) (int64, error) {
	fillExperimentDefaults(rec)
	return d.InsertID(ctx, rec)
}

// CreateWithDataPoints inserts an experiment and its data points in
// one transaction. Either everything lands or nothing does.
func (d *Experiments) CreateWithDataPoints(ctx context.Context, experiment types.Record, points []types.Record) (int64, error) {
	fillExperimentDefaults(experiment)
	query, args, err := d.buildInsert(experiment)
	if err != nil {
		return 0, err
	}

	var experimentID int64
	err = d.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query, args...).Scan(&experimentID); err != nil {
			return fmt.Errorf("insert experiment: %w", err)
		}
		now := time.Now()
		for i, point := range points {
			point["experiment_id"] = experimentID
			if _, ok := point["measurement_time"]; !ok {
				point["measurement_time"] = now
			}
			pq, pargs, err := d.points.buildInsert(point)
			if err != nil {
				return err
			}
			var pointID int64
			if err := tx.QueryRow(ctx, pq, pargs...).Scan(&pointID); err != nil {
				return fmt.Errorf("insert data point %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return experimentID, nil
}

// AddDataPoint inserts a data point, deriving is_qualified from the
// standard range when the caller left it unset.
func (d *Experiments) AddDataPoint(ctx context.Context, rec types.Record) (int64, error) {
	if _, ok := rec["measurement_time"]; !ok {
		rec["measurement_time"] = time.Now()
	}
	if _, ok := rec["is_qualified"]; !ok {
		if q, ok := DeriveQualified(rec); ok {
			rec["is_qualified"] = q
		}
	}
	return d.points.InsertID(ctx, rec)
}

// DeriveQualified judges a data-point record against its standard
// range. The second result is false when the record has no
// measurement value or no range to judge against.
func DeriveQualified(rec types.Record) (bool, bool) {
	value, ok := types.AsFloat64(rec["measurement_value"])
	if !ok {
		return false, false
	}
	var min, max *float64
	if v, ok := types.AsFloat64(rec["standard_min"]); ok {
		min = &v
	}
	if v, ok := types.AsFloat64(rec["standard_max"]); ok {
		max = &v
	}
	return types.DeriveQualified(value, min, max)
}

// ByInspector lists an inspector's experiments, newest first.
func (d *Experiments) ByInspector(ctx context.Context, inspectorID int64, opts types.ListOptions) ([]types.Record, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "experiment_date DESC"
	}
	return d.FindBy(ctx, types.Record{"inspector_id": inspectorID}, opts)
}

// ByItem lists experiments on one pharmacopoeia entry.
func (d *Experiments) ByItem(ctx context.Context, itemID int64, opts types.ListOptions) ([]types.Record, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "experiment_date DESC"
	}
	return d.FindBy(ctx, types.Record{"item_id": itemID}, opts)
}

// FindByDateRange lists experiments in the date range, optionally
// restricted by inspector and laboratory (zero means all).
func (d *Experiments) FindByDateRange(ctx context.Context, from, to time.Time, inspectorID, labID int64, limit, offset int) ([]types.Record, error) {
	query := "SELECT * FROM experiment_records WHERE experiment_date BETWEEN $1 AND $2"
	args := []any{from, to}
	if inspectorID > 0 {
		args = append(args, inspectorID)
		query += fmt.Sprintf(" AND inspector_id = $%d", len(args))
	}
	if labID > 0 {
		args = append(args, labID)
		query += fmt.Sprintf(" AND lab_id = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY experiment_date DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	recs, _, err := d.ExecQuery(ctx, query, args...)
	return recs, err
}

// FindByStatus lists experiments in one status.
func (d *Experiments) FindByStatus(ctx context.Context, status string, opts types.ListOptions) ([]types.Record, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "experiment_date DESC"
	}
	return d.FindBy(ctx, types.Record{"status": status}, opts)
}

// UpdateStatus moves an experiment to a new status, optionally
// recording result and conclusion. Completing an experiment stamps
// end_time if the caller did not supply one.
func (d *Experiments) UpdateStatus(ctx context.Context, experimentID int64, status, result, conclusion string) (bool, error) {
	fields := types.Record{"status": status}
	if result != "" {
		fields["result"] = result
	}
	if conclusion != "" {
		fields["conclusion"] = conclusion
	}
	if status == types.StatusCompleted {
		fields["end_time"] = time.Now()
	}
	return d.Update(ctx, experimentID, fields)
}

// DataPoints lists an experiment's measurements in recorded order.
func (d *Experiments) DataPoints(ctx context.Context, experimentID int64) ([]types.Record, error) {
	return d.points.FindBy(ctx, types.Record{"experiment_id": experimentID},
		types.ListOptions{OrderBy: "measurement_time ASC"})
}

// WithDetails fetches an experiment joined with its inspector,
// laboratory, and pharmacopoeia entry, plus all data points.
func (d *Experiments) WithDetails(ctx context.Context, experimentID int64) (types.Record, error) {
	recs, _, err := d.ExecQuery(ctx, `
		SELECT e.*,
		       i.name AS inspector_name, i.employee_no,
		       l.lab_name, l.lab_code,
		       p.name_cn AS item_name, p.volume, p.doc_id
		FROM experiment_records e
		JOIN inspectors i ON e.inspector_id = i.inspector_id
		JOIN laboratories l ON e.lab_id = l.lab_id
		JOIN pharmacopoeia_items p ON e.item_id = p.item_id
		WHERE e.experiment_id = $1`, experimentID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: experiment %d", types.ErrNotFound, experimentID)
	}
	detail := recs[0]
	points, err := d.DataPoints(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	detail["data_points"] = points
	return detail, nil
}
