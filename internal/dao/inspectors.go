package dao

import (
	"context"
	"log/slog"
	"time"

	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// Inspectors accesses inspector records and their laboratory grants.
type Inspectors struct {
	*Store
	access *Store
}

func NewInspectors(pool *db.Pool, log *slog.Logger) *Inspectors {
	return &Inspectors{
		Store:  NewStore(pool, log, types.TableInspectors, types.IDInspectors, types.InspectorColumns),
		access: NewStore(pool, log, types.TableLabAccess, types.IDLabAccess, types.LabAccessColumns),
	}
}

// Access exposes the grants table for callers that need the generic
// operations directly.
func (d *Inspectors) Access() *Store { return d.access }

// Add inserts an inspector, defaulting is_active to true.
func (d *Inspectors) Add(ctx context.Context, rec types.Record) (int64, error) {
	if _, ok := rec["is_active"]; !ok {
		rec["is_active"] = true
	}
	return d.InsertID(ctx, rec)
}

// GetByEmployeeNo fetches an inspector by the unique employee number.
func (d *Inspectors) GetByEmployeeNo(ctx context.Context, employeeNo string) (types.Record, error) {
	recs, err := d.FindBy(ctx, types.Record{"employee_no": employeeNo}, types.ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, types.ErrNotFound
	}
	return recs[0], nil
}

// Active lists inspectors currently on duty, ordered by name.
func (d *Inspectors) Active(ctx context.Context, opts types.ListOptions) ([]types.Record, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "name ASC"
	}
	return d.FindBy(ctx, types.Record{"is_active": true}, opts)
}

// FindByDepartment lists active inspectors of one department.
func (d *Inspectors) FindByDepartment(ctx context.Context, department string, opts types.ListOptions) ([]types.Record, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "name ASC"
	}
	return d.FindBy(ctx, types.Record{"department": department, "is_active": true}, opts)
}

// Detail fetches an inspector with laboratory grants and work
// statistics merged in.
func (d *Inspectors) Detail(ctx context.Context, inspectorID int64) (types.Record, error) {
	inspector, err := d.GetByID(ctx, inspectorID)
	if err != nil {
		return nil, err
	}
	grants, _, err := d.ExecQuery(ctx, `
		SELECT la.*, l.lab_name, l.lab_code
		FROM inspector_lab_access la
		JOIN laboratories l ON la.lab_id = l.lab_id
		WHERE la.inspector_id = $1`, inspectorID)
	if err != nil {
		return nil, err
	}
	inspector["lab_access"] = grants

	stats, err := d.Stats(ctx, inspectorID)
	if err != nil {
		return nil, err
	}
	for k, v := range stats {
		inspector[k] = v
	}
	return inspector, nil
}

// GrantLabAccess gives an inspector access to a laboratory, raising
// the level in place if a grant already exists.
func (d *Inspectors) GrantLabAccess(ctx context.Context, inspectorID, labID int64, accessLevel string) error {
	if accessLevel == "" {
		accessLevel = types.AccessNormal
	}
	_, _, err := d.ExecQuery(ctx, `
		INSERT INTO inspector_lab_access (inspector_id, lab_id, access_level, granted_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT uq_access_inspector_lab DO UPDATE
		SET access_level = EXCLUDED.access_level`,
		inspectorID, labID, accessLevel, time.Now())
	return err
}

// RevokeLabAccess removes a grant and reports whether one existed.
func (d *Inspectors) RevokeLabAccess(ctx context.Context, inspectorID, labID int64) (bool, error) {
	_, affected, err := d.ExecQuery(ctx, `
		DELETE FROM inspector_lab_access
		WHERE inspector_id = $1 AND lab_id = $2`, inspectorID, labID)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AccessibleLabs lists the laboratories an inspector may enter, each
// carrying the grant level and date.
func (d *Inspectors) AccessibleLabs(ctx context.Context, inspectorID int64) ([]types.Record, error) {
	recs, _, err := d.ExecQuery(ctx, `
		SELECT l.*, la.access_level, la.granted_date
		FROM laboratories l
		JOIN inspector_lab_access la ON l.lab_id = la.lab_id
		WHERE la.inspector_id = $1
		ORDER BY l.lab_name`, inspectorID)
	return recs, err
}

// ByLab lists active inspectors holding a grant on a laboratory.
func (d *Inspectors) ByLab(ctx context.Context, labID int64, limit, offset int) ([]types.Record, error) {
	recs, _, err := d.ExecQuery(ctx, `
		SELECT i.*, la.access_level, la.granted_date
		FROM inspectors i
		JOIN inspector_lab_access la ON i.inspector_id = la.inspector_id
		WHERE la.lab_id = $1 AND i.is_active = TRUE
		ORDER BY i.name
		LIMIT $2 OFFSET $3`, labID, limit, offset)
	return recs, err
}

// Stats aggregates an inspector's conversation and experiment
// activity into one record.
func (d *Inspectors) Stats(ctx context.Context, inspectorID int64) (types.Record, error) {
	conv, _, err := d.ExecQuery(ctx, `
		SELECT COUNT(DISTINCT conversation_id) AS conversation_count,
		       COALESCE(SUM(total_messages), 0) AS total_messages,
		       MAX(start_time) AS last_conversation_time
		FROM conversations
		WHERE inspector_id = $1`, inspectorID)
	if err != nil {
		return nil, err
	}
	exp, _, err := d.ExecQuery(ctx, `
		SELECT COUNT(*) AS experiment_count,
		       COUNT(CASE WHEN result = '合格' THEN 1 END) AS passed_experiments,
		       COUNT(CASE WHEN status = '进行中' THEN 1 END) AS ongoing_experiments,
		       MAX(experiment_date) AS last_experiment_date
		FROM experiment_records
		WHERE inspector_id = $1`, inspectorID)
	if err != nil {
		return nil, err
	}
	stats := types.Record{}
	if len(conv) > 0 {
		for k, v := range conv[0] {
			stats[k] = v
		}
	}
	if len(exp) > 0 {
		for k, v := range exp[0] {
			stats[k] = v
		}
	}
	return stats, nil
}
