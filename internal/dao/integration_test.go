package dao

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaai/pharmadb/internal/config"
	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// setupDAOs connects to the test database, applies the schema, and
// empties all tables. Tests skip unless TEST_DB_HOST is set.
func setupDAOs(t *testing.T) *DAOs {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST not set; skipping integration test")
	}

	cfg, err := config.LoadTest()
	require.NoError(t, err)

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.ApplySchema(ctx))
	truncateAll(t, pool)
	return New(pool, slog.Default())
}

func truncateAll(t *testing.T, pool *db.Pool) {
	t.Helper()
	_, _, err := NewStore(pool, slog.Default(), types.TableItems, types.IDItems, types.ItemColumns).
		ExecQuery(context.Background(), `
			TRUNCATE pharmacopoeia_items, inspectors, laboratories,
			         inspector_lab_access, conversations, messages,
			         experiment_records, experiment_data_points, system_configs
			RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func addInspector(t *testing.T, daos *DAOs, employeeNo string) int64 {
	t.Helper()
	id, err := daos.Inspectors.Add(context.Background(), types.Record{
		"employee_no": employeeNo,
		"name":        "检验员" + employeeNo,
		"department":  "中药检验科",
	})
	require.NoError(t, err)
	return id
}

func addLab(t *testing.T, daos *DAOs, labCode string) int64 {
	t.Helper()
	id, err := daos.Laboratories.InsertID(context.Background(), types.Record{
		"lab_code": labCode,
		"lab_name": labCode + "实验室",
	})
	require.NoError(t, err)
	return id
}

func TestInsertAndGetByID(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	id, err := daos.Items.InsertID(ctx, types.Record{
		"volume":  1,
		"doc_id":  49155,
		"name_cn": "一枝黄花",
	})
	require.NoError(t, err)
	require.Positive(t, id)

	rec, err := daos.Items.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "一枝黄花", rec["name_cn"])
	v, _ := types.AsInt64(rec["volume"])
	assert.Equal(t, int64(1), v)

	_, err = daos.Items.GetByID(ctx, id+999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUniqueConstraintSurfacesAsViolation(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	addInspector(t, daos, "YJ2025001")
	_, err := daos.Inspectors.Add(ctx, types.Record{
		"employee_no": "YJ2025001",
		"name":        "重复工号",
	})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))
	assert.Equal(t, "uq_inspectors_employee_no", db.ConstraintName(err))
}

func TestUpdateAndDelete(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	id := addInspector(t, daos, "YJ2025002")

	changed, err := daos.Inspectors.Update(ctx, id, types.Record{"department": "质量管理科"})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = daos.Inspectors.Update(ctx, id+999, types.Record{"department": "x"})
	require.NoError(t, err)
	assert.False(t, changed)

	deleted, err := daos.Inspectors.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = daos.Inspectors.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestBatchInsertFallbackSkipsBadRows(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	addInspector(t, daos, "YJ2025010")

	recs := make([]types.Record, 0, 5)
	for i := 0; i < 5; i++ {
		no := fmt.Sprintf("YJ2025%03d", 11+i)
		if i == 2 {
			no = "YJ2025010" // collides with the pre-existing row
		}
		recs = append(recs, types.Record{"employee_no": no, "name": "批量" + no})
	}

	n, err := daos.Inspectors.BatchInsert(ctx, recs, 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	all, err := daos.Inspectors.GetAll(ctx, types.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestBatchInsertOnConflictDoNothing(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	recs := []types.Record{
		{"volume": 1, "doc_id": 100, "name_cn": "丁香"},
		{"volume": 1, "doc_id": 100, "name_cn": "丁香"},
		{"volume": 2, "doc_id": 100, "name_cn": "人参"},
	}
	n, err := daos.Items.BatchInsert(ctx, recs, 0, "ON CONSTRAINT uq_items_volume_doc DO NOTHING")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFindByAndOrdering(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	for i, dept := range []string{"中药检验科", "化学检验科", "中药检验科"} {
		_, err := daos.Inspectors.Add(ctx, types.Record{
			"employee_no": fmt.Sprintf("YJ2025%03d", 20+i),
			"name":        fmt.Sprintf("丙%d", i),
			"department":  dept,
		})
		require.NoError(t, err)
	}

	recs, err := daos.Inspectors.FindByDepartment(ctx, "中药检验科", types.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = daos.Inspectors.GetAll(ctx, types.ListOptions{OrderBy: "employee_no DESC", Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	no, _ := types.AsString(recs[0]["employee_no"])
	assert.Equal(t, "YJ2025022", no)
}

func TestExecQueryReadVersusWrite(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	id := addInspector(t, daos, "YJ2025030")

	recs, affected, err := daos.Inspectors.ExecQuery(ctx,
		"SELECT COUNT(*) AS n FROM inspectors")
	require.NoError(t, err)
	assert.Zero(t, affected)
	require.Len(t, recs, 1)
	n, _ := types.AsInt64(recs[0]["n"])
	assert.Equal(t, int64(1), n)

	recs, affected, err = daos.Inspectors.ExecQuery(ctx,
		"UPDATE inspectors SET is_active = FALSE WHERE inspector_id = $1", id)
	require.NoError(t, err)
	assert.Nil(t, recs)
	assert.Equal(t, int64(1), affected)
}

func TestGrantRevokeAndAccessibleLabs(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	inspectorID := addInspector(t, daos, "YJ2025040")
	labID := addLab(t, daos, "LAB001")

	require.NoError(t, daos.Inspectors.GrantLabAccess(ctx, inspectorID, labID, ""))
	labs, err := daos.Inspectors.AccessibleLabs(ctx, inspectorID)
	require.NoError(t, err)
	require.Len(t, labs, 1)
	level, _ := types.AsString(labs[0]["access_level"])
	assert.Equal(t, types.AccessNormal, level)

	// Re-granting upgrades in place instead of duplicating.
	require.NoError(t, daos.Inspectors.GrantLabAccess(ctx, inspectorID, labID, types.AccessAdmin))
	labs, err = daos.Inspectors.AccessibleLabs(ctx, inspectorID)
	require.NoError(t, err)
	require.Len(t, labs, 1)
	level, _ = types.AsString(labs[0]["access_level"])
	assert.Equal(t, types.AccessAdmin, level)

	revoked, err := daos.Inspectors.RevokeLabAccess(ctx, inspectorID, labID)
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = daos.Inspectors.RevokeLabAccess(ctx, inspectorID, labID)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestDataPointQualificationDerivation(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	inspectorID := addInspector(t, daos, "YJ2025050")
	labID := addLab(t, daos, "LAB002")
	itemID, err := daos.Items.InsertID(ctx, types.Record{"volume": 1, "doc_id": 200, "name_cn": "大黄"})
	require.NoError(t, err)

	experimentID, err := daos.Experiments.Create(ctx, types.Record{
		"inspector_id": inspectorID,
		"lab_id":       labID,
		"item_id":      itemID,
	})
	require.NoError(t, err)

	_, err = daos.Experiments.AddDataPoint(ctx, types.Record{
		"experiment_id":     experimentID,
		"measurement_type":  "含量",
		"measurement_value": 98.5,
		"standard_min":      90.0,
		"standard_max":      110.0,
	})
	require.NoError(t, err)

	points, err := daos.Experiments.DataPoints(ctx, experimentID)
	require.NoError(t, err)
	require.Len(t, points, 1)
	qualified, ok := types.AsBool(points[0]["is_qualified"])
	require.True(t, ok)
	assert.True(t, qualified)
	// DECIMAL columns come back as float64, not driver wrappers.
	value, ok := types.AsFloat64(points[0]["measurement_value"])
	require.True(t, ok)
	assert.InDelta(t, 98.5, value, 1e-9)
}

func TestConfigSetRespectsEditable(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	_, err := daos.Configs.Insert(ctx, types.Record{
		"config_key":   "session.timeout_minutes",
		"config_value": "30",
		"config_type":  "int",
		"category":     "session",
		"is_editable":  true,
	})
	require.NoError(t, err)
	_, err = daos.Configs.Insert(ctx, types.Record{
		"config_key":   "system.schema_version",
		"config_value": "1",
		"config_type":  "int",
		"category":     "system",
		"is_editable":  false,
	})
	require.NoError(t, err)

	updated, err := daos.Configs.Set(ctx, "session.timeout_minutes", "45", "admin")
	require.NoError(t, err)
	assert.True(t, updated)
	v, err := daos.Configs.Value(ctx, "session.timeout_minutes")
	require.NoError(t, err)
	assert.Equal(t, int64(45), v)

	// Non-editable entries are left alone.
	updated, err = daos.Configs.Set(ctx, "system.schema_version", "2", "admin")
	require.NoError(t, err)
	assert.False(t, updated)
	v, err = daos.Configs.Value(ctx, "system.schema_version")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestExperimentStatusCompletionStampsEndTime(t *testing.T) {
	daos := setupDAOs(t)
	ctx := context.Background()

	inspectorID := addInspector(t, daos, "YJ2025060")
	labID := addLab(t, daos, "LAB003")
	itemID, err := daos.Items.InsertID(ctx, types.Record{"volume": 2, "doc_id": 300, "name_cn": "甘草"})
	require.NoError(t, err)

	experimentID, err := daos.Experiments.Create(ctx, types.Record{
		"inspector_id": inspectorID,
		"lab_id":       labID,
		"item_id":      itemID,
	})
	require.NoError(t, err)

	rec, err := daos.Experiments.GetByID(ctx, experimentID)
	require.NoError(t, err)
	status, _ := types.AsString(rec["status"])
	assert.Equal(t, types.StatusInProgress, status)
	assert.Nil(t, rec["end_time"])

	changed, err := daos.Experiments.UpdateStatus(ctx, experimentID,
		types.StatusCompleted, types.ResultPass, "符合规定")
	require.NoError(t, err)
	assert.True(t, changed)

	rec, err = daos.Experiments.GetByID(ctx, experimentID)
	require.NoError(t, err)
	status, _ = types.AsString(rec["status"])
	assert.Equal(t, types.StatusCompleted, status)
	_, isTime := rec["end_time"].(time.Time)
	assert.True(t, isTime)
}
