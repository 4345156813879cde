package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaai/pharmadb/internal/config"
	"github.com/pharmaai/pharmadb/internal/dao"
	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

type testEnv struct {
	pool    *db.Pool
	daos    *dao.DAOs
	tx      *TxService
	queries *QueryService
}

// setupEnv connects to the test database and empties all tables.
// Tests skip unless TEST_DB_HOST is set.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST not set; skipping integration test")
	}

	cfg, err := config.LoadTest()
	require.NoError(t, err)

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	pool, err := db.Open(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.ApplySchema(ctx))
	daos := dao.New(pool, log)
	_, _, err = daos.Items.ExecQuery(ctx, `
		TRUNCATE pharmacopoeia_items, inspectors, laboratories,
		         inspector_lab_access, conversations, messages,
		         experiment_records, experiment_data_points, system_configs
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return &testEnv{
		pool:    pool,
		daos:    daos,
		tx:      NewTxService(pool, daos, log),
		queries: NewQueryService(pool, log),
	}
}

func (e *testEnv) seedInspector(t *testing.T, employeeNo string) int64 {
	t.Helper()
	id, err := e.daos.Inspectors.Add(context.Background(), types.Record{
		"employee_no": employeeNo,
		"name":        "检验员" + employeeNo,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) seedLab(t *testing.T, labCode string) int64 {
	t.Helper()
	id, err := e.daos.Laboratories.InsertID(context.Background(), types.Record{
		"lab_code": labCode,
		"lab_name": labCode + "实验室",
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) seedItem(t *testing.T, volume int, docID int64, nameCN string) int64 {
	t.Helper()
	id, err := e.daos.Items.InsertID(context.Background(), types.Record{
		"volume": volume, "doc_id": docID, "name_cn": nameCN,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) countRows(t *testing.T, table string) int64 {
	t.Helper()
	recs, _, err := e.daos.Items.ExecQuery(context.Background(), "SELECT COUNT(*) AS n FROM "+table)
	require.NoError(t, err)
	n, _ := types.AsInt64(recs[0]["n"])
	return n
}

func TestCreateExperimentWithDataPointsAtomicity(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	inspectorID := env.seedInspector(t, "YJ2025100")
	labID := env.seedLab(t, "LAB100")
	itemID := env.seedItem(t, 1, 1000, "黄芪")

	experiment := types.Record{
		"inspector_id": inspectorID,
		"lab_id":       labID,
		"item_id":      itemID,
	}
	// The second point violates NOT NULL on measurement_type, so the
	// experiment itself must not survive.
	badPoints := []types.Record{
		{"measurement_type": "含量", "measurement_value": 98.5},
		{"measurement_value": 50.0},
	}
	_, err := env.tx.CreateExperimentWithDataPoints(ctx, experiment, badPoints)
	require.Error(t, err)
	assert.Zero(t, env.countRows(t, types.TableExperiments))
	assert.Zero(t, env.countRows(t, types.TableDataPoints))

	goodPoints := []types.Record{
		{"measurement_type": "含量", "measurement_value": 98.5, "standard_min": 90.0, "standard_max": 110.0},
		{"measurement_type": "纯度", "measurement_value": 99.1, "standard_min": 95.0, "standard_max": 100.0},
	}
	experimentID, err := env.tx.CreateExperimentWithDataPoints(ctx, types.Record{
		"inspector_id": inspectorID,
		"lab_id":       labID,
		"item_id":      itemID,
	}, goodPoints)
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.countRows(t, types.TableExperiments))
	assert.Equal(t, int64(2), env.countRows(t, types.TableDataPoints))

	points, err := env.daos.Experiments.DataPoints(ctx, experimentID)
	require.NoError(t, err)
	for _, p := range points {
		qualified, ok := types.AsBool(p["is_qualified"])
		require.True(t, ok)
		assert.True(t, qualified)
	}
}

func TestBatchAppendMessagesReconcilesCounter(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	inspectorID := env.seedInspector(t, "YJ2025110")
	conversationID, err := env.daos.Conversations.Create(ctx, types.Record{
		"inspector_id":   inspectorID,
		"total_messages": 99, // drifted counter heals on append
	})
	require.NoError(t, err)

	msgs := []types.Record{
		{"message_seq": 1, "sender_type": types.SenderInspector, "message_text": "请问黄连如何检验？"},
		{"message_seq": 2, "sender_type": types.SenderSystem, "message_text": "按含量测定方法检验。"},
	}
	ids, err := env.tx.BatchAppendMessages(ctx, conversationID, msgs)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Less(t, ids[0], ids[1])

	rec, err := env.daos.Conversations.GetByID(ctx, conversationID)
	require.NoError(t, err)
	total, _ := types.AsInt64(rec["total_messages"])
	assert.Equal(t, int64(2), total)
	assert.NotNil(t, rec["last_message_at"])

	// A duplicate sequence rolls the whole batch back.
	dup := []types.Record{
		{"message_seq": 2, "sender_type": types.SenderInspector, "message_text": "重复序号"},
	}
	_, err = env.tx.BatchAppendMessages(ctx, conversationID, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))
	assert.Equal(t, int64(2), env.countRows(t, types.TableMessages))

	// Unknown conversation fails fast.
	_, err = env.tx.BatchAppendMessages(ctx, conversationID+999, msgs)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTransferLabAccess(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	fromID := env.seedInspector(t, "YJ2025120")
	toID := env.seedInspector(t, "YJ2025121")
	labA := env.seedLab(t, "LAB120")
	labB := env.seedLab(t, "LAB121")

	require.NoError(t, env.daos.Inspectors.GrantLabAccess(ctx, fromID, labA, types.AccessAdvanced))
	require.NoError(t, env.daos.Inspectors.GrantLabAccess(ctx, fromID, labB, types.AccessNormal))
	// Target already holds labA; the transfer must replace, not duplicate.
	require.NoError(t, env.daos.Inspectors.GrantLabAccess(ctx, toID, labA, types.AccessNormal))

	result, err := env.tx.TransferLabAccess(ctx, fromID, toID, []int64{labA, labB})
	require.NoError(t, err)
	assert.Equal(t, []int64{labA, labB}, result.LabIDs)

	fromLabs, err := env.daos.Inspectors.AccessibleLabs(ctx, fromID)
	require.NoError(t, err)
	assert.Empty(t, fromLabs)

	toLabs, err := env.daos.Inspectors.AccessibleLabs(ctx, toID)
	require.NoError(t, err)
	require.Len(t, toLabs, 2)
	// The transferred grant keeps its access level.
	byLab := map[int64]string{}
	for _, rec := range toLabs {
		id, _ := types.AsInt64(rec["lab_id"])
		level, _ := types.AsString(rec["access_level"])
		byLab[id] = level
	}
	assert.Equal(t, types.AccessAdvanced, byLab[labA])
	assert.Equal(t, types.AccessNormal, byLab[labB])
}

func TestTransferLabAccessFailsFast(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	fromID := env.seedInspector(t, "YJ2025130")
	toID := env.seedInspector(t, "YJ2025131")
	labA := env.seedLab(t, "LAB130")
	labB := env.seedLab(t, "LAB131")

	// Source holds only labA; asking for both must move nothing.
	require.NoError(t, env.daos.Inspectors.GrantLabAccess(ctx, fromID, labA, types.AccessNormal))

	_, err := env.tx.TransferLabAccess(ctx, fromID, toID, []int64{labA, labB})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds no grant")

	fromLabs, err := env.daos.Inspectors.AccessibleLabs(ctx, fromID)
	require.NoError(t, err)
	assert.Len(t, fromLabs, 1)
	toLabs, err := env.daos.Inspectors.AccessibleLabs(ctx, toID)
	require.NoError(t, err)
	assert.Empty(t, toLabs)

	// Unknown inspector or lab also aborts.
	_, err = env.tx.TransferLabAccess(ctx, fromID, toID+999, []int64{labA})
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = env.tx.TransferLabAccess(ctx, fromID, toID, []int64{labB + 999})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

// TestTransactionIsolation verifies that a write inside an open
// transaction stays invisible to readers on other connections until
// commit, and becomes visible immediately after.
func TestTransactionIsolation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	findByNo := func(employeeNo string) []types.Record {
		recs, err := env.daos.Inspectors.FindBy(ctx,
			types.Record{"employee_no": employeeNo}, types.ListOptions{})
		require.NoError(t, err)
		return recs
	}

	const employeeNo = "YJ2025140"
	err := env.pool.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			"INSERT INTO inspectors (employee_no, name) VALUES ($1, $2)",
			employeeNo, "未提交的检验员")
		require.NoError(t, err)

		// The DAO acquires its own connection, so this read runs
		// outside the transaction and must not see the row yet.
		assert.Empty(t, findByNo(employeeNo))
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, findByNo(employeeNo), 1)

	// A rolled-back write stays invisible for good.
	const rolledBack = "YJ2025141"
	sentinel := errors.New("abort")
	err = env.pool.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			"INSERT INTO inspectors (employee_no, name) VALUES ($1, $2)",
			rolledBack, "回滚的检验员")
		require.NoError(t, err)
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Empty(t, findByNo(rolledBack))
}

// TestReconfigureConcurrentWithReads swaps the pool while readers are
// active; readers either finish on the old pool or fail cleanly, and
// the config snapshot always matches one of the two states.
func TestReconfigureConcurrentWithReads(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	cfg := env.pool.Config()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_, _ = env.daos.Inspectors.GetAll(ctx, types.ListOptions{Limit: 1})
			_ = env.pool.Config().Redacted()
		}
	}()
	for i := 0; i < 3; i++ {
		require.NoError(t, env.pool.Reconfigure(ctx, cfg))
	}
	<-done

	assert.Equal(t, cfg.Database, env.pool.Config().Database)
	require.NoError(t, env.pool.Ping(ctx))
}

// TestInspectionWorkflow walks the full demo scenario: one inspector,
// one laboratory, one pharmacopoeia entry, a consultation session, and
// an experiment whose measurement qualifies against its standard range.
func TestInspectionWorkflow(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	inspectorID := env.seedInspector(t, "YJ2025001")
	labID := env.seedLab(t, "LAB001")
	itemID := env.seedItem(t, 1, 49155, "一枝黄花")

	require.NoError(t, env.daos.Inspectors.GrantLabAccess(ctx, inspectorID, labID, types.AccessNormal))

	conversationID, err := env.daos.Conversations.Create(ctx, types.Record{
		"inspector_id":  inspectorID,
		"context_topic": "一枝黄花检验方法",
	})
	require.NoError(t, err)
	_, err = env.tx.BatchAppendMessages(ctx, conversationID, []types.Record{
		{"message_seq": 1, "sender_type": types.SenderInspector,
			"message_text": "一枝黄花的含量测定标准是多少？", "referenced_item_id": itemID},
		{"message_seq": 2, "sender_type": types.SenderSystem,
			"message_text": "标准范围为90至110。", "referenced_item_id": itemID},
	})
	require.NoError(t, err)

	experimentID, err := env.tx.CreateExperimentWithDataPoints(ctx,
		types.Record{
			"inspector_id": inspectorID,
			"lab_id":       labID,
			"item_id":      itemID,
		},
		[]types.Record{{
			"measurement_type":  "含量",
			"measurement_value": 98.5,
			"standard_min":      90.0,
			"standard_max":      110.0,
		}})
	require.NoError(t, err)

	detail, err := env.queries.ExperimentWithDetails(ctx, experimentID)
	require.NoError(t, err)
	assert.Equal(t, "检验员YJ2025001", detail["inspector_name"])
	assert.Equal(t, "LAB001", detail["lab_code"])
	assert.Equal(t, "一枝黄花", detail["item_name"])
	assert.Equal(t, 100.0, detail["qualification_rate"])

	points, ok := detail["data_points"].([]types.Record)
	require.True(t, ok)
	require.Len(t, points, 1)
	qualified, ok := types.AsBool(points[0]["is_qualified"])
	require.True(t, ok)
	assert.True(t, qualified)

	sessions, err := env.queries.InspectorConversationsWithItems(ctx, inspectorID,
		time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "一枝黄花", sessions[0]["referenced_items"])
	assert.Equal(t, []int64{itemID}, sessions[0]["item_ids"])

	stats, err := env.queries.LaboratoryExperimentStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	total, _ := types.AsInt64(stats[0]["total_experiments"])
	assert.Equal(t, int64(1), total)
}
