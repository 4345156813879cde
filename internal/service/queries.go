package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaai/pharmadb/internal/dao"
	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// QueryService runs the cross-table reporting queries. Results come
// back as column-keyed records with derived rates computed in Go, so
// callers never see NULL aggregates.
type QueryService struct {
	pool *db.Pool
	log  *slog.Logger
}

// NewQueryService builds the reporting service.
func NewQueryService(pool *db.Pool, log *slog.Logger) *QueryService {
	return &QueryService{pool: pool, log: log.With("component", "query_service")}
}

func (s *QueryService) query(ctx context.Context, query string, args ...any) ([]types.Record, error) {
	var recs []types.Record
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		recs, err = dao.CollectRecords(rows)
		return err
	})
	if err != nil {
		s.log.Error("query failed", "error", err)
		return nil, err
	}
	return recs, nil
}

// InspectorConversationsWithItems lists an inspector's sessions with
// the pharmacopoeia entries referenced inside them aggregated per
// session. Zero time bounds mean no restriction.
func (s *QueryService) InspectorConversationsWithItems(ctx context.Context, inspectorID int64, from, to time.Time) ([]types.Record, error) {
	query := `
		SELECT c.conversation_id,
		       c.context_topic,
		       c.start_time,
		       c.end_time,
		       c.total_messages,
		       i.name AS inspector_name,
		       STRING_AGG(DISTINCT pi.name_cn, ', ') AS referenced_items,
		       STRING_AGG(DISTINCT CAST(pi.item_id AS TEXT), ',') AS item_ids
		FROM conversations c
		JOIN inspectors i ON c.inspector_id = i.inspector_id
		LEFT JOIN messages m ON c.conversation_id = m.conversation_id
		LEFT JOIN pharmacopoeia_items pi ON m.referenced_item_id = pi.item_id
		WHERE c.inspector_id = $1`
	args := []any{inspectorID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND c.start_time >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND c.start_time <= $%d", len(args))
	}
	query += `
		GROUP BY c.conversation_id, c.context_topic, c.start_time, c.end_time,
		         c.total_messages, i.name
		ORDER BY c.start_time DESC`

	recs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		rec["item_ids"] = splitIDList(rec["item_ids"])
		if rec["referenced_items"] == nil {
			rec["referenced_items"] = ""
		}
	}
	return recs, nil
}

// ExperimentWithDetails fetches an experiment joined with its
// inspector, laboratory, and pharmacopoeia entry, plus all data points
// and the overall qualification rate.
func (s *QueryService) ExperimentWithDetails(ctx context.Context, experimentID int64) (types.Record, error) {
	recs, err := s.query(ctx, `
		SELECT er.experiment_id, er.experiment_no, er.experiment_type, er.batch_no,
		       er.experiment_date, er.created_at, er.status, er.result,
		       i.inspector_id, i.name AS inspector_name, i.title AS inspector_title,
		       l.lab_id, l.lab_code, l.lab_name, l.location AS lab_location,
		       pi.item_id, pi.name_cn AS item_name, pi.volume, pi.category
		FROM experiment_records er
		JOIN inspectors i ON er.inspector_id = i.inspector_id
		JOIN laboratories l ON er.lab_id = l.lab_id
		JOIN pharmacopoeia_items pi ON er.item_id = pi.item_id
		WHERE er.experiment_id = $1`, experimentID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: experiment %d", types.ErrNotFound, experimentID)
	}
	detail := recs[0]

	points, err := s.query(ctx, `
		SELECT data_point_id, measurement_type, measurement_value, measurement_unit,
		       standard_min, standard_max, is_qualified
		FROM experiment_data_points
		WHERE experiment_id = $1
		ORDER BY data_point_id`, experimentID)
	if err != nil {
		return nil, err
	}
	detail["data_points"] = points

	qualified := 0
	for _, p := range points {
		if q, ok := types.AsBool(p["is_qualified"]); ok && q {
			qualified++
		}
	}
	detail["qualification_rate"] = rate(qualified, len(points))
	return detail, nil
}

// LaboratoryExperimentStats reports per-laboratory experiment volume,
// completion rate, and average data-point qualification rate.
func (s *QueryService) LaboratoryExperimentStats(ctx context.Context) ([]types.Record, error) {
	recs, err := s.query(ctx, `
		SELECT l.lab_id, l.lab_name, l.lab_code,
		       COUNT(er.experiment_id) AS total_experiments,
		       SUM(CASE WHEN er.status = '已完成' THEN 1 ELSE 0 END) AS completed_experiments,
		       AVG(
		           (SELECT COUNT(edp.data_point_id) * 100.0 / NULLIF(
		               (SELECT COUNT(*) FROM experiment_data_points WHERE experiment_id = er.experiment_id), 0)
		            FROM experiment_data_points edp
		            WHERE edp.experiment_id = er.experiment_id AND edp.is_qualified = TRUE)
		       ) AS avg_qualification_rate
		FROM laboratories l
		LEFT JOIN experiment_records er ON l.lab_id = er.lab_id
		GROUP BY l.lab_id, l.lab_name, l.lab_code
		ORDER BY total_experiments DESC`)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if v, ok := types.AsFloat64(rec["avg_qualification_rate"]); ok {
			rec["pass_rate"] = round2(v)
		} else {
			rec["pass_rate"] = float64(0)
		}
		total, _ := types.AsInt64(rec["total_experiments"])
		completed, _ := types.AsInt64(rec["completed_experiments"])
		rec["completion_rate"] = rate(int(completed), int(total))
	}
	return recs, nil
}

// SearchMessagesByContent matches message bodies by substring, joined
// with session topic, inspector name, and the referenced entry name.
func (s *QueryService) SearchMessagesByContent(ctx context.Context, searchText string, limit int) ([]types.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, `
		SELECT m.message_id, m.conversation_id, m.message_seq, m.sender_type,
		       m.message_text, m.created_at, m.referenced_item_id,
		       c.context_topic AS conversation_topic,
		       i.name AS inspector_name,
		       pi.name_cn AS referenced_item_name
		FROM messages m
		JOIN conversations c ON m.conversation_id = c.conversation_id
		JOIN inspectors i ON c.inspector_id = i.inspector_id
		LEFT JOIN pharmacopoeia_items pi ON m.referenced_item_id = pi.item_id
		WHERE m.message_text LIKE $1
		ORDER BY m.created_at DESC
		LIMIT $2`, "%"+searchText+"%", limit)
}

// InspectorExperimentHistory lists an inspector's experiments with the
// tested entry, laboratory, and per-experiment qualification rate.
func (s *QueryService) InspectorExperimentHistory(ctx context.Context, inspectorID int64) ([]types.Record, error) {
	recs, err := s.query(ctx, `
		SELECT er.experiment_id, er.experiment_no, er.experiment_type, er.batch_no,
		       er.experiment_date, er.status,
		       pi.item_id, pi.name_cn AS item_name,
		       l.lab_name,
		       (SELECT COUNT(*) FROM experiment_data_points edp
		        WHERE edp.experiment_id = er.experiment_id AND edp.is_qualified = TRUE
		       ) AS qualified_points_count,
		       (SELECT COUNT(*) FROM experiment_data_points edp
		        WHERE edp.experiment_id = er.experiment_id
		       ) AS total_points_count
		FROM experiment_records er
		JOIN pharmacopoeia_items pi ON er.item_id = pi.item_id
		JOIN laboratories l ON er.lab_id = l.lab_id
		WHERE er.inspector_id = $1
		ORDER BY er.experiment_date DESC`, inspectorID)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		qualified, _ := types.AsInt64(rec["qualified_points_count"])
		total, _ := types.AsInt64(rec["total_points_count"])
		rec["qualification_rate"] = rate(int(qualified), int(total))
	}
	return recs, nil
}

// ItemExperimentsSummary aggregates the testing picture of one
// pharmacopoeia entry: overall counts, per-measurement-type
// statistics, and the five most recent experiments.
func (s *QueryService) ItemExperimentsSummary(ctx context.Context, itemID int64) (types.Record, error) {
	items, err := s.query(ctx, `
		SELECT item_id, name_cn, name_en, volume, doc_id, category
		FROM pharmacopoeia_items
		WHERE item_id = $1`, itemID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: item %d", types.ErrNotFound, itemID)
	}
	summary := items[0]

	stats, err := s.query(ctx, `
		SELECT COUNT(er.experiment_id) AS total_experiments,
		       SUM(CASE WHEN er.status = '已完成' THEN 1 ELSE 0 END) AS completed_experiments,
		       COUNT(DISTINCT er.inspector_id) AS inspector_count,
		       COUNT(DISTINCT er.lab_id) AS lab_count,
		       MIN(er.experiment_date) AS first_experiment_date,
		       MAX(er.experiment_date) AS last_experiment_date
		FROM experiment_records er
		WHERE er.item_id = $1`, itemID)
	if err != nil {
		return nil, err
	}
	if len(stats) > 0 {
		for k, v := range stats[0] {
			summary[k] = v
		}
	}

	measurements, err := s.query(ctx, `
		SELECT edp.measurement_type,
		       COUNT(edp.data_point_id) AS measurement_count,
		       AVG(edp.measurement_value) AS average_value,
		       MIN(edp.measurement_value) AS min_value,
		       MAX(edp.measurement_value) AS max_value,
		       SUM(CASE WHEN edp.is_qualified THEN 1 ELSE 0 END) AS qualified_count
		FROM experiment_data_points edp
		JOIN experiment_records er ON edp.experiment_id = er.experiment_id
		WHERE er.item_id = $1
		GROUP BY edp.measurement_type`, itemID)
	if err != nil {
		return nil, err
	}
	for _, rec := range measurements {
		qualified, _ := types.AsInt64(rec["qualified_count"])
		count, _ := types.AsInt64(rec["measurement_count"])
		rec["qualification_rate"] = rate(int(qualified), int(count))
	}
	summary["measurements"] = measurements

	recent, err := s.query(ctx, `
		SELECT er.experiment_id, er.experiment_no, er.experiment_date, er.status,
		       i.name AS inspector_name,
		       l.lab_name
		FROM experiment_records er
		JOIN inspectors i ON er.inspector_id = i.inspector_id
		JOIN laboratories l ON er.lab_id = l.lab_id
		WHERE er.item_id = $1
		ORDER BY er.experiment_date DESC
		LIMIT 5`, itemID)
	if err != nil {
		return nil, err
	}
	summary["recent_experiments"] = recent
	return summary, nil
}

// ConversationSearch narrows SearchConversations. Zero values mean no
// restriction.
type ConversationSearch struct {
	InspectorID int64
	From, To    time.Time
	Keywords    string
}

// SearchConversations pages through sessions matching the filter,
// optionally joining messages when keywords are given. Returns the
// page and the total match count.
func (s *QueryService) SearchConversations(ctx context.Context, f ConversationSearch, page, perPage int) ([]types.Record, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}

	var conds []string
	var args []any
	if f.InspectorID > 0 {
		args = append(args, f.InspectorID)
		conds = append(conds, fmt.Sprintf("c.inspector_id = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("c.start_time >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, fmt.Sprintf("c.start_time <= $%d", len(args)))
	}
	join := ""
	if f.Keywords != "" {
		join = " LEFT JOIN messages m ON m.conversation_id = c.conversation_id"
		args = append(args, "%"+f.Keywords+"%")
		conds = append(conds, fmt.Sprintf(
			"(c.context_topic LIKE $%d OR m.message_text LIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	countQuery := "SELECT COUNT(DISTINCT c.conversation_id) AS n FROM conversations c" + join + where
	countRecs, err := s.query(ctx, countQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if len(countRecs) > 0 {
		total, _ = types.AsInt64(countRecs[0]["n"])
	}

	args = append(args, perPage)
	limitClause := fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, (page-1)*perPage)
	offsetClause := fmt.Sprintf(" OFFSET $%d", len(args))

	pageQuery := "SELECT DISTINCT c.* FROM conversations c" + join + where +
		" ORDER BY c.start_time DESC" + limitClause + offsetClause
	recs, err := s.query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// CustomQuery runs a caller-supplied read query. Intended for the CLI
// and test tooling, not for request paths.
func (s *QueryService) CustomQuery(ctx context.Context, query string, args ...any) ([]types.Record, error) {
	return s.query(ctx, query, args...)
}

// rate is the percentage of part in whole, rounded to two decimals.
// Zero whole yields zero rather than NaN.
func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// splitIDList turns the comma-joined id aggregate into []int64,
// mapping NULL to an empty slice.
func splitIDList(v any) []int64 {
	s, ok := types.AsString(v)
	if !ok || s == "" {
		return []int64{}
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
