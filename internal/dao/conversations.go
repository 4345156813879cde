package dao

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// Conversations accesses AI consultation sessions.
type Conversations struct {
	*Store
}

func NewConversations(pool *db.Pool, log *slog.Logger) *Conversations {
	return &Conversations{NewStore(pool, log, types.TableConversations, types.IDConversations, types.ConversationColumns)}
}

// NewSessionID mints a session identifier in the sess_<hex10> form.
func NewSessionID() string {
	id := uuid.New()
	return "sess_" + hex.EncodeToString(id[:])[:10]
}

// Create inserts a session, filling session_id, start_time, and a zero
// message counter when absent.
func (d *Conversations) Create(ctx context.Context, rec types.Record) (int64, error) {
	if _, ok := rec["session_id"]; !ok {
		rec["session_id"] = NewSessionID()
	}
	if _, ok := rec["start_time"]; !ok {
		rec["start_time"] = time.Now()
	}
	if _, ok := rec["total_messages"]; !ok {
		rec["total_messages"] = 0
	}
	return d.InsertID(ctx, rec)
}

// ByInspector lists an inspector's sessions, newest first.
func (d *Conversations) ByInspector(ctx context.Context, inspectorID int64, opts types.ListOptions) ([]types.Record, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "start_time DESC"
	}
	return d.FindBy(ctx, types.Record{"inspector_id": inspectorID}, opts)
}

// Recent lists the latest sessions across all inspectors.
func (d *Conversations) Recent(ctx context.Context, limit int) ([]types.Record, error) {
	return d.GetAll(ctx, types.ListOptions{Limit: limit, OrderBy: "start_time DESC"})
}

// FindByTopic matches the context topic by substring.
func (d *Conversations) FindByTopic(ctx context.Context, keyword string, limit, offset int) ([]types.Record, error) {
	recs, _, err := d.ExecQuery(ctx, `
		SELECT * FROM conversations
		WHERE context_topic LIKE $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3`, "%"+keyword+"%", limit, offset)
	return recs, err
}

// FindByTimeRange lists sessions whose start_time falls in the range,
// optionally restricted to one inspector (zero means all).
func (d *Conversations) FindByTimeRange(ctx context.Context, from, to time.Time, inspectorID int64, limit, offset int) ([]types.Record, error) {
	if inspectorID > 0 {
		recs, _, err := d.ExecQuery(ctx, `
			SELECT * FROM conversations
			WHERE start_time BETWEEN $1 AND $2 AND inspector_id = $3
			ORDER BY start_time DESC
			LIMIT $4 OFFSET $5`, from, to, inspectorID, limit, offset)
		return recs, err
	}
	recs, _, err := d.ExecQuery(ctx, `
		SELECT * FROM conversations
		WHERE start_time BETWEEN $1 AND $2
		ORDER BY start_time DESC
		LIMIT $3 OFFSET $4`, from, to, limit, offset)
	return recs, err
}

// UpdateSessionEnd closes a session, recording the end time and the
// final message count.
func (d *Conversations) UpdateSessionEnd(ctx context.Context, conversationID int64, endTime time.Time, totalMessages int) (bool, error) {
	return d.Update(ctx, conversationID, types.Record{
		"end_time":       endTime,
		"total_messages": totalMessages,
	})
}

// StatsFilter narrows SessionStats. Zero values mean no restriction.
type StatsFilter struct {
	InspectorID int64
	From, To    time.Time
}

// SessionStats aggregates session counts, message volume, and average
// duration over the filtered set.
func (d *Conversations) SessionStats(ctx context.Context, f StatsFilter) (types.Record, error) {
	query := `
		SELECT COUNT(*) AS total_conversations,
		       COALESCE(SUM(total_messages), 0) AS total_messages,
		       AVG(total_messages) AS avg_messages_per_conversation,
		       MIN(start_time) AS earliest_conversation,
		       MAX(start_time) AS latest_conversation,
		       AVG(EXTRACT(EPOCH FROM (end_time - start_time))) AS avg_duration_seconds
		FROM conversations`
	var conds []string
	var args []any
	if f.InspectorID > 0 {
		args = append(args, f.InspectorID)
		conds = append(conds, fmt.Sprintf("inspector_id = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, fmt.Sprintf("end_time <= $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	recs, _, err := d.ExecQuery(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return types.Record{}, nil
	}
	return recs[0], nil
}
