package dao

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// Messages accesses consultation messages.
type Messages struct {
	*Store
}

func NewMessages(pool *db.Pool, log *slog.Logger) *Messages {
	return &Messages{NewStore(pool, log, types.TableMessages, types.IDMessages, types.MessageColumns)}
}

// Add inserts one message, stamping created_at when absent.
func (d *Messages) Add(ctx context.Context, rec types.Record) (int64, error) {
	if _, ok := rec["created_at"]; !ok {
		rec["created_at"] = time.Now()
	}
	return d.InsertID(ctx, rec)
}

// ByConversation lists a session's messages in sequence order, or by
// timestamp when bySeq is false.
func (d *Messages) ByConversation(ctx context.Context, conversationID int64, bySeq bool) ([]types.Record, error) {
	orderBy := "message_seq ASC"
	if !bySeq {
		orderBy = "created_at ASC"
	}
	return d.FindBy(ctx, types.Record{"conversation_id": conversationID}, types.ListOptions{OrderBy: orderBy})
}

// Latest lists the newest messages across all sessions.
func (d *Messages) Latest(ctx context.Context, limit int) ([]types.Record, error) {
	return d.GetAll(ctx, types.ListOptions{Limit: limit, OrderBy: "created_at DESC"})
}

// SearchByText matches message bodies by substring, joining in the
// owning session's inspector and topic.
func (d *Messages) SearchByText(ctx context.Context, keyword string, limit, offset int) ([]types.Record, error) {
	recs, _, err := d.ExecQuery(ctx, `
		SELECT m.*, c.inspector_id, c.context_topic
		FROM messages m
		JOIN conversations c ON m.conversation_id = c.conversation_id
		WHERE m.message_text LIKE $1
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3`, "%"+keyword+"%", limit, offset)
	return recs, err
}

// ByIntent lists messages classified under one intent.
func (d *Messages) ByIntent(ctx context.Context, intent string, opts types.ListOptions) ([]types.Record, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "created_at DESC"
	}
	return d.FindBy(ctx, types.Record{"intent": intent}, opts)
}

// WithReference fetches a message together with the pharmacopoeia
// entry it references, if any.
func (d *Messages) WithReference(ctx context.Context, messageID int64) (types.Record, error) {
	recs, _, err := d.ExecQuery(ctx, `
		SELECT m.*, p.name_cn, p.name_pinyin, p.name_en, p.category
		FROM messages m
		LEFT JOIN pharmacopoeia_items p ON m.referenced_item_id = p.item_id
		WHERE m.message_id = $1`, messageID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: message %d", types.ErrNotFound, messageID)
	}
	return recs[0], nil
}

// MessageStats aggregates message volume and response quality,
// optionally filtered by session or inspector (zero means all).
func (d *Messages) MessageStats(ctx context.Context, conversationID, inspectorID int64) (types.Record, error) {
	query := `
		SELECT COUNT(*) AS total_messages,
		       COUNT(CASE WHEN m.sender_type = 'inspector' THEN 1 END) AS inspector_messages,
		       COUNT(CASE WHEN m.sender_type = 'system' THEN 1 END) AS system_messages,
		       AVG(m.response_time_ms) AS avg_response_time_ms,
		       AVG(m.confidence_score) AS avg_confidence_score,
		       COUNT(DISTINCT m.conversation_id) AS conversation_count
		FROM messages m`
	var args []any
	var where string
	switch {
	case inspectorID > 0 && conversationID > 0:
		query += " JOIN conversations c ON m.conversation_id = c.conversation_id"
		where = " WHERE m.conversation_id = $1 AND c.inspector_id = $2"
		args = append(args, conversationID, inspectorID)
	case inspectorID > 0:
		query += " JOIN conversations c ON m.conversation_id = c.conversation_id"
		where = " WHERE c.inspector_id = $1"
		args = append(args, inspectorID)
	case conversationID > 0:
		where = " WHERE m.conversation_id = $1"
		args = append(args, conversationID)
	}
	recs, _, err := d.ExecQuery(ctx, query+where, args...)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return types.Record{}, nil
	}
	return recs[0], nil
}

// BatchAdd inserts many messages at once, stamping created_at on rows
// that lack it.
func (d *Messages) BatchAdd(ctx context.Context, recs []types.Record) (int64, error) {
	now := time.Now()
	for _, rec := range recs {
		if _, ok := rec["created_at"]; !ok {
			rec["created_at"] = now
		}
	}
	return d.BatchInsert(ctx, recs, 0, "")
}
