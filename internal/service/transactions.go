// Package service implements the multi-statement business operations
// on top of the access layer: transactional workflows, cross-table
// reporting queries, and synthetic data generation.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/pharmaai/pharmadb/internal/dao"
	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// TxService runs workflows that must be atomic across tables.
type TxService struct {
	pool *db.Pool
	daos *dao.DAOs
	log  *slog.Logger
}

// NewTxService builds the transactional workflow service.
func NewTxService(pool *db.Pool, daos *dao.DAOs, log *slog.Logger) *TxService {
	return &TxService{pool: pool, daos: daos, log: log.With("component", "tx_service")}
}

// InTx runs a caller-supplied composition in a single transaction.
func (s *TxService) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return s.pool.WithTx(ctx, fn)
}

// CreateExperimentWithDataPoints inserts an experiment and all its
// measurements atomically. Data points lacking is_qualified get it
// derived from measurement_value against the standard range.
func (s *TxService) CreateExperimentWithDataPoints(ctx context.Context, experiment types.Record, points []types.Record) (int64, error) {
	for _, point := range points {
		if _, ok := point["is_qualified"]; ok {
			continue
		}
		if q, ok := dao.DeriveQualified(point); ok {
			point["is_qualified"] = q
		}
	}
	id, err := s.daos.Experiments.CreateWithDataPoints(ctx, experiment, points)
	if err != nil {
		s.log.Error("create experiment with data points failed", "error", err)
		return 0, err
	}
	s.log.Info("experiment created", "experiment_id", id, "data_points", len(points))
	return id, nil
}

// BatchAppendMessages appends messages to a conversation and brings
// the denormalized counter back in line, all in one transaction. The
// counter is recomputed with COUNT(*) rather than incremented, so it
// self-heals if it had drifted. Returns the new message ids in input
// order.
func (s *TxService) BatchAppendMessages(ctx context.Context, conversationID int64, messages []types.Record) ([]int64, error) {
	ids := make([]int64, 0, len(messages))
	err := s.pool.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var exists int64
		err := tx.QueryRow(ctx,
			"SELECT conversation_id FROM conversations WHERE conversation_id = $1",
			conversationID).Scan(&exists)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: conversation %d", types.ErrNotFound, conversationID)
		}
		if err != nil {
			return err
		}

		for i, msg := range messages {
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO messages (conversation_id, message_seq, sender_type,
				                      message_text, referenced_item_id, created_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
				RETURNING message_id`,
				conversationID, msg["message_seq"], msg["sender_type"],
				msg["message_text"], msg["referenced_item_id"]).Scan(&id)
			if err != nil {
				return fmt.Errorf("insert message %d: %w", i, err)
			}
			ids = append(ids, id)
		}

		_, err = tx.Exec(ctx, `
			UPDATE conversations
			SET total_messages = (SELECT COUNT(*) FROM messages WHERE conversation_id = $1),
			    last_message_at = NOW()
			WHERE conversation_id = $1`, conversationID)
		return err
	})
	if err != nil {
		s.log.Error("batch append messages failed",
			"conversation_id", conversationID, "error", err)
		return nil, err
	}
	s.log.Info("messages appended", "conversation_id", conversationID, "count", len(ids))
	return ids, nil
}

// UpdateConversationWithMessages updates a conversation's topic and
// upserts the given messages in one transaction: messages carrying a
// message_id are updated in place, the rest are inserted. The counter
// is recomputed afterwards. Returns the ids of all touched messages.
func (s *TxService) UpdateConversationWithMessages(ctx context.Context, conversationID int64, contextTopic string, messages []types.Record) ([]int64, error) {
	ids := make([]int64, 0, len(messages))
	err := s.pool.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE conversations
			SET context_topic = $1, last_message_at = NOW()
			WHERE conversation_id = $2`, contextTopic, conversationID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("%w: conversation %d", types.ErrNotFound, conversationID)
		}

		for i, msg := range messages {
			if raw, ok := msg["message_id"]; ok {
				id, _ := types.AsInt64(raw)
				_, err := tx.Exec(ctx, `
					UPDATE messages
					SET message_text = $1, referenced_item_id = $2
					WHERE message_id = $3 AND conversation_id = $4`,
					msg["message_text"], msg["referenced_item_id"], id, conversationID)
				if err != nil {
					return fmt.Errorf("update message %d: %w", id, err)
				}
				ids = append(ids, id)
				continue
			}
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO messages (conversation_id, message_seq, sender_type,
				                      message_text, referenced_item_id, created_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
				RETURNING message_id`,
				conversationID, msg["message_seq"], msg["sender_type"],
				msg["message_text"], msg["referenced_item_id"]).Scan(&id)
			if err != nil {
				return fmt.Errorf("insert message %d: %w", i, err)
			}
			ids = append(ids, id)
		}

		_, err = tx.Exec(ctx, `
			UPDATE conversations
			SET total_messages = (SELECT COUNT(*) FROM messages WHERE conversation_id = $1)
			WHERE conversation_id = $1`, conversationID)
		return err
	})
	if err != nil {
		s.log.Error("update conversation with messages failed",
			"conversation_id", conversationID, "error", err)
		return nil, err
	}
	return ids, nil
}

// TransferResult reports a completed lab-access transfer.
type TransferResult struct {
	FromInspectorID int64
	ToInspectorID   int64
	LabIDs          []int64
}

// TransferLabAccess moves laboratory grants from one inspector to
// another atomically. Every precondition failure aborts the whole
// transfer: both inspectors must exist, every lab must exist, and the
// source must hold a grant on every lab. Grants the target already
// holds on those labs are replaced, not duplicated.
func (s *TxService) TransferLabAccess(ctx context.Context, fromID, toID int64, labIDs []int64) (*TransferResult, error) {
	if len(labIDs) == 0 {
		return nil, fmt.Errorf("transfer lab access: no labs given")
	}
	if fromID == toID {
		return nil, fmt.Errorf("transfer lab access: source and target are both inspector %d", fromID)
	}
	err := s.pool.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		found, err := collectIDs(ctx, tx,
			"SELECT inspector_id FROM inspectors WHERE inspector_id = ANY($1)",
			[]int64{fromID, toID})
		if err != nil {
			return err
		}
		if len(found) != 2 {
			return fmt.Errorf("%w: inspector %v", types.ErrNotFound,
				missingIDs([]int64{fromID, toID}, found))
		}

		found, err = collectIDs(ctx, tx,
			"SELECT lab_id FROM laboratories WHERE lab_id = ANY($1)", labIDs)
		if err != nil {
			return err
		}
		if len(found) != len(labIDs) {
			return fmt.Errorf("%w: laboratory %v", types.ErrNotFound,
				missingIDs(labIDs, found))
		}

		held, err := collectIDs(ctx, tx, `
			SELECT lab_id FROM inspector_lab_access
			WHERE inspector_id = $2 AND lab_id = ANY($1)`, labIDs, fromID)
		if err != nil {
			return err
		}
		if len(held) != len(labIDs) {
			return fmt.Errorf("source inspector %d holds no grant on labs %v",
				fromID, missingIDs(labIDs, held))
		}

		// Clear target-side collisions before re-granting.
		_, err = tx.Exec(ctx, `
			DELETE FROM inspector_lab_access
			WHERE inspector_id = $1 AND lab_id = ANY($2)`, toID, labIDs)
		if err != nil {
			return err
		}
		for _, labID := range labIDs {
			_, err := tx.Exec(ctx, `
				INSERT INTO inspector_lab_access (inspector_id, lab_id, access_level, granted_date)
				SELECT $1, lab_id, access_level, granted_date
				FROM inspector_lab_access
				WHERE inspector_id = $2 AND lab_id = $3`, toID, fromID, labID)
			if err != nil {
				return fmt.Errorf("grant lab %d: %w", labID, err)
			}
		}
		_, err = tx.Exec(ctx, `
			DELETE FROM inspector_lab_access
			WHERE inspector_id = $1 AND lab_id = ANY($2)`, fromID, labIDs)
		return err
	})
	if err != nil {
		s.log.Error("lab access transfer failed",
			"from", fromID, "to", toID, "labs", labIDs, "error", err)
		return nil, err
	}
	s.log.Info("lab access transferred", "from", fromID, "to", toID, "labs", labIDs)
	return &TransferResult{FromInspectorID: fromID, ToInspectorID: toID, LabIDs: labIDs}, nil
}

// EndConversation closes a session, setting end_time to now and
// reconciling the message counter in the same transaction.
func (s *TxService) EndConversation(ctx context.Context, conversationID int64) error {
	return s.pool.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE conversations
			SET end_time = NOW(),
			    total_messages = (SELECT COUNT(*) FROM messages WHERE conversation_id = $1)
			WHERE conversation_id = $1`, conversationID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("%w: conversation %d", types.ErrNotFound, conversationID)
		}
		return nil
	})
}

func collectIDs(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func missingIDs(wanted, found []int64) []int64 {
	have := make(map[int64]struct{}, len(found))
	for _, id := range found {
		have[id] = struct{}{}
	}
	var missing []int64
	for _, id := range wanted {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
