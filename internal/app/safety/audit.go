package safety

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
)

// AuditSink receives the original, pre-filter body of every message the
// sensitive filter flagged.
type AuditSink interface {
	Record(ctx context.Context, senderID, roomID, originalBody string, kind message.Kind) error
}

// PGAuditSink appends flagged content to the sensitive_audit table.
type PGAuditSink struct {
	pool *pgxpool.Pool
}

// NewPGAuditSink returns an AuditSink backed by pool.
func NewPGAuditSink(pool *pgxpool.Pool) *PGAuditSink {
	return &PGAuditSink{pool: pool}
}

// Record inserts one audit row.
func (s *PGAuditSink) Record(ctx context.Context, senderID, roomID, originalBody string, kind message.Kind) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sensitive_audit (sender_id, room_id, original_body, kind)
		VALUES ($1, $2, $3, $4)`,
		senderID, roomID, originalBody, string(kind))
	return err
}
