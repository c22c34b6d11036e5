package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on the messages table. Appends need no
// cross-message locking (each insert is independent) and MarkRead relies on
// a guarded array_append in a single statement, so concurrent duplicate read
// notifications converge without lost updates.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const messageColumns = `id, room_id, sender_id::text, COALESCE(receiver_id::text, ''), kind, body, file_name, card, read_by, created_at`

// scanMessage maps one row onto a Message.
func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	var cardJSON []byte

	err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.ReceiverID,
		&m.Kind, &m.Body, &m.FileName, &cardJSON, &m.ReadBy, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	if len(cardJSON) > 0 {
		var card ServiceCard
		if err := json.Unmarshal(cardJSON, &card); err != nil {
			return Message{}, fmt.Errorf("decode card payload for message %d: %w", m.ID, err)
		}
		m.Card = &card
	}

	return m, nil
}

// Append inserts m and returns the stored row with its assigned id.
func (s *PGStore) Append(ctx context.Context, m Message) (Message, error) {
	var cardJSON []byte
	if m.Card != nil {
		encoded, err := json.Marshal(m.Card)
		if err != nil {
			return Message{}, fmt.Errorf("encode card payload: %w", err)
		}
		cardJSON = encoded
	}

	receiver := pgtype.Text{String: m.ReceiverID, Valid: m.ReceiverID != ""}

	// The sender id is passed twice: once as the uuid column value and once
	// as the text seed of the read set, so parameter types stay consistent.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (room_id, sender_id, receiver_id, kind, body, file_name, card, read_by)
		VALUES ($1, $2::uuid, $3::uuid, $4, $5, $6, $7, ARRAY[$8::text])
		RETURNING `+messageColumns,
		m.RoomID, m.SenderID, receiver, string(m.Kind), m.Body, m.FileName, cardJSON, m.SenderID)

	return scanMessage(row)
}

// MarkRead adds readerID to the read set of the matching messages. The
// NOT read_by @> guard makes the update idempotent; group messages
// (receiver IS NULL) count as addressed to every member of the room.
func (s *PGStore) MarkRead(ctx context.Context, roomID, readerID string, messageIDs ...int64) error {
	query := `
		UPDATE messages
		SET read_by = array_append(read_by, $2::text)
		WHERE room_id = $1
		  AND NOT read_by @> ARRAY[$2::text]
		  AND (receiver_id IS NULL OR receiver_id = $3::uuid)`
	args := []any{roomID, readerID, readerID}

	if len(messageIDs) > 0 {
		query += ` AND id = ANY($4)`
		args = append(args, messageIDs)
	}

	_, err := s.pool.Exec(ctx, query, args...)
	return err
}

// Recent returns one page of messages, newest first.
func (s *PGStore) Recent(ctx context.Context, roomID string, pageIndex, pageSize int) ([]Message, error) {
	if pageIndex < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("invalid page index %d / size %d", pageIndex, pageSize)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`,
		roomID, pageSize, pageIndex*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

// LastMessage returns the newest message in the room, or ok=false when the
// room has none.
func (s *PGStore) LastMessage(ctx context.Context, roomID string) (Message, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = $1
		ORDER BY id DESC
		LIMIT 1`, roomID)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, err
	}
	return m, true, nil
}

// History returns the total matching count and the requested page.
func (s *PGStore) History(ctx context.Context, roomID string, filter HistoryFilter, pageIndex, pageSize int) (int64, []Message, error) {
	if pageIndex < 0 || pageSize <= 0 {
		return 0, nil, fmt.Errorf("invalid page index %d / size %d", pageIndex, pageSize)
	}

	where := `WHERE room_id = $1`
	args := []any{roomID}

	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if filter.Query != "" {
		args = append(args, filter.Query)
		where += fmt.Sprintf(` AND (body ILIKE '%%' || $%d || '%%' OR file_name ILIKE '%%' || $%d || '%%')`, len(args), len(args))
	}
	if filter.Day != nil {
		args = append(args, *filter.Day)
		where += fmt.Sprintf(` AND created_at::date = ($%d)::date`, len(args))
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM messages `+where, args...).Scan(&total); err != nil {
		return 0, nil, err
	}

	args = append(args, pageSize, pageIndex*pageSize)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM messages %s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d`,
		messageColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	page, err := collectMessages(rows)
	if err != nil {
		return 0, nil, err
	}
	return total, page, nil
}

// Unread returns every direct message addressed to userID not yet read by
// them, oldest first.
func (s *PGStore) Unread(ctx context.Context, userID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE receiver_id = $1::uuid
		  AND NOT read_by @> ARRAY[$2::text]
		ORDER BY id`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

// UnreadInRoom returns the room's messages addressed to userID (directly or
// as a group member) not yet read by them, oldest first.
func (s *PGStore) UnreadInRoom(ctx context.Context, roomID, userID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = $1
		  AND (receiver_id IS NULL OR receiver_id = $2::uuid)
		  AND NOT read_by @> ARRAY[$3::text]
		ORDER BY id`, roomID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

// collectMessages drains rows into a slice.
func collectMessages(rows pgx.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
