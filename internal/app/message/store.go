package message

import (
	"context"
	"time"
)

// HistoryFilter narrows a history query. Zero values mean "no filter".
type HistoryFilter struct {
	// Kind restricts results to one message kind.
	Kind Kind

	// Query is matched case-insensitively as a substring of the body or the
	// file name.
	Query string

	// Day restricts results to messages created on the same calendar day.
	Day *time.Time
}

// Store is the append-only message persistence contract.
type Store interface {
	// Append assigns a time-ordered id, seeds the read set with the sender,
	// and inserts the message durably. It returns the stored message.
	Append(ctx context.Context, m Message) (Message, error)

	// MarkRead adds readerID to the read set of the matching messages in
	// roomID. With no messageIDs it applies to every not-yet-read message in
	// the room addressed to the reader. Repeat calls are no-ops.
	MarkRead(ctx context.Context, roomID, readerID string, messageIDs ...int64) error

	// Recent returns the page of messages ordered newest-first by id.
	// Page 0 is the most recent.
	Recent(ctx context.Context, roomID string, pageIndex, pageSize int) ([]Message, error)

	// LastMessage returns the newest message in the room. The bool is false
	// when the room has no messages.
	LastMessage(ctx context.Context, roomID string) (Message, bool, error)

	// History returns the total count of messages matching the filter and
	// the requested page, ordered newest-first by id.
	History(ctx context.Context, roomID string, filter HistoryFilter, pageIndex, pageSize int) (int64, []Message, error)

	// Unread returns the messages addressed to userID whose read set does
	// not yet contain the user, oldest first.
	Unread(ctx context.Context, userID string) ([]Message, error)

	// UnreadInRoom is Unread restricted to one room; group messages in the
	// room count as addressed to every member.
	UnreadInRoom(ctx context.Context, roomID, userID string) ([]Message, error)
}
