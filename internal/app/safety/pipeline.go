package safety

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/friend"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
)

// Pipeline finalizes an outgoing message or rejects it before anything is
// persisted or delivered.
type Pipeline struct {
	filter  *Filter
	friends friend.Checker
	audit   AuditSink
	logger  zerolog.Logger
}

// NewPipeline wires the filter, the friend gate and the audit sink.
func NewPipeline(filter *Filter, friends friend.Checker, audit AuditSink) *Pipeline {
	return &Pipeline{
		filter:  filter,
		friends: friends,
		audit:   audit,
		logger:  logx.Logger().With().Str("component", "safety").Logger(),
	}
}

// Process runs the safety steps over draft and returns the message ready for
// the store, or a rejection. senderStaff and receiverStaff report whether the
// respective participant holds the staff role; either one bypasses the
// friend gate.
//
// On rejection nothing has been persisted and nothing may be delivered; the
// caller reports the error to the sender only.
func (p *Pipeline) Process(ctx context.Context, draft message.Message, senderStaff, receiverStaff bool) (message.Message, *errs.CustomError) {
	// Step 1: sensitive filter. Delivery proceeds with the rewritten body;
	// the original goes to the audit sink.
	filtered, flagged := p.filter.Apply(draft.Body)
	if flagged {
		if err := p.audit.Record(ctx, draft.SenderID, draft.RoomID, draft.Body, draft.Kind); err != nil {
			p.logger.Error().Err(err).
				Str("sender_id", draft.SenderID).
				Str("room_id", draft.RoomID).
				Msg("Failed to record flagged content to audit sink")
		}
		draft.Body = filtered
	}

	// Group messages skip the friend gate and never carry a card.
	if !draft.IsDirect() {
		draft.Card = nil
		return draft, nil
	}

	// Step 2: friend gate, unless a staff participant is involved.
	if !senderStaff && !receiverStaff {
		isFriend, err := p.friends.IsFriend(ctx, draft.SenderID, draft.ReceiverID)
		if err != nil {
			p.logger.Error().Err(err).
				Str("sender_id", draft.SenderID).
				Str("receiver_id", draft.ReceiverID).
				Msg("Friend check failed")
			return message.Message{}, errs.NewError(errs.ErrMessageStoreUnavailable)
		}
		if !isFriend {
			return message.Message{}, errs.NewError(errs.ErrNotFriends)
		}
	}

	// Step 3: card detection on the filtered body. No match clears any
	// previously attached card.
	draft.Card = DetectCard(draft.Body, draft.SenderID)

	return draft, nil
}
