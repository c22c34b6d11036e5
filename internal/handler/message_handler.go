package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/group"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/auth/jwt"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/req"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/resp"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// roomAccessible reports whether the authenticated user may read roomID.
// Direct rooms admit their two participants only; any other id is a group
// room and requires membership.
func roomAccessible(ctx context.Context, groups group.Membership, roomID, userID string) (bool, error) {
	if a, b, direct := message.DirectRoomPeers(roomID); direct {
		return a == userID || b == userID, nil
	}
	if groups == nil {
		return true, nil
	}
	return groups.IsMember(ctx, roomID, userID)
}

// requireRoomAccess answers the request with an error and returns false when
// the caller may not read roomID.
func requireRoomAccess(w http.ResponseWriter, r *http.Request, deps *AppDeps, roomID, userID string) bool {
	if roomID == "" {
		resp.RespondError(w, r, errs.NewError(errs.ErrRoomIDInvalid))
		return false
	}

	ok, err := roomAccessible(r.Context(), deps.Groups, roomID, userID)
	if err != nil {
		logx.Error(err, "room access check failed", "room_id", roomID, "user_id", userID)
		resp.RespondError(w, r, errs.NewError(errs.ErrMessageStoreUnavailable))
		return false
	}
	if !ok {
		resp.RespondError(w, r, errs.NewError(errs.ErrRoomIDInvalid))
		return false
	}
	return true
}

// pageParams parses pageIndex/pageSize query parameters with bounds.
func pageParams(r *http.Request) (int, int) {
	pageIndex := 0
	if v := r.URL.Query().Get("pageIndex"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			pageIndex = n
		}
	}

	pageSize := defaultPageSize
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPageSize {
			pageSize = n
		}
	}

	return pageIndex, pageSize
}

// HandleRecentMessages returns one page of a room's messages, newest first.
func HandleRecentMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		roomID := r.URL.Query().Get("roomId")
		if !requireRoomAccess(w, r, deps, roomID, identity.ID) {
			return
		}

		pageIndex, pageSize := pageParams(r)

		messages, err := deps.Messages.Recent(r.Context(), roomID, pageIndex, pageSize)
		if err != nil {
			logx.Error(err, "recent messages query failed", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messages": messages,
		})
	}
}

// HandleMessageHistory searches a room's messages by kind, substring, or day.
func HandleMessageHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		roomID := r.URL.Query().Get("roomId")
		if !requireRoomAccess(w, r, deps, roomID, identity.ID) {
			return
		}

		var filter message.HistoryFilter

		if kindStr := r.URL.Query().Get("kind"); kindStr != "" {
			kind := message.Kind(kindStr)
			if !kind.Valid() {
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageKindInvalid))
				return
			}
			filter.Kind = kind
		}

		filter.Query = strings.TrimSpace(r.URL.Query().Get("query"))

		if dayStr := r.URL.Query().Get("day"); dayStr != "" {
			day, err := time.Parse("2006-01-02", dayStr)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			filter.Day = &day
		}

		pageIndex, pageSize := pageParams(r)

		total, messages, err := deps.Messages.History(r.Context(), roomID, filter, pageIndex, pageSize)
		if err != nil {
			logx.Error(err, "history query failed", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"total":    total,
			"messages": messages,
		})
	}
}

// HandleUnreadMessages returns the caller's unread messages, optionally
// restricted to one room.
func HandleUnreadMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var messages []message.Message
		var err error

		if roomID := r.URL.Query().Get("roomId"); roomID != "" {
			if !requireRoomAccess(w, r, deps, roomID, identity.ID) {
				return
			}
			messages, err = deps.Messages.UnreadInRoom(r.Context(), roomID, identity.ID)
		} else {
			messages, err = deps.Messages.Unread(r.Context(), identity.ID)
		}

		if err != nil {
			logx.Error(err, "unread query failed", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messages": messages,
		})
	}
}

// HandleLastMessage returns the newest message of a room, used for
// conversation list previews.
func HandleLastMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		roomID := r.URL.Query().Get("roomId")
		if !requireRoomAccess(w, r, deps, roomID, identity.ID) {
			return
		}

		last, ok, err := deps.Messages.LastMessage(r.Context(), roomID)
		if err != nil {
			logx.Error(err, "last message query failed", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageStoreUnavailable))
			return
		}

		if !ok {
			resp.RespondSuccess(w, r, map[string]any{
				"message": nil,
			})
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"message": last,
		})
	}
}

type MarkReadInput struct {
	RoomID     string  `json:"roomId"`
	MessageIDs []int64 `json:"messageIds,omitempty"`
}

// HandleMarkRead records the caller's read acknowledgment over REST, for
// clients catching up without a live socket.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input MarkReadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !requireRoomAccess(w, r, deps, input.RoomID, identity.ID) {
			return
		}

		if err := deps.Messages.MarkRead(r.Context(), input.RoomID, identity.ID, input.MessageIDs...); err != nil {
			logx.Error(err, "mark read failed", "room_id", input.RoomID, "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}
