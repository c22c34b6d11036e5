package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/chat"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/auth/jwt"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/limiter"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/resp"
)

// HandleWebSocket upgrades an authenticated request to a WebSocket connection
// and starts the client lifecycle. The socket stays anonymous to presence
// until the GO_ONLINE handshake.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)
		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			logx.Warn("WebSocket request rejected: Missing or invalid token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		account, err := deps.Users.GetByID(r.Context(), identity.ID)
		if err != nil {
			logx.Warn("WebSocket request rejected: Unknown account", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}
		if account.IsFrozen() {
			resp.RespondError(w, r, errs.NewError(errs.ErrAccountFrozen))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(chat.Deps{
			Hub:      deps.Hub,
			Presence: deps.Presence,
			Pipeline: deps.Pipeline,
			Messages: deps.Messages,
			Users:    deps.Users,
			Groups:   deps.Groups,
		}, conn, account)

		go client.WritePump()

		logx.Info("WebSocket connection established", "user_id", account.ID, "conn_id", client.ConnID())

		client.ReadPump()
	}
}
