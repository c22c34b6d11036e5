package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/auth/jwt"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/limiter"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/resp"
)

const (
	// AuthRate bounds register/login attempts per IP.
	AuthRate  = 0.5
	AuthBurst = 5

	// ConnectRate bounds websocket upgrades per IP.
	ConnectRate  = 0.2
	ConnectBurst = 5
)

// Router builds the HTTP routing table: CORS, request logging, per-IP rate
// limiting on the sensitive routes, and the API and WebSocket endpoints.
func Router(deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "Chat Server",
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", authLimiter.Middleware(HandleRegister(deps)).ServeHTTP)
			auth.Post("/login", authLimiter.Middleware(HandleLogin(deps)).ServeHTTP)
			auth.Post("/change-password", HandleChangePassword(deps))
		})

		api.Get("/user/profile", HandleGetProfile(deps))

		api.Route("/message", func(msg chi.Router) {
			msg.Get("/recent", HandleRecentMessages(deps))
			msg.Get("/history", HandleMessageHistory(deps))
			msg.Get("/unread", HandleUnreadMessages(deps))
			msg.Get("/last", HandleLastMessage(deps))
			msg.Post("/read", HandleMarkRead(deps))
		})

		api.Post("/file/presign-upload", HandlePresignUpload(deps))
		api.Get("/file/presign-download", HandlePresignDownload(deps))
		api.Delete("/file", HandleDeleteFile(deps))
	})

	r.With(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret)).
		Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
