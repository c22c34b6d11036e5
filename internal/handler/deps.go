package handler

import (
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/chat"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/group"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/presence"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/safety"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/storage"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/throttle"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/user"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/configs"
)

// AppDeps bundles every wired component the handlers need.
type AppDeps struct {
	Config   *configs.AppConfig
	Hub      *chat.Hub
	Presence *presence.Registry
	Pipeline *safety.Pipeline
	Messages message.Store
	Users    *user.Store
	Groups   group.Membership
	Throttle *throttle.Throttle
	Storage  storage.Service
}
