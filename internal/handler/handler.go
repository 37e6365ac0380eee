package handler

import (
	"github.com/go-telegram/bot"
	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/service"
	"github.com/set-night/chatgate/internal/telegram"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot      *bot.Bot
	cfg      *config.Config
	access   *service.AccessService
	sessions *service.SessionService
	turns    *service.TurnService
	tgLogger *telegram.TelegramLogger
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot      *bot.Bot
	Cfg      *config.Config
	Access   *service.AccessService
	Sessions *service.SessionService
	Turns    *service.TurnService
	TgLogger *telegram.TelegramLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:      deps.Bot,
		cfg:      deps.Cfg,
		access:   deps.Access,
		sessions: deps.Sessions,
		turns:    deps.Turns,
		tgLogger: deps.TgLogger,
	}
}
