package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	tg "github.com/set-night/chatgate/internal/telegram"
)

// Register registers all command and callback handlers on the bot instance.
// Plain messages and documents reach HandleDefault.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/token", bot.MatchTypePrefix, h.handleToken)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/apikey", bot.MatchTypePrefix, h.handleAPIKey)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/reset", bot.MatchTypePrefix, h.handleReset)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/files", bot.MatchTypePrefix, h.handleFiles)

	// Callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, tg.CallbackNewConversation, bot.MatchTypeExact, h.handleNewConversation)
}

// HandleDefault routes updates no registered handler matched.
func (h *Handler) HandleDefault(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.Type != "private" {
		return
	}
	switch {
	case msg.Document != nil:
		h.HandleDocument(ctx, b, update)
	case msg.Text != "" && msg.Text[0] != '/':
		h.HandleTextPrivate(ctx, b, update)
	case msg.Text != "":
		h.reply(ctx, b, msg.Chat.ID, "Unbekannter Befehl. Verfügbar: /token, /reset, /files")
	}
}

func (h *Handler) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		slog.Warn("send reply", "error", err, "chat_id", chatID)
	}
}
