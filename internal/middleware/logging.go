package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Logging returns middleware that logs update processing time.
func Logging() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			kind, chatID := describe(update)

			next(ctx, b, update)

			slog.Debug("update processed",
				"type", kind,
				"chat_id", chatID,
				"duration", time.Since(start),
			)
		}
	}
}

// describe names the update kind and the chat it belongs to.
func describe(update *models.Update) (string, int64) {
	switch {
	case update.Message != nil && update.Message.Document != nil:
		return "document", update.Message.Chat.ID
	case update.Message != nil:
		return "message", update.Message.Chat.ID
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message.Message != nil {
			return "callback_query", update.CallbackQuery.Message.Message.Chat.ID
		}
		return "callback_query", 0
	default:
		return "unknown", 0
	}
}
