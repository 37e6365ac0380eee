package middleware

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/chatgate/internal/service"
)

type ctxKey string

const SessionKey ctxKey = "session"

// GetSessionKey extracts the session key from context.
func GetSessionKey(ctx context.Context) string {
	k, _ := ctx.Value(SessionKey).(string)
	return k
}

// ChatSessionKey is the session key of a Telegram chat.
func ChatSessionKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// SessionLoader returns middleware that makes sure a private chat has a
// session and stores its key in context. Group chats are left without one.
func SessionLoader(sessions *service.SessionService) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var chat *models.Chat
			if update.Message != nil {
				chat = &update.Message.Chat
			} else if update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil {
				chat = &update.CallbackQuery.Message.Message.Chat
			}

			if chat == nil || chat.Type != "private" {
				next(ctx, b, update)
				return
			}

			key := ChatSessionKey(chat.ID)
			if _, err := sessions.FindOrCreate(ctx, key); err != nil {
				slog.Error("load session", "error", err, "chat_id", chat.ID)
			} else {
				ctx = context.WithValue(ctx, SessionKey, key)
			}

			next(ctx, b, update)
		}
	}
}
