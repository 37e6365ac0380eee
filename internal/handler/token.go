package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/chatgate/internal/domain"
)

func (h *Handler) handleToken(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.Type != "private" {
		return
	}
	chatID := msg.Chat.ID

	// The message carries a secret
	h.deleteMessage(ctx, b, chatID, msg.ID)

	token := commandArg(msg.Text)
	if token == "" {
		h.reply(ctx, b, chatID, "🔑 Verwendung: /token <code>")
		return
	}
	h.applyToken(ctx, b, chatID, token)
}

// applyToken stores token for the chat's session and reports whether it
// currently grants access.
func (h *Handler) applyToken(ctx context.Context, b *bot.Bot, chatID int64, token string) {
	sess, ok := h.claim(ctx, b, chatID)
	if !ok {
		return
	}
	defer h.sessions.End(sess.Key)

	owner, err := h.acceptToken(ctx, sess, token)
	if err != nil {
		h.reportError(err, chatID, "apply token")
		h.tgLogger.LogAccess(chatID, "", err.Error())
		h.reply(ctx, b, chatID, userMessage(err))
		return
	}
	h.tgLogger.LogAccess(chatID, owner.OwnerName, "accepted")
	slog.Info("access token accepted", "chat_id", chatID, "owner", owner.OwnerName)

	text := "✅ Zugangscode akzeptiert."
	if owner.OwnerName != "" {
		text = fmt.Sprintf("✅ Zugangscode akzeptiert. Willkommen, %s!", owner.OwnerName)
	}
	h.reply(ctx, b, chatID, text)
}

// acceptToken saves token on the session only when it grants access, so a
// mistyped code leaves the previous token in place.
func (h *Handler) acceptToken(ctx context.Context, sess *domain.Session, token string) (*domain.AccessToken, error) {
	owner, err := h.access.Authorize(token)
	if err != nil {
		return nil, err
	}
	if err := h.sessions.SetToken(ctx, sess, token); err != nil {
		return nil, err
	}
	return owner, nil
}

func (h *Handler) handleAPIKey(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.Type != "private" {
		return
	}
	chatID := msg.Chat.ID
	h.deleteMessage(ctx, b, chatID, msg.ID)

	if !h.turns.NeedsAPIKey() {
		h.reply(ctx, b, chatID, "ℹ️ Ein OpenAI-API-Schlüssel ist bereits konfiguriert.")
		return
	}
	key := commandArg(msg.Text)
	if key == "" {
		h.reply(ctx, b, chatID, "🔑 Verwendung: /apikey <schlüssel>")
		return
	}

	sess, ok := h.claim(ctx, b, chatID)
	if !ok {
		return
	}
	sess.APIKey = key
	h.sessions.End(sess.Key)
	h.reply(ctx, b, chatID, "✅ API-Schlüssel für diese Unterhaltung gespeichert.")
}

func (h *Handler) deleteMessage(ctx context.Context, b *bot.Bot, chatID int64, messageID int) {
	if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		slog.Warn("delete message", "error", err, "chat_id", chatID)
	}
}

// reportError logs err and forwards operational errors to the log chat.
func (h *Handler) reportError(err error, chatID int64, op string) {
	if !isOperational(err) {
		slog.Info(op, "error", err, "chat_id", chatID)
		return
	}
	slog.Error(op, "error", err, "chat_id", chatID)
	h.tgLogger.LogError(err, fmt.Sprintf("%s (chat %d)", op, chatID))
}
