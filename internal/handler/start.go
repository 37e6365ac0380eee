package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/chatgate/internal/domain"
	"github.com/set-night/chatgate/internal/middleware"
	tg "github.com/set-night/chatgate/internal/telegram"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}
	chatID := update.Message.Chat.ID

	// Deep link: /start <token>
	if token := commandArg(update.Message.Text); token != "" {
		h.applyToken(ctx, b, chatID, token)
	}

	text := h.cfg.Greeting + "\n\n" + h.help()
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: tg.NewConversationKeyboard(),
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		slog.Warn("markdown send failed, falling back to plain text", "error", err)
		params.ParseMode = ""
		b.SendMessage(ctx, params)
	}
}

func (h *Handler) help() string {
	if h.turns.NeedsAPIKey() {
		return helpText + "\n\n/apikey <schlüssel> — eigenen OpenAI-API-Schlüssel setzen"
	}
	return helpText
}

func (h *Handler) handleReset(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}
	h.resetConversation(ctx, b, update.Message.Chat.ID)
}

func (h *Handler) handleNewConversation(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})
	if cq.Message.Message == nil {
		return
	}
	h.resetConversation(ctx, b, cq.Message.Message.Chat.ID)
}

func (h *Handler) resetConversation(ctx context.Context, b *bot.Bot, chatID int64) {
	key := middleware.GetSessionKey(ctx)
	if key == "" {
		return
	}
	if _, err := h.sessions.Reset(ctx, key); err != nil {
		if !errors.Is(err, domain.ErrTurnInProgress) {
			slog.Error("reset session", "error", err, "chat_id", chatID)
		}
		h.reply(ctx, b, chatID, userMessage(err))
		return
	}
	h.reply(ctx, b, chatID, "🔄 Neue Unterhaltung gestartet.\n\n"+h.cfg.Greeting)
}

// commandArg returns the text after the command word.
func commandArg(text string) string {
	_, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(arg)
}

// claim takes the chat's session for one operation. When that fails the user
// has already been told why.
func (h *Handler) claim(ctx context.Context, b *bot.Bot, chatID int64) (*domain.Session, bool) {
	key := middleware.GetSessionKey(ctx)
	if key == "" {
		return nil, false
	}
	sess, err := h.sessions.TryBegin(ctx, key, true)
	if err != nil {
		if !errors.Is(err, domain.ErrTurnInProgress) {
			slog.Error("claim session", "error", err, "chat_id", chatID)
		}
		h.reply(ctx, b, chatID, userMessage(err))
		return nil, false
	}
	return sess, true
}
