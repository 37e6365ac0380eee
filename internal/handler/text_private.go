package handler

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/middleware"
	"github.com/set-night/chatgate/internal/service"
	tg "github.com/set-night/chatgate/internal/telegram"
)

// HandleTextPrivate runs a turn for a private text message.
func (h *Handler) HandleTextPrivate(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.Type != "private" || middleware.GetSessionKey(ctx) == "" {
		return
	}
	h.runTurn(ctx, b, msg.Chat.ID, service.TurnRequest{Prompt: msg.Text})
}

func (h *Handler) runTurn(ctx context.Context, b *bot.Bot, chatID int64, req service.TurnRequest) {
	// 1. Claim the session
	sess, ok := h.claim(ctx, b, chatID)
	if !ok {
		return
	}
	defer h.sessions.End(sess.Key)

	// 2. Typing indicator and status message
	stopTyping := tg.StartTyping(ctx, b, chatID)
	defer stopTyping()

	statusMsg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "⏳ Einen Moment bitte...",
	})
	if err != nil {
		slog.Warn("send status message", "error", err, "chat_id", chatID)
		statusMsg = nil
	}

	// 3. Progressive rendering of the streamed reply
	var live *tg.LiveMessage
	if statusMsg != nil {
		live = tg.NewLiveMessage(func(ctx context.Context, text string) error {
			return tg.EditPlain(ctx, b, chatID, statusMsg.ID, text)
		}, config.StreamEditInterval)
	}
	onDelta := func(s string) {
		if live != nil {
			live.Append(ctx, s)
		}
	}

	// 4. Run the turn
	res, err := h.turns.Run(ctx, sess, req, onDelta)

	// 5. Report upload failures; they never stop the turn
	if res != nil {
		for _, f := range res.UploadFailures {
			h.reportError(f.Err, chatID, "upload file")
			h.reply(ctx, b, chatID, fmt.Sprintf("📎 Fehler beim Hochladen von „%s“: %s", f.Name, userMessage(f.Err)))
		}
	}

	// 6. Turn errors replace the status message
	if err != nil {
		h.reportError(err, chatID, "run turn")
		text := userMessage(err)
		if statusMsg == nil || tg.EditPlain(ctx, b, chatID, statusMsg.ID, text) != nil {
			h.reply(ctx, b, chatID, text)
		}
		return
	}

	// 7. Final reply
	delivered := false
	if statusMsg != nil && utf8.RuneCountInString(res.Reply) <= config.MaxTelegramMessageLen {
		delivered = tg.EditLongMessage(ctx, b, chatID, statusMsg.ID, res.Reply) == nil
	}
	if !delivered {
		if statusMsg != nil {
			h.deleteMessage(ctx, b, chatID, statusMsg.ID)
		}
		if err := tg.SendLongMessage(ctx, b, chatID, res.Reply, nil); err != nil {
			slog.Error("send reply", "error", err, "chat_id", chatID)
		}
	}

	// 8. Show cost if enabled
	if h.cfg.ShowCost && res.Cost != nil && res.Usage != nil {
		h.reply(ctx, b, chatID, fmt.Sprintf(
			"💰 Kosten: $%s\n📊 Tokens: %d→%d",
			res.Cost.StringFixed(6),
			res.Usage.PromptTokens,
			res.Usage.CompletionTokens,
		))
	}
}
