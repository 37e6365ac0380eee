package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
	"github.com/set-night/chatgate/internal/middleware"
	"github.com/set-night/chatgate/internal/service"
	tg "github.com/set-night/chatgate/internal/telegram"
)

func (h *Handler) handleFiles(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}
	chatID := update.Message.Chat.ID

	sess, ok := h.claim(ctx, b, chatID)
	if !ok {
		return
	}
	text := describeUploads(sess.Uploads)
	h.sessions.End(sess.Key)

	h.reply(ctx, b, chatID, text)
}

func describeUploads(uploads []*domain.UploadedFile) string {
	if len(uploads) == 0 {
		return "📎 Noch keine Dateien hochgeladen."
	}
	var sb strings.Builder
	sb.WriteString("📎 Dateien dieser Unterhaltung:\n\n")
	for _, u := range uploads {
		if u.Sent {
			fmt.Fprintf(&sb, "✅ %s\n", u.Name)
		} else {
			fmt.Fprintf(&sb, "⏳ %s (wird mit der nächsten Nachricht hochgeladen)\n", u.Name)
		}
	}
	return sb.String()
}

// HandleDocument registers an uploaded document with the chat's session. A
// caption turns the upload into a turn with the caption as prompt.
func (h *Handler) HandleDocument(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Document == nil || middleware.GetSessionKey(ctx) == "" {
		return
	}
	chatID := msg.Chat.ID
	doc := msg.Document

	if doc.FileSize > config.MaxUploadBytes {
		h.reply(ctx, b, chatID, userMessage(domain.ErrUploadTooLarge))
		return
	}
	data, path, err := tg.DownloadFile(ctx, b, doc.FileID, config.MaxUploadBytes)
	if err != nil {
		if !errors.Is(err, domain.ErrUploadTooLarge) {
			slog.Error("download document", "error", err, "chat_id", chatID)
		}
		h.reply(ctx, b, chatID, userMessage(err))
		return
	}
	name := doc.FileName
	if name == "" {
		name = path
	}
	file := service.FileUpload{Name: name, Data: data}

	if caption := strings.TrimSpace(msg.Caption); caption != "" {
		h.runTurn(ctx, b, chatID, service.TurnRequest{Prompt: caption, Files: []service.FileUpload{file}})
		return
	}

	sess, ok := h.claim(ctx, b, chatID)
	if !ok {
		return
	}
	added := service.RegisterUpload(sess, name, data)
	h.sessions.End(sess.Key)

	if !added {
		h.reply(ctx, b, chatID, fmt.Sprintf("ℹ️ Eine Datei namens „%s“ ist bereits vorhanden und wird nicht erneut hochgeladen.", name))
		return
	}
	h.reply(ctx, b, chatID, fmt.Sprintf("📎 „%s“ hinzugefügt. Die Datei wird mit Ihrer nächsten Nachricht hochgeladen.", name))
}
