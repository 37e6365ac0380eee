package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/chatgate/internal/config"
)

// TelegramLogger mirrors selected events into a log chat, one forum topic
// per event type.
type TelegramLogger struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewTelegramLogger(b *bot.Bot, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{bot: b, cfg: cfg}
}

type LogType string

const (
	LogTypeError  LogType = "error"
	LogTypeAccess LogType = "access"
)

func (l *TelegramLogger) Log(logType LogType, message string) {
	if l == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	message = Truncate(message, config.MaxTelegramMessageLen)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		ParseMode:       models.ParseModeMarkdownV1,
		MessageThreadID: l.topicID(logType),
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (l *TelegramLogger) LogError(err error, context string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		context, err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

// LogAccess records a token being presented for a chat.
func (l *TelegramLogger) LogAccess(chatID int64, owner string, outcome string) {
	if owner == "" {
		owner = "-"
	}
	msg := fmt.Sprintf("🔑 *Access*\n\n*Chat:* `%d`\n*Owner:* %s\n*Result:* %s",
		chatID, owner, outcome)
	l.Log(LogTypeAccess, msg)
}

// topicID returns the forum topic for logType; 0 posts to the chat itself.
func (l *TelegramLogger) topicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeAccess:
		return l.cfg.LogTopicAccess
	default:
		return 0
	}
}
