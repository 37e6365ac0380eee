package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ErrorReporter forwards operational errors, e.g. to a Telegram log chat.
type ErrorReporter interface {
	LogError(err error, context string)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(err error, context string)

func (f ReporterFunc) LogError(err error, context string) { f(err, context) }

// Recover returns middleware that recovers from panics, logs them and, when
// reporter is set, forwards them.
func Recover(reporter ErrorReporter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic recovered in handler",
						"panic", r,
						"update_id", update.ID,
						"stack", string(debug.Stack()),
					)
					if reporter != nil {
						reporter.LogError(fmt.Errorf("panic: %v", r), "telegram update handler")
					}
				}
			}()
			next(ctx, b, update)
		}
	}
}
