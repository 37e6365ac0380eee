package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
)

const helpText = "📋 *Befehle:*\n" +
	"/token <code> — Zugangscode eingeben\n" +
	"/reset — Neue Unterhaltung beginnen\n" +
	"/files — Hochgeladene Dateien anzeigen\n\n" +
	"Senden Sie Dokumente, um sie der Unterhaltung hinzuzufügen. " +
	"Eine Bildunterschrift wird als Frage zum Dokument gesendet."

// userMessage maps an error to the text shown in the chat.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenMissing):
		return "🔑 Bitte geben Sie zuerst Ihren Zugangscode ein: /token <code>"
	case errors.Is(err, domain.ErrTokenUnknown):
		return "⛔ Der Zugangscode ist ungültig."
	case errors.Is(err, domain.ErrTokenExpired):
		return "⛔ Der Zugangscode ist abgelaufen."
	case errors.Is(err, domain.ErrTokenNotYetValid):
		return "⛔ Der Zugangscode ist noch nicht gültig."
	case errors.Is(err, domain.ErrInvalidDate):
		return "❌ Der Zugangscode ist fehlerhaft hinterlegt. Bitte wenden Sie sich an den Betreiber."
	case errors.Is(err, domain.ErrAPIKeyMissing):
		return "🔑 Es ist kein OpenAI-API-Schlüssel hinterlegt. Setzen Sie ihn mit /apikey <schlüssel>."
	case errors.Is(err, domain.ErrAssistantMissing):
		return "❌ Der Assistent ist nicht konfiguriert. Bitte wenden Sie sich an den Betreiber."
	case errors.Is(err, domain.ErrTurnInProgress):
		return "⏳ Bitte warten Sie auf die Antwort auf Ihre vorherige Nachricht."
	case errors.Is(err, domain.ErrEmptyPrompt):
		return "✏️ Bitte geben Sie eine Nachricht ein."
	case errors.Is(err, domain.ErrUploadTooLarge):
		return fmt.Sprintf("📎 Die Datei ist zu groß (maximal %d MB).", config.MaxUploadBytes>>20)
	case errors.Is(err, domain.ErrResourceNotFound):
		return "❌ Ungültige Zugangsdaten: Assistent, Unterhaltung oder Datei wurde bei OpenAI nicht gefunden."
	case errors.Is(err, domain.ErrUnauthorized):
		return "❌ Der OpenAI-API-Schlüssel wurde abgelehnt."
	case errors.Is(err, domain.ErrRateLimited):
		return "⏳ Zu viele Anfragen an OpenAI. Bitte versuchen Sie es später erneut."
	case errors.Is(err, domain.ErrEmptyReply):
		return "❌ Der Assistent hat keine Antwort geliefert."
	case errors.Is(err, context.DeadlineExceeded):
		return "⏳ Zeitüberschreitung beim Warten auf die Antwort."
	case errors.Is(err, domain.ErrUnavailable):
		return "❌ OpenAI ist derzeit nicht erreichbar. Bitte versuchen Sie es später erneut."
	default:
		return "❌ Bei der Verarbeitung ist ein Fehler aufgetreten."
	}
}

// isOperational reports errors the operator should hear about, as opposed
// to errors caused by what the user sent.
func isOperational(err error) bool {
	for _, userErr := range []error{
		domain.ErrTokenMissing,
		domain.ErrTokenUnknown,
		domain.ErrTokenExpired,
		domain.ErrTokenNotYetValid,
		domain.ErrAPIKeyMissing,
		domain.ErrTurnInProgress,
		domain.ErrEmptyPrompt,
		domain.ErrUploadTooLarge,
		domain.ErrRateLimited,
		context.Canceled,
	} {
		if errors.Is(err, userErr) {
			return false
		}
	}
	return true
}
