package telegram

import (
	"github.com/go-telegram/bot/models"
)

// Callback data of inline buttons.
const CallbackNewConversation = "new_conversation"

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// NewConversationKeyboard offers a single "new conversation" button.
func NewConversationKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard([]models.InlineKeyboardButton{
		InlineButton("🔄 Neue Unterhaltung", CallbackNewConversation),
	})
}
