package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Тексты кнопок. Они же ключи разбора интентов: менять синхронно с intent.go.
const (
	BtnMark   = "📝 Отметиться"
	BtnPeriod = "📆 Отсутствую с... по..."
	BtnWill   = "✅ Буду"
	BtnWont   = "❌ Не буду"
	BtnCancel = "🚫 Отмена"
)

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnMark),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnPeriod),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func attendanceKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnWill),
			tgbotapi.NewKeyboardButton(BtnWont),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnCancel),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
