// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Сколько символов текста попадает в лог.
const logTextLimit = 50

// LogMessage логирует входящее сообщение.
// Записывает: user_id, chat_id, username, тип чата, текст (первые 50 символов).
func LogMessage(message *tgbotapi.Message) {
	if message == nil || message.Chat == nil {
		return
	}

	fields := log.Fields{
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"text":      truncate(message.Text, logTextLimit),
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.UserName
	}
	if len(message.Photo) > 0 {
		fields["photo"] = true
		fields["caption"] = truncate(message.Caption, logTextLimit)
	}
	log.WithFields(fields).Debug("Входящее сообщение")
}

// truncate обрезает строку по рунам, а не по байтам.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
