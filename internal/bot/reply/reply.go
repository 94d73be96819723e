// Package reply — отправка ответов в Telegram, общая для всех обработчиков.
package reply

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
)

// Sender — часть tgbotapi.BotAPI, нужная обработчикам.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Text отправляет простое сообщение.
func Text(s Sender, chatID int64, text string) {
	send(s, tgbotapi.NewMessage(chatID, text))
}

// HTML отправляет сообщение с HTML-разметкой.
func HTML(s Sender, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	send(s, msg)
}

// Error отвечает на ошибку сервиса. Инфраструктурные ошибки логируются.
func Error(s Sender, chatID int64, err error) {
	if !common.IsBusiness(err) {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка обработки команды")
	}
	Text(s, chatID, common.UserMessage(err))
}

func send(s Sender, msg tgbotapi.MessageConfig) {
	if _, err := s.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", msg.ChatID).Error("Ошибка отправки сообщения")
	}
}
