// Package filters решает, где бот отвечает на сообщение.
// В личке доступно всё; в группах — только публичные команды
// (рейтинг, победители, справка), остальное просим писать в личку.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// DenyGroupText — ответ на личную команду в группе.
const DenyGroupText = "✉️ Эта команда работает только в личных сообщениях с ботом"

// Verdict — решение фильтра.
type Verdict int

const (
	// Allow — обрабатываем.
	Allow Verdict = iota
	// Ignore — молча пропускаем.
	Ignore
	// DenyGroup — отвечаем DenyGroupText.
	DenyGroup
)

// ChatFilter проверяет чат и команду.
type ChatFilter struct {
	publicCommands map[string]bool
}

// NewChatFilter создаёт фильтр. publicCommands разрешены в группах.
func NewChatFilter(publicCommands ...string) *ChatFilter {
	f := &ChatFilter{publicCommands: make(map[string]bool, len(publicCommands))}
	for _, c := range publicCommands {
		f.publicCommands[c] = true
	}
	return f
}

// Check решает судьбу сообщения. cmd пустой — обычный текст или фото.
func (f *ChatFilter) Check(message *tgbotapi.Message, cmd string) Verdict {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return Ignore
	}
	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
	})
	if message.From == nil {
		logger.Debug("deny: nil message.From (service/channel message?)")
		return Ignore
	}
	if message.From.IsBot {
		return Ignore
	}

	// 1) Личка: всё
	if message.Chat.IsPrivate() {
		return Allow
	}

	// 2) Группа: только публичные команды
	if message.Chat.IsGroup() || message.Chat.IsSuperGroup() {
		switch {
		case cmd == "":
			return Ignore
		case f.publicCommands[cmd]:
			return Allow
		default:
			logger.WithField("cmd", cmd).Debug("deny: private command in group")
			return DenyGroup
		}
	}

	// 3) Каналы игнорируем
	return Ignore
}
