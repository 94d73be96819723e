// Package bot содержит главный объект бота с маршрутизацией команд.
// bot.go создаёт бот, распределяет апдейты по обработчикам и запускает polling.
package bot

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/bot/filters"
	"serotonyl.ru/ascenso-bot/internal/bot/middleware"
	"serotonyl.ru/ascenso-bot/internal/bot/reply"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/features/admin"
	"serotonyl.ru/ascenso-bot/internal/features/ledger"
	"serotonyl.ru/ascenso-bot/internal/features/members"
	"serotonyl.ru/ascenso-bot/internal/features/ranking"
	"serotonyl.ru/ascenso-bot/internal/features/redeem"
	"serotonyl.ru/ascenso-bot/internal/features/tasks"
	"serotonyl.ru/ascenso-bot/internal/features/winners"
	"serotonyl.ru/ascenso-bot/internal/metrics"
)

// Handlers — обработчики фич, между которыми бот распределяет команды.
type Handlers struct {
	Members *members.Handler
	Ledger  *ledger.Handler
	Tasks   *tasks.Handler
	Ranking *ranking.Handler
	Winners *winners.Handler
	Redeem  *redeem.Handler
	Admin   *admin.Handler
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender reply.Sender
	cfg    *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	h             Handlers
	memberService *members.Service

	parser *CommandParser

	// ограничение параллельной обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота. sender — куда уходят ответы
// (в проде — тот же *tgbotapi.BotAPI).
func New(api *tgbotapi.BotAPI, sender reply.Sender, cfg *config.Config, memberService *members.Service, h Handlers) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	rl := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	rl.Exempt(cfg.AdminIDs...)

	return &Bot{
		api:           api,
		sender:        sender,
		cfg:           cfg,
		chatFilter:    filters.NewChatFilter("ranking", "top", "winners", "help"),
		rateLimiter:   rl,
		h:             h,
		memberService: memberService,
		parser:        NewCommandParser(),
		inflight:      make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений из Telegram. Возвращается по ctx.Done().
func (b *Bot) Start(ctx context.Context) {
	defer b.rateLimiter.Close()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщений...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.drain()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот завершает работу")
				b.drain()
				return
			}

			// лимит параллельности
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// drain ждёт завершения обработчиков в полёте.
func (b *Bot) drain() {
	for i := 0; i < cap(b.inflight); i++ {
		b.inflight <- struct{}{}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic(update.UpdateID)
	started := time.Now()
	defer func() { metrics.HandlerDuration.Observe(time.Since(started).Seconds()) }()

	message := update.Message
	if message == nil {
		metrics.Updates.WithLabelValues("other").Inc()
		return
	}
	middleware.LogMessage(message)

	text := message.Text
	if len(message.Photo) > 0 {
		text = ""
	}
	cmd, args, isCommand := b.parser.ParseCommand(text)

	switch b.chatFilter.Check(message, cmd) {
	case filters.Ignore:
		metrics.Updates.WithLabelValues("ignored").Inc()
		return
	case filters.DenyGroup:
		metrics.Updates.WithLabelValues("denied").Inc()
		reply.Text(b.sender, message.Chat.ID, filters.DenyGroupText)
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// Rate limiting
	if !b.rateLimiter.Allow(userID) {
		metrics.Updates.WithLabelValues("rate_limited").Inc()
		log.WithField("user_id", userID).Debug("rate limited")
		return
	}

	// EnsureMember — каждый пишущий становится участником; /start сам
	// вызовет EnsureMember и покажет приветствие
	if cmd != "start" {
		if _, _, err := b.memberService.EnsureMember(ctx, userID,
			message.From.UserName, message.From.FirstName, message.From.LastName,
		); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("EnsureMember failed")
		}
	}

	switch {
	case len(message.Photo) > 0:
		metrics.Updates.WithLabelValues("photo").Inc()
		b.handlePhoto(ctx, message)
	case isCommand:
		metrics.Updates.WithLabelValues("command").Inc()
		log.WithFields(log.Fields{
			"cmd":  cmd,
			"args": args,
		}).Debug("parsed command")
		b.routeCommand(ctx, message, cmd, args)
	case text != "":
		metrics.Updates.WithLabelValues("text").Inc()
		b.handleText(ctx, chatID, userID, text)
	default:
		metrics.Updates.WithLabelValues("other").Inc()
	}
}

// handlePhoto — скриншот репоста.
func (b *Bot) handlePhoto(ctx context.Context, message *tgbotapi.Message) {
	// самое крупное превью — последнее
	photo := message.Photo[len(message.Photo)-1]
	if b.h.Tasks.HandlePhoto(ctx, message.Chat.ID, message.From.ID, photo.FileID, message.Caption) {
		return
	}
	reply.Text(b.sender, message.Chat.ID, "📷 Чтобы отправить скриншот репоста, сначала введите /share")
}

// handleText — ответы в диалогах (пароль админа, ответ на мини-урок).
func (b *Bot) handleText(ctx context.Context, chatID, userID int64, text string) {
	if b.h.Admin.HandleText(chatID, userID, text) {
		return
	}
	if b.h.Tasks.HandleText(ctx, chatID, userID, text) {
		return
	}
	reply.Text(b.sender, chatID, "Не понял 🤔 Список команд: /help")
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, message *tgbotapi.Message, cmd string, args []string) {
	chatID := message.Chat.ID
	userID := message.From.ID

	// в DM сначала админ-панель
	if message.Chat.IsPrivate() && b.h.Admin.HandleCommand(ctx, chatID, userID, cmd, args) {
		return
	}

	switch cmd {
	case "start":
		b.h.Members.HandleStart(ctx, chatID, message.From, args)
	case "help":
		reply.Text(b.sender, chatID, members.HelpText)
	case "policy":
		b.h.Members.HandlePolicy(chatID)
	case "accept":
		b.h.Members.HandleAccept(ctx, chatID, userID)
	case "me", "profile":
		b.h.Members.HandleProfile(ctx, chatID, userID)

	case "balance":
		b.h.Ledger.HandleBalance(ctx, chatID, userID)
	case "history":
		b.h.Ledger.HandleHistory(ctx, chatID, userID)

	case "checkin":
		b.h.Tasks.HandleCheckin(ctx, chatID, userID)
	case "quiz":
		b.h.Tasks.HandleQuiz(ctx, chatID, userID)
	case "share":
		b.h.Tasks.HandleShare(ctx, chatID, userID)

	case "ranking", "top":
		b.h.Ranking.HandleRanking(ctx, chatID, userID, args)
	case "winners":
		b.h.Winners.HandleWinners(ctx, chatID, args)
	case "redeem":
		b.h.Redeem.HandleRedeem(ctx, chatID, userID, args)

	default:
		reply.Text(b.sender, chatID, "Неизвестная команда. Список команд: /help")
	}
}

// CommandParser парсит команды с префиксами /, ! и .
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Суффикс @botname (команды в группах) отбрасывается.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}
	if command == "" {
		return "", nil, false
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}
