// Package tasks — handlers.go обрабатывает команды заданий:
// /checkin, /quiz (вопрос и ответ A/B), /share (текст репоста и скриншот).
package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"serotonyl.ru/ascenso-bot/internal/bot/reply"
	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/members"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
)

// Ожидаемый ввод участника.
const (
	waitQuizAnswer = "quiz_answer"
	waitSharePhoto = "share_photo"
)

const waitTTL = 10 * time.Minute

const quizQuestion = `🎓 Мини-урок дня

Сигнал LONG означает:

A) Продавать (ставка на падение)
B) Покупать (ставка на рост)

Ответьте одной буквой: A или B`

const quizCorrect = "B"

type waiting struct {
	name      string
	expiresAt time.Time
}

// Handler обрабатывает команды заданий.
type Handler struct {
	service  *Service
	members  *members.Service
	bot      reply.Sender
	shareURL string

	mu      sync.Mutex
	waiting map[int64]waiting
}

// NewHandler создаёт обработчик заданий.
func NewHandler(service *Service, memberService *members.Service, bot reply.Sender, shareURL string) *Handler {
	return &Handler{
		service:  service,
		members:  memberService,
		bot:      bot,
		shareURL: shareURL,
		waiting:  make(map[int64]waiting),
	}
}

func (h *Handler) setWaiting(userID int64, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.waiting[userID] = waiting{name: name, expiresAt: h.service.clock.Now().Add(waitTTL)}
}

// takeWaiting возвращает и сбрасывает ожидание, если оно совпадает с name.
func (h *Handler) takeWaiting(userID int64, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.waiting[userID]
	if !ok || w.name != name {
		return false
	}
	delete(h.waiting, userID)
	return w.expiresAt.After(h.service.clock.Now())
}

// HandleCheckin — ежедневная отметка.
func (h *Handler) HandleCheckin(ctx context.Context, chatID, userID int64) {
	credit, err := h.service.ClaimDaily(ctx, userID, domain.TaskDailyCheckin)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, CreditText("✅ Отметка засчитана", credit))
}

// HandleQuiz задаёт вопрос мини-урока.
func (h *Handler) HandleQuiz(ctx context.Context, chatID, userID int64) {
	if _, err := h.members.CheckEligible(ctx, userID); err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	h.setWaiting(userID, waitQuizAnswer)
	reply.Text(h.bot, chatID, quizQuestion)
}

// HandleShare показывает текст репоста и ждёт скриншот.
func (h *Handler) HandleShare(ctx context.Context, chatID, userID int64) {
	if _, err := h.members.CheckEligible(ctx, userID); err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	h.setWaiting(userID, waitSharePhoto)
	text := ShareText(h.shareURL, userID, h.service.clock.Now())
	reply.Text(h.bot, chatID, fmt.Sprintf(
		"📤 Репост (+%d)\n\n1) Опубликуйте текст ниже в группах.\n2) Пришлите сюда скриншот (фото).\n\n%s",
		h.service.eco.PointsSharePost, text))
}

// HandleText обрабатывает ответ на вопрос урока. false — текст не ожидался.
func (h *Handler) HandleText(ctx context.Context, chatID, userID int64, text string) bool {
	if !h.takeWaiting(userID, waitQuizAnswer) {
		return false
	}
	answer := strings.ToUpper(strings.TrimSpace(text))
	switch answer {
	case "A", "А": // латиница или кириллица
		reply.Text(h.bot, chatID, "❌ Неверно. LONG — это ставка на рост. Попробуйте завтра.")
		return true
	case quizCorrect, "В":
	default:
		h.setWaiting(userID, waitQuizAnswer)
		reply.Text(h.bot, chatID, "Ответьте A или B.")
		return true
	}

	credit, err := h.service.ClaimDaily(ctx, userID, domain.TaskLessonQuiz)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return true
	}
	reply.Text(h.bot, chatID, CreditText("✅ Урок пройден", credit))
	return true
}

// HandlePhoto принимает скриншот репоста. false — фото не ожидалось.
func (h *Handler) HandlePhoto(ctx context.Context, chatID, userID int64, fileID, caption string) bool {
	if !h.takeWaiting(userID, waitSharePhoto) {
		return false
	}
	claim, err := h.service.SubmitEvidence(ctx, userID, fileID, caption)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return true
	}
	reply.Text(h.bot, chatID, fmt.Sprintf(
		"✅ Скриншот отправлен.\n\n⏳ Статус: НА ПРОВЕРКЕ\nЗаявка: %s\nБаллы начислятся после одобрения администратором.",
		claim.ID))
	return true
}

// CreditText форматирует начисление и, если было, повышение уровня.
func CreditText(title string, c *Credit) string {
	text := fmt.Sprintf("%s: %s (x%s)", title, common.FormatSignedPoints(c.Points), c.Multiplier)
	if line := PromotionText(c.Promotion); line != "" {
		text += "\n" + line
	}
	return text
}

// PromotionText — строка о новом или продлённом уровне.
func PromotionText(p *tiers.Promotion) string {
	if p == nil {
		return ""
	}
	name := strings.ToUpper(string(p.Tier))
	if p.Extended {
		return fmt.Sprintf("🔁 Уровень %s продлён до %s", name, common.FormatDateTime(p.Until))
	}
	return fmt.Sprintf("🎉 Новый уровень: %s до %s", name, common.FormatDateTime(p.Until))
}
