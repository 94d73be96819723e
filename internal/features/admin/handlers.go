// Package admin — handlers.go обрабатывает админ-команды в личных сообщениях.
// Поток: /login → команды очереди заявок, санкций, уровней, обменов и победителей.
// Санкция применяется в два шага: предпросмотр → /confirm или /cancel.
package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"serotonyl.ru/ascenso-bot/internal/bot/reply"
	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/discipline"
	"serotonyl.ru/ascenso-bot/internal/features/ledger"
	"serotonyl.ru/ascenso-bot/internal/features/redeem"
	"serotonyl.ru/ascenso-bot/internal/features/rollover"
	"serotonyl.ru/ascenso-bot/internal/features/tasks"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
	"serotonyl.ru/ascenso-bot/internal/features/winners"
)

// HelpText — список админ-команд.
const HelpText = `🛠 Админ-команды

/pending [страница] — заявки на проверке
/approve <claim_id> [заметка]
/reject <claim_id> [заметка]
/sanction <user_id> [причина] — следующая санкция (с подтверждением)
/tier <elite|titan> <user_id> <7|15|30> [заметка]
/untier <elite|titan> <user_id>
/redeem <user_id> <plus|premium>
/adjust <user_id> <±баллы> [код причины]
/win <1|2|3> <user_id> [ГГГГ-ММ] [заметка]
/winclear [ГГГГ-ММ]
/audit <user_id> [repair]
/rollover
/logout`

const pendingPageSize = 10

// Services — движок, к которому обращается админ-панель.
type Services struct {
	Ledger     *ledger.Service
	Tasks      *tasks.Service
	Tiers      *tiers.Service
	Discipline *discipline.Service
	Redeem     *redeem.Service
	Winners    *winners.Service
	Rollover   *rollover.Service
}

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	engine  Services
	bot     reply.Sender
}

// NewHandler создаёт обработчик админ-панели.
func NewHandler(service *Service, engine Services, bot reply.Sender) *Handler {
	return &Handler{service: service, engine: engine, bot: bot}
}

// adminCommands — команды, требующие активной сессии.
var adminCommands = map[string]bool{
	"admin": true, "pending": true, "approve": true, "reject": true,
	"sanction": true, "confirm": true, "cancel": true,
	"tier": true, "untier": true, "redeem": true, "adjust": true,
	"win": true, "winclear": true, "audit": true, "rollover": true, "logout": true,
}

// HandleCommand обрабатывает команду администратора в DM.
// false — команда не админская (или /redeem участника), её разбирает бот.
func (h *Handler) HandleCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}
	if cmd == "login" {
		h.handleLogin(chatID, userID, args)
		return true
	}
	if !adminCommands[cmd] {
		return false
	}
	// /redeem plus — заявка самого админа как участника
	if cmd == "redeem" && len(args) < 2 {
		return false
	}
	if err := h.service.Authorize(userID); err != nil {
		reply.Error(h.bot, chatID, err)
		h.service.SetState(userID, StateAwaitingPassword, nil)
		reply.Text(h.bot, chatID, "🔐 Введите пароль для доступа к админ-панели:")
		return true
	}

	switch cmd {
	case "admin":
		reply.Text(h.bot, chatID, HelpText)
	case "logout":
		h.service.Logout(userID)
		reply.Text(h.bot, chatID, "👋 Сессия завершена")
	case "pending":
		h.handlePending(ctx, chatID, args)
	case "approve", "reject":
		h.handleDecide(ctx, chatID, userID, cmd == "approve", args)
	case "sanction":
		h.handleSanction(ctx, chatID, userID, args)
	case "confirm":
		h.handleConfirm(ctx, chatID, userID)
	case "cancel":
		h.service.ClearState(userID)
		reply.Text(h.bot, chatID, "↩️ Отменено")
	case "tier":
		h.handleTier(ctx, chatID, userID, args)
	case "untier":
		h.handleUntier(ctx, chatID, userID, args)
	case "redeem":
		h.handleRedeem(ctx, chatID, userID, args)
	case "adjust":
		h.handleAdjust(ctx, chatID, userID, args)
	case "win":
		h.handleWin(ctx, chatID, userID, args)
	case "winclear":
		h.handleWinClear(ctx, chatID, userID, args)
	case "audit":
		h.handleAudit(ctx, chatID, args)
	case "rollover":
		h.handleRollover(ctx, chatID)
	}
	return true
}

// HandleText обрабатывает ввод пароля после запроса. false — ввод не ожидался.
func (h *Handler) HandleText(chatID, userID int64, text string) bool {
	state := h.service.GetState(userID)
	if state == nil || state.Name != StateAwaitingPassword {
		return false
	}
	h.service.ClearState(userID)
	h.login(chatID, userID, strings.TrimSpace(text))
	return true
}

func (h *Handler) handleLogin(chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.service.SetState(userID, StateAwaitingPassword, nil)
		reply.Text(h.bot, chatID, "🔐 Введите пароль для доступа к админ-панели:")
		return
	}
	h.login(chatID, userID, strings.Join(args, " "))
}

func (h *Handler) login(chatID, userID int64, password string) {
	if _, err := h.service.Login(userID, password); err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, "✅ Аутентификация успешна!\n\n"+HelpText)
}

// --- очередь заявок ---

func (h *Handler) handlePending(ctx context.Context, chatID int64, args []string) {
	page := 1
	if len(args) > 0 {
		if p, err := strconv.Atoi(args[0]); err == nil && p > 0 {
			page = p
		}
	}
	claims, err := h.engine.Tasks.ListPending(ctx, pendingPageSize, (page-1)*pendingPageSize)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, FormatPending(claims, page))
}

// FormatPending форматирует страницу очереди.
func FormatPending(claims []*domain.TaskClaim, page int) string {
	if len(claims) == 0 {
		return "📭 Заявок на проверке нет"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📥 Заявки на проверке (стр. %d)\n\n", page)
	for _, c := range claims {
		fmt.Fprintf(&sb, "• %s\n  участник %d, +%d, код %s, %s\n",
			c.ID, c.UserID, c.Points, c.WeeklyCode, common.FormatDateTime(c.CreatedAt))
		if c.Caption != "" {
			fmt.Fprintf(&sb, "  «%s»\n", c.Caption)
		}
	}
	sb.WriteString("\n/approve <id> или /reject <id> [заметка]")
	return sb.String()
}

func (h *Handler) handleDecide(ctx context.Context, chatID, adminID int64, approve bool, args []string) {
	if len(args) == 0 {
		reply.Text(h.bot, chatID, "❌ Формат: /approve <claim_id> [заметка]")
		return
	}
	note := strings.Join(args[1:], " ")
	d, err := h.engine.Tasks.Decide(ctx, args[0], approve, adminID, note)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}

	if d.Credit == nil {
		reply.Text(h.bot, chatID, fmt.Sprintf("🚫 Отклонено. Участник: %d", d.Claim.UserID))
		h.notify(d.Claim.UserID, fmt.Sprintf("🚫 Заявка на репост отклонена: %s", d.Claim.Note))
		return
	}
	reply.Text(h.bot, chatID, fmt.Sprintf("✅ Одобрено: %s участнику %d (x%s)",
		common.FormatSignedPoints(d.Credit.Points), d.Claim.UserID, d.Credit.Multiplier))
	h.notify(d.Claim.UserID, tasks.CreditText("✅ Репост одобрен", d.Credit))
}

// notify пишет участнику в личку. Ошибка не прерывает админ-действие.
func (h *Handler) notify(userID int64, text string) {
	reply.Text(h.bot, userID, text)
}

// --- санкции ---

func (h *Handler) handleSanction(ctx context.Context, chatID, adminID int64, args []string) {
	target, ok := h.parseUser(chatID, args, "/sanction <user_id> [причина]")
	if !ok {
		return
	}
	out, err := h.engine.Discipline.Preview(ctx, target)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	draft := SanctionDraft{UserID: target, Note: strings.Join(args[1:], " ")}
	if out.Level == discipline.LevelBan && draft.Note != "" {
		out.BanReason = draft.Note
	}
	h.service.SetState(adminID, StateConfirmSanction, draft)
	reply.Text(h.bot, chatID, fmt.Sprintf("Участник %d, нарушение №%d.\nБудет применено: %s\n\n/confirm — применить, /cancel — отменить",
		target, out.Count, out.Message()))
}

func (h *Handler) handleConfirm(ctx context.Context, chatID, adminID int64) {
	state := h.service.GetState(adminID)
	if state == nil || state.Name != StateConfirmSanction {
		reply.Text(h.bot, chatID, "Нечего подтверждать")
		return
	}
	h.service.ClearState(adminID)
	draft := state.Data.(SanctionDraft)

	out, err := h.engine.Discipline.ApplyNext(ctx, draft.UserID, adminID, draft.Note)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, out.Message())
	h.notify(draft.UserID, out.Message())
}

// --- уровни ---

func parseTier(s string) (domain.TierKind, bool) {
	switch domain.TierKind(strings.ToLower(s)) {
	case domain.TierElite:
		return domain.TierElite, true
	case domain.TierTitan:
		return domain.TierTitan, true
	}
	return "", false
}

func (h *Handler) handleTier(ctx context.Context, chatID, adminID int64, args []string) {
	const usage = "❌ Формат: /tier <elite|titan> <user_id> <7|15|30> [заметка]"
	if len(args) < 3 {
		reply.Text(h.bot, chatID, usage)
		return
	}
	kind, ok := parseTier(args[0])
	target, err := strconv.ParseInt(args[1], 10, 64)
	days, derr := strconv.Atoi(args[2])
	if !ok || err != nil || derr != nil {
		reply.Text(h.bot, chatID, usage)
		return
	}
	slot, err := h.engine.Tiers.ForceSet(ctx, target, kind, days, adminID, strings.Join(args[3:], " "))
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, fmt.Sprintf("✅ %s включён участнику %d на %d %s (до %s)",
		strings.ToUpper(string(kind)), target, days, common.PluralizeDays(days), common.FormatDateTime(*slot.ActiveUntil)))
}

func (h *Handler) handleUntier(ctx context.Context, chatID, adminID int64, args []string) {
	const usage = "❌ Формат: /untier <elite|titan> <user_id>"
	if len(args) < 2 {
		reply.Text(h.bot, chatID, usage)
		return
	}
	kind, ok := parseTier(args[0])
	target, err := strconv.ParseInt(args[1], 10, 64)
	if !ok || err != nil {
		reply.Text(h.bot, chatID, usage)
		return
	}
	if err := h.engine.Tiers.ForceUnset(ctx, target, kind, adminID); err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, fmt.Sprintf("✅ %s снят с участника %d", strings.ToUpper(string(kind)), target))
}

// --- баллы ---

func (h *Handler) handleRedeem(ctx context.Context, chatID, adminID int64, args []string) {
	target, ok := h.parseUser(chatID, args, "/redeem <user_id> <plus|premium>")
	if !ok {
		return
	}
	plan := domain.PlanType(strings.ToUpper(args[1]))
	r, err := h.engine.Redeem.RedeemPlan(ctx, target, plan, adminID)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	text := fmt.Sprintf("✅ %s активирован участнику %d до %s. Списано %s.",
		r.Plan, target, common.FormatDateTime(r.ExpiresAt), common.FormatPoints(r.Cost))
	if r.BonusPoints > 0 {
		text += fmt.Sprintf("\n🎁 Бонус за первый обмен: %s", common.FormatSignedPoints(r.BonusPoints))
	}
	if line := tasks.PromotionText(r.Promotion); line != "" {
		text += "\n" + line
	}
	reply.Text(h.bot, chatID, text)
	h.notify(target, text)
}

func (h *Handler) handleAdjust(ctx context.Context, chatID, adminID int64, args []string) {
	const usage = "❌ Формат: /adjust <user_id> <±баллы> [код причины]"
	if len(args) < 2 {
		reply.Text(h.bot, chatID, usage)
		return
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	delta, derr := strconv.ParseInt(args[1], 10, 64)
	if err != nil || derr != nil || delta == 0 {
		reply.Text(h.bot, chatID, usage)
		return
	}
	var reason string
	if len(args) > 2 {
		reason = strings.ToUpper(args[2])
	}
	entryID, err := h.engine.Ledger.PostAdjustment(ctx, target, delta, reason, map[string]any{"admin_id": adminID})
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, fmt.Sprintf("✅ %s участнику %d (%s)", common.FormatSignedPoints(delta), target, entryID))
}

func (h *Handler) handleAudit(ctx context.Context, chatID int64, args []string) {
	target, ok := h.parseUser(chatID, args, "/audit <user_id> [repair]")
	if !ok {
		return
	}
	repair := len(args) > 1 && strings.EqualFold(args[1], "repair")
	audit, err := h.engine.Ledger.Reconcile(ctx, target, repair)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, audit.Message())
}

// --- победители и период ---

func (h *Handler) handleWin(ctx context.Context, chatID, adminID int64, args []string) {
	const usage = "❌ Формат: /win <1|2|3> <user_id> [ГГГГ-ММ] [заметка]"
	if len(args) < 2 {
		reply.Text(h.bot, chatID, usage)
		return
	}
	position, err := strconv.Atoi(args[0])
	target, terr := strconv.ParseInt(args[1], 10, 64)
	if err != nil || terr != nil {
		reply.Text(h.bot, chatID, usage)
		return
	}
	rest := args[2:]
	var period string
	if len(rest) > 0 && common.ValidPeriodKey(rest[0]) {
		period, rest = rest[0], rest[1:]
	}
	w, replaced, err := h.engine.Winners.Upsert(ctx, period, position, target, adminID, strings.Join(rest, " "))
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	text := fmt.Sprintf("✅ %s: %d место — %s (%s)", w.PeriodKey, w.Position, w.DisplayName, common.FormatPoints(w.PeriodPoints))
	if replaced {
		text += "\n(прежний победитель на этом месте заменён)"
	}
	reply.Text(h.bot, chatID, text)
}

func (h *Handler) handleWinClear(ctx context.Context, chatID, adminID int64, args []string) {
	var period string
	if len(args) > 0 {
		period = args[0]
	}
	period, err := h.engine.Winners.Clear(ctx, period, adminID)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, fmt.Sprintf("🧹 Победители %s удалены", period))
}

func (h *Handler) handleRollover(ctx context.Context, chatID int64) {
	res, err := h.engine.Rollover.EnsureRollover(ctx)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, "🔄 "+res.Message())
}

// parseUser разбирает user_id из первого аргумента, иначе отвечает форматом.
func (h *Handler) parseUser(chatID int64, args []string, usage string) (int64, bool) {
	if len(args) == 0 {
		reply.Text(h.bot, chatID, "❌ Формат: "+usage)
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		reply.Text(h.bot, chatID, "❌ Формат: "+usage)
		return 0, false
	}
	return id, true
}
