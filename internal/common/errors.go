// Package common — errors.go определяет ошибки, общие для всех модулей.
//
// Ошибки делятся на два класса:
//   - ErrContractViolation — ошибка вызывающего кода (нулевая сумма, ADJUST через
//     PostEntry и т.п.). Операция не выполняется, ничего не пишется в хранилище.
//   - бизнес-исходы (пользователь не найден, заявка уже обработана, ...) —
//     штатные отказы с понятным текстом, обработчики ветвятся по errors.Is.
package common

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

// ErrContractViolation — нарушение контракта вызова. Всегда оборачивается
// с подробностями: fmt.Errorf("%w: ...", ErrContractViolation).
var ErrContractViolation = errors.New("нарушение контракта")

// Ошибки участников
var (
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден, напишите /start")
	// ErrPolicyNotAccepted — правила ещё не приняты
	ErrPolicyNotAccepted = errors.New("сначала примите правила: /policy и /accept")
	// ErrUserBlocked — временная блокировка
	ErrUserBlocked = errors.New("⛔ вы временно заблокированы")
	// ErrUserBanned — пользователь исключён навсегда
	ErrUserBanned = errors.New("🚫 пользователь исключён из системы")
)

// Ошибки баллов и обменов
var (
	// ErrInsufficientBalance — не хватает баллов или пользователь заблокирован
	ErrInsufficientBalance = errors.New("недостаточно баллов или пользователь заблокирован")
	// ErrInvalidPlan — неизвестный тариф
	ErrInvalidPlan = errors.New("неизвестный тариф (PLUS или PREMIUM)")
)

// Ошибки заданий
var (
	// ErrAlreadyClaimed — ежедневное задание уже выполнено сегодня
	ErrAlreadyClaimed = errors.New("✅ сегодня уже засчитано")
	// ErrClaimNotFound — заявка не найдена
	ErrClaimNotFound = errors.New("заявка не найдена")
	// ErrClaimProcessed — заявка уже обработана (возможно, другим админом)
	ErrClaimProcessed = errors.New("заявка уже обработана")
	// ErrClaimNotManual — заявку нельзя решать вручную
	ErrClaimNotManual = errors.New("эта заявка не требует ручной проверки")
)

// Ошибки уровней и дисциплины
var (
	// ErrInvalidTierDays — срок ручного уровня вне 7/15/30
	ErrInvalidTierDays = errors.New("срок должен быть 7, 15 или 30 дней")
	// ErrAlreadyBanned — повторное нарушение для исключённого
	ErrAlreadyBanned = errors.New("пользователь уже исключён")
)

// Ошибки рейтинга и победителей
var (
	// ErrInvalidPosition — допустимы только места 1, 2, 3
	ErrInvalidPosition = errors.New("недопустимое место (только 1, 2 или 3)")
	// ErrNoWinners — для периода победители не сохранены
	ErrNoWinners = errors.New("победители за этот месяц не сохранены")
	// ErrSnapshotNotFound — снимка за период нет
	ErrSnapshotNotFound = errors.New("снимок за этот месяц не найден")
	// ErrInvalidPeriod — ключ периода не в формате YYYY-MM
	ErrInvalidPeriod = errors.New("период должен быть в формате ГГГГ-ММ")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)

var businessErrors = []error{
	ErrUserNotFound, ErrPolicyNotAccepted, ErrUserBlocked, ErrUserBanned,
	ErrInsufficientBalance, ErrInvalidPlan,
	ErrAlreadyClaimed, ErrClaimNotFound, ErrClaimProcessed, ErrClaimNotManual,
	ErrInvalidTierDays, ErrAlreadyBanned,
	ErrInvalidPosition, ErrNoWinners, ErrSnapshotNotFound, ErrInvalidPeriod,
	ErrNotAdmin, ErrWrongPassword, ErrTooManyAttempts, ErrSessionExpired,
}

// IsBusiness сообщает, является ли err штатным бизнес-отказом.
// Такой текст можно показать пользователю как есть.
func IsBusiness(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserMessage — текст ошибки для ответа пользователю. Бизнес-отказ
// показывается как есть (без обёрток), остальное — общей фразой.
// Тексты без собственного значка получают ❌.
func UserMessage(err error) string {
	for _, target := range businessErrors {
		if !errors.Is(err, target) {
			continue
		}
		text := target.Error()
		if r, _ := utf8.DecodeRuneInString(text); unicode.IsLetter(r) {
			return "❌ " + text
		}
		return text
	}
	return "❌ Внутренняя ошибка, попробуйте позже"
}
