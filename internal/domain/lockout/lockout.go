// Пакет lockout: решение о блокировке аккаунта brute-force защитой.
// Чистые функции без обращений к IdP: настройки и счётчики передаёт вызывающий код.
package lockout

import (
	"time"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
)

// Decide решает, заблокирован ли аккаунт, и сколько секунд осталось до разблокировки.
//
// Арифметика в целых секундах: прошедшее время округляется вниз,
// результат никогда не бывает отрицательным.
// Отсутствующее время последней неудачи при достигнутом пороге трактуется
// как блокировка на всё окно. Время из будущего (рассинхронизация часов)
// трактуется как 0 прошедших секунд.
func Decide(attemptCount int, lastFailure time.Time, cfg model.BruteForcePolicyConfig, now time.Time) model.LockoutDecision {
	if !cfg.Enabled || cfg.MaxFailures <= 0 || cfg.LockoutWindowSeconds <= 0 {
		return model.LockoutDecision{}
	}
	if attemptCount < cfg.MaxFailures {
		return model.LockoutDecision{}
	}

	var elapsed int64
	if !lastFailure.IsZero() && now.After(lastFailure) {
		elapsed = int64(now.Sub(lastFailure) / time.Second)
	}

	remaining := max(cfg.LockoutWindowSeconds-elapsed, 0)

	return model.LockoutDecision{
		Locked:             remaining > 0,
		SecondsUntilUnlock: remaining,
	}
}

// DecideForCounters: Decide по счётчикам из атрибутов пользователя.
// Отсутствующий счётчик попыток трактуется как 0.
func DecideForCounters(c model.BruteForceCounters, cfg model.BruteForcePolicyConfig, now time.Time) model.LockoutDecision {
	return Decide(c.Attempts(), c.LastFailure(), cfg, now)
}
