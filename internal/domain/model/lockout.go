package model

import "time"

// BruteForcePolicyConfig: настройки brute-force защиты realm.
// Читается из IdP для каждого решения, не кэшируется.
type BruteForcePolicyConfig struct {
	// Enabled: включена ли brute-force защита
	Enabled bool
	// MaxFailures: количество неудачных попыток до блокировки
	MaxFailures int
	// LockoutWindowSeconds: длительность блокировки в секундах
	LockoutWindowSeconds int64
}

// LockoutDecision: результат проверки блокировки. Вычисляется, не хранится.
type LockoutDecision struct {
	Locked bool
	// SecondsUntilUnlock: секунд до разблокировки (всегда >= 0)
	SecondsUntilUnlock int64
}

// LockoutStatus: отчёт о состоянии блокировки пользователя.
type LockoutStatus struct {
	Username        string
	LoginAttempts   int
	MaxFailures     int
	LastFailedLogin *time.Time
	Decision        LockoutDecision
}

// RealmBruteForceSettings: настройки brute-force защиты realm, доступные для изменения.
type RealmBruteForceSettings struct {
	Protected                    bool
	FailureFactor                int
	MaxDeltaTimeSeconds          int64
	MinimumQuickLoginWaitSeconds int64
	WaitIncrementSeconds         int64
	QuickLoginCheckMilliSeconds  int64
}
