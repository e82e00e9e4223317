package model

// UserDetails: пользователь IdP с realm-ролями и группами.
// Не хранится в БД: формируется из данных IdP.
type UserDetails struct {
	IdentityRecord
	// RealmRoles: realm-роли пользователя
	RealmRoles []string
	// Groups: группы пользователя
	Groups []string
	// GatewayRole: роль в Identity Gateway (admin, operator или пусто)
	GatewayRole string
}

// UserAccess: роли и группы пользователя (кэшируемая часть UserDetails).
type UserAccess struct {
	RealmRoles []string
	Groups     []string
}
