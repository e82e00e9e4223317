// Пакет rbac: определение роли вызывающего в управляющем API gateway.
// Роль вычисляется из групп и realm-ролей IdP; побеждает максимальная.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// roleWeight: вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleOperator: 1,
	RoleAdmin:    2,
}

// maxRole возвращает роль с максимальными привилегиями из двух.
func maxRole(a, b string) string {
	if roleWeight[a] >= roleWeight[b] {
		return a
	}
	return b
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст: возвращает пустую строку.
func HighestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		highest = maxRole(highest, r)
	}
	return highest
}

// MapGroupsToRole определяет роль пользователя на основе его групп IdP.
// Группы могут быть заданы именем или полным путём ("/identity-admins").
// Если ни одна группа не совпала: возвращает пустую строку.
func MapGroupsToRole(groups []string, adminGroups, operatorGroups []string) string {
	adminSet := toSet(adminGroups)
	operatorSet := toSet(operatorGroups)

	var roles []string
	for _, g := range groups {
		name := trimGroupPath(g)
		if adminSet[name] {
			roles = append(roles, RoleAdmin)
		}
		if operatorSet[name] {
			roles = append(roles, RoleOperator)
		}
	}

	return HighestRole(roles)
}

// EffectiveRole возвращает итоговую роль: максимум из роли по группам
// и realm-ролей, совпадающих с именами ролей gateway.
func EffectiveRole(groupRole string, realmRoles []string) string {
	roles := []string{}
	if groupRole != "" {
		roles = append(roles, groupRole)
	}
	for _, r := range realmRoles {
		if IsValidRole(r) {
			roles = append(roles, r)
		}
	}
	return HighestRole(roles)
}

// HasAnyRole проверяет, что role входит в allowed.
func HasAnyRole(role string, allowed ...string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// trimGroupPath возвращает последний сегмент пути группы Keycloak.
func trimGroupPath(g string) string {
	for i := len(g) - 1; i >= 0; i-- {
		if g[i] == '/' {
			return g[i+1:]
		}
	}
	return g
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
