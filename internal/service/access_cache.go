// access_cache.go: LRU-кэш realm-ролей и групп пользователей с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
// Для решений о блокировке не используется: там данные читаются из IdP каждый раз.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	accessCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_gateway_access_cache_hits_total",
		Help: "Общее количество попаданий в кэш ролей и групп пользователей.",
	})
	accessCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_gateway_access_cache_misses_total",
		Help: "Общее количество промахов кэша ролей и групп пользователей.",
	})
)

// AccessCache: кэш ролей и групп пользователей по Keycloak ID.
// Каждый экземпляр gateway имеет собственный in-memory кэш.
type AccessCache struct {
	cache *expirable.LRU[string, model.UserAccess]
}

// NewAccessCache создаёт кэш с указанным максимальным размером и TTL.
func NewAccessCache(maxSize int, ttl time.Duration) *AccessCache {
	return &AccessCache{cache: expirable.NewLRU[string, model.UserAccess](maxSize, nil, ttl)}
}

// Get возвращает роли и группы пользователя из кэша.
func (c *AccessCache) Get(userID string) (model.UserAccess, bool) {
	val, ok := c.cache.Get(userID)
	if ok {
		accessCacheHits.Inc()
		return val, true
	}
	accessCacheMisses.Inc()
	return model.UserAccess{}, false
}

// Set добавляет или обновляет запись.
func (c *AccessCache) Set(userID string, access model.UserAccess) {
	c.cache.Add(userID, access)
}

// Delete удаляет запись (после изменения пользователя).
func (c *AccessCache) Delete(userID string) {
	c.cache.Remove(userID)
}
