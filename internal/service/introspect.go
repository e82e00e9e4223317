// introspect.go: проверка access token через token introspection IdP.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
)

// IntrospectionService: проверка токенов клиентом gateway.
type IntrospectionService struct {
	idp    IdentityProvider
	tenant TenantClient
}

// NewIntrospectionService создаёт сервис проверки токенов.
func NewIntrospectionService(idp IdentityProvider, tenant TenantClient) *IntrospectionService {
	return &IntrospectionService{idp: idp, tenant: tenant}
}

// Validate проверяет токен. Неактивный токен: не ошибка: Active=false.
func (s *IntrospectionService) Validate(ctx context.Context, token string) (*keycloak.IntrospectionResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: токен обязателен", ErrValidation)
	}

	resp, err := s.idp.Introspect(ctx, s.tenant.Realm, s.tenant.Client, token)
	if err != nil {
		return nil, classifyProviderError("проверка токена", err)
	}
	return resp, nil
}
