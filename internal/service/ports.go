// ports.go: зависимости сервисного слоя.
package service

import (
	"context"

	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
)

// IdentityProvider: операции IdP, которые использует сервисный слой.
// Реализуется *keycloak.Client.
type IdentityProvider interface {
	PasswordGrant(ctx context.Context, realm string, client keycloak.ClientCredentials, username, password string) (*keycloak.AccessToken, error)
	Introspect(ctx context.Context, realm string, client keycloak.ClientCredentials, token string) (*keycloak.IntrospectionResponse, error)

	FindUserByUsername(ctx context.Context, token, realm, username string) (*keycloak.UserRepresentation, error)
	GetUser(ctx context.Context, token, realm, id string) (*keycloak.UserRepresentation, error)
	CreateUser(ctx context.Context, token, realm string, user *keycloak.UserRepresentation) (string, error)
	UpdateUser(ctx context.Context, token, realm, id string, user *keycloak.UserRepresentation) error
	GetRealmRoleMappings(ctx context.Context, token, realm, id string) ([]keycloak.RoleRepresentation, error)
	GetUserGroups(ctx context.Context, token, realm, id string) ([]keycloak.GroupRepresentation, error)
	ResetPassword(ctx context.Context, token, realm, id string, credential keycloak.CredentialRepresentation) error

	GetRealm(ctx context.Context, token, realm string) (*keycloak.RealmRepresentation, error)
	UpdateRealm(ctx context.Context, token, realm string, settings *keycloak.BruteForceSettings) error
}

var _ IdentityProvider = (*keycloak.Client)(nil)
