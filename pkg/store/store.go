package store

import (
	"time"

	"dormlend/pkg/domain"
)

// AccountStore defines persistence operations for identity-provider accounts.
type AccountStore interface {
	SaveAccount(domain.Account) error
	HasAccountEmail(email string) (bool, error)
	GetAccountByEmail(email string) (domain.Account, bool, error)
	GetAccountByUID(uid string) (domain.Account, bool, error)
	DeleteAccount(uid string) error
}

// SessionStore issues and validates session credentials.
type SessionStore interface {
	NewSession(accountUID string) (string, error)
	GetAccountUIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// AccountSessionRevoker is an optional capability that revokes all sessions
// issued for an account since a cutoff time.
type AccountSessionRevoker interface {
	RevokeAccountSessions(accountUID string, since time.Time) error
}

// AccountRefreshTokenRevoker is an optional capability that revokes all
// refresh tokens for an account.
type AccountRefreshTokenRevoker interface {
	RevokeAccountRefreshTokens(accountUID string) error
}

// JWK represents a JSON Web Key entry used by JWKS endpoints.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JWKSProvider is an optional capability exposed by session stores that can
// publish JSON Web Keys.
type JWKSProvider interface {
	JWKS() []JWK
}
