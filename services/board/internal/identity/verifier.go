package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"dormlend/internal/identitytoken"
	"dormlend/pkg/domain"
)

var (
	// ErrBadCredential indicates a malformed, expired, or unsigned credential.
	ErrBadCredential = errors.New("invalid session credential")
	// ErrSubjectDisabled indicates the token was revoked or its account disabled.
	ErrSubjectDisabled = errors.New("session revoked or account disabled")
	// ErrProviderUnavailable indicates the identity provider could not be reached.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Introspector resolves a session token to its live subject state.
type Introspector interface {
	Introspect(ctx context.Context, token string) (IntrospectionResult, error)
}

// Verifier resolves session credentials to subjects. The offline JWKS check
// rejects garbage cheaply; introspection catches revocation and disabled
// accounts.
type Verifier struct {
	offline      *identitytoken.Verifier
	introspector Introspector
}

// NewVerifier builds a verifier from a JWKS token check and an introspection
// client.
func NewVerifier(offline *identitytoken.Verifier, introspector Introspector) *Verifier {
	return &Verifier{offline: offline, introspector: introspector}
}

// Verify resolves a credential to {uid, email}.
func (v *Verifier) Verify(ctx context.Context, credential string) (domain.Subject, error) {
	if v.offline != nil {
		if _, err := v.offline.VerifySubject(credential); err != nil {
			slog.Debug("offline token check failed", "err", err)
			return domain.Subject{}, ErrBadCredential
		}
	}
	result, err := v.introspector.Introspect(ctx, credential)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return domain.Subject{}, ErrBadCredential
		}
		slog.Warn("identity provider introspection failed", "err", err)
		return domain.Subject{}, ErrProviderUnavailable
	}
	if !result.Active {
		return domain.Subject{}, ErrSubjectDisabled
	}
	return domain.Subject{UID: result.UID, Email: result.Email}, nil
}
