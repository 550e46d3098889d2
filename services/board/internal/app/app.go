package app

import (
	"context"

	"dormlend/pkg/domain"
	"dormlend/pkg/recordstore"
	"dormlend/pkg/storage"
)

// SubjectVerifier resolves a session credential to an authenticated subject.
type SubjectVerifier interface {
	Verify(ctx context.Context, credential string) (domain.Subject, error)
}

// AccountProvisioner manages identity-provider accounts on behalf of the
// signup and account-deletion flows.
type AccountProvisioner interface {
	CreateAccount(ctx context.Context, email, username, password string) (string, error)
	DeleteAccount(ctx context.Context, uid string) error
}

// Config wires the board core's collaborators.
type Config struct {
	Records  recordstore.Store
	Verifier SubjectVerifier
	Provider AccountProvisioner
	Photos   storage.ObjectStore
}

// App is the board core: one CRUD controller per entity, each composing
// verification, validation, policy, and the record store.
type App struct {
	records  recordstore.Store
	verifier SubjectVerifier
	provider AccountProvisioner
	photos   storage.ObjectStore
}

// New constructs the board core.
func New(cfg Config) *App {
	return &App{
		records:  cfg.Records,
		verifier: cfg.Verifier,
		provider: cfg.Provider,
		photos:   cfg.Photos,
	}
}

// VerifySubject resolves the session credential for a request.
func (a *App) VerifySubject(ctx context.Context, credential string) (domain.Subject, error) {
	return a.verifier.Verify(ctx, credential)
}
