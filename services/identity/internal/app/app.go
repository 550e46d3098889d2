package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dormlend/internal/util"
	"dormlend/pkg/auth"
	"dormlend/pkg/domain"
	"dormlend/pkg/store"
)

// Config holds runtime configuration for the identity core.
type Config struct {
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	SessionTTL        time.Duration
	RefreshTTL        time.Duration
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTKeyID          string
	JWTIssuer         string
	JWTAudience       string
	JWTLeeway         time.Duration
	Accounts          store.AccountStore
	Sessions          store.SessionStore
	RefreshTokens     store.RefreshTokenStore
}

// App is the identity provider core wiring together account storage and
// session management.
type App struct {
	accounts      store.AccountStore
	sessions      store.SessionStore
	refreshTokens store.RefreshTokenStore
	refreshTTL    time.Duration
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}

	accounts := cfg.Accounts
	if accounts == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		accounts, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		if strings.TrimSpace(cfg.JWTPrivateKeyPath) == "" {
			return nil, fmt.Errorf("jwtPrivateKeyPath is required")
		}
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for jwt+redis session strategy")
		}
		revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		jwtStore, err := store.NewJWTSessionStore(store.SessionJWTConfig{
			PrivateKeyPath: cfg.JWTPrivateKeyPath,
			PublicKeyPath:  cfg.JWTPublicKeyPath,
			KeyID:          cfg.JWTKeyID,
			TTL:            cfg.SessionTTL,
			Revoker:        revoker,
			Issuer:         cfg.JWTIssuer,
			Audience:       cfg.JWTAudience,
			Leeway:         cfg.JWTLeeway,
		})
		if err != nil {
			return nil, fmt.Errorf("init rs256 jwt session store: %w", err)
		}
		sessions = jwtStore
	}

	refreshStore := cfg.RefreshTokens
	if refreshStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for jwt+redis refresh token strategy")
		}
		refreshStore = store.NewRedisRefreshTokenStore(cfg.RedisAddr, cfg.RedisPassword)
	}

	return &App{
		accounts:      accounts,
		sessions:      sessions,
		refreshTokens: refreshStore,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}

// CreateAccount provisions a managed account. Called by trusted services
// during user signup, never directly by end users.
func (a *App) CreateAccount(email, username, password string) (domain.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	if email == "" || password == "" {
		return domain.Account{}, ErrEmailAndPasswordRequired
	}
	if username == "" {
		return domain.Account{}, ErrUsernameRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.Account{}, err
	}
	exists, err := a.accounts.HasAccountEmail(email)
	if err != nil {
		return domain.Account{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.Account{}, ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	account := domain.Account{
		UID:          util.NewID(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.accounts.SaveAccount(account); err != nil {
		return domain.Account{}, fmt.Errorf("save account: %w", err)
	}
	return account, nil
}

// DeleteAccount removes an account and revokes all its tokens.
func (a *App) DeleteAccount(uid string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return ErrAccountNotFound
	}
	_, found, err := a.accounts.GetAccountByUID(uid)
	if err != nil {
		return fmt.Errorf("fetch account: %w", err)
	}
	if !found {
		return ErrAccountNotFound
	}
	revokeSince := time.Now().UTC()
	if err := a.accounts.DeleteAccount(uid); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if err := a.revokeAllAccountTokens(uid, revokeSince); err != nil {
		return fmt.Errorf("revoke account tokens: %w", err)
	}
	return nil
}

// Login validates credentials and issues a session token pair.
func (a *App) Login(email, password string) (domain.Account, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	account, ok, err := a.accounts.GetAccountByEmail(email)
	if err != nil {
		return domain.Account{}, "", "", fmt.Errorf("fetch account: %w", err)
	}
	if !ok {
		return domain.Account{}, "", "", ErrInvalidCredentials
	}
	if account.Status == domain.StatusDisabled {
		return domain.Account{}, "", "", ErrAccountDisabled
	}
	if !auth.CheckPassword(password, account.PasswordHash) {
		return domain.Account{}, "", "", ErrInvalidCredentials
	}
	return a.issueAccountTokens(account)
}

// Introspect resolves a session token to its subject.
func (a *App) Introspect(token string) (domain.Subject, bool) {
	uid, ok, err := a.sessions.GetAccountUIDByToken(token)
	if err != nil || !ok {
		return domain.Subject{}, false
	}
	account, found, err := a.accounts.GetAccountByUID(uid)
	if err != nil || !found {
		return domain.Subject{}, false
	}
	if account.Status == domain.StatusDisabled {
		return domain.Subject{}, false
	}
	return domain.Subject{UID: account.UID, Email: account.Email}, true
}

// Logout invalidates access token and optional refresh token.
func (a *App) Logout(accessToken, refreshToken string) error {
	if err := a.sessions.DeleteSession(accessToken); err != nil {
		return err
	}
	return a.RevokeRefreshToken(refreshToken)
}

// Refresh rotates refresh token and issues a new token pair.
func (a *App) Refresh(refreshToken string) (domain.Account, string, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.Account{}, "", "", ErrRefreshTokenRequired
	}
	accountUID, newRefreshToken, err := a.refreshTokens.RotateToken(refreshToken, a.refreshTTL)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			return domain.Account{}, "", "", ErrInvalidRefreshToken
		}
		return domain.Account{}, "", "", fmt.Errorf("resolve refresh token: %w", err)
	}
	account, found, err := a.accounts.GetAccountByUID(accountUID)
	if err != nil {
		return domain.Account{}, "", "", fmt.Errorf("fetch account: %w", err)
	}
	if !found || account.Status == domain.StatusDisabled {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.Account{}, "", "", ErrInvalidRefreshToken
	}
	accessToken, err := a.sessions.NewSession(account.UID)
	if err != nil {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.Account{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	return account, accessToken, newRefreshToken, nil
}

// RevokeRefreshToken invalidates a refresh token explicitly.
func (a *App) RevokeRefreshToken(refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	return a.refreshTokens.DeleteToken(refreshToken)
}

// JWKS returns public signing keys when session store supports it.
func (a *App) JWKS() []store.JWK {
	provider, ok := a.sessions.(store.JWKSProvider)
	if !ok {
		return nil
	}
	return provider.JWKS()
}

func (a *App) issueAccountTokens(account domain.Account) (domain.Account, string, string, error) {
	accessToken, err := a.sessions.NewSession(account.UID)
	if err != nil {
		return domain.Account{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := a.refreshTokens.NewToken(account.UID, a.refreshTTL)
	if err != nil {
		return domain.Account{}, "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return account, accessToken, refreshToken, nil
}

func (a *App) revokeAllAccountTokens(accountUID string, since time.Time) error {
	if accountUID == "" {
		return nil
	}
	sessionRevoker, ok := a.sessions.(store.AccountSessionRevoker)
	if !ok {
		return fmt.Errorf("session store does not support account token revocation")
	}
	if err := sessionRevoker.RevokeAccountSessions(accountUID, since); err != nil {
		return err
	}
	refreshRevoker, ok := a.refreshTokens.(store.AccountRefreshTokenRevoker)
	if !ok {
		return fmt.Errorf("refresh token store does not support account token revocation")
	}
	return refreshRevoker.RevokeAccountRefreshTokens(accountUID)
}
