package store

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWTIssuer   = "dormlend-identity"
	defaultJWTAudience = "dormlend-api"
	defaultJWTKeyID    = "jwt-active"
)

var defaultJWTLeeway = 30 * time.Second

// SessionJWTConfig configures the RS256 session store. PublicKeyPath is
// optional; when empty the public key is derived from the private key.
type SessionJWTConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	KeyID          string
	TTL            time.Duration
	Revoker        TokenRevoker
	Issuer         string
	Audience       string
	Leeway         time.Duration
}

// JWTSessionStore issues and validates RS256 session tokens with kid/JWKS.
// Retired signing keys stay valid downstream only as long as verifiers cache
// the previous JWKS document.
type JWTSessionStore struct {
	ttl     time.Duration
	revoker TokenRevoker

	signer    *rsa.PrivateKey
	signerKid string
	public    *rsa.PublicKey

	issuer   string
	audience string
	leeway   time.Duration
}

// NewJWTSessionStore builds an RS256 session store from PEM key files.
func NewJWTSessionStore(cfg SessionJWTConfig) (*JWTSessionStore, error) {
	privateKey, err := loadRSAPrivateKeyFromPEMFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load jwt private key: %w", err)
	}

	public := &privateKey.PublicKey
	if strings.TrimSpace(cfg.PublicKeyPath) != "" {
		public, err = loadRSAPublicKeyFromPEMFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load jwt public key: %w", err)
		}
	}

	kid := strings.TrimSpace(cfg.KeyID)
	if kid == "" {
		kid = defaultJWTKeyID
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultJWTIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultJWTAudience
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultJWTLeeway
	}

	return &JWTSessionStore{
		ttl:       cfg.TTL,
		revoker:   cfg.Revoker,
		signer:    privateKey,
		signerKid: kid,
		public:    public,
		issuer:    issuer,
		audience:  audience,
		leeway:    leeway,
	}, nil
}

// NewSession creates a signed JWT for the account uid.
func (s *JWTSessionStore) NewSession(accountUID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   accountUID,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        randomHexID(12),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.signerKid
	return token.SignedString(s.signer)
}

// GetAccountUIDByToken validates a JWT and returns the subject.
func (s *JWTSessionStore) GetAccountUIDByToken(token string) (string, bool, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return "", false, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return "", false, err
		}
		if revoked {
			return "", false, errors.New("token revoked")
		}
		if accountRevoker, ok := s.revoker.(AccountTokenRevoker); ok {
			cutoff, err := accountRevoker.RevokedAfter(claims.Subject)
			if err != nil {
				return "", false, err
			}
			if !cutoff.IsZero() {
				if claims.IssuedAt == nil {
					return "", false, errors.New("token issued_at missing")
				}
				issuedAt := claims.IssuedAt.Time.UTC()
				if !issuedAt.After(cutoff) {
					return "", false, errors.New("token revoked for account")
				}
			}
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", false, errors.New("token subject missing")
	}
	return claims.Subject, true, nil
}

// DeleteSession revokes the token until it expires.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	return s.revoker.Revoke(claims.ID, ttl)
}

// RevokeAccountSessions revokes all sessions for an account issued before/at cutoff.
func (s *JWTSessionStore) RevokeAccountSessions(accountUID string, since time.Time) error {
	if s.revoker == nil {
		return nil
	}
	accountRevoker, ok := s.revoker.(AccountTokenRevoker)
	if !ok {
		return errors.New("session revoker does not support account revocation")
	}
	return accountRevoker.RevokeAccount(accountUID, since)
}

// JWKS returns the active signing key as a JSON Web Key set.
func (s *JWTSessionStore) JWKS() []JWK {
	return []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: s.signerKid,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(s.public.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(s.public.E)).Bytes()),
	}}
}

func (s *JWTSessionStore) parseAndVerify(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) != s.signerKid {
			return nil, errors.New("unknown token key")
		}
		return s.public, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("token jti missing")
	}
	return claims, nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}

func loadRSAPrivateKeyFromPEMFile(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	if pkcs1, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return pkcs1, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	privateKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not rsa")
	}
	return privateKey, nil
}

func loadRSAPublicKeyFromPEMFile(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not rsa")
	}
	return pub, nil
}
