package store

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestJWTSessionStoreEnforcesAudience(t *testing.T) {
	signing := newSessionStore(t, "aud-signing", SessionJWTConfig{
		Issuer:   "issuer-a",
		Audience: "aud-a",
		Leeway:   time.Second,
	})
	verify := newSessionStore(t, "aud-verify", SessionJWTConfig{
		Issuer:   "issuer-a",
		Audience: "aud-b",
		Leeway:   time.Second,
	})

	token, err := signing.NewSession("acct-claim")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, _, err := verify.GetAccountUIDByToken(token); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}
}

func TestJWTSessionStoreRevokesByJTI(t *testing.T) {
	revoker := NewMemoryTokenRevoker()
	store := newSessionStore(t, "revoke-jti", SessionJWTConfig{Revoker: revoker})

	token, err := store.NewSession("acct-revoke")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := store.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := store.GetAccountUIDByToken(token); err == nil || ok {
		t.Fatalf("expected revoked token to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreRevokesByAccountCutoff(t *testing.T) {
	revoker := NewMemoryTokenRevoker()
	store := newSessionStore(t, "revoke-acct", SessionJWTConfig{Revoker: revoker})

	token, err := store.NewSession("acct-cutoff")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := revoker.RevokeAccount("acct-cutoff", time.Now().UTC()); err != nil {
		t.Fatalf("revoke account: %v", err)
	}
	if _, ok, err := store.GetAccountUIDByToken(token); err == nil || ok {
		t.Fatalf("expected acct-revoked token to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreNewSessionAndJWKS(t *testing.T) {
	privatePath, publicPath := writeRSAKeyPairFiles(t, "active")

	s, err := NewJWTSessionStore(SessionJWTConfig{
		PrivateKeyPath: privatePath,
		PublicKeyPath:  publicPath,
		KeyID:          "kid-active",
		TTL:            time.Minute,
		Revoker:        NewMemoryTokenRevoker(),
	})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}

	token, err := s.NewSession("acct-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}

	accountUID, ok, err := s.GetAccountUIDByToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if !ok || accountUID != "acct-1" {
		t.Fatalf("unexpected verify result: ok=%v accountUID=%q", ok, accountUID)
	}

	keys := s.JWKS()
	if len(keys) != 1 {
		t.Fatalf("expected 1 jwk, got %d", len(keys))
	}
	if keys[0].Kid != "kid-active" {
		t.Fatalf("unexpected kid: %q", keys[0].Kid)
	}
	if keys[0].Kty != "RSA" || keys[0].Use != "sig" || keys[0].Alg != "RS256" {
		t.Fatalf("unexpected jwk fields: %+v", keys[0])
	}
	if keys[0].N == "" || keys[0].E == "" {
		t.Fatalf("expected RSA modulus/exponent in jwks")
	}
}

func TestJWTSessionStoreRejectsForeignKey(t *testing.T) {
	oldStore := newSessionStore(t, "old", SessionJWTConfig{KeyID: "kid-old"})
	newStore := newSessionStore(t, "new", SessionJWTConfig{KeyID: "kid-new"})

	oldToken, err := oldStore.NewSession("acct-3")
	if err != nil {
		t.Fatalf("old token: %v", err)
	}
	if _, _, err := newStore.GetAccountUIDByToken(oldToken); err == nil {
		t.Fatalf("expected error for token signed under a retired key")
	}
}

func TestJWTSessionStoreRejectsFutureIssuedAt(t *testing.T) {
	privatePath, publicPath := writeRSAKeyPairFiles(t, "future-iat")
	s, err := NewJWTSessionStore(SessionJWTConfig{
		PrivateKeyPath: privatePath,
		PublicKeyPath:  publicPath,
		TTL:            time.Minute,
		Issuer:         "issuer-a",
		Audience:       "aud-a",
		Leeway:         time.Second,
	})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}

	privateKey, err := loadRSAPrivateKeyFromPEMFile(privatePath)
	if err != nil {
		t.Fatalf("load private key: %v", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "acct-future",
		Issuer:    "issuer-a",
		Audience:  jwt.ClaimStrings{"aud-a"},
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(2 * time.Minute)),
		NotBefore: jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		ID:        "jti-future",
	})
	token.Header["kid"] = defaultJWTKeyID
	signed, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, _, err := s.GetAccountUIDByToken(signed); err == nil {
		t.Fatalf("expected future iat token to fail")
	}
}

func TestJWTSessionStoreRequiresKidHeader(t *testing.T) {
	privatePath, _ := writeRSAKeyPairFiles(t, "missing-kid")
	s, err := NewJWTSessionStore(SessionJWTConfig{
		PrivateKeyPath: privatePath,
		TTL:            time.Minute,
	})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	privateKey, err := loadRSAPrivateKeyFromPEMFile(privatePath)
	if err != nil {
		t.Fatalf("load private key: %v", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "acct-missing-kid",
		Issuer:    defaultJWTIssuer,
		Audience:  jwt.ClaimStrings{defaultJWTAudience},
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		NotBefore: jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(5 * time.Minute)),
		ID:        "jti-missing-kid",
	})
	signed, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, _, err := s.GetAccountUIDByToken(signed); err == nil {
		t.Fatalf("expected missing kid token to fail")
	}
}

func TestJWTSessionStoreRequiresJTIClaim(t *testing.T) {
	privatePath, _ := writeRSAKeyPairFiles(t, "missing-jti")
	s, err := NewJWTSessionStore(SessionJWTConfig{
		PrivateKeyPath: privatePath,
		TTL:            time.Minute,
	})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	privateKey, err := loadRSAPrivateKeyFromPEMFile(privatePath)
	if err != nil {
		t.Fatalf("load private key: %v", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "acct-missing-jti",
		Issuer:    defaultJWTIssuer,
		Audience:  jwt.ClaimStrings{defaultJWTAudience},
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		NotBefore: jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(5 * time.Minute)),
	})
	token.Header["kid"] = defaultJWTKeyID
	signed, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, _, err := s.GetAccountUIDByToken(signed); err == nil {
		t.Fatalf("expected missing jti token to fail")
	}
}

func writeRSAKeyPairFiles(t *testing.T, prefix string) (string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	dir := t.TempDir()
	privatePath := filepath.Join(dir, prefix+"-private.pem")
	publicPath := filepath.Join(dir, prefix+"-public.pem")

	privateDER := x509.MarshalPKCS1PrivateKey(key)
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privateDER})
	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	return privatePath, publicPath
}

func newSessionStore(t *testing.T, prefix string, cfg SessionJWTConfig) *JWTSessionStore {
	t.Helper()
	privatePath, publicPath := writeRSAKeyPairFiles(t, prefix)
	cfg.PrivateKeyPath = privatePath
	cfg.PublicKeyPath = publicPath
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	store, err := NewJWTSessionStore(cfg)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return store
}
