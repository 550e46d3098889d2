package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevoker tracks revoked tokens until expiry.
type TokenRevoker interface {
	Revoke(token string, ttl time.Duration) error
	IsRevoked(token string) (bool, error)
}

// AccountTokenRevoker is an optional capability that records a per-account
// revocation cutoff: tokens issued at or before the cutoff are revoked.
type AccountTokenRevoker interface {
	RevokeAccount(accountUID string, since time.Time) error
	RevokedAfter(accountUID string) (time.Time, error)
}

// MemoryTokenRevoker keeps revoked tokens in-memory (single instance only).
type MemoryTokenRevoker struct {
	mu       sync.Mutex
	tokens   map[string]time.Time
	accounts map[string]time.Time
}

// NewMemoryTokenRevoker builds an in-memory revoker.
func NewMemoryTokenRevoker() *MemoryTokenRevoker {
	return &MemoryTokenRevoker{
		tokens:   make(map[string]time.Time),
		accounts: make(map[string]time.Time),
	}
}

// Revoke marks a token as revoked until its expiry.
func (r *MemoryTokenRevoker) Revoke(token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	r.tokens[token] = time.Now().Add(ttl)
	r.mu.Unlock()
	return nil
}

// IsRevoked checks if the token is revoked.
func (r *MemoryTokenRevoker) IsRevoked(token string) (bool, error) {
	r.mu.Lock()
	expiry, ok := r.tokens[token]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(r.tokens, token)
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()
	return true, nil
}

// RevokeAccount records a revocation cutoff for the account. The cutoff only
// moves forward.
func (r *MemoryTokenRevoker) RevokeAccount(accountUID string, since time.Time) error {
	r.mu.Lock()
	if current, ok := r.accounts[accountUID]; !ok || since.After(current) {
		r.accounts[accountUID] = since.UTC()
	}
	r.mu.Unlock()
	return nil
}

// RevokedAfter returns the account's revocation cutoff (zero when none).
func (r *MemoryTokenRevoker) RevokedAfter(accountUID string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[accountUID], nil
}

// RedisTokenRevoker stores revoked tokens in Redis with TTL.
type RedisTokenRevoker struct {
	client *redis.Client
}

// NewRedisTokenRevoker builds a Redis-backed revoker.
func NewRedisTokenRevoker(addr, password string) *RedisTokenRevoker {
	return &RedisTokenRevoker{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Revoke marks a token as revoked until expiry.
func (r *RedisTokenRevoker) Revoke(token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return r.client.Set(ctx, revocationKey(token), "1", ttl).Err()
}

// IsRevoked checks if the token is revoked.
func (r *RedisTokenRevoker) IsRevoked(token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := r.client.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		return false, err
	}
	return res > 0, nil
}

// RevokeAccount records a revocation cutoff for the account.
func (r *RedisTokenRevoker) RevokeAccount(accountUID string, since time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	key := accountRevocationKey(accountUID)
	current, err := r.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		if millis, parseErr := strconv.ParseInt(current, 10, 64); parseErr == nil {
			if !since.After(time.UnixMilli(millis)) {
				return nil
			}
		}
	}
	return r.client.Set(ctx, key, strconv.FormatInt(since.UTC().UnixMilli(), 10), 0).Err()
}

// RevokedAfter returns the account's revocation cutoff (zero when none).
func (r *RedisTokenRevoker) RevokedAfter(accountUID string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	raw, err := r.client.Get(ctx, accountRevocationKey(accountUID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}

func revocationKey(token string) string {
	return "identity:revoked:" + token
}

func accountRevocationKey(accountUID string) string {
	return "identity:revoked_account:" + accountUID
}
