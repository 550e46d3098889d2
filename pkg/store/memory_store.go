package store

import (
	"strings"
	"sync"

	"dormlend/pkg/domain"
)

// MemoryAccountStore keeps accounts in-process. Used in tests.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account // uid -> account
	email    map[string]string         // email -> uid
}

// NewMemoryAccountStore initializes an empty in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[string]domain.Account),
		email:    make(map[string]string),
	}
}

func (m *MemoryAccountStore) SaveAccount(a domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.accounts[a.UID]; ok && prev.Email != a.Email {
		delete(m.email, prev.Email)
	}
	m.accounts[a.UID] = a
	m.email[strings.ToLower(a.Email)] = a.UID
	return nil
}

func (m *MemoryAccountStore) HasAccountEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[strings.ToLower(email)]
	return ok, nil
}

func (m *MemoryAccountStore) GetAccountByEmail(email string) (domain.Account, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.email[strings.ToLower(email)]
	if !ok {
		return domain.Account{}, false, nil
	}
	a, exists := m.accounts[uid]
	return a, exists, nil
}

func (m *MemoryAccountStore) GetAccountByUID(uid string) (domain.Account, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[uid]
	return a, ok, nil
}

func (m *MemoryAccountStore) DeleteAccount(uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[uid]; ok {
		delete(m.email, strings.ToLower(a.Email))
		delete(m.accounts, uid)
	}
	return nil
}
