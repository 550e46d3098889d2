package app

import (
	"context"
	"fmt"
	"sync"

	"dormlend/pkg/domain"
	"dormlend/pkg/recordstore"
)

type fakeVerifier struct {
	subjects map[string]domain.Subject
}

func (f *fakeVerifier) Verify(_ context.Context, credential string) (domain.Subject, error) {
	subject, ok := f.subjects[credential]
	if !ok {
		return domain.Subject{}, fmt.Errorf("unknown credential")
	}
	return subject, nil
}

type fakeProvider struct {
	mu       sync.Mutex
	next     int
	accounts map[string]string // uid -> email
	byEmail  map[string]string

	createErr error
	deleteErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: make(map[string]string),
		byEmail:  make(map[string]string),
	}
}

func (f *fakeProvider) CreateAccount(_ context.Context, email, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	if _, exists := f.byEmail[email]; exists {
		return "", fmt.Errorf("email already exists")
	}
	f.next++
	uid := fmt.Sprintf("uid-%d", f.next)
	f.accounts[uid] = email
	f.byEmail[email] = uid
	return uid, nil
}

func (f *fakeProvider) DeleteAccount(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	email, ok := f.accounts[uid]
	if !ok {
		return fmt.Errorf("account not found")
	}
	delete(f.accounts, uid)
	delete(f.byEmail, email)
	return nil
}

func newTestApp(provider *fakeProvider) (*App, *recordstore.MemoryStore) {
	records := recordstore.NewMemoryStore()
	if provider == nil {
		provider = newFakeProvider()
	}
	a := New(Config{
		Records:  records,
		Verifier: &fakeVerifier{},
		Provider: provider,
	})
	return a, records
}

var (
	alice = domain.Subject{UID: "u-alice", Email: "alice@dorm.edu"}
	bob   = domain.Subject{UID: "u-bob", Email: "bob@dorm.edu"}
	carol = domain.Subject{UID: "u-carol", Email: "carol@dorm.edu"}
)
