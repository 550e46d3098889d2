package identity

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type scriptedIntrospector struct {
	result IntrospectionResult
	err    error
}

func (s *scriptedIntrospector) Introspect(_ context.Context, _ string) (IntrospectionResult, error) {
	return s.result, s.err
}

func TestVerifyActiveSubject(t *testing.T) {
	v := NewVerifier(nil, &scriptedIntrospector{
		result: IntrospectionResult{Active: true, UID: "u-1", Email: "u1@dorm.edu"},
	})
	subject, err := v.Verify(context.Background(), "token")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject.UID != "u-1" || subject.Email != "u1@dorm.edu" {
		t.Fatalf("unexpected subject %+v", subject)
	}
}

func TestVerifyRevokedToken(t *testing.T) {
	v := NewVerifier(nil, &scriptedIntrospector{result: IntrospectionResult{Active: false}})
	if _, err := v.Verify(context.Background(), "token"); !errors.Is(err, ErrSubjectDisabled) {
		t.Fatalf("expected ErrSubjectDisabled, got %v", err)
	}
}

func TestVerifyRejectedCredential(t *testing.T) {
	v := NewVerifier(nil, &scriptedIntrospector{
		err: &APIError{Status: http.StatusUnauthorized, Message: "invalid token"},
	})
	if _, err := v.Verify(context.Background(), "token"); !errors.Is(err, ErrBadCredential) {
		t.Fatalf("expected ErrBadCredential, got %v", err)
	}
}

func TestVerifyProviderDown(t *testing.T) {
	v := NewVerifier(nil, &scriptedIntrospector{err: errors.New("connection refused")})
	if _, err := v.Verify(context.Background(), "token"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}

	v = NewVerifier(nil, &scriptedIntrospector{
		err: &APIError{Status: http.StatusBadGateway, Message: "upstream error"},
	})
	if _, err := v.Verify(context.Background(), "token"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable for 5xx, got %v", err)
	}
}
