package app

import (
	"context"
	"testing"
	"time"

	"dormlend/services/board/internal/validate"
)

func TestSendMessageSenderMismatch(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	_, err := a.SendMessage(ctx, bob, validate.MessageSend{
		SenderUID:    alice.UID,
		RecipientUID: bob.UID,
		Text:         "spoofed",
	})
	if err == nil || err.Kind != KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestSendMessageToSelf(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	id, err := a.SendMessage(ctx, alice, validate.MessageSend{
		SenderUID:    alice.UID,
		RecipientUID: alice.UID,
		Text:         "note to self: return the kettle",
	})
	if err != nil {
		t.Fatalf("send to self: %v", err)
	}
	messages, lerr := a.ListConversation(ctx, alice, alice.UID, alice.UID)
	if lerr != nil {
		t.Fatalf("list: %v", lerr)
	}
	if len(messages) != 1 || messages[0].MessageID != id {
		t.Fatalf("expected the self thread, got %+v", messages)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	before := time.Now().UnixMilli()
	firstID, err := a.SendMessage(ctx, alice, validate.MessageSend{
		SenderUID:    alice.UID,
		RecipientUID: bob.UID,
		Text:         "can I borrow the toaster?",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := a.SendMessage(ctx, bob, validate.MessageSend{
		SenderUID:    bob.UID,
		RecipientUID: alice.UID,
		Text:         "sure, come by",
	}); err != nil {
		t.Fatalf("reply: %v", err)
	}

	// Either participant lists the same thread, in either uid order.
	messages, lerr := a.ListConversation(ctx, bob, bob.UID, alice.UID)
	if lerr != nil {
		t.Fatalf("list: %v", lerr)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].MessageID != firstID {
		t.Fatalf("expected ascending timestamp order, first=%q", messages[0].MessageID)
	}
	if messages[0].SenderUID != alice.UID || messages[0].Text != "can I borrow the toaster?" {
		t.Fatalf("unexpected first message: %+v", messages[0])
	}
	if messages[0].Timestamp < before {
		t.Fatalf("timestamp %d predates send call %d", messages[0].Timestamp, before)
	}
	if messages[1].Timestamp < messages[0].Timestamp {
		t.Fatal("messages out of order")
	}
}

func TestListConversationParticipantsOnly(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	if _, err := a.SendMessage(ctx, alice, validate.MessageSend{
		SenderUID:    alice.UID,
		RecipientUID: bob.UID,
		Text:         "private",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, lerr := a.ListConversation(ctx, carol, alice.UID, bob.UID); lerr == nil || lerr.Kind != KindAuthorization {
		t.Fatalf("expected outsider denied, got %v", lerr)
	}
}

func TestListConversationEmptyIsNotAnError(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	messages, lerr := a.ListConversation(ctx, alice, alice.UID, carol.UID)
	if lerr != nil {
		t.Fatalf("expected empty conversation to succeed, got %v", lerr)
	}
	if messages == nil || len(messages) != 0 {
		t.Fatalf("expected empty slice, got %v", messages)
	}
}

func TestListConversationRequiresBothUids(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	if _, lerr := a.ListConversation(ctx, alice, alice.UID, ""); lerr == nil || lerr.Kind != KindValidation {
		t.Fatalf("expected validation error, got %v", lerr)
	}
}
