package app

import (
	"context"
	"sort"
	"time"

	"dormlend/pkg/domain"
	"dormlend/pkg/recordstore"
	"dormlend/services/board/internal/policy"
	"dormlend/services/board/internal/validate"
)

const messageCollection = "messages"

// SendMessage appends a message to the canonical conversation between sender
// and recipient and returns the message id. The timestamp is assigned here,
// not by the client.
func (a *App) SendMessage(ctx context.Context, subject domain.Subject, payload validate.MessageSend) (string, *Error) {
	if verr := validate.Struct(payload); verr != nil {
		return "", validationErr(verr.Field, verr.Reason)
	}
	if d := policy.SendMessage(subject, payload.SenderUID); !d.Allowed {
		return "", authzErr(d.Reason)
	}
	message := domain.Message{
		MessageID:    recordstore.NewID(),
		SenderUID:    payload.SenderUID,
		RecipientUID: payload.RecipientUID,
		Text:         payload.Text,
		Timestamp:    time.Now().UnixMilli(),
	}
	doc, err := recordstore.Marshal(message)
	if err != nil {
		return "", dependencyErr("encode message record", err)
	}
	key := domain.ConversationKey(payload.SenderUID, payload.RecipientUID)
	path := recordstore.Join(messageCollection, key, message.MessageID)
	if err := a.records.Set(ctx, path, doc); err != nil {
		return "", dependencyErr("write message", err)
	}
	return message.MessageID, nil
}

// ListConversation returns the thread between two uids in ascending
// timestamp order. An empty conversation is an empty slice, not an error.
func (a *App) ListConversation(ctx context.Context, subject domain.Subject, uidA, uidB string) ([]domain.Message, *Error) {
	if uidA == "" || uidB == "" {
		return nil, validationErr("userAUid", "both participant uids are required")
	}
	if d := policy.ReadConversation(subject, uidA, uidB); !d.Allowed {
		return nil, authzErr(d.Reason)
	}
	key := domain.ConversationKey(uidA, uidB)
	docs, err := a.records.List(ctx, recordstore.Join(messageCollection, key))
	if err != nil {
		return nil, dependencyErr("read conversation", err)
	}
	out := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		var message domain.Message
		if err := recordstore.Unmarshal(doc, &message); err != nil {
			return nil, dependencyErr("decode message record", err)
		}
		out = append(out, message)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].MessageID < out[j].MessageID
	})
	return out, nil
}
