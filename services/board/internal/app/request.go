package app

import (
	"context"
	"strings"
	"time"

	"dormlend/pkg/domain"
	"dormlend/pkg/recordstore"
	"dormlend/services/board/internal/policy"
	"dormlend/services/board/internal/validate"
)

const requestCollection = "requests"

// RequestFilter narrows the open-request listing. Nil fields match
// everything; set fields are AND-combined.
type RequestFilter struct {
	ApplianceName *string
	Collateral    *bool
	MaxDuration   *int
}

// CreateRequest persists a new borrow request and returns its id.
func (a *App) CreateRequest(ctx context.Context, subject domain.Subject, payload validate.RequestCreate) (string, *Error) {
	if verr := validate.Struct(payload); verr != nil {
		return "", validationErr(verr.Field, verr.Reason)
	}
	if d := policy.CreateRequest(subject, payload.RequesterEmail); !d.Allowed {
		return "", authzErr(d.Reason)
	}
	collateral := false
	if payload.Collateral != nil {
		collateral = *payload.Collateral
	}
	request := domain.Request{
		RequestID:       recordstore.NewID(),
		RequesterEmail:  payload.RequesterEmail,
		ApplianceName:   payload.ApplianceName,
		Status:          domain.RequestOpen,
		Collateral:      collateral,
		RequestDuration: payload.RequestDuration,
		Created:         time.Now().UTC(),
	}
	if err := a.putRequest(ctx, request); err != nil {
		return "", err
	}
	return request.RequestID, nil
}

// ListRequests returns every request keyed by id.
func (a *App) ListRequests(ctx context.Context, _ domain.Subject) (map[string]domain.Request, *Error) {
	docs, err := a.records.List(ctx, requestCollection)
	if err != nil {
		return nil, dependencyErr("read requests", err)
	}
	out := make(map[string]domain.Request)
	for id, doc := range docs {
		var request domain.Request
		if err := recordstore.Unmarshal(doc, &request); err != nil {
			return nil, dependencyErr("decode request record", err)
		}
		out[id] = request
	}
	return out, nil
}

// FilterRequests returns open requests matching every supplied filter.
func (a *App) FilterRequests(ctx context.Context, subject domain.Subject, filter RequestFilter) ([]domain.Request, *Error) {
	all, err := a.ListRequests(ctx, subject)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Request, 0)
	for _, request := range all {
		if request.Status != domain.RequestOpen {
			continue
		}
		if filter.ApplianceName != nil &&
			!strings.Contains(strings.ToLower(request.ApplianceName), strings.ToLower(*filter.ApplianceName)) {
			continue
		}
		if filter.Collateral != nil && request.Collateral != *filter.Collateral {
			continue
		}
		if filter.MaxDuration != nil && request.RequestDuration > *filter.MaxDuration {
			continue
		}
		out = append(out, request)
	}
	return out, nil
}

// UpdateRequestStatus moves a request between open, fulfilled, and closed.
func (a *App) UpdateRequestStatus(ctx context.Context, subject domain.Subject, requestID string, payload validate.RequestStatusUpdate) *Error {
	if verr := validate.Struct(payload); verr != nil {
		return validationErr(verr.Field, verr.Reason)
	}
	request, err := a.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if d := policy.MutateRequest(subject, request); !d.Allowed {
		return authzErr(d.Reason)
	}
	request.Status = domain.RequestStatus(payload.Status)
	return a.putRequest(ctx, request)
}

// DeleteRequest removes a request.
func (a *App) DeleteRequest(ctx context.Context, subject domain.Subject, requestID string) *Error {
	request, err := a.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if d := policy.MutateRequest(subject, request); !d.Allowed {
		return authzErr(d.Reason)
	}
	if err := a.records.Delete(ctx, recordstore.Join(requestCollection, requestID)); err != nil {
		return dependencyErr("delete request", err)
	}
	return nil
}

func (a *App) getRequest(ctx context.Context, requestID string) (domain.Request, *Error) {
	doc, found, err := a.records.Get(ctx, recordstore.Join(requestCollection, requestID))
	if err != nil {
		return domain.Request{}, dependencyErr("read request", err)
	}
	if !found {
		return domain.Request{}, notFoundErr("request not found")
	}
	var request domain.Request
	if err := recordstore.Unmarshal(doc, &request); err != nil {
		return domain.Request{}, dependencyErr("decode request record", err)
	}
	return request, nil
}

func (a *App) putRequest(ctx context.Context, request domain.Request) *Error {
	doc, err := recordstore.Marshal(request)
	if err != nil {
		return dependencyErr("encode request record", err)
	}
	if err := a.records.Set(ctx, recordstore.Join(requestCollection, request.RequestID), doc); err != nil {
		return dependencyErr("write request", err)
	}
	return nil
}
