package app

import (
	"context"
	"log/slog"
	"time"

	"dormlend/pkg/domain"
	"dormlend/pkg/recordstore"
	"dormlend/services/board/internal/policy"
	"dormlend/services/board/internal/validate"
)

const applianceCollection = "appliances"

// CreateAppliance persists a new listing and returns its id.
func (a *App) CreateAppliance(ctx context.Context, subject domain.Subject, payload validate.ApplianceCreate) (string, *Error) {
	if verr := validate.Struct(payload); verr != nil {
		return "", validationErr(verr.Field, verr.Reason)
	}
	if d := policy.CreateAppliance(subject, payload.OwnerUID); !d.Allowed {
		return "", authzErr(d.Reason)
	}
	visible := true
	if payload.IsVisible != nil {
		visible = *payload.IsVisible
	}
	appliance := domain.Appliance{
		ApplianceID:   recordstore.NewID(),
		OwnerUID:      payload.OwnerUID,
		OwnerUsername: payload.OwnerUsername,
		Name:          payload.Name,
		Description:   payload.Description,
		TimeAvailable: payload.TimeAvailable,
		LendTo:        domain.LendTo(payload.LendTo),
		IsVisible:     visible,
		Created:       time.Now().UTC(),
	}
	if err := a.putAppliance(ctx, appliance); err != nil {
		return "", err
	}
	return appliance.ApplianceID, nil
}

// ListAppliances returns every listing visible to the subject, keyed by id.
// Hidden listings show only to their owner.
func (a *App) ListAppliances(ctx context.Context, subject domain.Subject) (map[string]domain.Appliance, *Error) {
	docs, err := a.records.List(ctx, applianceCollection)
	if err != nil {
		return nil, dependencyErr("read appliances", err)
	}
	out := make(map[string]domain.Appliance)
	for id, doc := range docs {
		var appliance domain.Appliance
		if err := recordstore.Unmarshal(doc, &appliance); err != nil {
			return nil, dependencyErr("decode appliance record", err)
		}
		if !policy.ApplianceVisible(subject, appliance) {
			continue
		}
		out[id] = appliance
	}
	return out, nil
}

// ListAppliancesByOwner returns one owner's listings. The visibility filter
// still applies, so owners see their hidden listings and others do not.
func (a *App) ListAppliancesByOwner(ctx context.Context, subject domain.Subject, ownerUsername string) ([]domain.Appliance, *Error) {
	all, err := a.ListAppliances(ctx, subject)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Appliance, 0)
	for _, appliance := range all {
		if appliance.OwnerUsername == ownerUsername {
			out = append(out, appliance)
		}
	}
	return out, nil
}

// UpdateAppliance merges partial fields into an existing listing.
func (a *App) UpdateAppliance(ctx context.Context, subject domain.Subject, applianceID string, payload validate.ApplianceUpdate) *Error {
	appliance, err := a.getAppliance(ctx, applianceID)
	if err != nil {
		return err
	}
	if d := policy.MutateAppliance(subject, appliance); !d.Allowed {
		return authzErr(d.Reason)
	}
	if verr := validate.Struct(payload); verr != nil {
		return validationErr(verr.Field, verr.Reason)
	}
	if payload.Name != nil {
		appliance.Name = *payload.Name
	}
	if payload.Description != nil {
		appliance.Description = *payload.Description
	}
	if payload.TimeAvailable != nil {
		appliance.TimeAvailable = *payload.TimeAvailable
	}
	if payload.LendTo != nil {
		appliance.LendTo = domain.LendTo(*payload.LendTo)
	}
	if payload.IsVisible != nil {
		appliance.IsVisible = *payload.IsVisible
	}
	return a.putAppliance(ctx, appliance)
}

// DeleteAppliance removes a listing and its photo, if any.
func (a *App) DeleteAppliance(ctx context.Context, subject domain.Subject, applianceID string) *Error {
	appliance, err := a.getAppliance(ctx, applianceID)
	if err != nil {
		return err
	}
	if d := policy.MutateAppliance(subject, appliance); !d.Allowed {
		return authzErr(d.Reason)
	}
	if err := a.records.Delete(ctx, recordstore.Join(applianceCollection, applianceID)); err != nil {
		return dependencyErr("delete appliance", err)
	}
	if appliance.PhotoKey != "" && a.photos != nil {
		if derr := a.photos.Delete(ctx, appliance.PhotoKey); derr != nil {
			slog.Warn("failed to delete appliance photo", "key", appliance.PhotoKey, "err", derr)
		}
	}
	return nil
}

func (a *App) getAppliance(ctx context.Context, applianceID string) (domain.Appliance, *Error) {
	doc, found, err := a.records.Get(ctx, recordstore.Join(applianceCollection, applianceID))
	if err != nil {
		return domain.Appliance{}, dependencyErr("read appliance", err)
	}
	if !found {
		return domain.Appliance{}, notFoundErr("appliance not found")
	}
	var appliance domain.Appliance
	if err := recordstore.Unmarshal(doc, &appliance); err != nil {
		return domain.Appliance{}, dependencyErr("decode appliance record", err)
	}
	return appliance, nil
}

func (a *App) putAppliance(ctx context.Context, appliance domain.Appliance) *Error {
	doc, err := recordstore.Marshal(appliance)
	if err != nil {
		return dependencyErr("encode appliance record", err)
	}
	if err := a.records.Set(ctx, recordstore.Join(applianceCollection, appliance.ApplianceID), doc); err != nil {
		return dependencyErr("write appliance", err)
	}
	return nil
}
