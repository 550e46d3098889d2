package app

import (
	"context"
	"testing"

	"dormlend/services/board/internal/validate"
)

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func applianceFor(subject, name string, visible bool) validate.ApplianceCreate {
	return validate.ApplianceCreate{
		OwnerUID:      subject,
		OwnerUsername: subject + "-name",
		Name:          name,
		TimeAvailable: 4,
		LendTo:        "Anyone",
		IsVisible:     boolPtr(visible),
	}
}

func TestCreateApplianceOwnershipMismatch(t *testing.T) {
	a, records := newTestApp(nil)
	ctx := context.Background()

	_, err := a.CreateAppliance(ctx, bob, applianceFor(alice.UID, "Toaster", true))
	if err == nil || err.Kind != KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
	docs, lerr := records.List(ctx, "appliances")
	if lerr != nil {
		t.Fatalf("list: %v", lerr)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no record persisted, got %d", len(docs))
	}
}

func TestListAppliancesVisibilityFilter(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	visibleID, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Toaster", true))
	if err != nil {
		t.Fatalf("create visible: %v", err)
	}
	hiddenID, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Kettle", false))
	if err != nil {
		t.Fatalf("create hidden: %v", err)
	}

	asOwner, err := a.ListAppliances(ctx, alice)
	if err != nil {
		t.Fatalf("list as owner: %v", err)
	}
	if len(asOwner) != 2 {
		t.Fatalf("owner should see both listings, got %d", len(asOwner))
	}
	if _, ok := asOwner[hiddenID]; !ok {
		t.Fatal("owner should see own hidden listing")
	}

	asOther, err := a.ListAppliances(ctx, bob)
	if err != nil {
		t.Fatalf("list as other: %v", err)
	}
	if len(asOther) != 1 {
		t.Fatalf("non-owner should see one listing, got %d", len(asOther))
	}
	if _, ok := asOther[visibleID]; !ok {
		t.Fatal("non-owner should see the visible listing")
	}
}

func TestListAppliancesByOwner(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	if _, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Toaster", true)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Kettle", false)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.CreateAppliance(ctx, bob, applianceFor(bob.UID, "Iron", true)); err != nil {
		t.Fatalf("create: %v", err)
	}

	own, err := a.ListAppliancesByOwner(ctx, alice, alice.UID+"-name")
	if err != nil {
		t.Fatalf("list own: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("profile self-view should include hidden listings, got %d", len(own))
	}

	theirs, err := a.ListAppliancesByOwner(ctx, bob, alice.UID+"-name")
	if err != nil {
		t.Fatalf("list theirs: %v", err)
	}
	if len(theirs) != 1 {
		t.Fatalf("non-owner should see only visible listings, got %d", len(theirs))
	}
}

func TestUpdateApplianceMergesFields(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	id, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Toaster", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if uerr := a.UpdateAppliance(ctx, alice, id, validate.ApplianceUpdate{Name: strPtr("Toaster 2000")}); uerr != nil {
		t.Fatalf("update: %v", uerr)
	}
	got, gerr := a.getAppliance(ctx, id)
	if gerr != nil {
		t.Fatalf("get: %v", gerr)
	}
	if got.Name != "Toaster 2000" {
		t.Fatalf("expected merged name, got %q", got.Name)
	}
	if got.LendTo != "Anyone" || got.TimeAvailable != 4 {
		t.Fatalf("untouched fields must survive the merge: %+v", got)
	}

	if uerr := a.UpdateAppliance(ctx, bob, id, validate.ApplianceUpdate{Name: strPtr("Stolen")}); uerr == nil || uerr.Kind != KindAuthorization {
		t.Fatalf("expected non-owner update denied, got %v", uerr)
	}
	if uerr := a.UpdateAppliance(ctx, alice, "missing", validate.ApplianceUpdate{}); uerr == nil || uerr.Kind != KindNotFound {
		t.Fatalf("expected not found, got %v", uerr)
	}
}

func TestDeleteAppliance(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	id, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Toaster", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if derr := a.DeleteAppliance(ctx, bob, id); derr == nil || derr.Kind != KindAuthorization {
		t.Fatalf("expected non-owner delete denied, got %v", derr)
	}
	if derr := a.DeleteAppliance(ctx, alice, id); derr != nil {
		t.Fatalf("delete: %v", derr)
	}
	if _, gerr := a.getAppliance(ctx, id); gerr == nil || gerr.Kind != KindNotFound {
		t.Fatalf("expected record gone, got %v", gerr)
	}
}
