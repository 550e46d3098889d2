package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dormlend/pkg/recordstore"
	"dormlend/pkg/storage"
)

func newPhotoTestApp() *App {
	return New(Config{
		Records:  recordstore.NewMemoryStore(),
		Verifier: &fakeVerifier{},
		Provider: newFakeProvider(),
		Photos:   storage.NewMemoryObjectStore(),
	})
}

func TestAttachAndFetchPhoto(t *testing.T) {
	a := newPhotoTestApp()
	ctx := context.Background()

	id, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Blender", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, perr := a.PhotoURL(ctx, bob, id); perr == nil || perr.Kind != KindNotFound {
		t.Fatalf("expected no photo yet, got %v", perr)
	}

	photo := strings.NewReader("jpeg-bytes")
	if perr := a.AttachPhoto(ctx, bob, id, "blender.jpg", photo, int64(photo.Len())); perr == nil || perr.Kind != KindAuthorization {
		t.Fatalf("expected non-owner upload denied, got %v", perr)
	}
	if perr := a.AttachPhoto(ctx, alice, id, "blender.exe", photo, int64(photo.Len())); perr == nil || perr.Kind != KindValidation {
		t.Fatalf("expected extension rejected, got %v", perr)
	}
	if perr := a.AttachPhoto(ctx, alice, id, "blender.jpg", photo, int64(photo.Len())); perr != nil {
		t.Fatalf("attach: %v", perr)
	}

	url, perr := a.PhotoURL(ctx, bob, id)
	if perr != nil {
		t.Fatalf("photo url: %v", perr)
	}
	if !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestPhotoHiddenWithAppliance(t *testing.T) {
	a := newPhotoTestApp()
	ctx := context.Background()

	id, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Blender", false))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	photo := strings.NewReader("jpeg-bytes")
	if perr := a.AttachPhoto(ctx, alice, id, "blender.png", photo, int64(photo.Len())); perr != nil {
		t.Fatalf("attach: %v", perr)
	}

	if _, perr := a.PhotoURL(ctx, bob, id); perr == nil || perr.Kind != KindNotFound {
		t.Fatalf("hidden listing must not expose the photo, got %v", perr)
	}
	if _, perr := a.PhotoURL(ctx, alice, id); perr != nil {
		t.Fatalf("owner fetch: %v", perr)
	}
}

type deleteFailingStore struct {
	*storage.MemoryObjectStore
}

func (deleteFailingStore) Delete(context.Context, string) error {
	return errors.New("bucket unavailable")
}

func TestPhotoCleanupFailureIsNonFatal(t *testing.T) {
	a := New(Config{
		Records:  recordstore.NewMemoryStore(),
		Verifier: &fakeVerifier{},
		Provider: newFakeProvider(),
		Photos:   deleteFailingStore{storage.NewMemoryObjectStore()},
	})
	ctx := context.Background()

	id, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Blender", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	photo := strings.NewReader("jpeg-bytes")
	if perr := a.AttachPhoto(ctx, alice, id, "blender.jpg", photo, int64(photo.Len())); perr != nil {
		t.Fatalf("attach: %v", perr)
	}

	// Replacing the photo fails to delete the old object; the new key must
	// still be recorded.
	replacement := strings.NewReader("png-bytes")
	if perr := a.AttachPhoto(ctx, alice, id, "blender.png", replacement, int64(replacement.Len())); perr != nil {
		t.Fatalf("replace: %v", perr)
	}
	url, perr := a.PhotoURL(ctx, alice, id)
	if perr != nil {
		t.Fatalf("photo url: %v", perr)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Fatalf("expected replacement key, got %q", url)
	}

	if derr := a.DeleteAppliance(ctx, alice, id); derr != nil {
		t.Fatalf("delete with failing cleanup: %v", derr)
	}
}

func TestPhotoStorageUnconfigured(t *testing.T) {
	a, _ := newTestApp(nil)
	ctx := context.Background()

	id, err := a.CreateAppliance(ctx, alice, applianceFor(alice.UID, "Blender", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	photo := strings.NewReader("jpeg-bytes")
	if perr := a.AttachPhoto(ctx, alice, id, "blender.jpg", photo, int64(photo.Len())); perr == nil || perr.Kind != KindDependency {
		t.Fatalf("expected dependency error without photo storage, got %v", perr)
	}
}
