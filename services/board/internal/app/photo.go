package app

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"dormlend/pkg/domain"
	"dormlend/pkg/recordstore"
	"dormlend/services/board/internal/policy"
)

var photoExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

const photoURLTTL = 15 * time.Minute

// AttachPhoto stores a listing photo and records its object key. Owner only.
func (a *App) AttachPhoto(ctx context.Context, subject domain.Subject, applianceID, filename string, file io.Reader, size int64) *Error {
	if a.photos == nil {
		return dependencyErr("photo storage not configured", nil)
	}
	appliance, err := a.getAppliance(ctx, applianceID)
	if err != nil {
		return err
	}
	if d := policy.MutateAppliance(subject, appliance); !d.Allowed {
		return authzErr(d.Reason)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := photoExtensions[ext]; !ok {
		return validationErr("photo", "unsupported image type")
	}
	contentType := mime.TypeByExtension(ext)
	key := recordstore.Join(applianceCollection, applianceID, "photo"+ext)
	if perr := a.photos.Put(ctx, key, file, size, contentType); perr != nil {
		return dependencyErr("store photo", perr)
	}
	if appliance.PhotoKey != "" && appliance.PhotoKey != key {
		if derr := a.photos.Delete(ctx, appliance.PhotoKey); derr != nil {
			slog.Warn("failed to delete replaced photo", "key", appliance.PhotoKey, "err", derr)
		}
	}
	appliance.PhotoKey = key
	return a.putAppliance(ctx, appliance)
}

// PhotoURL returns a short-lived download URL for a listing photo. The
// appliance's visibility rule applies.
func (a *App) PhotoURL(ctx context.Context, subject domain.Subject, applianceID string) (string, *Error) {
	if a.photos == nil {
		return "", dependencyErr("photo storage not configured", nil)
	}
	appliance, err := a.getAppliance(ctx, applianceID)
	if err != nil {
		return "", err
	}
	if !policy.ApplianceVisible(subject, appliance) {
		return "", notFoundErr("appliance not found")
	}
	if appliance.PhotoKey == "" {
		return "", notFoundErr("appliance has no photo")
	}
	url, perr := a.photos.PresignGet(ctx, appliance.PhotoKey, photoURLTTL)
	if perr != nil {
		return "", dependencyErr("presign photo", perr)
	}
	return url, nil
}
