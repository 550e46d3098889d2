package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dormlend/pkg/domain"
	"dormlend/pkg/recordstore"
	"dormlend/services/board/internal/identity"
	"dormlend/services/board/internal/policy"
	"dormlend/services/board/internal/validate"
)

const userCollection = "users"

// SignUp provisions an identity-provider account, then persists the profile
// under the newly assigned uid. When the provider rejects the account
// (duplicate email, weak password) no profile is written.
func (a *App) SignUp(ctx context.Context, payload validate.UserCreate) (string, *Error) {
	if verr := validate.Struct(payload); verr != nil {
		return "", validationErr(verr.Field, verr.Reason)
	}
	uid, err := a.provider.CreateAccount(ctx, payload.Email, payload.Username, payload.Password)
	if err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			field := "email"
			if apiErr.Status == http.StatusBadRequest {
				field = "password"
			}
			return "", validationErr(field, apiErr.Message)
		}
		return "", dependencyErr("create identity account", err)
	}
	user := domain.User{
		UID:       uid,
		Username:  payload.Username,
		Email:     payload.Email,
		Location:  payload.Location,
		Floor:     payload.Floor,
		IsActive:  boolOrDefault(payload.IsActive, true),
		ShowDorm:  boolOrDefault(payload.ShowDorm, true),
		ShowFloor: boolOrDefault(payload.ShowFloor, true),
		Created:   time.Now().UTC(),
	}
	if perr := a.putUser(ctx, user); perr != nil {
		// The account exists but the profile write failed. Surfaced as a
		// dependency failure; no compensating account delete (documented gap).
		return "", perr
	}
	return uid, nil
}

// ListUsers returns every profile keyed by uid. Any authenticated subject
// may read the collection.
func (a *App) ListUsers(ctx context.Context, _ domain.Subject) (map[string]domain.User, *Error) {
	docs, err := a.records.List(ctx, userCollection)
	if err != nil {
		return nil, dependencyErr("read users", err)
	}
	out := make(map[string]domain.User, len(docs))
	for _, doc := range docs {
		var user domain.User
		if err := recordstore.Unmarshal(doc, &user); err != nil {
			return nil, dependencyErr("decode user record", err)
		}
		out[user.UID] = user
	}
	return out, nil
}

// GetUserByUsername returns one profile.
func (a *App) GetUserByUsername(ctx context.Context, _ domain.Subject, username string) (domain.User, *Error) {
	return a.findUserByUsername(ctx, username)
}

// UpdateUser merges partial profile fields. Only the owner may update.
func (a *App) UpdateUser(ctx context.Context, subject domain.Subject, username string, payload validate.UserUpdate) *Error {
	user, err := a.findUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if d := policy.MutateUser(subject, user); !d.Allowed {
		return authzErr(d.Reason)
	}
	if verr := validate.Struct(payload); verr != nil {
		return validationErr(verr.Field, verr.Reason)
	}
	if payload.Username != nil {
		user.Username = *payload.Username
	}
	if payload.Location != nil {
		user.Location = *payload.Location
	}
	if payload.Floor != nil {
		user.Floor = *payload.Floor
	}
	if payload.IsActive != nil {
		user.IsActive = *payload.IsActive
	}
	if payload.ShowDorm != nil {
		user.ShowDorm = *payload.ShowDorm
	}
	if payload.ShowFloor != nil {
		user.ShowFloor = *payload.ShowFloor
	}
	// The floor ceiling depends on location, so the merged pair is checked
	// even when only one of the two fields changed.
	if verr := validate.CheckFloor(user.Location, user.Floor); verr != nil {
		return validationErr(verr.Field, verr.Reason)
	}
	return a.putUser(ctx, user)
}

// DeleteUser removes the identity-provider account first, then the profile.
// When the provider deletion fails the profile stays, so no profile is left
// without a deletable account behind it.
func (a *App) DeleteUser(ctx context.Context, subject domain.Subject, uid string) *Error {
	user, err := a.getUser(ctx, uid)
	if err != nil {
		return err
	}
	if d := policy.MutateUser(subject, user); !d.Allowed {
		return authzErr(d.Reason)
	}
	if err := a.provider.DeleteAccount(ctx, uid); err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			// Account already gone; removing the profile is still correct.
		} else {
			return dependencyErr("delete identity account", err)
		}
	}
	if err := a.records.Delete(ctx, recordstore.Join(userCollection, uid)); err != nil {
		return dependencyErr("delete user profile", err)
	}
	return nil
}

func (a *App) getUser(ctx context.Context, uid string) (domain.User, *Error) {
	doc, found, err := a.records.Get(ctx, recordstore.Join(userCollection, uid))
	if err != nil {
		return domain.User{}, dependencyErr("read user", err)
	}
	if !found {
		return domain.User{}, notFoundErr("user not found")
	}
	var user domain.User
	if err := recordstore.Unmarshal(doc, &user); err != nil {
		return domain.User{}, dependencyErr("decode user record", err)
	}
	return user, nil
}

func (a *App) findUserByUsername(ctx context.Context, username string) (domain.User, *Error) {
	docs, err := a.records.List(ctx, userCollection)
	if err != nil {
		return domain.User{}, dependencyErr("read users", err)
	}
	for _, doc := range docs {
		var user domain.User
		if err := recordstore.Unmarshal(doc, &user); err != nil {
			return domain.User{}, dependencyErr("decode user record", err)
		}
		if user.Username == username {
			return user, nil
		}
	}
	return domain.User{}, notFoundErr("user not found")
}

func (a *App) putUser(ctx context.Context, user domain.User) *Error {
	doc, err := recordstore.Marshal(user)
	if err != nil {
		return dependencyErr("encode user record", err)
	}
	if err := a.records.Set(ctx, recordstore.Join(userCollection, user.UID), doc); err != nil {
		return dependencyErr("write user profile", err)
	}
	return nil
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
