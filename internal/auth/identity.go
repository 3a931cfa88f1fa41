package auth

import (
	"context"
	"errors"
	"fmt"

	"gitlab.com/dirk.krummacker/contact-api/internal/apperr"
	"gitlab.com/dirk.krummacker/contact-api/internal/model"
	"gitlab.com/dirk.krummacker/contact-api/internal/store"
)

// Identity is the authenticated user of a request.
type Identity struct {
	UserId   string
	Username string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity bound to ctx, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// UserLookup finds users by their login identifier. Both methods return store.ErrNotFound
// when no user matches.
type UserLookup interface {
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByPhone(ctx context.Context, phone string) (*model.User, error)
}

// ResolveUser looks up identifier as email first and as phone number second. It returns
// store.ErrNotFound when neither matches.
func ResolveUser(ctx context.Context, users UserLookup, identifier string) (*model.User, error) {
	user, err := users.FindUserByEmail(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return users.FindUserByPhone(ctx, identifier)
}

// AssertOwnership fails with apperr.ErrForbidden unless the resource owner is the
// authenticated user. requestedOwner must come from the stored resource, never from the
// request payload.
func AssertOwnership(requestedOwner string, authenticated Identity) error {
	if requestedOwner == "" || requestedOwner != authenticated.UserId {
		return fmt.Errorf("owner %s, caller %s: %w", requestedOwner, authenticated.UserId, apperr.ErrForbidden)
	}
	return nil
}
