package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/contact-api/internal/apperr"
	"gitlab.com/dirk.krummacker/contact-api/internal/auth"
	"gitlab.com/dirk.krummacker/contact-api/internal/model"
	"gitlab.com/dirk.krummacker/contact-api/internal/store"
	api "gitlab.com/dirk.krummacker/contact-api/pkg/model"
)

// UserStore is the persistence needed by UserService. *store.Store implements it.
type UserStore interface {
	auth.UserLookup
	FindUserById(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	DeleteUser(ctx context.Context, id string) error
}

// AuthRecorder counts authentication events. *metrics.Metrics implements it.
type AuthRecorder interface {
	AuthEvent(event string)
}

type noopRecorder struct{}

func (noopRecorder) AuthEvent(string) {}

// UserService implements signup, login and the self-service operations of a user account.
type UserService struct {
	store  UserStore
	hasher *auth.PasswordHasher
	tokens *auth.TokenIssuer
	events AuthRecorder
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewUserService creates the user service. events may be nil.
func NewUserService(s UserStore, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, events AuthRecorder, log logrus.FieldLogger) *UserService {
	if events == nil {
		events = noopRecorder{}
	}
	return &UserService{store: s, hasher: hasher, tokens: tokens, events: events, log: log, now: time.Now}
}

// Signup creates an account. The email is the login identifier when given, the phone number
// otherwise.
func (s *UserService) Signup(ctx context.Context, req api.SignupRequest) (*model.User, error) {
	email := strings.TrimSpace(req.Email)
	phone := strings.TrimSpace(req.Phone)
	if email == "" && phone == "" {
		return nil, fmt.Errorf("email or phone is required: %w", apperr.ErrValidation)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("password is required: %w", apperr.ErrValidation)
	}

	user := &model.User{
		FirstName:   optional(req.FirstName),
		LastName:    optional(req.LastName),
		CreatedTime: s.now().UTC(),
	}
	if email != "" {
		user.Email = &email
	} else {
		user.Phone = &phone
	}
	if err := s.assertUnclaimed(ctx, user.Username(), ""); err != nil {
		return nil, err
	}

	var err error
	user.PasswordHash, err = s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("user %s: %w", user.Username(), apperr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.events.AuthEvent("signup")
	s.log.WithField("user_id", user.Id).Info("user created")
	return user, nil
}

// Login verifies the password of the user logging in with identifier and issues a token.
func (s *UserService) Login(ctx context.Context, identifier string, password string) (*model.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		s.events.AuthEvent("login_failed")
		return nil, "", fmt.Errorf("empty username: %w", apperr.ErrInvalidCredentials)
	}
	user, err := auth.ResolveUser(ctx, s.store, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.events.AuthEvent("login_failed")
			s.log.Warn("login for unknown user")
			return nil, "", fmt.Errorf("unknown user: %w", apperr.ErrInvalidCredentials)
		}
		return nil, "", fmt.Errorf("look up user: %w", err)
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		s.events.AuthEvent("login_failed")
		s.log.WithField("user_id", user.Id).Warn("login with wrong password")
		return nil, "", fmt.Errorf("wrong password: %w", apperr.ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.Username())
	if err != nil {
		return nil, "", err
	}
	s.events.AuthEvent("login")
	s.log.WithField("user_id", user.Id).Info("user logged in")
	return user, token, nil
}

// ChangePassword replaces the password after verifying the old one.
func (s *UserService) ChangePassword(ctx context.Context, id auth.Identity, oldPassword string, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("new password is required: %w", apperr.ErrValidation)
	}
	user, err := s.self(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(user.PasswordHash, oldPassword) {
		s.log.WithField("user_id", user.Id).Warn("password change with wrong old password")
		return fmt.Errorf("old password does not match: %w", apperr.ErrInvalidCredentials)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, user.Id, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.log.WithField("user_id", user.Id).Info("password changed")
	return nil
}

// GetSelf returns the account of the authenticated user.
func (s *UserService) GetSelf(ctx context.Context, id auth.Identity) (*model.User, error) {
	return s.self(ctx, id)
}

// UpdateSelf merges req into the account. Empty fields keep the stored values. The login
// identifier can be changed but not switched between email and phone. When it changes, a new
// token for the new identifier is returned; otherwise the returned token is empty.
func (s *UserService) UpdateSelf(ctx context.Context, id auth.Identity, req api.UpdateUserRequest) (*model.User, string, error) {
	user, err := s.self(ctx, id)
	if err != nil {
		return nil, "", err
	}
	before := user.Username()

	if email := strings.TrimSpace(req.Email); email != "" && user.LoginByEmail() {
		user.Email = &email
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" && !user.LoginByEmail() {
		user.Phone = &phone
	}
	if req.FirstName != "" {
		user.FirstName = &req.FirstName
	}
	if req.LastName != "" {
		user.LastName = &req.LastName
	}
	if user.Username() != before {
		if err := s.assertUnclaimed(ctx, user.Username(), user.Id); err != nil {
			return nil, "", err
		}
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, "", fmt.Errorf("user %s: %w", user.Username(), apperr.ErrAlreadyExists)
		}
		return nil, "", fmt.Errorf("update user: %w", err)
	}

	var token string
	if user.Username() != before {
		token, err = s.tokens.Issue(user.Username())
		if err != nil {
			return nil, "", err
		}
		s.log.WithField("user_id", user.Id).Info("login identifier changed")
	}
	return user, token, nil
}

// DeleteSelf removes the account together with all its contacts.
func (s *UserService) DeleteSelf(ctx context.Context, id auth.Identity) error {
	if err := s.store.DeleteUser(ctx, id.UserId); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %s: %w", id.UserId, apperr.ErrIdentityNotFound)
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.WithField("user_id", id.UserId).Info("user deleted")
	return nil
}

func (s *UserService) self(ctx context.Context, id auth.Identity) (*model.User, error) {
	user, err := s.store.FindUserById(ctx, id.UserId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", id.UserId, apperr.ErrIdentityNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// assertUnclaimed fails with apperr.ErrAlreadyExists when identifier already logs in another
// user than self, as email or as phone. Tokens carry only the identifier, so it must resolve to
// a single account across both columns.
func (s *UserService) assertUnclaimed(ctx context.Context, identifier string, self string) error {
	owner, err := auth.ResolveUser(ctx, s.store, identifier)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("look up user: %w", err)
	case owner.Id == self:
		return nil
	}
	return fmt.Errorf("user %s: %w", identifier, apperr.ErrAlreadyExists)
}

// optional returns nil for an empty string and a pointer to s otherwise.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
