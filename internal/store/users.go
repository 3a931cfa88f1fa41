package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contact-api/internal/model"
)

const userColumns = `id, email, phone, password_hash, firstname, lastname, created_time`

// FindUserByEmail returns the user logging in with email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return getUser(ctx, s.selectUserByEmail, email)
}

// FindUserByPhone returns the user logging in with phone.
func (s *Store) FindUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	return getUser(ctx, s.selectUserByPhone, phone)
}

// FindUserById returns the user with the given id.
func (s *Store) FindUserById(ctx context.Context, id string) (*model.User, error) {
	return getUser(ctx, s.selectUserById, id)
}

func getUser(ctx context.Context, stmt *sqlx.Stmt, arg string) (*model.User, error) {
	var user model.User
	if err := stmt.GetContext(ctx, &user, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts user and assigns its id. It returns ErrDuplicate when the email or phone
// is already taken.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.Id == "" {
		user.Id = uuid.NewString()
	}
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := sqlx.NamedExecContext(ctx, tx, `
			INSERT INTO users (id, email, phone, password_hash, firstname, lastname, created_time)
			VALUES (:id, :email, :phone, :password_hash, :firstname, :lastname, :created_time)
		`, user)
		if err != nil {
			return fmt.Errorf("insert user: %w", translate(err))
		}
		return nil
	})
}

// UpdateUser stores the login identifiers and profile fields of user.
func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE users SET email=?, phone=?, firstname=?, lastname=? WHERE id=?
		`, user.Email, user.Phone, user.FirstName, user.LastName, user.Id)
		if err != nil {
			return fmt.Errorf("update user: %w", translate(err))
		}
		return nil
	})
}

// UpdatePasswordHash replaces the password hash of the user with the given id.
func (s *Store) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, hash, id)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
}

// DeleteUser removes the user with the given id. Contacts and their emails and phones are
// removed by the cascading foreign keys.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return expectOneRow(result)
	})
}
