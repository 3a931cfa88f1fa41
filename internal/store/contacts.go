package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contact-api/internal/model"
)

const contactColumns = `id, user_id, title, firstname, lastname`

// FindContact returns the contact with the given id including its emails and phones.
func (s *Store) FindContact(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	if err := s.selectContactById.GetContext(ctx, &contact, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select contact: %w", err)
	}
	if err := s.selectEmailsByContact.SelectContext(ctx, &contact.Emails, id); err != nil {
		return nil, fmt.Errorf("select contact emails: %w", err)
	}
	if err := s.selectPhonesByContact.SelectContext(ctx, &contact.Phones, id); err != nil {
		return nil, fmt.Errorf("select contact phones: %w", err)
	}
	return &contact, nil
}

// CountContacts returns the number of contacts owned by userId.
func (s *Store) CountContacts(ctx context.Context, userId string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM contacts WHERE user_id = ?`, userId); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return count, nil
}

// ListContacts returns a slice of the contacts owned by userId, sorted by first and last name.
// Emails and phones are not loaded.
func (s *Store) ListContacts(ctx context.Context, userId string, limit int, offset int) ([]model.Contact, error) {
	contacts := []model.Contact{}
	err := s.db.SelectContext(ctx, &contacts, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id = ?
		ORDER BY firstname, lastname, id
		LIMIT ?
		OFFSET ?`, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// SearchContacts returns up to limit contacts owned by userId whose first or last name
// contains query, ignoring case. Emails and phones are not loaded.
func (s *Store) SearchContacts(ctx context.Context, userId string, query string, limit int) ([]model.Contact, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	contacts := []model.Contact{}
	err := s.db.SelectContext(ctx, &contacts, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id = ?
			AND (LOWER(firstname) LIKE ? OR LOWER(lastname) LIKE ?)
		ORDER BY firstname, lastname, id
		LIMIT ?`, userId, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return contacts, nil
}

// escapeLike escapes the LIKE wildcards in s so they match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// CreateContact inserts contact together with its emails and phones and assigns all ids.
func (s *Store) CreateContact(ctx context.Context, contact *model.Contact) error {
	if contact.Id == "" {
		contact.Id = uuid.NewString()
	}
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := sqlx.NamedExecContext(ctx, tx, `
			INSERT INTO contacts (id, user_id, title, firstname, lastname)
			VALUES (:id, :user_id, :title, :firstname, :lastname)
		`, contact)
		if err != nil {
			return fmt.Errorf("insert contact: %w", err)
		}
		if err := insertEmails(ctx, tx, contact); err != nil {
			return err
		}
		return insertPhones(ctx, tx, contact)
	})
}

// UpdateContact stores the name fields of contact. When replaceEmails (replacePhones) is set,
// the stored emails (phones) are replaced by those of contact. The owner is never changed.
func (s *Store) UpdateContact(ctx context.Context, contact *model.Contact, replaceEmails bool, replacePhones bool) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE contacts SET title=?, firstname=?, lastname=? WHERE id=?
		`, contact.Title, contact.FirstName, contact.LastName, contact.Id)
		if err != nil {
			return fmt.Errorf("update contact: %w", err)
		}
		if replaceEmails {
			if _, err := tx.ExecContext(ctx, `DELETE FROM contact_emails WHERE contact_id=?`, contact.Id); err != nil {
				return fmt.Errorf("delete contact emails: %w", err)
			}
			if err := insertEmails(ctx, tx, contact); err != nil {
				return err
			}
		}
		if replacePhones {
			if _, err := tx.ExecContext(ctx, `DELETE FROM contact_phones WHERE contact_id=?`, contact.Id); err != nil {
				return fmt.Errorf("delete contact phones: %w", err)
			}
			if err := insertPhones(ctx, tx, contact); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteContact removes the contact with the given id together with its emails and phones.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE id=?`, id)
		if err != nil {
			return fmt.Errorf("delete contact: %w", err)
		}
		return expectOneRow(result)
	})
}

func insertEmails(ctx context.Context, tx *sqlx.Tx, contact *model.Contact) error {
	for i := range contact.Emails {
		email := &contact.Emails[i]
		email.Id = uuid.NewString()
		email.ContactId = contact.Id
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contact_emails (id, contact_id, email_type, email_value) VALUES (?, ?, ?, ?)
		`, email.Id, email.ContactId, email.Type, email.Value)
		if err != nil {
			return fmt.Errorf("insert contact email: %w", err)
		}
	}
	return nil
}

func insertPhones(ctx context.Context, tx *sqlx.Tx, contact *model.Contact) error {
	for i := range contact.Phones {
		phone := &contact.Phones[i]
		phone.Id = uuid.NewString()
		phone.ContactId = contact.Id
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contact_phones (id, contact_id, phone_type, phone_value) VALUES (?, ?, ?, ?)
		`, phone.Id, phone.ContactId, phone.Type, phone.Value)
		if err != nil {
			return fmt.Errorf("insert contact phone: %w", err)
		}
	}
	return nil
}
