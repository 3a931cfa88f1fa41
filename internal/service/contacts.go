package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/contact-api/internal/apperr"
	"gitlab.com/dirk.krummacker/contact-api/internal/auth"
	"gitlab.com/dirk.krummacker/contact-api/internal/model"
	"gitlab.com/dirk.krummacker/contact-api/internal/store"
	api "gitlab.com/dirk.krummacker/contact-api/pkg/model"
)

const (
	// DefaultPageSize is used when a listing does not ask for a page size.
	DefaultPageSize = 10
	// MaxPageSize is the largest page a listing returns.
	MaxPageSize = 100
	// SearchLimit is the maximum number of search results.
	SearchLimit = 10
)

// ContactStore is the persistence needed by ContactService. *store.Store implements it.
type ContactStore interface {
	FindContact(ctx context.Context, id string) (*model.Contact, error)
	CountContacts(ctx context.Context, userId string) (int, error)
	ListContacts(ctx context.Context, userId string, limit int, offset int) ([]model.Contact, error)
	SearchContacts(ctx context.Context, userId string, query string, limit int) ([]model.Contact, error)
	CreateContact(ctx context.Context, contact *model.Contact) error
	UpdateContact(ctx context.Context, contact *model.Contact, replaceEmails bool, replacePhones bool) error
	DeleteContact(ctx context.Context, id string) error
}

// ContactPage is one page of a user's contacts.
type ContactPage struct {
	Contacts []model.Contact
	Number   int
	Size     int
	Total    int
}

// ContactService implements the contact operations. Every operation acts on behalf of an
// authenticated identity and only touches contacts owned by it.
type ContactService struct {
	store ContactStore
	log   logrus.FieldLogger
}

// NewContactService creates the contact service.
func NewContactService(s ContactStore, log logrus.FieldLogger) *ContactService {
	return &ContactService{store: s, log: log}
}

// List returns page number (starting at 0) of the identity's contacts, sorted by name.
func (s *ContactService) List(ctx context.Context, id auth.Identity, number int, size int) (*ContactPage, error) {
	if number < 0 {
		return nil, fmt.Errorf("page must not be negative: %w", apperr.ErrValidation)
	}
	if size < 1 || size > MaxPageSize {
		return nil, fmt.Errorf("size must be between 1 and %d: %w", MaxPageSize, apperr.ErrValidation)
	}
	if number > math.MaxInt32/size {
		return nil, fmt.Errorf("page %d is out of range: %w", number, apperr.ErrValidation)
	}
	total, err := s.store.CountContacts(ctx, id.UserId)
	if err != nil {
		return nil, err
	}
	contacts, err := s.store.ListContacts(ctx, id.UserId, size, number*size)
	if err != nil {
		return nil, err
	}
	return &ContactPage{Contacts: contacts, Number: number, Size: size, Total: total}, nil
}

// Search returns the identity's contacts whose first or last name contains query.
func (s *ContactService) Search(ctx context.Context, id auth.Identity, query string) ([]model.Contact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", apperr.ErrValidation)
	}
	return s.store.SearchContacts(ctx, id.UserId, query, SearchLimit)
}

// Get returns a contact with its emails and phones.
func (s *ContactService) Get(ctx context.Context, id auth.Identity, contactId string) (*model.Contact, error) {
	return s.load(ctx, id, contactId)
}

// Create stores a new contact owned by the identity.
func (s *ContactService) Create(ctx context.Context, id auth.Identity, req api.ContactRequest) (*model.Contact, error) {
	emails, err := toEmails(req.Emails)
	if err != nil {
		return nil, err
	}
	phones, err := toPhones(req.Phones)
	if err != nil {
		return nil, err
	}
	contact := &model.Contact{
		UserId:    id.UserId,
		Title:     optional(req.Title),
		FirstName: optional(req.FirstName),
		LastName:  optional(req.LastName),
		Emails:    emails,
		Phones:    phones,
	}
	if err := s.store.CreateContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": id.UserId, "contact_id": contact.Id}).Info("contact created")
	return contact, nil
}

// Update merges req into the contact. Empty fields keep the stored values; a non-empty email
// or phone list replaces the stored list.
func (s *ContactService) Update(ctx context.Context, id auth.Identity, contactId string, req api.ContactRequest) (*model.Contact, error) {
	contact, err := s.load(ctx, id, contactId)
	if err != nil {
		return nil, err
	}
	emails, err := toEmails(req.Emails)
	if err != nil {
		return nil, err
	}
	phones, err := toPhones(req.Phones)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		contact.Title = &req.Title
	}
	if req.FirstName != "" {
		contact.FirstName = &req.FirstName
	}
	if req.LastName != "" {
		contact.LastName = &req.LastName
	}
	replaceEmails := len(emails) > 0
	if replaceEmails {
		contact.Emails = emails
	}
	replacePhones := len(phones) > 0
	if replacePhones {
		contact.Phones = phones
	}

	if err := s.store.UpdateContact(ctx, contact, replaceEmails, replacePhones); err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return contact, nil
}

// Delete removes the contact together with its emails and phones.
func (s *ContactService) Delete(ctx context.Context, id auth.Identity, contactId string) error {
	contact, err := s.load(ctx, id, contactId)
	if err != nil {
		return err
	}
	if err := s.store.DeleteContact(ctx, contact.Id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("contact %s: %w", contactId, apperr.ErrNotFound)
		}
		return fmt.Errorf("delete contact: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": id.UserId, "contact_id": contact.Id}).Info("contact deleted")
	return nil
}

// load fetches a contact and checks that the identity owns it. Ids that are not UUIDs cannot
// exist and are answered without a database round trip.
func (s *ContactService) load(ctx context.Context, id auth.Identity, contactId string) (*model.Contact, error) {
	if _, err := uuid.Parse(contactId); err != nil {
		return nil, fmt.Errorf("contact %q: %w", contactId, apperr.ErrNotFound)
	}
	contact, err := s.store.FindContact(ctx, contactId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("contact %s: %w", contactId, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if err := auth.AssertOwnership(contact.UserId, id); err != nil {
		s.log.WithFields(logrus.Fields{"user_id": id.UserId, "contact_id": contactId}).Warn("access to foreign contact")
		return nil, fmt.Errorf("contact %s: %w", contactId, err)
	}
	return contact, nil
}

func toEmails(in []api.ContactEmail) ([]model.ContactEmail, error) {
	out := make([]model.ContactEmail, 0, len(in))
	for _, e := range in {
		t := model.EmailType(strings.ToUpper(strings.TrimSpace(e.EmailType)))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown email type %q: %w", e.EmailType, apperr.ErrValidation)
		}
		value := strings.TrimSpace(e.EmailValue)
		if value == "" {
			return nil, fmt.Errorf("email value is required: %w", apperr.ErrValidation)
		}
		out = append(out, model.ContactEmail{Type: t, Value: value})
	}
	return out, nil
}

func toPhones(in []api.ContactPhone) ([]model.ContactPhone, error) {
	out := make([]model.ContactPhone, 0, len(in))
	for _, p := range in {
		t := model.PhoneType(strings.ToUpper(strings.TrimSpace(p.PhoneType)))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown phone type %q: %w", p.PhoneType, apperr.ErrValidation)
		}
		value := strings.TrimSpace(p.PhoneValue)
		if value == "" {
			return nil, fmt.Errorf("phone value is required: %w", apperr.ErrValidation)
		}
		out = append(out, model.ContactPhone{Type: t, Value: value})
	}
	return out, nil
}
