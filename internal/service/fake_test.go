package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/contact-api/internal/model"
	"gitlab.com/dirk.krummacker/contact-api/internal/store"
)

// memoryStore is an in-memory stand-in for *store.Store with the same error semantics.
type memoryStore struct {
	mu       sync.Mutex
	users    map[string]model.User
	contacts map[string]model.Contact
	// failWith is returned by every call when set.
	failWith error
	// queries counts contact lookups.
	queries int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    make(map[string]model.User),
		contacts: make(map[string]model.Contact),
	}
}

func (m *memoryStore) findUser(match func(u model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryStore) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	return m.findUser(func(u model.User) bool { return u.Email != nil && *u.Email == email })
}

func (m *memoryStore) FindUserByPhone(_ context.Context, phone string) (*model.User, error) {
	return m.findUser(func(u model.User) bool { return u.Phone != nil && *u.Phone == phone })
}

func (m *memoryStore) FindUserById(_ context.Context, id string) (*model.User, error) {
	return m.findUser(func(u model.User) bool { return u.Id == id })
}

// taken reports whether another user already logs in with the identifier of user.
func (m *memoryStore) taken(user *model.User) bool {
	for _, u := range m.users {
		if u.Id == user.Id {
			continue
		}
		if user.Email != nil && u.Email != nil && *u.Email == *user.Email {
			return true
		}
		if user.Phone != nil && u.Phone != nil && *u.Phone == *user.Phone {
			return true
		}
	}
	return false
}

func (m *memoryStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.taken(user) {
		return store.ErrDuplicate
	}
	user.Id = uuid.NewString()
	m.users[user.Id] = *user
	return nil
}

func (m *memoryStore) UpdateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.taken(user) {
		return store.ErrDuplicate
	}
	stored := m.users[user.Id]
	stored.Email, stored.Phone = user.Email, user.Phone
	stored.FirstName, stored.LastName = user.FirstName, user.LastName
	m.users[user.Id] = stored
	return nil
}

func (m *memoryStore) UpdatePasswordHash(_ context.Context, id string, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	stored := m.users[id]
	stored.PasswordHash = hash
	m.users[id] = stored
	return nil
}

func (m *memoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	for cid, c := range m.contacts {
		if c.UserId == id {
			delete(m.contacts, cid)
		}
	}
	return nil
}

func copyContact(c model.Contact) model.Contact {
	c.Emails = append([]model.ContactEmail(nil), c.Emails...)
	c.Phones = append([]model.ContactPhone(nil), c.Phones...)
	return c
}

func (m *memoryStore) FindContact(_ context.Context, id string) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.failWith != nil {
		return nil, m.failWith
	}
	c, ok := m.contacts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := copyContact(c)
	return &found, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// owned returns the summaries of userId's contacts sorted by first name, last name and id.
func (m *memoryStore) owned(userId string, match func(c model.Contact) bool) []model.Contact {
	out := []model.Contact{}
	for _, c := range m.contacts {
		if c.UserId == userId && match(c) {
			out = append(out, model.Contact{Id: c.Id, UserId: c.UserId, Title: c.Title, FirstName: c.FirstName, LastName: c.LastName})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if deref(a.FirstName) != deref(b.FirstName) {
			return deref(a.FirstName) < deref(b.FirstName)
		}
		if deref(a.LastName) != deref(b.LastName) {
			return deref(a.LastName) < deref(b.LastName)
		}
		return a.Id < b.Id
	})
	return out
}

func (m *memoryStore) CountContacts(_ context.Context, userId string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	return len(m.owned(userId, func(model.Contact) bool { return true })), nil
}

func (m *memoryStore) ListContacts(_ context.Context, userId string, limit int, offset int) ([]model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	all := m.owned(userId, func(model.Contact) bool { return true })
	if offset >= len(all) {
		return []model.Contact{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memoryStore) SearchContacts(_ context.Context, userId string, query string, limit int) ([]model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	q := strings.ToLower(query)
	found := m.owned(userId, func(c model.Contact) bool {
		return strings.Contains(strings.ToLower(deref(c.FirstName)), q) ||
			strings.Contains(strings.ToLower(deref(c.LastName)), q)
	})
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (m *memoryStore) CreateContact(_ context.Context, contact *model.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	contact.Id = uuid.NewString()
	for i := range contact.Emails {
		contact.Emails[i].Id = uuid.NewString()
		contact.Emails[i].ContactId = contact.Id
	}
	for i := range contact.Phones {
		contact.Phones[i].Id = uuid.NewString()
		contact.Phones[i].ContactId = contact.Id
	}
	m.contacts[contact.Id] = copyContact(*contact)
	return nil
}

func (m *memoryStore) UpdateContact(_ context.Context, contact *model.Contact, replaceEmails bool, replacePhones bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	stored, ok := m.contacts[contact.Id]
	if !ok {
		return store.ErrNotFound
	}
	stored.Title, stored.FirstName, stored.LastName = contact.Title, contact.FirstName, contact.LastName
	if replaceEmails {
		stored.Emails = append([]model.ContactEmail(nil), contact.Emails...)
	}
	if replacePhones {
		stored.Phones = append([]model.ContactPhone(nil), contact.Phones...)
	}
	m.contacts[contact.Id] = stored
	return nil
}

func (m *memoryStore) DeleteContact(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.contacts[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.contacts, id)
	return nil
}
