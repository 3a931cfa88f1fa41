package model

import "time"

// EmailType classifies a contact's email address.
type EmailType string

const (
	EmailWork     EmailType = "WORK"
	EmailPersonal EmailType = "PERSONAL"
	EmailOther    EmailType = "OTHER"
)

// Valid reports whether t is one of the known email types.
func (t EmailType) Valid() bool {
	switch t {
	case EmailWork, EmailPersonal, EmailOther:
		return true
	}
	return false
}

// PhoneType classifies a contact's phone number.
type PhoneType string

const (
	PhoneWork     PhoneType = "WORK"
	PhoneHome     PhoneType = "HOME"
	PhonePersonal PhoneType = "PERSONAL"
	PhoneOther    PhoneType = "OTHER"
)

// Valid reports whether t is one of the known phone types.
func (t PhoneType) Valid() bool {
	switch t {
	case PhoneWork, PhoneHome, PhonePersonal, PhoneOther:
		return true
	}
	return false
}

// User is an account that owns a list of contacts. Exactly one of Email and Phone is set and
// serves as the login identifier.
type User struct {
	Id           string    `db:"id"`
	Email        *string   `db:"email"`
	Phone        *string   `db:"phone"`
	PasswordHash string    `db:"password_hash"`
	FirstName    *string   `db:"firstname"`
	LastName     *string   `db:"lastname"`
	CreatedTime  time.Time `db:"created_time"`
}

// Username returns the login identifier of the user.
func (u *User) Username() string {
	if u.Email != nil && *u.Email != "" {
		return *u.Email
	}
	if u.Phone != nil {
		return *u.Phone
	}
	return ""
}

// LoginByEmail reports whether the user logs in with an email address.
func (u *User) LoginByEmail() bool {
	return u.Email != nil && *u.Email != ""
}

// Contact is the data structure for a person that we know. The owner (UserId) never changes
// after creation. All name fields are optional.
type Contact struct {
	Id        string  `db:"id"`
	UserId    string  `db:"user_id"`
	Title     *string `db:"title"`
	FirstName *string `db:"firstname"`
	LastName  *string `db:"lastname"`
	Emails    []ContactEmail
	Phones    []ContactPhone
}

// ContactEmail is a typed email address belonging to a contact.
type ContactEmail struct {
	Id        string    `db:"id"`
	ContactId string    `db:"contact_id"`
	Type      EmailType `db:"email_type"`
	Value     string    `db:"email_value"`
}

// ContactPhone is a typed phone number belonging to a contact.
type ContactPhone struct {
	Id        string    `db:"id"`
	ContactId string    `db:"contact_id"`
	Type      PhoneType `db:"phone_type"`
	Value     string    `db:"phone_value"`
}
