// Package model holds the JSON payloads of the contact API. Server handlers and clients share
// these types.
package model

import "time"

// SignupRequest creates a new account. Exactly one of Email and Phone is used as the login
// identifier; Email wins when both are given.
type SignupRequest struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	Password  string `json:"password"`
}

// SignupResponse is returned after a successful signup.
type SignupResponse struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

// LoginRequest authenticates with an email address or phone number.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token for subsequent requests.
type LoginResponse struct {
	UserId string `json:"userId"`
	Jwt    string `json:"jwt"`
}

// User is the profile of the authenticated user.
type User struct {
	Id          string     `json:"id"`
	Username    string     `json:"username"`
	Email       *string    `json:"email,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	FirstName   *string    `json:"firstname,omitempty"`
	LastName    *string    `json:"lastname,omitempty"`
	CreatedTime *time.Time `json:"createdtime,omitempty"`
	// Jwt is only set when an update changed the login identifier.
	Jwt string `json:"jwt,omitempty"`
}

// UpdateUserRequest changes the profile. Empty fields leave the stored values untouched.
type UpdateUserRequest struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
}

// ChangePasswordRequest replaces the password of the authenticated user.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldpassword"`
	NewPassword string `json:"newpassword"`
}

// ContactEmail is a typed email address.
type ContactEmail struct {
	EmailType  string `json:"emailtype"`
	EmailValue string `json:"emailvalue"`
}

// ContactPhone is a typed phone number.
type ContactPhone struct {
	PhoneType  string `json:"phonetype"`
	PhoneValue string `json:"phonevalue"`
}

// ContactRequest creates or updates a contact. On update, empty fields and empty lists leave
// the stored values untouched.
type ContactRequest struct {
	Title     string         `json:"title,omitempty"`
	FirstName string         `json:"firstname,omitempty"`
	LastName  string         `json:"lastname,omitempty"`
	Emails    []ContactEmail `json:"emails,omitempty"`
	Phones    []ContactPhone `json:"phones,omitempty"`
}

// Contact is the summary form used in listings and search results.
type Contact struct {
	Id        string  `json:"id"`
	Title     *string `json:"title"`
	FirstName *string `json:"firstname"`
	LastName  *string `json:"lastname"`
}

// ContactDetail is a contact including its email addresses and phone numbers.
type ContactDetail struct {
	Id        string         `json:"id"`
	Title     *string        `json:"title"`
	FirstName *string        `json:"firstname"`
	LastName  *string        `json:"lastname"`
	Emails    []ContactEmail `json:"emails"`
	Phones    []ContactPhone `json:"phones"`
}

// ContactPage is one page of the contact listing.
type ContactPage struct {
	Content          []Contact `json:"content"`
	TotalPages       int       `json:"totalPages"`
	TotalElements    int       `json:"totalElements"`
	Last             bool      `json:"last"`
	Size             int       `json:"size"`
	Number           int       `json:"number"`
	First            bool      `json:"first"`
	NumberOfElements int       `json:"numberOfElements"`
	Empty            bool      `json:"empty"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
