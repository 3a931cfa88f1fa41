package service

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/contact-api/internal/apperr"
	"gitlab.com/dirk.krummacker/contact-api/internal/auth"
	"gitlab.com/dirk.krummacker/contact-api/internal/model"
	api "gitlab.com/dirk.krummacker/contact-api/pkg/model"
)

// handler adapts the services to gin. Errors are recorded with c.Error and rendered by the
// ErrorTranslator.
type handler struct {
	users    *UserService
	contacts *ContactService
}

// identity returns the identity bound by the authentication gate. RequireIdentity runs in
// front of every handler that calls it.
func identity(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFrom(c.Request.Context())
	return id
}

// bindJSON decodes the request body into obj and records a validation error on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.Error(fmt.Errorf("invalid JSON: %v: %w", err, apperr.ErrValidation))
		return false
	}
	return true
}

// signup creates a new account.
//
// Example REST API call:
//
//	> curl http://localhost:8080/auth/signup --request "POST" --include --header "Content-Type: application/json" --data '{"email": "erika@example.com", "password": "s3cret", "firstname": "Erika"}'
func (h *handler) signup(c *gin.Context) {
	var req api.SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.Signup(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.Header("Location", "/user")
	c.IndentedJSON(http.StatusCreated, api.SignupResponse{UserId: user.Id, Username: user.Username()})
}

// login answers with a bearer token for the given credentials.
//
// Example REST API call:
//
//	> curl http://localhost:8080/auth/login --request "POST" --header "Content-Type: application/json" --data '{"username": "erika@example.com", "password": "s3cret"}'
func (h *handler) login(c *gin.Context) {
	var req api.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	user, token, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, api.LoginResponse{UserId: user.Id, Jwt: token})
}

// getSelf responds with the profile of the authenticated user.
//
// Example REST API call:
//
//	> curl http://localhost:8080/user --header "Authorization: Bearer $JWT"
func (h *handler) getSelf(c *gin.Context) {
	user, err := h.users.GetSelf(c.Request.Context(), identity(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, toUserResponse(user, ""))
}

// updateSelf changes the profile of the authenticated user. The response carries a new token
// when the login identifier was changed.
//
// Example REST API call:
//
//	> curl http://localhost:8080/user/edit --request "PUT" --header "Authorization: Bearer $JWT" --header "Content-Type: application/json" --data '{"lastname": "Musterfrau"}'
func (h *handler) updateSelf(c *gin.Context) {
	var req api.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, token, err := h.users.UpdateSelf(c.Request.Context(), identity(c), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, toUserResponse(user, token))
}

// changePassword replaces the password of the authenticated user.
//
// Example REST API call:
//
//	> curl http://localhost:8080/user/change-password --request "PUT" --header "Authorization: Bearer $JWT" --header "Content-Type: application/json" --data '{"oldpassword": "s3cret", "newpassword": "t0psecret"}'
func (h *handler) changePassword(c *gin.Context) {
	var req api.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), identity(c), req.OldPassword, req.NewPassword); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusOK)
}

// deleteSelf removes the account of the authenticated user and all of its contacts.
func (h *handler) deleteSelf(c *gin.Context) {
	if err := h.users.DeleteSelf(c.Request.Context(), identity(c)); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listContacts responds with one page of the user's contacts, sorted by first and last name.
//
// The URL parameter 'page' selects the page, starting at 0. The URL parameter 'size' is the
// number of contacts per page, between 1 and 100 (default 10).
//
// REST API calls:
//
//	> curl "http://localhost:8080/contact" --header "Authorization: Bearer $JWT"
//	> curl "http://localhost:8080/contact?page=2&size=20" --header "Authorization: Bearer $JWT"
func (h *handler) listContacts(c *gin.Context) {
	number, ok := queryInt(c, "page", 0)
	if !ok {
		return
	}
	size, ok := queryInt(c, "size", DefaultPageSize)
	if !ok {
		return
	}
	page, err := h.contacts.List(c.Request.Context(), identity(c), number, size)
	if err != nil {
		c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, toPageResponse(page))
}

// searchContacts responds with up to 10 contacts whose first or last name contains the URL
// parameter 'query', ignoring case.
//
// Example REST API call:
//
//	> curl "http://localhost:8080/contact/s?query=mus" --header "Authorization: Bearer $JWT"
func (h *handler) searchContacts(c *gin.Context) {
	contacts, err := h.contacts.Search(c.Request.Context(), identity(c), c.Query("query"))
	if err != nil {
		c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, toContactSummaries(contacts))
}

// getContact responds with the contact including its emails and phones.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contact/0b6c2b8e-5d1f-4c43-9a55-1d0f3c1d9e2a --header "Authorization: Bearer $JWT"
func (h *handler) getContact(c *gin.Context) {
	contact, err := h.contacts.Get(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, toContactDetail(contact))
}

// createContact stores the contact specified in the request's JSON for the authenticated user
// and responds with the full contact including the newly assigned id.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contact --request "POST" --include --header "Authorization: Bearer $JWT" --header "Content-Type: application/json" --data '{"firstname": "Hans", "lastname": "Wurst", "phones": [{"phonetype": "HOME", "phonevalue": "0815"}]}'
func (h *handler) createContact(c *gin.Context) {
	var req api.ContactRequest
	if !bindJSON(c, &req) {
		return
	}
	contact, err := h.contacts.Create(c.Request.Context(), identity(c), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.Header("Location", "/contact/"+contact.Id)
	c.IndentedJSON(http.StatusCreated, toContactDetail(contact))
}

// updateContact merges the values specified in the JSON (and only those) into the contact and
// responds with the new version of the contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contact/0b6c2b8e-5d1f-4c43-9a55-1d0f3c1d9e2a --request "PUT" --header "Authorization: Bearer $JWT" --header "Content-Type: application/json" --data '{"title": "Dr."}'
func (h *handler) updateContact(c *gin.Context) {
	var req api.ContactRequest
	if !bindJSON(c, &req) {
		return
	}
	contact, err := h.contacts.Update(c.Request.Context(), identity(c), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, toContactDetail(contact))
}

// deleteContact deletes the contact together with its emails and phones.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contact/0b6c2b8e-5d1f-4c43-9a55-1d0f3c1d9e2a --request "DELETE" --header "Authorization: Bearer $JWT"
func (h *handler) deleteContact(c *gin.Context) {
	if err := h.contacts.Delete(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// queryInt parses the URL parameter key as a non-negative integer. A missing parameter yields
// def.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.Error(fmt.Errorf("invalid %s parameter %q: %w", key, raw, apperr.ErrValidation))
		return 0, false
	}
	return v, true
}

func toUserResponse(user *model.User, token string) api.User {
	created := user.CreatedTime
	return api.User{
		Id:          user.Id,
		Username:    user.Username(),
		Email:       user.Email,
		Phone:       user.Phone,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		CreatedTime: &created,
		Jwt:         token,
	}
}

func toContactSummaries(contacts []model.Contact) []api.Contact {
	out := make([]api.Contact, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, api.Contact{Id: c.Id, Title: c.Title, FirstName: c.FirstName, LastName: c.LastName})
	}
	return out
}

func toContactDetail(contact *model.Contact) api.ContactDetail {
	detail := api.ContactDetail{
		Id:        contact.Id,
		Title:     contact.Title,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Emails:    make([]api.ContactEmail, 0, len(contact.Emails)),
		Phones:    make([]api.ContactPhone, 0, len(contact.Phones)),
	}
	for _, e := range contact.Emails {
		detail.Emails = append(detail.Emails, api.ContactEmail{EmailType: string(e.Type), EmailValue: e.Value})
	}
	for _, p := range contact.Phones {
		detail.Phones = append(detail.Phones, api.ContactPhone{PhoneType: string(p.Type), PhoneValue: p.Value})
	}
	return detail
}

func toPageResponse(page *ContactPage) api.ContactPage {
	content := toContactSummaries(page.Contacts)
	totalPages := (page.Total + page.Size - 1) / page.Size
	return api.ContactPage{
		Content:          content,
		TotalPages:       totalPages,
		TotalElements:    page.Total,
		Last:             page.Number >= totalPages-1,
		Size:             page.Size,
		Number:           page.Number,
		First:            page.Number == 0,
		NumberOfElements: len(content),
		Empty:            len(content) == 0,
	}
}
