package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contact-api/internal/auth"
	"gitlab.com/dirk.krummacker/contact-api/internal/logging"
	"gitlab.com/dirk.krummacker/contact-api/internal/metrics"
	"gitlab.com/dirk.krummacker/contact-api/internal/middleware"
	api "gitlab.com/dirk.krummacker/contact-api/pkg/model"
)

// testAPI is a router on top of an in-memory store.
type testAPI struct {
	router *gin.Engine
	store  *memoryStore
	tokens *auth.TokenIssuer
}

// initializeContactService sets up the router with an in-memory store and returns a handle
// against which requests can be executed.
func initializeContactService() *testAPI {
	gin.SetMode(gin.ReleaseMode)
	s := newMemoryStore()
	log := logging.Discard()
	tokens := auth.NewTokenIssuer(testSecret, time.Hour)
	m := metrics.New()
	router := SetupHttpRouter(Router{
		Users:       NewUserService(s, auth.NewPasswordHasher(4), tokens, m, log),
		Contacts:    NewContactService(s, log),
		Gate:        auth.NewGate(tokens, s, log),
		Metrics:     m,
		AuthLimiter: middleware.NewRateLimiter(1000, 1000, log),
		Log:         log,
	})
	return &testAPI{router: router, store: s, tokens: tokens}
}

// run executes the HTTP request with the specified arguments and returns the response.
func (a *testAPI) run(method string, url string, token string, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest(method, url, strings.NewReader(body))
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	a.router.ServeHTTP(recorder, request)
	return recorder
}

// signupAndLogin creates an account and returns its bearer token.
func (a *testAPI) signupAndLogin(t *testing.T, username string, password string) string {
	field := "email"
	if !strings.Contains(username, "@") {
		field = "phone"
	}
	recorder := a.run("POST", "/auth/signup", "", `{"`+field+`": "`+username+`", "password": "`+password+`"}`)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	recorder = a.run("POST", "/auth/login", "", `{"username": "`+username+`", "password": "`+password+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var login api.LoginResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &login))
	return login.Jwt
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) api.Error {
	var body api.Error
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body), recorder.Body.String())
	return body
}

func TestPublic(t *testing.T) {
	a := initializeContactService()

	recorder := a.run("GET", "/public/", "", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "OK", recorder.Body.String())
}

func TestSignup(t *testing.T) {
	a := initializeContactService()

	recorder := a.run("POST", "/auth/signup", "", `{"email": "a@x.com", "password": "p1", "firstname": "Ann"}`)

	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "/user", recorder.Header().Get("Location"))
	var body api.SignupResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.NotEmpty(t, body.UserId)
	assert.Equal(t, "a@x.com", body.Username)
	assert.NotContains(t, recorder.Body.String(), "password")

	recorder = a.run("POST", "/auth/signup", "", `{"email": "a@x.com", "password": "p2"}`)
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "ALREADY_EXISTS", decodeError(t, recorder).Code)
}

// TestSignupEmailMatchingPhone checks that a phone user's token keeps resolving to that user
// after someone tries to sign up with the same string as email.
func TestSignupEmailMatchingPhone(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "5551234", "p1")

	recorder := a.run("POST", "/auth/signup", "", `{"email": "5551234", "password": "p2"}`)
	assert.Equal(t, http.StatusConflict, recorder.Code)

	recorder = a.run("GET", "/user", token, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var self api.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &self))
	require.NotNil(t, self.Phone)
	assert.Equal(t, "5551234", *self.Phone)
	assert.Nil(t, self.Email)

	recorder = a.run("POST", "/auth/login", "", `{"username": "5551234", "password": "p1"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestSignupInvalidJSON(t *testing.T) {
	a := initializeContactService()

	recorder := a.run("POST", "/auth/signup", "", `{"email": `)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, recorder).Code)
}

func TestLoginWrongPassword(t *testing.T) {
	a := initializeContactService()
	a.signupAndLogin(t, "a@x.com", "p1")

	recorder := a.run("POST", "/auth/login", "", `{"username": "a@x.com", "password": "nope"}`)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	body := decodeError(t, recorder)
	assert.Equal(t, "INVALID_CREDENTIALS", body.Code)
	assert.Equal(t, "invalid credentials", body.Message)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := initializeContactService()

	for _, path := range []string{"/user", "/contact"} {
		recorder := a.run("GET", path, "", "")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, path)
		assert.Equal(t, "UNAUTHENTICATED", decodeError(t, recorder).Code, path)
	}
}

func TestTokenErrors(t *testing.T) {
	a := initializeContactService()
	a.signupAndLogin(t, "a@x.com", "p1")

	recorder := a.run("GET", "/user", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "TOKEN_MALFORMED", decodeError(t, recorder).Code)

	expired, err := a.tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).Issue("a@x.com")
	require.NoError(t, err)
	recorder = a.run("GET", "/user", expired, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decodeError(t, recorder).Code)

	forged, err := auth.NewTokenIssuer([]byte("forged"), time.Hour).Issue("a@x.com")
	require.NoError(t, err)
	recorder = a.run("GET", "/user", forged, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "TOKEN_INVALID", decodeError(t, recorder).Code)

	stranger, err := a.tokens.Issue("nobody@x.com")
	require.NoError(t, err)
	recorder = a.run("GET", "/user", stranger, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "IDENTITY_NOT_FOUND", decodeError(t, recorder).Code)
}

func TestUserProfile(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "+420 111", "p1")

	recorder := a.run("GET", "/user", token, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var user api.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &user))
	assert.Equal(t, "+420 111", user.Username)
	assert.Nil(t, user.Email)
	assert.NotNil(t, user.CreatedTime)
	assert.Empty(t, user.Jwt)

	recorder = a.run("PUT", "/user/edit", token, `{"phone": "+420 999", "firstname": "Bob"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &user))
	assert.Equal(t, "+420 999", user.Username)
	assert.Equal(t, "Bob", *user.FirstName)
	require.NotEmpty(t, user.Jwt)

	// The old token names the old identifier.
	recorder = a.run("GET", "/user", token, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	recorder = a.run("GET", "/user", user.Jwt, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "a@x.com", "p1")

	recorder := a.run("PUT", "/user/change-password", token, `{"oldpassword": "wrong", "newpassword": "p2"}`)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = a.run("PUT", "/user/change-password", token, `{"oldpassword": "p1", "newpassword": ""}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = a.run("PUT", "/user/change-password", token, `{"oldpassword": "p1", "newpassword": "p2"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = a.run("POST", "/auth/login", "", `{"username": "a@x.com", "password": "p2"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestDeleteUser(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "a@x.com", "p1")
	recorder := a.run("POST", "/contact", token, `{"firstname": "Berta"}`)
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder = a.run("DELETE", "/user", token, "")
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Empty(t, a.store.contacts)

	recorder = a.run("POST", "/auth/login", "", `{"username": "a@x.com", "password": "p1"}`)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

// TestContactLifecycle creates, reads, updates and deletes a contact over HTTP.
func TestContactLifecycle(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "a@x.com", "p1")

	recorder := a.run("POST", "/contact", token, `
		{
			"title": "Dr.",
			"firstname": "Erika",
			"lastname": "Mustermann",
			"emails": [{"emailtype": "WORK", "emailvalue": "erika@work.example"}],
			"phones": [{"phonetype": "HOME", "phonevalue": "+49 0815 4711"}]
		}
	`)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	var created api.ContactDetail
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))
	assert.Equal(t, "/contact/"+created.Id, recorder.Header().Get("Location"))
	assert.Equal(t, "Erika", *created.FirstName)
	require.Len(t, created.Emails, 1)
	assert.Equal(t, "WORK", created.Emails[0].EmailType)

	recorder = a.run("PUT", "/contact/"+created.Id, token, `{"lastname": "Musterfrau", "emails": [{"emailtype": "PERSONAL", "emailvalue": "erika@home.example"}]}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = a.run("GET", "/contact/"+created.Id, token, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var found api.ContactDetail
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &found))
	assert.Equal(t, "Dr.", *found.Title)
	assert.Equal(t, "Musterfrau", *found.LastName)
	assert.Equal(t, []api.ContactEmail{{EmailType: "PERSONAL", EmailValue: "erika@home.example"}}, found.Emails)
	assert.Equal(t, []api.ContactPhone{{PhoneType: "HOME", PhoneValue: "+49 0815 4711"}}, found.Phones)

	recorder = a.run("DELETE", "/contact/"+created.Id, token, "")
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = a.run("GET", "/contact/"+created.Id, token, "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, recorder).Code)
}

// TestForeignContact checks that another user can neither read, change nor delete a contact.
func TestForeignContact(t *testing.T) {
	a := initializeContactService()
	alice := a.signupAndLogin(t, "a@x.com", "p1")
	bob := a.signupAndLogin(t, "b@x.com", "p1")
	recorder := a.run("POST", "/contact", alice, `{"firstname": "Berta"}`)
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created api.ContactDetail
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))

	assert.Equal(t, http.StatusForbidden, a.run("GET", "/contact/"+created.Id, bob, "").Code)
	assert.Equal(t, http.StatusForbidden, a.run("PUT", "/contact/"+created.Id, bob, `{"firstname": "X"}`).Code)
	recorder = a.run("DELETE", "/contact/"+created.Id, bob, "")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, recorder).Code)

	assert.Equal(t, http.StatusNoContent, a.run("DELETE", "/contact/"+created.Id, alice, "").Code)
	assert.Equal(t, http.StatusNotFound, a.run("GET", "/contact/"+created.Id, alice, "").Code)
}

// TestGetInvalidCharacterID expects NOT FOUND without reaching out to the store.
func TestGetInvalidCharacterID(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "a@x.com", "p1")

	recorder := a.run("GET", "/contact/INVALID", token, "")

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, 0, a.store.queries)
}

func TestListContactsPage(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "a@x.com", "p1")
	for _, name := range []string{"Carla", "Aaron", "Berta"} {
		recorder := a.run("POST", "/contact", token, `{"firstname": "`+name+`"}`)
		require.Equal(t, http.StatusCreated, recorder.Code)
	}

	recorder := a.run("GET", "/contact?page=0&size=2", token, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var page api.ContactPage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	assert.Equal(t, 3, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.NumberOfElements)
	assert.True(t, page.First)
	assert.False(t, page.Last)
	assert.False(t, page.Empty)
	assert.Equal(t, "Aaron", *page.Content[0].FirstName)
	assert.Equal(t, "Berta", *page.Content[1].FirstName)

	recorder = a.run("GET", "/contact?page=1&size=2", token, "")
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	assert.True(t, page.Last)
	assert.Equal(t, "Carla", *page.Content[0].FirstName)

	recorder = a.run("GET", "/contact", token, "")
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	assert.Equal(t, 10, page.Size)
	assert.Equal(t, 1, page.TotalPages)
}

func TestListContactsEmpty(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "a@x.com", "p1")

	recorder := a.run("GET", "/contact", token, "")

	require.Equal(t, http.StatusOK, recorder.Code)
	var page api.ContactPage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	assert.True(t, page.Empty)
	assert.True(t, page.First)
	assert.True(t, page.Last)
	assert.Equal(t, 0, page.TotalPages)
	assert.NotNil(t, page.Content)
}

func TestListContactsInvalidParameters(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "a@x.com", "p1")

	for _, query := range []string{"page=x", "page=-1", "size=0", "size=101", "size=ten", "page=922337203685477581&size=10", "page=99999999999999999999"} {
		recorder := a.run("GET", "/contact?"+query, token, "")
		assert.Equal(t, http.StatusBadRequest, recorder.Code, query)
	}
}

func TestSearchContacts(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "a@x.com", "p1")
	for _, body := range []string{
		`{"firstname": "Erika", "lastname": "Mustermann"}`,
		`{"firstname": "Hans", "lastname": "Wurst"}`,
	} {
		require.Equal(t, http.StatusCreated, a.run("POST", "/contact", token, body).Code)
	}

	recorder := a.run("GET", "/contact/s?query=muster", token, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var found []api.Contact
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Erika", *found[0].FirstName)

	recorder = a.run("GET", "/contact/s", token, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestInternalErrorsDoNotLeak(t *testing.T) {
	a := initializeContactService()
	token := a.signupAndLogin(t, "a@x.com", "p1")
	a.store.failWith = errors.New("dial tcp 10.0.0.7:3306: connection refused")

	recorder := a.run("GET", "/user", token, "")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	body := decodeError(t, recorder)
	assert.Equal(t, "INTERNAL", body.Code)
	assert.NotContains(t, recorder.Body.String(), "10.0.0.7")
}

// initializeLimitedService sets up the router with a login limiter of burst 1.
func initializeLimitedService(trustedProxies ...string) *testAPI {
	gin.SetMode(gin.ReleaseMode)
	s := newMemoryStore()
	log := logging.Discard()
	tokens := auth.NewTokenIssuer(testSecret, time.Hour)
	router := SetupHttpRouter(Router{
		Users:          NewUserService(s, auth.NewPasswordHasher(4), tokens, nil, log),
		Contacts:       NewContactService(s, log),
		Gate:           auth.NewGate(tokens, s, log),
		AuthLimiter:    middleware.NewRateLimiter(0.001, 1, log),
		Log:            log,
		TrustedProxies: trustedProxies,
	})
	return &testAPI{router: router, store: s, tokens: tokens}
}

// loginFrom posts a login from the peer remoteAddr claiming to forward for forwardedFor.
func (a *testAPI) loginFrom(remoteAddr string, forwardedFor string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/auth/login", strings.NewReader(`{"username": "a@x.com", "password": "p1"}`))
	request.Header.Set("Content-Type", "application/json")
	request.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		request.Header.Set("X-Forwarded-For", forwardedFor)
	}
	a.router.ServeHTTP(recorder, request)
	return recorder
}

func TestAuthRateLimited(t *testing.T) {
	a := initializeLimitedService()

	first := a.run("POST", "/auth/login", "", `{"username": "a@x.com", "password": "p1"}`)
	assert.Equal(t, http.StatusUnauthorized, first.Code)
	second := a.run("POST", "/auth/login", "", `{"username": "a@x.com", "password": "p1"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, second).Code)
}

// TestAuthRateLimitIgnoresForwardedFor sends logins from one peer with a different
// X-Forwarded-For each time. Without trusted proxies they share one limiter.
func TestAuthRateLimitIgnoresForwardedFor(t *testing.T) {
	a := initializeLimitedService()

	var codes []int
	for i := 1; i <= 5; i++ {
		codes = append(codes, a.loginFrom("203.0.113.7:40000", fmt.Sprintf("198.51.100.%d", i)).Code)
	}

	assert.Equal(t, []int{401, 429, 429, 429, 429}, codes)
}

func TestAuthRateLimitBehindTrustedProxy(t *testing.T) {
	a := initializeLimitedService("10.0.0.0/8")

	assert.Equal(t, http.StatusUnauthorized, a.loginFrom("10.0.0.2:40000", "198.51.100.1").Code)
	assert.Equal(t, http.StatusUnauthorized, a.loginFrom("10.0.0.2:40000", "198.51.100.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, a.loginFrom("10.0.0.2:40000", "198.51.100.1").Code)

	// an untrusted peer cannot pick its key
	assert.Equal(t, http.StatusUnauthorized, a.loginFrom("203.0.113.7:40000", "198.51.100.3").Code)
	assert.Equal(t, http.StatusTooManyRequests, a.loginFrom("203.0.113.7:40000", "198.51.100.4").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := initializeContactService()
	a.signupAndLogin(t, "a@x.com", "p1")

	recorder := a.run("GET", "/metrics", "", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `contact_api_auth_events_total{event="signup"} 1`)
	assert.Contains(t, recorder.Body.String(), `route="/auth/login"`)
}
