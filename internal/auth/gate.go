package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/contact-api/internal/apperr"
	"gitlab.com/dirk.krummacker/contact-api/internal/store"
)

const bearerPrefix = "Bearer "

// Gate is the per-request authentication interceptor. A request without a bearer token passes
// through without identity. A request with a token either gets the resolved identity bound
// to its context or is aborted with the failure recorded on the gin context, where the
// error translator picks it up.
type Gate struct {
	tokens *TokenIssuer
	users  UserLookup
	log    logrus.FieldLogger
}

// NewGate creates a gate validating tokens with tokens and resolving subjects with users.
func NewGate(tokens *TokenIssuer, users UserLookup, log logrus.FieldLogger) *Gate {
	return &Gate{tokens: tokens, users: users, log: log}
}

// Handler returns the gin middleware.
func (g *Gate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.Next()
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

		subject, err := g.tokens.Validate(token)
		if err != nil {
			g.log.WithError(err).WithField("path", c.Request.URL.Path).Warn("token rejected")
			c.Error(err)
			c.Abort()
			return
		}

		user, err := ResolveUser(c.Request.Context(), g.users, subject)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				g.log.WithField("subject", subject).Warn("token subject not found")
				err = fmt.Errorf("subject %s: %w", subject, apperr.ErrIdentityNotFound)
			} else {
				err = fmt.Errorf("resolve token subject: %w", err)
			}
			c.Error(err)
			c.Abort()
			return
		}

		ctx := WithIdentity(c.Request.Context(), Identity{UserId: user.Id, Username: user.Username()})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireIdentity aborts requests that reach it without a bound identity.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c.Request.Context()); !ok {
			c.Error(apperr.ErrUnauthenticated)
			c.Abort()
			return
		}
		c.Next()
	}
}
