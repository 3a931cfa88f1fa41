// Package service implements the contact API: the user and contact services enforcing
// per-user ownership, the gin handlers in front of them, and the router wiring it all up.
package service

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/contact-api/internal/apperr"
	"gitlab.com/dirk.krummacker/contact-api/internal/auth"
	"gitlab.com/dirk.krummacker/contact-api/internal/logging"
	"gitlab.com/dirk.krummacker/contact-api/internal/metrics"
	"gitlab.com/dirk.krummacker/contact-api/internal/middleware"
	api "gitlab.com/dirk.krummacker/contact-api/pkg/model"
)

// Router bundles everything the HTTP layer needs.
type Router struct {
	Users          *UserService
	Contacts       *ContactService
	Gate           *auth.Gate
	Metrics        *metrics.Metrics
	AuthLimiter    *middleware.RateLimiter
	Log            logrus.FieldLogger
	RequestLogging bool
	// TrustedProxies may set the client ip through X-Forwarded-For. With none, the client ip
	// is the peer address, which is what the rate limiter keys on.
	TrustedProxies []string
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
//
// The middleware chain is recovery, request logging (optional), metrics, and the error
// translator. The /user and /contact groups additionally run the authentication gate and
// require an identity; the /auth group is rate limited per client ip.
func SetupHttpRouter(r Router) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(r.TrustedProxies); err != nil {
		r.Log.WithError(err).Error("invalid trusted proxies, trusting none")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	if r.RequestLogging {
		router.Use(logging.RequestLogger(r.Log))
	} else {
		r.Log.Info("Turning off HTTP request logging.")
	}
	if r.Metrics != nil {
		router.Use(r.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(r.Metrics.Handler()))
	}
	router.Use(ErrorTranslator(r.Log))

	h := &handler{users: r.Users, contacts: r.Contacts}

	router.GET("/public/", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	authGroup := router.Group("/auth")
	if r.AuthLimiter != nil {
		authGroup.Use(r.AuthLimiter.Handler())
	}
	authGroup.POST("/signup", h.signup)
	authGroup.POST("/login", h.login)

	protected := []gin.HandlerFunc{r.Gate.Handler(), auth.RequireIdentity()}

	userGroup := router.Group("/user", protected...)
	userGroup.GET("", h.getSelf)
	userGroup.PUT("/edit", h.updateSelf)
	userGroup.PUT("/change-password", h.changePassword)
	userGroup.DELETE("", h.deleteSelf)

	contactGroup := router.Group("/contact", protected...)
	contactGroup.GET("", h.listContacts)
	contactGroup.GET("/s", h.searchContacts)
	contactGroup.POST("", h.createContact)
	contactGroup.GET("/:id", h.getContact)
	contactGroup.PUT("/:id", h.updateContact)
	contactGroup.DELETE("/:id", h.deleteContact)

	return router
}

// ErrorTranslator renders the last error recorded on the gin context as a JSON error body
// with the status of its kind. Errors outside the taxonomy are logged and answered with a
// generic 500.
func ErrorTranslator(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		code, status, known := apperr.Classify(err)
		if !known {
			log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		}
		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(status, api.Error{Code: code, Message: apperr.Message(err)})
	}
}
