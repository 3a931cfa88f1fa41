package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/contact-api/internal/auth"
	"gitlab.com/dirk.krummacker/contact-api/internal/config"
	"gitlab.com/dirk.krummacker/contact-api/internal/logging"
	"gitlab.com/dirk.krummacker/contact-api/internal/metrics"
	"gitlab.com/dirk.krummacker/contact-api/internal/middleware"
	"gitlab.com/dirk.krummacker/contact-api/internal/service"
	"gitlab.com/dirk.krummacker/contact-api/internal/store"
)

// Usage example on the command line:
// > PORT=8080 DBUSER=dirk DBPWD=bullo92 JWT_SECRET=changeme GIN_MODE=release GIN_LOGGING=OFF go run main.go
func main() {
	// A .env file is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("could not load configuration")
	}
	log, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("could not set up logging")
	}

	sqlDB, err := store.CreateDatabase(cfg.DSN())
	if err != nil {
		log.WithError(err).Fatal("could not open database")
	}
	db, err := store.New(sqlDB)
	if err != nil {
		log.WithError(err).Fatal("could not prepare statements")
	}
	defer db.Close()

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL)
	m := metrics.New()
	limiter := middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst, log)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(10*time.Minute, stopCleanup)
	defer close(stopCleanup)

	router := service.SetupHttpRouter(service.Router{
		Users:          service.NewUserService(db, auth.NewPasswordHasher(cfg.BcryptCost), tokens, m, log),
		Contacts:       service.NewContactService(db, log),
		Gate:           auth.NewGate(tokens, db, log),
		Metrics:        m,
		AuthLimiter:    limiter,
		Log:            log,
		RequestLogging: cfg.RequestLogging(),
		TrustedProxies: cfg.TrustedProxies,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", server.Addr).Info("contact API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
}
