package main

import (
	"context"
	"flag"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/contact-api/internal/config"
	"gitlab.com/dirk.krummacker/contact-api/internal/store"
)

// Usage example on the command line:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run main.go -command=up
func main() {
	commandPtr := flag.String("command", "up", "the goose command to run: up, down, status, reset, version")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadDatabase()
	if err != nil {
		logrus.WithError(err).Fatal("could not load configuration")
	}

	sqlDB, err := store.CreateDatabase(cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("could not open database")
	}
	defer sqlDB.Close()

	if err := store.Migrate(context.Background(), sqlDB, *commandPtr); err != nil {
		logrus.WithError(err).Fatal("migration failed")
	}
	logrus.WithField("command", *commandPtr).Info("migration done")
}
