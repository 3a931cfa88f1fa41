package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"gitlab.com/dirk.krummacker/contact-api/internal/store/migrations"
)

// Migrate runs the goose command ("up", "down", "status", "reset", ...) with the embedded
// migrations against sqlDB.
func Migrate(ctx context.Context, sqlDB *sql.DB, command string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, sqlDB, "."); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
