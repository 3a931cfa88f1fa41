// Package store persists users and their contacts in MySQL. Reads on hot paths use statements
// prepared once at startup; every write runs in its own local transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write violates a unique key.
	ErrDuplicate = errors.New("duplicate entry")
)

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// Store is a handle to the contact database.
type Store struct {
	db *sqlx.DB

	selectUserByEmail     *sqlx.Stmt
	selectUserByPhone     *sqlx.Stmt
	selectUserById        *sqlx.Stmt
	selectContactById     *sqlx.Stmt
	selectEmailsByContact *sqlx.Stmt
	selectPhonesByContact *sqlx.Stmt
}

// CreateDatabase opens a MySQL connection pool for dsn.
func CreateDatabase(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return sqlDB, nil
}

// New wraps sqlDB and prepares all statements. The database argument can be a real database
// for production use or a mock database within unit tests.
func New(sqlDB *sql.DB) (*Store, error) {
	s := &Store{db: sqlx.NewDb(sqlDB, "mysql")}

	// Prepared statements offer a significant speed increase if executed many times.
	stmts := []struct {
		target **sqlx.Stmt
		query  string
	}{
		{&s.selectUserByEmail, `SELECT ` + userColumns + ` FROM users WHERE email = ?`},
		{&s.selectUserByPhone, `SELECT ` + userColumns + ` FROM users WHERE phone = ?`},
		{&s.selectUserById, `SELECT ` + userColumns + ` FROM users WHERE id = ?`},
		{&s.selectContactById, `SELECT ` + contactColumns + ` FROM contacts WHERE id = ?`},
		{&s.selectEmailsByContact, `SELECT id, contact_id, email_type, email_value FROM contact_emails WHERE contact_id = ? ORDER BY email_type, email_value`},
		{&s.selectPhonesByContact, `SELECT id, contact_id, phone_type, phone_value FROM contact_phones WHERE contact_id = ? ORDER BY phone_type, phone_value`},
	}
	for _, st := range stmts {
		prepared, err := s.db.Preparex(st.query)
		if err != nil {
			s.closeStatements()
			return nil, fmt.Errorf("prepare %q: %w", st.query, err)
		}
		*st.target = prepared
	}
	return s, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the prepared statements and the connection pool.
func (s *Store) Close() error {
	s.closeStatements()
	return s.db.Close()
}

func (s *Store) closeStatements() {
	for _, stmt := range []*sqlx.Stmt{
		s.selectUserByEmail, s.selectUserByPhone, s.selectUserById,
		s.selectContactById, s.selectEmailsByContact, s.selectPhonesByContact,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// WithTx begins a transaction, runs fn with it, and commits on success. It rolls back when fn
// returns an error or panics; panics are rethrown.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

// translate maps driver errors to the package's sentinel errors.
func translate(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%s: %w", mysqlErr.Message, ErrDuplicate)
	}
	return err
}

// expectOneRow returns ErrNotFound when result affected no rows.
func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
