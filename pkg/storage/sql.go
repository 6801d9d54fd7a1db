package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
)

// Dialect selects the SQL flavor used by SQLStore.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// SQLStore keeps client state in a single client_storage table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewPostgresStore opens PostgreSQL using the DB_* environment variables.
func NewPostgresStore() (*SQLStore, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
	)
	return openSQLStore(DialectPostgres, connStr)
}

// NewMySQLStore opens MySQL with the given DSN.
func NewMySQLStore(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("MYSQL_DSN environment variable not set")
	}
	return openSQLStore(DialectMySQL, dsn)
}

func openSQLStore(dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewSQLStore(db, dialect)
	if err := s.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("Successfully connected to %s!", dialect)
	return s, nil
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// EnsureTable creates the storage table if it doesn't exist.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	var ddl string
	switch s.dialect {
	case DialectMySQL:
		ddl = `CREATE TABLE IF NOT EXISTS client_storage (
			storage_key VARCHAR(191) PRIMARY KEY,
			value LONGTEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS client_storage (
			storage_key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create client_storage table: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM client_storage WHERE storage_key = ?`), key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	var q string
	switch s.dialect {
	case DialectMySQL:
		q = `INSERT INTO client_storage (storage_key, value) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value)`
	default:
		q = `INSERT INTO client_storage (storage_key, value) VALUES ($1, $2)
			ON CONFLICT (storage_key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	}
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", key, err)
	}
	return nil
}

// Delete removes keys inside one transaction.
func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback on error by default

	q := s.rebind(`DELETE FROM client_storage WHERE storage_key = ?`)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, q, k); err != nil {
			return fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	log.Printf("%s connection closed.", s.dialect)
	return err
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	out := make([]byte, 0, len(q)+4)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, q[i])
	}
	return string(out)
}
