package db

import (
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// DB wraps the sqlx handle with registry-specific queries.
type DB struct {
	*sqlx.DB
}

// Open connects to postgres and tunes the pool for a small registry:
// descriptor reads dominate, writes are rare uploads.
func Open(databaseURL string) (*DB, error) {
	handle, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	handle.SetMaxOpenConns(16)
	handle.SetMaxIdleConns(4)
	handle.SetConnMaxLifetime(30 * time.Minute)

	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, err
	}
	return &DB{handle}, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health pings the database, for the health endpoint.
func (db *DB) Health() error {
	return db.Ping()
}
