package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"musicbox/config"
	"musicbox/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Dialect names a supported relational backend.
type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(name) {
	case SQLite, MySQL:
		return Dialect(name), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// Open establishes a connection pool for the configured driver and verifies it with a ping.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, Dialect, error) {
	dialect, err := ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, "", err
	}

	switch dialect {
	case MySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		conn, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database connection: %w", err)
		}
		conn.SetMaxIdleConns(10)
		conn.SetMaxOpenConns(100)
		conn.SetConnMaxLifetime(time.Hour)
		if err := conn.PingContext(ctx); err != nil {
			conn.Close()
			return nil, "", fmt.Errorf("failed to ping database: %w", err)
		}
		logger.Info("Connected to MySQL", logger.String("host", cfg.DBHost), logger.String("database", cfg.DBName))
		return conn, MySQL, nil
	default:
		conn, err := OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, "", err
		}
		logger.Info("Connected to SQLite", logger.String("path", cfg.DBPath))
		return conn, SQLite, nil
	}
}

// OpenSQLite opens a SQLite database file. A single connection is used so that
// pragmas apply to every statement and writers never contend for the file lock.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		// favorites.song_id is declared as a reference but deliberately not enforced.
		"PRAGMA foreign_keys=OFF",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}
	return conn, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS songs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		filename TEXT NOT NULL,
		play_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		song_id INTEGER NOT NULL,
		FOREIGN KEY (song_id) REFERENCES songs(id)
	)`,
}

// usernames use a binary collation so lookups and uniqueness are case-sensitive.
// MySQL gets no FOREIGN KEY clause: InnoDB would enforce it, and favorites may point at
// songs that do not exist.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS songs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		artist VARCHAR(255) NOT NULL,
		filename VARCHAR(255) NOT NULL,
		play_count BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		song_id BIGINT NOT NULL,
		INDEX idx_favorites_song_id (song_id)
	)`,
}

// InitDB creates the users, songs and favorites tables if they don't exist.
func InitDB(ctx context.Context, conn *sql.DB, dialect Dialect) error {
	schema := sqliteSchema
	if dialect == MySQL {
		schema = mysqlSchema
	}

	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	logger.Info("Database schema initialized (or already exists)", logger.String("dialect", string(dialect)))
	return nil
}
