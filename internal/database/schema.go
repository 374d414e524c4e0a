package database

import (
	"context"
	"fmt"
)

const mysqlUsersTable = `CREATE TABLE IF NOT EXISTS users (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	email VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
	first_name VARCHAR(100) NOT NULL,
	last_name VARCHAR(100) NOT NULL,
	phone VARCHAR(50) NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'active',
	role VARCHAR(20) NOT NULL DEFAULT 'student',
	home_area VARCHAR(255) NULL,
	preferred_departure_time TIME NULL,
	google_id VARCHAR(255) NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	UNIQUE KEY uq_users_email (email),
	UNIQUE KEY uq_users_google_id (google_id),
	KEY idx_users_role (role),
	KEY idx_users_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// AUTOINCREMENT keeps ids from being reused after deletes.
const sqliteUsersTable = `CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	phone TEXT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	role TEXT NOT NULL DEFAULT 'student',
	home_area TEXT NULL,
	preferred_departure_time TEXT NULL,
	google_id TEXT NULL UNIQUE,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`

// EnsureSchema creates the users table for the gateway's dialect when it is
// missing.  Existing tables are left alone.
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	ddl := mysqlUsersTable
	if g.dialect == SQLite {
		ddl = sqliteUsersTable
	}
	if _, err := g.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure users table: %w", err)
	}
	return nil
}
