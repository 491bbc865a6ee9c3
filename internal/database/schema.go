package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
)

// The DDL below is shared by MySQL and SQLite.  Only inline constraints are
// used because MySQL has no CREATE INDEX IF NOT EXISTS.  Millisecond
// timestamps are spelled DATETIME(3); SQLite gets plain DATETIME so the
// driver still recognises the column as a time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id                VARCHAR(64)  NOT NULL PRIMARY KEY,
		legacy_id         VARCHAR(64)  NULL UNIQUE,
		title             VARCHAR(255) NOT NULL DEFAULT '',
		quantity          VARCHAR(255) NOT NULL DEFAULT '',
		location          VARCHAR(255) NOT NULL DEFAULT '',
		status            VARCHAR(16)  NOT NULL DEFAULT 'available',
		owner_id          VARCHAR(64)  NOT NULL DEFAULT '',
		owner_name        VARCHAR(255) NOT NULL DEFAULT '',
		owner_email       VARCHAR(255) NOT NULL DEFAULT '',
		reserved_by       VARCHAR(64)  NOT NULL DEFAULT '',
		reserved_by_name  VARCHAR(255) NOT NULL DEFAULT '',
		reserved_by_email VARCHAR(255) NOT NULL DEFAULT '',
		reserved_at       DATETIME(3)  NULL,
		collected_by      VARCHAR(64)  NOT NULL DEFAULT '',
		collected_at      DATETIME(3)  NULL,
		available_until   DATETIME(3)  NULL,
		created_at        DATETIME(3)  NOT NULL,
		updated_at        DATETIME(3)  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS collections (
		id                VARCHAR(64)  NOT NULL PRIMARY KEY,
		listing_id        VARCHAR(64)  NOT NULL UNIQUE,
		listing_title     VARCHAR(255) NOT NULL DEFAULT '',
		donor_id          VARCHAR(64)  NOT NULL DEFAULT '',
		donor_name        VARCHAR(255) NOT NULL DEFAULT '',
		recipient_id      VARCHAR(64)  NOT NULL DEFAULT '',
		recipient_name    VARCHAR(255) NOT NULL DEFAULT '',
		recipient_email   VARCHAR(255) NOT NULL DEFAULT '',
		quantity          VARCHAR(255) NOT NULL DEFAULT '',
		location          VARCHAR(255) NOT NULL DEFAULT '',
		status            VARCHAR(16)  NOT NULL DEFAULT 'reserved',
		collection_method VARCHAR(32)  NOT NULL DEFAULT '',
		collected_by      VARCHAR(64)  NOT NULL DEFAULT '',
		reserved_at       DATETIME(3)  NULL,
		collected_at      DATETIME(3)  NULL,
		created_at        DATETIME(3)  NOT NULL,
		updated_at        DATETIME(3)  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id              VARCHAR(64)  NOT NULL PRIMARY KEY,
		collection_id   VARCHAR(64)  NOT NULL,
		token           VARCHAR(512) NOT NULL,
		user_id         VARCHAR(64)  NULL,
		expires_at      DATETIME(3)  NOT NULL,
		used_at         DATETIME(3)  NULL,
		used_by_scanner VARCHAR(64)  NULL,
		created_at      DATETIME(3)  NOT NULL,
		updated_at      DATETIME(3)  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS donations (
		id             VARCHAR(64)    NOT NULL PRIMARY KEY,
		collection_id  VARCHAR(64)    NOT NULL UNIQUE,
		listing_id     VARCHAR(64)    NOT NULL DEFAULT '',
		donor_id       VARCHAR(64)    NOT NULL DEFAULT '',
		donor_name     VARCHAR(255)   NOT NULL DEFAULT '',
		recipient_id   VARCHAR(64)    NOT NULL DEFAULT '',
		recipient_name VARCHAR(255)   NOT NULL DEFAULT '',
		quantity       VARCHAR(255)   NOT NULL DEFAULT '',
		food_kg        DOUBLE         NOT NULL DEFAULT 0,
		co2_saved      DOUBLE         NOT NULL DEFAULT 0,
		water_saved    BIGINT         NOT NULL DEFAULT 0,
		people_fed     INT            NOT NULL DEFAULT 0,
		collected_at   DATETIME(3)    NOT NULL,
		created_at     DATETIME(3)    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id           VARCHAR(64)   NOT NULL PRIMARY KEY,
		topic        VARCHAR(64)   NOT NULL,
		dedup_key    VARCHAR(191)  NOT NULL UNIQUE,
		payload      TEXT          NOT NULL,
		attempts     INT           NOT NULL DEFAULT 0,
		last_error   VARCHAR(1024) NOT NULL DEFAULT '',
		created_at   DATETIME(3)   NOT NULL,
		delivered_at DATETIME(3)   NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id                VARCHAR(191) NOT NULL PRIMARY KEY,
		user_id           VARCHAR(64)  NOT NULL,
		type              VARCHAR(32)  NOT NULL,
		title             VARCHAR(255) NOT NULL DEFAULT '',
		message           VARCHAR(1024) NOT NULL DEFAULT '',
		listing_id        VARCHAR(64)  NOT NULL DEFAULT '',
		collection_method VARCHAR(32)  NOT NULL DEFAULT '',
		is_read           BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at        DATETIME(3)  NOT NULL
	)`,
}

// Migrate creates the tables used by the service when they are missing.
// Statements run one at a time since the MySQL driver rejects multi
// statement batches by default.
func Migrate(ctx context.Context, db *dbx.DB) error {
	for i, stmt := range schema {
		if IsSQLite(db) {
			stmt = strings.ReplaceAll(stmt, "DATETIME(3)", "DATETIME")
		}
		if _, err := db.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

// IsSQLite reports whether db talks to SQLite rather than MySQL.
func IsSQLite(db *dbx.DB) bool {
	return strings.HasPrefix(db.DriverName(), "sqlite")
}
