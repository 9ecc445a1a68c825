package repo

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Tipos que mudam entre Postgres e SQLite.
var schemaTypes = map[string]*strings.Replacer{
	DriverPostgres: strings.NewReplacer("{{blob}}", "BYTEA", "{{amount}}", "NUMERIC(20,0)", "{{serial}}", "BIGSERIAL PRIMARY KEY", "{{now}}", "NOW()"),
	DriverSQLite:   strings.NewReplacer("{{blob}}", "BLOB", "{{amount}}", "TEXT", "{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{now}}", "CURRENT_TIMESTAMP"),
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS creator_nonces (
		creator    TEXT PRIMARY KEY,
		next_nonce BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS markets (
		address             TEXT PRIMARY KEY,
		creator             TEXT NOT NULL,
		nonce               BIGINT NOT NULL,
		status              SMALLINT NOT NULL,
		end_ts              BIGINT NOT NULL,
		resolve_deadline_ts BIGINT NOT NULL,
		data                {{blob}} NOT NULL,
		version             BIGINT NOT NULL DEFAULT 1,
		created_at          TIMESTAMP NOT NULL DEFAULT {{now}},
		UNIQUE (creator, nonce)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_markets_status_end ON markets (status, end_ts)`,
	`CREATE INDEX IF NOT EXISTS idx_markets_status_deadline ON markets (status, resolve_deadline_ts)`,
	`CREATE TABLE IF NOT EXISTS positions (
		address TEXT PRIMARY KEY,
		market  TEXT NOT NULL REFERENCES markets (address),
		owner   TEXT NOT NULL,
		data    {{blob}} NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		UNIQUE (market, owner)
	)`,
	`CREATE TABLE IF NOT EXISTS token_accounts (
		address TEXT PRIMARY KEY,
		owner   TEXT NOT NULL,
		mint    TEXT NOT NULL,
		balance {{amount}} NOT NULL,
		version BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS token_ledger (
		id             {{serial}},
		account        TEXT NOT NULL REFERENCES token_accounts (address),
		operation_type TEXT NOT NULL,
		amount         {{amount}} NOT NULL,
		description    TEXT NOT NULL,
		created_at     TIMESTAMP NOT NULL DEFAULT {{now}}
	)`,
}

// Migrate cria as tabelas se ainda não existirem.
func (s *Store) Migrate(ctx context.Context) error {
	r := schemaTypes[s.d.driver]
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return errors.Wrapf(err, "migrate: %s", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
