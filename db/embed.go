// Package db provides the embedded database schemas.
package db

import _ "embed"

// Schema contains the PostgreSQL DDL for shops and products. Every statement
// is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string

// SQLiteSchema is the SQLite flavour of Schema.
//
//go:embed migrations/001_schema.sqlite.sql
var SQLiteSchema string
