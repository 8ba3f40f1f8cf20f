package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrNoRowsAffected is returned when an update matched nothing it was
// expected to change.
var ErrNoRowsAffected = errors.New("no rows affected")

//go:embed schema.sql
var schema string

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Info().Msg("database schema applied")
	return nil
}

// logged records a database error at the call site and hands it back.
func logged(op string, err error) error {
	log.Error().Err(err).Str("op", op).Msg("database error")
	return err
}
