package spatial

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
)

const pgUniqueViolation = "23505"

// translate maps store failures onto the api error taxonomy. Unknown errors
// are returned unchanged so callers can wrap them.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound("%s not found", what)
	}
	if IsUniqueViolation(err) {
		return apierr.DuplicateKey(fmt.Errorf("%s already exists: %w", what, err))
	}
	return err
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
