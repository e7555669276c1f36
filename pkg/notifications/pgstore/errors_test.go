package pgstore_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/notifications/pgstore"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, pgstore.IsNotFoundError(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)))
	assert.False(t, pgstore.IsNotFoundError(nil))
	assert.False(t, pgstore.IsNotFoundError(errors.New("other")))

	dup := &pgconn.PgError{Code: "23505"}
	assert.True(t, pgstore.IsDuplicateKeyError(fmt.Errorf("insert: %w", dup)))
	assert.False(t, pgstore.IsDuplicateKeyError(nil))
	assert.False(t, pgstore.IsUndefinedTableError(dup))

	assert.True(t, pgstore.IsUndefinedTableError(&pgconn.PgError{Code: "42P01"}))
}
