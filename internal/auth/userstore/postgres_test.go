package userstore

import (
	"context"
	"errors"
	"testing"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/auth/credentials"
	"github.com/debapps/WebAuthSecurity/internal/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	d := &db.DB{DB: sqlDB, Dialect: db.Postgres}
	return New(d, credentials.NewHasher(testParams, 1, credentials.DefaultMinLength)), mock
}

func TestPostgres_FindByID_StoreUnavailable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, username, secret, created_at, updated_at\s+FROM users\s+WHERE id = \$1`).
		WithArgs("u-1").
		WillReturnError(errors.New("connection refused"))

	_, err := s.FindByID(context.Background(), "u-1")
	assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindOrCreateByExternal_LosesRace(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT user_id\s+FROM identities\s+WHERE provider = \$1\s+AND provider_user_id = \$2`).
		WithArgs("facebook", "42").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users \(id, created_at, updated_at\)\s+VALUES \(\$1, \$2, \$3\)`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO identities .* ON CONFLICT \(provider, provider_user_id\) DO NOTHING`).
		WithArgs("facebook", "42", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	mock.ExpectQuery(`SELECT user_id\s+FROM identities`).
		WithArgs("facebook", "42").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("winner"))
	mock.ExpectQuery(`SELECT id, username, secret, created_at, updated_at\s+FROM users`).
		WithArgs("winner").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "secret", "created_at", "updated_at"}).
			AddRow("winner", nil, nil, int64(1700000000000), int64(1700000000000)))
	mock.ExpectQuery(`SELECT user_id, provider, provider_user_id\s+FROM identities`).
		WithArgs("winner").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "provider", "provider_user_id"}).
			AddRow("winner", "facebook", "42"))

	user, err := s.FindOrCreateByExternal(context.Background(), "facebook", "42")
	require.NoError(t, err)
	assert.Equal(t, "winner", user.ID)
	assert.Equal(t, "42", user.External["facebook"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateLocal_ConflictOnInsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO users .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)\s+ON CONFLICT DO NOTHING`).
		WithArgs(sqlmock.AnyArg(), "alice", sqlmock.AnyArg(), sqlmock.AnyArg(), credentials.HashVersionArgon2id, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.CreateLocal(context.Background(), "alice", "password1")
	assert.ErrorIs(t, err, auth.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete_RollsBackWhenMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM identities WHERE user_id = \$1`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Delete(context.Background(), "u-1")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
