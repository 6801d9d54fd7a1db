package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStorePostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db, DialectPostgres)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM client_storage WHERE storage_key = $1`)).
		WithArgs(KeyCart).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[]`))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO client_storage (storage_key, value) VALUES ($1, $2)`)).
		WithArgs(KeyAdminToken, "jwt").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM client_storage WHERE storage_key = $1`)).
		WithArgs(KeyUserToken).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM client_storage WHERE storage_key = $1`)).
		WithArgs(KeyAdminToken).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, ok, err := s.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, v)

	require.NoError(t, s.Set(ctx, KeyAdminToken, "jwt"))
	require.NoError(t, s.Delete(ctx, KeyUserToken, KeyAdminToken))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreMySQLMissingKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db, DialectMySQL)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM client_storage WHERE storage_key = ?`)).
		WithArgs(KeyUserData).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectExec(regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE`)).
		WithArgs(KeyUserData, "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, ok, err := s.Get(context.Background(), KeyUserData)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Set(context.Background(), KeyUserData, "{}"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreDeleteRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM client_storage`).WithArgs(KeyUserToken).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = s.Delete(context.Background(), KeyUserToken, KeyAdminToken)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	my := &SQLStore{dialect: DialectMySQL}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = ? AND b = ?", my.rebind("a = ? AND b = ?"))
}
