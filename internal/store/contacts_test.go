package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentflow-backend/internal/db"
	"agentflow-backend/internal/types"
)

func newMockDB(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &db.DB{DB: sqlDB}, mock
}

func contactRows(contacts ...types.ContactData) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "phone", "email", "property_address"})
	for _, c := range contacts {
		rows.AddRow(c.ID, c.Name, c.Phone, c.Email, c.PropertyAddress)
	}
	return rows
}

func TestContactSearchNoFilters(t *testing.T) {
	database, mock := newMockDB(t)
	cs := NewContactStore(database)

	mock.ExpectQuery("FROM contacts").
		WithArgs("user-1").
		WillReturnRows(contactRows(
			types.ContactData{ID: "1", Name: "Jane Smith"},
			types.ContactData{ID: "2", Name: "John Doe", Phone: "123-456-7890"},
		))

	contacts, err := cs.Search(context.Background(), "user-1", "", "")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Jane Smith", contacts[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactSearchNameFilter(t *testing.T) {
	database, mock := newMockDB(t)
	cs := NewContactStore(database)

	mock.ExpectQuery(`name ILIKE \$2`).
		WithArgs("user-1", "%John%").
		WillReturnRows(contactRows(types.ContactData{ID: "2", Name: "John Doe"}))

	contacts, err := cs.Search(context.Background(), "user-1", "John", "")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactSearchBothFilters(t *testing.T) {
	database, mock := newMockDB(t)
	cs := NewContactStore(database)

	mock.ExpectQuery(`name ILIKE \$2 AND property_address ILIKE \$3`).
		WithArgs("user-1", "%John%", "%Main St%").
		WillReturnRows(contactRows())

	contacts, err := cs.Search(context.Background(), "user-1", "John", "Main St")
	require.NoError(t, err)
	assert.Empty(t, contacts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactSearchQueryError(t *testing.T) {
	database, mock := newMockDB(t)
	cs := NewContactStore(database)

	mock.ExpectQuery("FROM contacts").
		WithArgs("user-1").
		WillReturnError(fmt.Errorf("connection refused"))

	_, err := cs.Search(context.Background(), "user-1", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query contacts")
}

func TestContactSearchRequiresUser(t *testing.T) {
	database, _ := newMockDB(t)
	cs := NewContactStore(database)
	_, err := cs.Search(context.Background(), "", "", "")
	require.Error(t, err)
}

func TestContactInsertAssignsID(t *testing.T) {
	database, mock := newMockDB(t)
	cs := NewContactStore(database)

	mock.ExpectExec("INSERT INTO contacts").
		WithArgs(sqlmock.AnyArg(), "user-1", "John Doe",
			sql.NullString{String: "123", Valid: true},
			sql.NullString{},
			sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := cs.Insert(context.Background(), "user-1", types.ContactData{Name: "John Doe", Phone: "123"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactBulkInsertSkipsNameless(t *testing.T) {
	database, mock := newMockDB(t)
	cs := NewContactStore(database)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contacts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO contacts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	count, err := cs.BulkInsert(context.Background(), "user-1", []types.ContactData{
		{Name: "John Doe"},
		{Name: "  "},
		{Name: "Jane Smith"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactBulkInsertRollsBackOnError(t *testing.T) {
	database, mock := newMockDB(t)
	cs := NewContactStore(database)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contacts").WillReturnError(fmt.Errorf("constraint violation"))
	mock.ExpectRollback()

	_, err := cs.BulkInsert(context.Background(), "user-1", []types.ContactData{{Name: "John Doe"}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
