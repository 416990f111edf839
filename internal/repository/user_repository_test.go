package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-schedule-api/internal/models"
)

var userRowColumns = []string{"id", "username", "password_hash", "email", "role", "firstname", "lastname", "created_at", "updated_at"}

func TestUserRepositoryFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u1", "jdoe", "hash", "jdoe@example.com", "student", "John", "Doe", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE username = $1 LIMIT 1")).
		WithArgs("jdoe").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "John Doe", user.FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryMalformedID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	badUUID := &pq.Error{Code: "22P02"}
	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("abc").WillReturnError(badUUID)
	mock.ExpectQuery("FROM users WHERE id = \\$1 AND role = \\$2").WithArgs("abc", "teacher").WillReturnError(badUUID)
	mock.ExpectExec("UPDATE users SET password_hash").WillReturnError(badUUID)

	_, err := repo.FindByID(context.Background(), "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = repo.FindTeacher(context.Background(), "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	err = repo.UpdatePassword(context.Background(), "abc", "hash", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	err := repo.Create(context.Background(), &models.User{Username: "jdoe", Email: "j@example.com", Role: models.RoleStudent})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "jdoe", "hash", "j@example.com", "student", "John", "Doe", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{Username: "jdoe", PasswordHash: "hash", Email: "j@example.com", Role: models.RoleStudent, Firstname: "John", Lastname: "Doe"}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	role := models.RoleTeacher
	listRows := sqlmock.NewRows(userRowColumns).
		AddRow("t1", "msmith", "hash", "m@example.com", "teacher", "Mary", "Smith", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE 1=1 AND role = $1 AND (LOWER(username) LIKE $2 OR LOWER(email) LIKE $2 OR LOWER(firstname || ' ' || lastname) LIKE $2) ORDER BY lastname ASC LIMIT 10 OFFSET 10")).
		WithArgs("teacher", "%smi%").
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND role = $1")).
		WithArgs("teacher", "%smi%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Search: "SMI", Page: 2, PageSize: 10, SortBy: "lastname", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListIgnoresUnknownSort(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(userRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	users, total, err := repo.List(context.Background(), models.UserFilter{SortBy: "password_hash; DROP TABLE users", PageSize: 500})
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDeleteReferenced(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("t1").
		WillReturnError(&pq.Error{Code: "23503"})

	err := repo.Delete(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrReferenced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryGroups(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO user_groups .* ON CONFLICT \\(user_id, group_name\\) DO NOTHING").
		WithArgs("s1", "CS-101", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT group_name FROM user_groups WHERE user_id = $1 ORDER BY group_name")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"group_name"}).AddRow("CS-101").AddRow("MATH-2"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_groups WHERE user_id = $1 AND group_name = $2")).
		WithArgs("s1", "CS-999").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.AssignGroup(ctx, "s1", "CS-101"))
	groups, err := repo.ListGroups(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS-101", "MATH-2"}, groups)
	assert.ErrorIs(t, repo.RemoveGroup(ctx, "s1", "CS-999"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindTeacher(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, firstname, lastname FROM users WHERE id = $1 AND role = $2 LIMIT 1")).
		WithArgs("t1", "teacher").
		WillReturnRows(sqlmock.NewRows([]string{"id", "firstname", "lastname"}).AddRow("t1", "Mary", "Smith"))

	teacher, err := repo.FindTeacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Mary", teacher.Firstname)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateLeavesOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, translate(plain))

	other := &pq.Error{Code: "42P01"}
	assert.Equal(t, error(other), translate(other))
	assert.ErrorIs(t, translate(&pq.Error{Code: "23P01"}), ErrOverlap)
	assert.ErrorIs(t, translate(&pq.Error{Code: "22P02"}), sql.ErrNoRows)
}
