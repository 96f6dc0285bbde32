package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logima-backend/internal/database"
	"logima-backend/internal/models"
)

var projectCols = []string{"id", "name", "description", "status", "owner_id", "project_outcome", "created"}
var userCols = []string{"id", "email", "password_hash", "created"}

func TestCreateProject(t *testing.T) {
	client, mock := newMock(t)
	ownerID := uuid.New()
	projectID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO projects`).
		WithArgs("Launch", "ship it", "active", ownerID, "Ship the launch.").
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow(projectID.String(), "Launch", "ship it", "active", ownerID.String(), "Ship the launch.", now))

	p, err := client.CreateProject(context.Background(), &models.Project{
		Name:           "Launch",
		Description:    sql.NullString{String: "ship it", Valid: true},
		Status:         "active",
		OwnerID:        ownerID,
		ProjectOutcome: sql.NullString{String: "Ship the launch.", Valid: true},
	})
	require.NoError(t, err)
	assert.Equal(t, projectID, p.ID)
	assert.Equal(t, "Ship the launch.", p.ProjectOutcome.String)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjects(t *testing.T) {
	client, mock := newMock(t)
	ownerID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM projects WHERE owner_id = \$1 AND status = \$2 ORDER BY created DESC`).
		WithArgs(ownerID, "active").
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow(uuid.NewString(), "newer", nil, "active", ownerID.String(), nil, now).
			AddRow(uuid.NewString(), "older", "desc", "active", ownerID.String(), "AI summary unavailable.", now.Add(-time.Hour)))

	projects, err := client.ListProjects(context.Background(), ownerID, "active")
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "newer", projects[0].Name)
	assert.False(t, projects[0].Description.Valid)
	assert.Equal(t, "older", projects[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjects_Empty(t *testing.T) {
	client, mock := newMock(t)
	ownerID := uuid.New()

	mock.ExpectQuery(`FROM projects`).
		WithArgs(ownerID, "active").
		WillReturnRows(sqlmock.NewRows(projectCols))

	projects, err := client.ListProjects(context.Background(), ownerID, "active")
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)
}

func TestUpdateProject_OnlyProvidedFields(t *testing.T) {
	client, mock := newMock(t)
	ownerID := uuid.New()
	projectID := uuid.New()
	name := "Renamed"

	mock.ExpectQuery(`UPDATE projects\s+SET name = COALESCE\(\$3, name\), status = COALESCE\(\$4, status\)`).
		WithArgs(projectID, ownerID, "Renamed", nil).
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow(projectID.String(), "Renamed", nil, "active", ownerID.String(), nil, time.Now()))

	p, err := client.UpdateProject(context.Background(), projectID, ownerID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProject_NotFound(t *testing.T) {
	client, mock := newMock(t)

	mock.ExpectQuery(`FROM projects`).WillReturnError(sql.ErrNoRows)

	_, err := client.GetProject(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDeleteProject_NoRows(t *testing.T) {
	client, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM projects`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := client.DeleteProject(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestUpdateProjectOutcome(t *testing.T) {
	client, mock := newMock(t)
	ownerID := uuid.New()
	projectID := uuid.New()

	mock.ExpectQuery(`UPDATE projects\s+SET description = COALESCE\(\$3, description\), project_outcome = \$4`).
		WithArgs(projectID, ownerID, nil, "AI summary unavailable.").
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow(projectID.String(), "p", "old", "active", ownerID.String(), "AI summary unavailable.", time.Now()))

	p, err := client.UpdateProjectOutcome(context.Background(), projectID, ownerID, nil, "AI summary unavailable.")
	require.NoError(t, err)
	assert.Equal(t, "old", p.Description.String)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	client, mock := newMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("ada@example.com", "hash").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := client.CreateUser(context.Background(), "ada@example.com", sql.NullString{String: "hash", Valid: true})
	assert.ErrorIs(t, err, database.ErrConstraintViolation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail(t *testing.T) {
	client, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM users\s+WHERE email = \$1`).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id.String(), "ada@example.com", nil, time.Now()))

	u, err := client.GetUserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.False(t, u.PasswordHash.Valid)
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	client, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = database.WithTx(context.Background(), client.DB(), nil, func(ctx context.Context, tx database.DBTX) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginError(t *testing.T) {
	client, mock := newMock(t)

	mock.ExpectBegin().WillReturnError(assert.AnError)

	err := database.WithTx(context.Background(), client.DB(), nil, func(ctx context.Context, tx database.DBTX) error {
		return nil
	})
	assert.ErrorIs(t, err, assert.AnError)
}
