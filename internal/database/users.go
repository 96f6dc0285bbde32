package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"logima-backend/internal/models"
)

const userColumns = `id, email, password_hash, created`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Created); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a user. passwordHash is NULL for accounts that only sign in through OAuth.
func (d *DatabaseClient) CreateUser(ctx context.Context, email string, passwordHash sql.NullString) (*models.User, error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING `+userColumns,
		email, passwordHash,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, wrapError("create user", err)
	}
	return user, nil
}

func (d *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	user, err := scanUser(row)
	if err != nil {
		return nil, wrapError("get user by email", err)
	}
	return user, nil
}

func (d *DatabaseClient) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, wrapError("get user", err)
	}
	return user, nil
}
