package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const ProjectStatusActive = "active"

type Project struct {
	ID             uuid.UUID
	Name           string
	Description    sql.NullString
	Status         string
	OwnerID        uuid.UUID
	ProjectOutcome sql.NullString
	Created        time.Time
}

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash sql.NullString
	Created      time.Time
}
