package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"logima-backend/internal/models"
)

const projectColumns = `id, name, description, status, owner_id, project_outcome, created`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.OwnerID, &p.ProjectOutcome, &p.Created)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DatabaseClient) CreateProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO projects (name, description, status, owner_id, project_outcome)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+projectColumns,
		p.Name, p.Description, p.Status, p.OwnerID, p.ProjectOutcome,
	)
	created, err := scanProject(row)
	if err != nil {
		return nil, wrapError("create project", err)
	}
	return created, nil
}

func (d *DatabaseClient) GetProject(ctx context.Context, projectID, ownerID uuid.UUID) (*models.Project, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1 AND owner_id = $2
	`, projectID, ownerID)
	p, err := scanProject(row)
	if err != nil {
		return nil, wrapError("get project", err)
	}
	return p, nil
}

// ListProjects returns the owner's projects with the given status, newest first.
func (d *DatabaseClient) ListProjects(ctx context.Context, ownerID uuid.UUID, status string) ([]models.Project, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE owner_id = $1 AND status = $2
		ORDER BY created DESC
	`, ownerID, status)
	if err != nil {
		return nil, wrapError("list projects", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, wrapError("scan project", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list projects", err)
	}

	return projects, nil
}

// UpdateProject applies the non-nil fields. At least one must be set.
func (d *DatabaseClient) UpdateProject(ctx context.Context, projectID, ownerID uuid.UUID, name, status *string) (*models.Project, error) {
	row := d.db.QueryRowContext(ctx, `
		UPDATE projects
		SET name = COALESCE($3, name), status = COALESCE($4, status)
		WHERE id = $1 AND owner_id = $2
		RETURNING `+projectColumns,
		projectID, ownerID, nullString(name), nullString(status),
	)
	p, err := scanProject(row)
	if err != nil {
		return nil, wrapError("update project", err)
	}
	return p, nil
}

// UpdateProjectOutcome stores a generated outcome. A non-nil description replaces the stored one.
func (d *DatabaseClient) UpdateProjectOutcome(ctx context.Context, projectID, ownerID uuid.UUID, description *string, outcome string) (*models.Project, error) {
	row := d.db.QueryRowContext(ctx, `
		UPDATE projects
		SET description = COALESCE($3, description), project_outcome = $4
		WHERE id = $1 AND owner_id = $2
		RETURNING `+projectColumns,
		projectID, ownerID, nullString(description), outcome,
	)
	p, err := scanProject(row)
	if err != nil {
		return nil, wrapError("update project outcome", err)
	}
	return p, nil
}

func (d *DatabaseClient) DeleteProject(ctx context.Context, projectID, ownerID uuid.UUID) error {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND owner_id = $2
	`, projectID, ownerID)
	if err != nil {
		return wrapError("delete project", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapError("delete project", sql.ErrNoRows)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
