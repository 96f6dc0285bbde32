package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"logima-backend/internal/database"
	"logima-backend/internal/models"
)

// ProjectStore is implemented by *database.DatabaseClient.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) (*models.Project, error)
	GetProject(ctx context.Context, projectID, ownerID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, ownerID uuid.UUID, status string) ([]models.Project, error)
	UpdateProject(ctx context.Context, projectID, ownerID uuid.UUID, name, status *string) (*models.Project, error)
	UpdateProjectOutcome(ctx context.Context, projectID, ownerID uuid.UUID, description *string, outcome string) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID, ownerID uuid.UUID) error
}

type OutcomeGenerator interface {
	Generate(ctx context.Context, description string) Outcome
}

type ProjectService struct {
	store    ProjectStore
	outcomes OutcomeGenerator
	logger   zerolog.Logger
}

func NewProjectService(store ProjectStore, outcomes OutcomeGenerator, logger zerolog.Logger) *ProjectService {
	return &ProjectService{
		store:    store,
		outcomes: outcomes,
		logger:   logger.With().Str("component", "projects").Logger(),
	}
}

func (s *ProjectService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	projects, err := s.store.ListProjects(ctx, ownerID, models.ProjectStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Create stores the project together with its generated outcome. Outcome generation
// degrades rather than failing, so creation only fails on persistence errors.
func (s *ProjectService) Create(ctx context.Context, ownerID uuid.UUID, req models.CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrPolicyViolation)
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = models.ProjectStatusActive
	}

	var description string
	if req.Description != nil {
		description = *req.Description
	}
	outcome := s.outcomes.Generate(ctx, description)

	p, err := s.store.CreateProject(ctx, &models.Project{
		Name:           name,
		Description:    sql.NullString{String: description, Valid: req.Description != nil},
		Status:         status,
		OwnerID:        ownerID,
		ProjectOutcome: sql.NullString{String: outcome.String(), Valid: true},
	})
	if err != nil {
		return nil, mapStoreError("create project", err)
	}

	s.logger.Info().
		Str("project_id", p.ID.String()).
		Bool("outcome_degraded", outcome.Degraded).
		Msg("project created")
	return p, nil
}

func (s *ProjectService) Get(ctx context.Context, ownerID, projectID uuid.UUID) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, mapStoreError("get project", err)
	}
	return p, nil
}

// Update applies only the fields that are present; an empty patch is rejected.
func (s *ProjectService) Update(ctx context.Context, ownerID, projectID uuid.UUID, req models.UpdateProjectRequest) (*models.Project, error) {
	if req.Name == nil && req.Status == nil {
		return nil, fmt.Errorf("%w: no fields to update", ErrPolicyViolation)
	}
	p, err := s.store.UpdateProject(ctx, projectID, ownerID, req.Name, req.Status)
	if err != nil {
		return nil, mapStoreError("update project", err)
	}
	return p, nil
}

func (s *ProjectService) Delete(ctx context.Context, ownerID, projectID uuid.UUID) error {
	if err := s.store.DeleteProject(ctx, projectID, ownerID); err != nil {
		return mapStoreError("delete project", err)
	}
	return nil
}

// RefreshOutcome regenerates the outcome from the override when given, otherwise from
// the stored description. The override also replaces the stored description.
func (s *ProjectService) RefreshOutcome(ctx context.Context, ownerID, projectID uuid.UUID, override *string) (*models.Project, error) {
	current, err := s.store.GetProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, mapStoreError("get project", err)
	}

	description := current.Description.String
	if override != nil {
		description = *override
	}
	outcome := s.outcomes.Generate(ctx, description)

	p, err := s.store.UpdateProjectOutcome(ctx, projectID, ownerID, override, outcome.String())
	if err != nil {
		return nil, mapStoreError("update project outcome", err)
	}
	return p, nil
}

func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case errors.Is(err, database.ErrConstraintViolation):
		return fmt.Errorf("%w: %s: %v", ErrConstraintViolation, op, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
