package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"logima-backend/internal/models"
)

// ProjectService is implemented by *services.ProjectService.
type ProjectService interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error)
	Create(ctx context.Context, ownerID uuid.UUID, req models.CreateProjectRequest) (*models.Project, error)
	Get(ctx context.Context, ownerID, projectID uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, ownerID, projectID uuid.UUID, req models.UpdateProjectRequest) (*models.Project, error)
	Delete(ctx context.Context, ownerID, projectID uuid.UUID) error
	RefreshOutcome(ctx context.Context, ownerID, projectID uuid.UUID, description *string) (*models.Project, error)
}

type ProjectsHandler struct {
	projects ProjectService
}

func NewProjectsHandler(projects ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

// ListProjects godoc
// @Summary     List active projects
// @Description Returns the caller's active projects, newest first.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projects, err := h.projects.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}

	resp := models.ProjectListResponse{Projects: make([]models.ProjectResponse, len(projects))}
	for i := range projects {
		resp.Projects[i] = models.NewProjectResponse(&projects[i])
	}
	c.JSON(http.StatusOK, resp)
}

// CreateProject godoc
// @Summary     Create a project
// @Description Creates a project and generates its outcome summary.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       body body models.CreateProjectRequest true "Project"
// @Success     201 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	project, err := h.projects.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, models.NewProjectResponse(project))
}

// GetProject godoc
// @Summary     Get a project
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     200 {object} models.ProjectResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
	userID, projectID, ok := projectParams(c)
	if !ok {
		return
	}

	project, err := h.projects.Get(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

// UpdateProject godoc
// @Summary     Update a project
// @Description Applies only the fields present in the body.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Param       body body models.UpdateProjectRequest true "Fields"
// @Success     200 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [patch]
func (h *ProjectsHandler) UpdateProject(c *gin.Context) {
	userID, projectID, ok := projectParams(c)
	if !ok {
		return
	}

	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	project, err := h.projects.Update(c.Request.Context(), userID, projectID, req)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

// DeleteProject godoc
// @Summary     Delete a project
// @Tags        projects
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     204
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	userID, projectID, ok := projectParams(c)
	if !ok {
		return
	}

	if err := h.projects.Delete(c.Request.Context(), userID, projectID); err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	c.Status(http.StatusNoContent)
}

// RefreshOutcome godoc
// @Summary     Regenerate the project outcome
// @Description An optional description replaces the stored one before generating.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Param       body body models.RefreshOutcomeRequest false "Override"
// @Success     200 {object} models.ProjectResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id}/refresh-outcome [post]
func (h *ProjectsHandler) RefreshOutcome(c *gin.Context) {
	userID, projectID, ok := projectParams(c)
	if !ok {
		return
	}

	// the body is optional
	var req models.RefreshOutcomeRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
			return
		}
	}

	project, err := h.projects.RefreshOutcome(c.Request.Context(), userID, projectID, req.Description)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

func projectParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, projectID, true
}
