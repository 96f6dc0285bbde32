package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"logima-backend/internal/models"
	"logima-backend/internal/services"
)

// UploadService is implemented by *services.UploadService.
type UploadService interface {
	IssueUpload(ctx context.Context, req services.IssueRequest) (*models.PresignedUpload, error)
	ConfirmUpload(ctx context.Context, key string) (*models.Artifact, error)
}

type UploadsHandler struct {
	uploads UploadService
}

func NewUploadsHandler(uploads UploadService) *UploadsHandler {
	return &UploadsHandler{uploads: uploads}
}

// PresignPost godoc
// @Summary     Authorize a direct upload
// @Description Returns a presigned POST form for uploading one object straight to the bucket
// @Description and records a pending artifact.
// @Tags        uploads
// @Produce     json
// @Security    Bearer
// @Param       filename     query string true  "Original file name"
// @Param       content_type query string true  "Exact MIME type"
// @Param       project_id   query string false "Project ID (UUID)"
// @Param       user_id      query string false "User ID (UUID), defaults to the caller"
// @Param       max_bytes    query int    false "Size ceiling override"
// @Success     200 {object} models.PresignedPostResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     415 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /uploads/presign-post [post]
func (h *UploadsHandler) PresignPost(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		return
	}

	filename := strings.TrimSpace(c.Query("filename"))
	contentType := strings.TrimSpace(c.Query("content_type"))
	if filename == "" || len(contentType) < 3 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "filename and content_type are required"})
		return
	}

	projectID, err := optionalUUID(c.Query("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project_id"})
		return
	}
	userID, err := optionalUUID(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user_id"})
		return
	}
	if !userID.Valid {
		userID = uuid.NullUUID{UUID: callerID, Valid: true}
	}

	var maxBytes int64
	if raw := c.Query("max_bytes"); raw != "" {
		maxBytes, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || maxBytes < 1 {
			c.JSON(http.StatusUnsupportedMediaType, models.ErrorResponse{Error: "policy violation", Message: "max_bytes must be a positive integer"})
			return
		}
	}

	upload, err := h.uploads.IssueUpload(c.Request.Context(), services.IssueRequest{
		Filename:    filename,
		ContentType: contentType,
		ProjectID:   projectID,
		UserID:      userID,
		MaxBytes:    maxBytes,
	})
	if err != nil {
		respondError(c, err, http.StatusUnsupportedMediaType)
		return
	}
	c.JSON(http.StatusOK, models.PresignedPostResponse{Upload: *upload})
}

// ConfirmUpload godoc
// @Summary     Confirm a direct upload
// @Description Reads the stored object's metadata and marks the artifact uploaded.
// @Description 409 means the object is not visible yet and the call can be retried.
// @Tags        uploads
// @Produce     json
// @Security    Bearer
// @Param       key query string true "Object key returned by presign-post"
// @Success     200 {object} models.ConfirmUploadResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /uploads/confirm [post]
func (h *UploadsHandler) ConfirmUpload(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "key is required"})
		return
	}

	artifact, err := h.uploads.ConfirmUpload(c.Request.Context(), key)
	if err != nil {
		respondError(c, err, http.StatusUnsupportedMediaType)
		return
	}
	c.JSON(http.StatusOK, models.NewConfirmUploadResponse(artifact))
}

func optionalUUID(raw string) (uuid.NullUUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}
