package handlers_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logima-backend/internal/handlers"
	"logima-backend/internal/middleware"
	"logima-backend/internal/models"
	"logima-backend/internal/services"
)

type stubUploads struct {
	issued     []services.IssueRequest
	issueErr   error
	confirmErr error
	artifact   *models.Artifact
}

func (s *stubUploads) IssueUpload(ctx context.Context, req services.IssueRequest) (*models.PresignedUpload, error) {
	s.issued = append(s.issued, req)
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	return &models.PresignedUpload{
		URL:       "https://bucket.s3.us-east-2.amazonaws.com",
		Fields:    map[string]string{"key": "uploads/abc-a.png"},
		Key:       "uploads/abc-a.png",
		PublicURL: "https://bucket.s3.us-east-2.amazonaws.com/uploads/abc-a.png",
	}, nil
}

func (s *stubUploads) ConfirmUpload(ctx context.Context, key string) (*models.Artifact, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return s.artifact, nil
}

// withUser stands in for AuthMiddleware.
func withUser(id uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, id.String())
		c.Next()
	}
}

func newUploadsRouter(uploads *stubUploads, caller uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := handlers.NewUploadsHandler(uploads)
	group := router.Group("/uploads", withUser(caller))
	group.POST("/presign-post", h.PresignPost)
	group.POST("/confirm", h.ConfirmUpload)
	return router
}

func TestPresignPost_Success(t *testing.T) {
	caller := uuid.New()
	projectID := uuid.New()
	uploads := &stubUploads{}
	router := newUploadsRouter(uploads, caller)

	url := fmt.Sprintf("/uploads/presign-post?filename=a.png&content_type=image/png&project_id=%s&max_bytes=100", projectID)
	req, _ := http.NewRequest("POST", url, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PresignedPostResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "uploads/abc-a.png", resp.Upload.Key)
	assert.Equal(t, "uploads/abc-a.png", resp.Upload.Fields["key"])

	require.Len(t, uploads.issued, 1)
	issued := uploads.issued[0]
	assert.Equal(t, projectID, issued.ProjectID.UUID)
	assert.Equal(t, caller, issued.UserID.UUID)
	assert.Equal(t, int64(100), issued.MaxBytes)
}

func TestPresignPost_StatusMapping(t *testing.T) {
	cases := []struct {
		name  string
		query string
		err   error
		want  int
	}{
		{"missing filename", "content_type=image/png", nil, http.StatusBadRequest},
		{"bad project id", "filename=a.png&content_type=image/png&project_id=nope", nil, http.StatusBadRequest},
		{"bad max bytes", "filename=a.png&content_type=image/png&max_bytes=0", nil, http.StatusUnsupportedMediaType},
		{"disallowed type", "filename=a.png&content_type=text/html", fmt.Errorf("%w: nope", services.ErrPolicyViolation), http.StatusUnsupportedMediaType},
		{"constraint", "filename=a.png&content_type=image/png", fmt.Errorf("%w: fk", services.ErrConstraintViolation), http.StatusBadRequest},
		{"upstream", "filename=a.png&content_type=image/png", fmt.Errorf("%w: s3", services.ErrUpstream), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newUploadsRouter(&stubUploads{issueErr: tc.err}, uuid.New())
			req, _ := http.NewRequest("POST", "/uploads/presign-post?"+tc.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestConfirmUpload_Success(t *testing.T) {
	uploads := &stubUploads{artifact: &models.Artifact{
		StorageKey: "uploads/abc-a.png",
		Status:     models.ArtifactUploaded,
		SizeBytes:  sql.NullInt64{Int64: 42, Valid: true},
		ETag:       sql.NullString{String: "etag", Valid: true},
	}}
	router := newUploadsRouter(uploads, uuid.New())

	req, _ := http.NewRequest("POST", "/uploads/confirm?key=uploads/abc-a.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"key":"uploads/abc-a.png","size_bytes":42,"etag":"etag","status":"uploaded"}`, w.Body.String())
}

func TestConfirmUpload_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("%w: k", services.ErrNotFound), http.StatusNotFound},
		{"not yet visible", fmt.Errorf("%w: k", services.ErrNotYetVisible), http.StatusConflict},
		{"terminal", fmt.Errorf("%w: k", services.ErrInvalidTransition), http.StatusConflict},
		{"integrity", fmt.Errorf("%w: k", services.ErrIntegrity), http.StatusUnprocessableEntity},
		{"upstream", fmt.Errorf("%w: k", services.ErrUpstream), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newUploadsRouter(&stubUploads{confirmErr: tc.err}, uuid.New())
			req, _ := http.NewRequest("POST", "/uploads/confirm?key=uploads/k", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestConfirmUpload_MissingKey(t *testing.T) {
	router := newUploadsRouter(&stubUploads{}, uuid.New())
	req, _ := http.NewRequest("POST", "/uploads/confirm", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
