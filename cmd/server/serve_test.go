package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"logima-backend/internal/config"
	"logima-backend/internal/handlers"
	"logima-backend/internal/metrics"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		SecretKey:      "test-secret",
		FrontendOrigin: "http://localhost:5173",
	}
	return newRouter(cfg, zerolog.New(io.Discard), metrics.New(), routes{
		auth:     handlers.NewAuthHandler(nil, handlers.CookieSettings{}),
		oauth:    handlers.NewGoogleOAuthHandler(nil, cfg),
		projects: handlers.NewProjectsHandler(nil),
		uploads:  handlers.NewUploadsHandler(nil),
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/", "/health", "/metrics"} {
		req, _ := http.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_SwaggerDocs(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/uploads/presign-post")
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter()

	cases := []struct{ method, path string }{
		{"GET", "/auth/me"},
		{"GET", "/projects"},
		{"POST", "/projects"},
		{"POST", "/uploads/presign-post?filename=a.png&content_type=image/png"},
		{"POST", "/uploads/confirm?key=uploads/a.png"},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
}

func TestRouter_GoogleDisabledWithoutCredentials(t *testing.T) {
	router := newTestRouter()

	req, _ := http.NewRequest("GET", "/auth/google/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter()

	req, _ := http.NewRequest("OPTIONS", "/projects", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-CSRF-Token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
