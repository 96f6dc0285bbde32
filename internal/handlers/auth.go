package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"logima-backend/internal/config"
	"logima-backend/internal/middleware"
	"logima-backend/internal/models"
	"logima-backend/internal/services"
)

// AuthService is implemented by *services.AuthService.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindOrCreateOAuthUser(ctx context.Context, email string) (*models.User, error)
	NewSession(user *models.User) (*services.Session, error)
}

type CookieSettings struct {
	Secure bool
	MaxAge time.Duration
}

func CookieSettingsFromConfig(cfg *config.Config) CookieSettings {
	return CookieSettings{Secure: cfg.IsProduction(), MaxAge: cfg.SessionCookieMaxAge}
}

// setSession writes the HttpOnly access token and the script readable CSRF token.
func (s CookieSettings) setSession(c *gin.Context, session *services.Session) {
	maxAge := int(s.MaxAge.Seconds())
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    session.AccessToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.CSRFTokenCookie,
		Value:    session.CSRFToken,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s CookieSettings) clearSession(c *gin.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.CSRFTokenCookie} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:   name,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
			Secure: s.Secure,
		})
	}
}

type AuthHandler struct {
	auth    AuthService
	cookies CookieSettings
}

func NewAuthHandler(auth AuthService, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies}
}

// Register godoc
// @Summary     Register a user
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       body body models.RegisterRequest true "Credentials"
// @Success     201 {object} models.UserResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, models.NewUserResponse(user))
}

// Login godoc
// @Summary     Log in
// @Description Sets the access_token and csrf_token cookies.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       body body models.LoginRequest true "Credentials"
// @Success     200 {object} models.OKResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	h.cookies.setSession(c, session)
	c.JSON(http.StatusOK, models.OKResponse{OK: true})
}

// Logout godoc
// @Summary     Log out
// @Tags        auth
// @Produce     json
// @Success     200 {object} models.OKResponse
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookies.clearSession(c)
	c.JSON(http.StatusOK, models.OKResponse{OK: true})
}

// Me godoc
// @Summary     Current user
// @Tags        auth
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.UserResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user not found"})
			return
		}
		respondError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, models.NewUserResponse(user))
}
