package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"logima-backend/internal/auth"
	"logima-backend/internal/config"
	"logima-backend/internal/models"
)

const (
	oauthStateCookie   = "oauth_state"
	oauthStateMaxAge   = 600
	googleUserInfoURL  = "https://openidconnect.googleapis.com/v1/userinfo"
	maxUserInfoPayload = 1 << 20
)

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// OAuthHandler runs the authorization code flow. A nil oauth config disables it.
type OAuthHandler struct {
	auth        AuthService
	oauth       *oauth2.Config
	userInfoURL string
	redirectTo  string
	cookies     CookieSettings
}

func NewOAuthHandler(auth AuthService, oauthCfg *oauth2.Config, userInfoURL, redirectTo string, cookies CookieSettings) *OAuthHandler {
	return &OAuthHandler{
		auth:        auth,
		oauth:       oauthCfg,
		userInfoURL: userInfoURL,
		redirectTo:  redirectTo,
		cookies:     cookies,
	}
}

// NewGoogleOAuthHandler is disabled when the Google client credentials are unset.
func NewGoogleOAuthHandler(auth AuthService, cfg *config.Config) *OAuthHandler {
	var oauthCfg *oauth2.Config
	if cfg.GoogleOAuthEnabled() {
		oauthCfg = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email"},
		}
	}
	return NewOAuthHandler(auth, oauthCfg, googleUserInfoURL, cfg.FrontendOrigin, CookieSettingsFromConfig(cfg))
}

// Login godoc
// @Summary     Start Google sign in
// @Tags        auth
// @Success     307
// @Failure     404 {object} models.ErrorResponse
// @Router      /auth/google/login [get]
func (h *OAuthHandler) Login(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "google sign in is not configured"})
		return
	}

	state, err := auth.NewCSRFToken()
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// Callback godoc
// @Summary     Complete Google sign in
// @Description Exchanges the code, signs the user in and redirects to the frontend.
// @Tags        auth
// @Param       code  query string true "Authorization code"
// @Param       state query string true "State"
// @Success     307
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /auth/google/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "google sign in is not configured"})
		return
	}

	state := c.Query("state")
	cookie, _ := c.Cookie(oauthStateCookie)
	if state == "" || cookie == "" || subtle.ConstantTimeCompare([]byte(state), []byte(cookie)) != 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid oauth state"})
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: oauthStateCookie, Path: "/auth/google", MaxAge: -1})

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing authorization code"})
		return
	}

	ctx := c.Request.Context()
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "code exchange failed", Message: err.Error()})
		return
	}

	info, err := h.fetchUserInfo(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "failed to read user info", Message: err.Error()})
		return
	}
	if info.Email == "" || !info.EmailVerified {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "email not verified"})
		return
	}

	user, err := h.auth.FindOrCreateOAuthUser(ctx, info.Email)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	session, err := h.auth.NewSession(user)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	h.cookies.setSession(c, session)
	c.Redirect(http.StatusTemporaryRedirect, h.redirectTo)
}

func (h *OAuthHandler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	resp, err := h.oauth.Client(ctx, token).Get(h.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return &info, nil
}
