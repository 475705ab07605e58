package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

const oauthStateCookie = "oauth_state"

// SignUpRequest is the body of POST /auth/sign-up
type SignUpRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName" validate:"max=100"`
}

// SignInRequest is the body of POST /auth/sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// PasswordResetRequest is the body of POST /auth/password-reset
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ConfirmPasswordResetRequest is the body of POST /auth/password-reset/confirm
type ConfirmPasswordResetRequest struct {
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// AuthStateEvent is the payload of an auth-state event; User is null when signed out
type AuthStateEvent struct {
	User *entities.User `json:"user"`
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	auth    ports.AuthService
	streams StreamGauge
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth ports.AuthService, streams StreamGauge, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		streams: gaugeOrNop(streams),
		logger:  logger.WithComponent("auth_handler"),
	}
}

// SignUp godoc
// @Summary Create an account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Account data"
// @Success 201 {object} entities.Credentials
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/sign-up [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	creds, err := h.auth.SignUp(c.Request().Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, creds)
}

// SignIn godoc
// @Summary Sign in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Credentials"
// @Success 200 {object} entities.Credentials
// @Failure 401 {object} ErrorResponse
// @Router /auth/sign-in [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	creds, err := h.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		h.logger.LogSecurityEvent("sign_in_rejected", "", c.RealIP(), nil)
		return err
	}
	return c.JSON(http.StatusOK, creds)
}

// GoogleSignIn godoc
// @Summary Start Google sign-in
// @Description Redirects to Google's consent page
// @Tags auth
// @Success 307
// @Failure 401 {object} ErrorResponse
// @Router /auth/google [get]
func (h *AuthHandler) GoogleSignIn(c echo.Context) error {
	state := uuid.NewString()
	url, err := h.auth.GoogleAuthURL(state)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback godoc
// @Summary Finish Google sign-in
// @Tags auth
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "State issued by /auth/google"
// @Success 200 {object} entities.Credentials
// @Failure 401 {object} ErrorResponse
// @Router /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if reason := c.QueryParam("error"); reason != "" {
		return entities.NewAuthError("GoogleCallback", "POPUP_CLOSED_BY_USER", nil)
	}

	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != c.QueryParam("state") {
		h.logger.LogSecurityEvent("oauth_state_mismatch", "", c.RealIP(), nil)
		return entities.NewAuthError("GoogleCallback", "STATE_MISMATCH", nil)
	}
	c.SetCookie(&http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	creds, err := h.auth.SignInWithGoogle(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, creds)
}

// SignOut godoc
// @Summary Sign out
// @Description Ends the session of the bearer token and notifies auth-state streams
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /auth/sign-out [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	if err := h.auth.SignOut(c.Request().Context(), BearerToken(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Signed out successfully"})
}

// RequestPasswordReset godoc
// @Summary Send a password reset message
// @Tags auth
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Account email"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/password-reset [post]
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req PasswordResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.auth.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, MessageResponse{Message: "Password reset email sent"})
}

// ConfirmPasswordReset godoc
// @Summary Set a new password with a reset code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ConfirmPasswordResetRequest true "Reset code and new password"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/password-reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req ConfirmPasswordResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.auth.ConfirmPasswordReset(c.Request().Context(), req.Code, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Password updated"})
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} entities.User
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, CurrentUser(c))
}

// StreamAuthState godoc
// @Summary Stream auth state
// @Description Server-sent "auth-state" events: the token's user now, and null once signed out
// @Tags auth
// @Produce text/event-stream
// @Param token query string false "ID token when the Authorization header cannot be set"
// @Router /auth/state [get]
func (h *AuthHandler) StreamAuthState(c echo.Context) error {
	token := BearerToken(c)
	return stream(c, h.streams, h.logger, "auth-state",
		func(ctx context.Context, fn func(*entities.User)) (ports.CancelFunc, error) {
			return h.auth.SubscribeAuthState(ctx, token, fn)
		},
		func(user *entities.User) any { return AuthStateEvent{User: user} })
}
