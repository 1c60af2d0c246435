package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/isdelr/acquisitions-api/internal/auth"
	"github.com/isdelr/acquisitions-api/internal/httpx"
	"github.com/isdelr/acquisitions-api/internal/models"
	"github.com/isdelr/acquisitions-api/internal/services"
	"github.com/rs/zerolog/log"
)

// TokenSigner issues credentials for a signed-in user.
type TokenSigner interface {
	Sign(id models.Identity) (string, error)
	TTL() time.Duration
}

// AuthHandler handles signup, signin and signout.
type AuthHandler struct {
	service           services.UserServiceProvider
	tokens            TokenSigner
	secureCookie      bool
	allowRoleOnSignup bool
}

// AuthOptions tunes cookie and signup behaviour.
type AuthOptions struct {
	// SecureCookie marks the token cookie Secure; set in production.
	SecureCookie bool
	// AllowRoleOnSignup lets callers register themselves as admin.
	AllowRoleOnSignup bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.UserServiceProvider, tokens TokenSigner, opts AuthOptions) *AuthHandler {
	return &AuthHandler{
		service:           service,
		tokens:            tokens,
		secureCookie:      opts.SecureCookie,
		allowRoleOnSignup: opts.AllowRoleOnSignup,
	}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72,pwbytes"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// authUser is the public view of a user returned by the auth routes.
type authUser struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

func toAuthUser(u models.User) authUser {
	return authUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// SignUp registers a user and signs them in.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validateStruct(w, req) {
		return
	}

	role := models.RoleUser
	if req.Role != "" {
		role = models.Role(req.Role)
	}
	if role == models.RoleAdmin && !h.allowRoleOnSignup {
		log.Warn().Str("email", req.Email).Msg("Rejected admin role at signup")
		httpx.WriteError(w, http.StatusForbidden, "Forbidden: cannot assign admin role at signup")
		return
	}

	user, err := h.service.CreateUser(r.Context(), services.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		writeServiceError(w, r, err, "sign up user")
		return
	}

	if !h.issueToken(w, r, user) {
		return
	}

	log.Info().Str("email", user.Email).Int64("user_id", user.ID).Msg("User signed up")
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User signed up successfully.",
		"user":    toAuthUser(user),
	})
}

// SignIn checks credentials and sets the token cookie.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validateStruct(w, req) {
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", req.Email).Msg("Failed authentication attempt")
		writeServiceError(w, r, err, "sign in user")
		return
	}

	if !h.issueToken(w, r, user) {
		return
	}

	log.Info().Str("email", user.Email).Int64("user_id", user.ID).Msg("User signed in")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User signed in successfully.",
		"user":    toAuthUser(user),
	})
}

// SignOut clears the token cookie. The token itself stays valid until it
// expires; there is no server-side revocation.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	log.Info().Msg("User signed out")
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "User signed out successfully.",
	})
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, r *http.Request, user models.User) bool {
	token, err := h.tokens.Sign(models.IdentityOf(user))
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Str("path", r.URL.Path).Msg("Failed to generate JWT")
		httpx.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return false
	}

	ttl := h.tokens.TTL()
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return true
}
