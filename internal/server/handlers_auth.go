package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// handleAuthRegister handles POST /api/auth/register.
func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req registerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		WriteError(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(req.Password) < 8 {
		WriteError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	ctx := r.Context()
	if _, err := s.app.Storage.Users().GetByEmail(ctx, req.Email); err == nil {
		WriteError(w, http.StatusConflict, "Email already registered")
		return
	} else if !errors.Is(err, models.ErrNotFound) {
		WriteServiceError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.app.Storage.Users().Save(ctx, user); err != nil {
		WriteServiceError(w, err)
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("User registered")
	s.writeToken(w, http.StatusCreated, user)
}

// handleAuthLogin handles POST /api/auth/login.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx := r.Context()
	user, err := s.app.Storage.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		// Same response for unknown email and bad password.
		WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.IsActive {
		WriteError(w, http.StatusForbidden, "Account is disabled")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	user.LastLoginAt = time.Now().UTC()
	if err := s.app.Storage.Users().Save(ctx, user); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record login time")
	}

	s.writeToken(w, http.StatusOK, user)
}

// handleAuthValidate handles GET /api/auth/validate. The bearer middleware
// already validated the token; this just echoes the resolved user.
func (s *Server) handleAuthValidate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	userID := common.ResolveUserID(r.Context())
	user, err := s.app.Storage.Users().Get(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (s *Server) writeToken(w http.ResponseWriter, status int, user *models.User) {
	expiry := s.app.Config.Auth.GetTokenExpiry()
	now := time.Now()
	claims := jwt.MapClaims{
		"jti":   uuid.New().String(),
		"sub":   user.ID,
		"email": user.Email,
		"iss":   "carteira-server",
		"iat":   now.Unix(),
		"exp":   now.Add(expiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.app.Config.Auth.JWTSecret))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to sign token")
		return
	}

	WriteJSON(w, status, tokenResponse{
		Token:     signed,
		ExpiresAt: now.Add(expiry),
		User:      user,
	})
}
