package handler

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/inkaso/callqa/errors"
	"github.com/inkaso/callqa/pkg/config"
	"github.com/inkaso/callqa/pkg/jwt"
)

// Auth issues bearer tokens for the admin API
type Auth struct {
	cfg     config.JWTConfig
	manager *jwt.Manager
	logger  *zap.Logger
}

// NewAuth creates a new auth handler
func NewAuth(cfg config.JWTConfig, manager *jwt.Manager, logger *zap.Logger) *Auth {
	return &Auth{cfg: cfg, manager: manager, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // Seconds
}

// Login validates credentials and returns a signed token
func (h *Auth) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument(err.Error()))
	}

	if h.cfg.AdminPassword == "" || !credentialsMatch(req.Username, req.Password, h.cfg) {
		return HandleError(h.logger, c, apperrors.ErrUnauthenticated())
	}

	token, err := h.manager.GenerateToken(req.Username, "admin")
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInternal(err))
	}

	h.logger.Info("✅ User logged in", zap.String("username", req.Username))
	return HandleSuccess(h.logger, c, loginResponse{
		Token:     token,
		ExpiresIn: int64(h.manager.GetExpiry().Seconds()),
	})
}

func credentialsMatch(username, password string, cfg config.JWTConfig) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.AdminPassword)) == 1
	return userOK && passOK
}
