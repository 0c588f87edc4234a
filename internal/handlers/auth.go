package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Williamonyango/Scented-muse-Backend/internal/config"
	"github.com/Williamonyango/Scented-muse-Backend/internal/middleware"
	"github.com/Williamonyango/Scented-muse-Backend/internal/models"
	"github.com/Williamonyango/Scented-muse-Backend/internal/utils"
)

const refreshTokenKeyPrefix = "refresh_token:"

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	cfg   *config.Config
}

// NewAuthHandler constructs an AuthHandler. The Redis client may be nil;
// refresh tokens are then validated by signature alone and cannot be
// revoked before expiry.
func NewAuthHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, redis: rdb, cfg: cfg}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates a new user account and issues a token pair.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" || req.Password == "" || req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "user already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleCustomer,
	}

	if err := h.db.Create(&user).Error; err != nil {
		return err
	}

	accessToken, refreshToken, err := h.issueTokens(c, user)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	accessToken, refreshToken, err := h.issueTokens(c, user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a valid refresh token for a new access token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return fiber.NewError(fiber.StatusBadRequest, "refresh_token is required")
	}

	userID, err := utils.ParseToken(h.cfg.JWTSecret, req.RefreshToken)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
	}

	if h.redis != nil {
		stored, err := h.redis.Get(c.Context(), refreshTokenKeyPrefix+userID.String()).Result()
		if err != nil || stored != req.RefreshToken {
			return fiber.NewError(fiber.StatusUnauthorized, "refresh token revoked")
		}
	}

	accessToken, err := utils.GenerateToken(h.cfg.JWTSecret, userID, h.cfg.AccessTokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{"success": true, "access_token": accessToken})
}

// Logout revokes the caller's refresh token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return fiber.NewError(fiber.StatusBadRequest, "refresh_token is required")
	}

	userID, err := utils.ParseToken(h.cfg.JWTSecret, req.RefreshToken)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
	}

	if h.redis != nil {
		if err := h.redis.Del(c.Context(), refreshTokenKeyPrefix+userID.String()).Err(); err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"success": true, "message": "logged out"})
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "user": user})
}

func (h *AuthHandler) issueTokens(c *fiber.Ctx, user models.User) (string, string, error) {
	accessToken, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.AccessTokenTTL)
	if err != nil {
		return "", "", fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	refreshToken, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.RefreshTokenTTL)
	if err != nil {
		return "", "", fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	if h.redis != nil {
		if err := h.redis.Set(c.Context(), refreshTokenKeyPrefix+user.ID.String(), refreshToken, h.cfg.RefreshTokenTTL).Err(); err != nil {
			return "", "", err
		}
	}

	return accessToken, refreshToken, nil
}
