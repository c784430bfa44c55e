package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wildatlas/backend/internal/middleware"
	"github.com/wildatlas/backend/internal/models"
	"github.com/wildatlas/backend/internal/services"
	"github.com/wildatlas/backend/pkg/logger"
	"github.com/wildatlas/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewAuthHandler(db *gorm.DB, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{DB: db, Audit: audit}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Name == "" || req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name, email and password are required")
	}

	role := models.UserRoleUser
	if req.Role != "" {
		switch models.UserRole(req.Role) {
		case models.UserRoleUser, models.UserRoleAdmin:
			role = models.UserRole(req.Role)
		default:
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Internal(c, "failed to hash password", err)
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         role,
	}

	// The unique index on email is the source of truth; a lost race with a
	// concurrent registration surfaces here as a duplicated-key error.
	if err := h.DB.Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			return utils.Error(c, fiber.StatusBadRequest, "email already in use")
		}
		return utils.Internal(c, "failed creating user", err)
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"role":    string(user.Role),
	})

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       "user.register",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"email": user.Email},
		IPAddress:    c.IP(),
	})

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Internal(c, "failed generating token", err)
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"token": token, "user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	// Unknown email and wrong password produce the same response so a
	// caller cannot probe which accounts exist.
	var user models.User
	if err := h.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	logger.Info("user_login", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"ip":      c.IP(),
	})

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       "user.login",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"email": user.Email},
		IPAddress:    c.IP(),
	})

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Internal(c, "failed generating token", err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"token": token, "user": user})
}

// isDuplicateKey catches unique violations from drivers with and without
// gorm error translation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := err.Error()
	return strings.Contains(message, "UNIQUE constraint") || strings.Contains(message, "duplicate key")
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user)
}
