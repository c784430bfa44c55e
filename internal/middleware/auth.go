package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/wildatlas/backend/internal/config"
	"github.com/wildatlas/backend/internal/models"
	"github.com/wildatlas/backend/pkg/logger"
	"github.com/wildatlas/backend/pkg/utils"
	"gorm.io/gorm"
)

const currentUserKey = "currentUser"

type AuthMiddleware struct {
	DB    *gorm.DB
	Admin config.AdminConfig
}

func NewAuthMiddleware(db *gorm.DB, admin config.AdminConfig) *AuthMiddleware {
	return &AuthMiddleware{DB: db, Admin: admin}
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000,http://127.0.0.1:3000",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, x-admin-key",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	user, errMessage := a.userFromBearer(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, errMessage)
	}

	c.Locals(currentUserKey, user)
	c.Locals("userID", user.ID.String())
	return c.Next()
}

// RequireAdmin gates every mutating animal route. It accepts the static
// admin key header, the legacy static bearer token, or a signed token whose
// user holds the admin role. All failures are terminal 401 responses issued
// before any handler work.
func (a *AuthMiddleware) RequireAdmin(c *fiber.Ctx) error {
	if key := c.Get("x-admin-key"); key != "" {
		if a.Admin.APIKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.Admin.APIKey)) == 1 {
			return c.Next()
		}
		logger.Warn("admin_key_rejected", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid admin key")
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return utils.Error(c, fiber.StatusUnauthorized, "missing authorization header")
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid authorization format")
	}

	// Deprecated machine-to-machine credential: a fixed bearer value
	// compared literally, no signature involved.
	if a.Admin.LegacyToken != "" && subtle.ConstantTimeCompare([]byte(tokenString), []byte(a.Admin.LegacyToken)) == 1 {
		return c.Next()
	}

	user, errMessage := a.userFromBearer(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, errMessage)
	}
	if user.Role != models.UserRoleAdmin {
		logger.WarnWithUser(user.ID.String(), "admin_access_denied", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "admin access required")
	}

	c.Locals(currentUserKey, user)
	c.Locals("userID", user.ID.String())
	return c.Next()
}

func (a *AuthMiddleware) userFromBearer(c *fiber.Ctx) (*models.User, string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("jwt_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return nil, "missing authorization header"
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		logger.Warn("jwt_invalid_format", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return nil, "invalid authorization format"
	}

	claims, err := utils.ValidateToken(tokenString)
	if err != nil {
		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return nil, "invalid or expired token"
	}

	var user models.User
	if err := a.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		logger.Warn("jwt_user_not_found", map[string]interface{}{
			"ip":      c.IP(),
			"path":    c.Path(),
			"user_id": claims.UserID,
		})
		return nil, "user not found"
	}

	return &user, ""
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
