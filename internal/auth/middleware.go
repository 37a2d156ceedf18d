package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/web"
)

const userContextKey = "current_user"

type Middleware struct {
	DB     *gorm.DB
	Secret []byte
}

// RequireUser resolves the bearer token to a user row. Missing or
// invalid token and deactivated accounts are both 401.
func (m *Middleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return web.Unauthorized("missing authorization token")
		}

		userID, err := ParseToken(m.Secret, raw)
		if err != nil {
			return web.Unauthorized("invalid or expired token")
		}

		var user models.User
		if err := m.DB.First(&user, userID).Error; err != nil {
			return web.Unauthorized("user no longer exists")
		}
		if !user.IsActive {
			return web.Unauthorized("account is deactivated")
		}

		c.Set(userContextKey, &user)
		return next(c)
	}
}

func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireUser(func(c echo.Context) error {
		if CurrentUser(c).Role != models.RoleAdmin {
			return web.Forbidden("admin access required")
		}
		return next(c)
	})
}

// CurrentUser is only valid behind RequireUser/RequireAdmin.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}

// SetCurrentUser seeds the request identity directly, bypassing token
// parsing. Test helper.
func SetCurrentUser(c echo.Context, u *models.User) {
	c.Set(userContextKey, u)
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
