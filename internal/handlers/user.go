package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/web"
)

type UserHandler struct {
	DB *gorm.DB
}

func (h *UserHandler) GetMe(c echo.Context) error {
	return web.OK(c, echo.Map{"user": auth.CurrentUser(c)})
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		return web.Validation("invalid request body")
	}

	user := auth.CurrentUser(c)
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if len(updates) == 0 {
		return web.Validation("nothing to update")
	}

	if err := h.DB.Model(user).Updates(updates).Error; err != nil {
		return web.Internal(err)
	}
	return web.OK(c, echo.Map{"user": user})
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	var users []models.User
	if err := h.DB.Order("id ASC").Find(&users).Error; err != nil {
		return web.Internal(err)
	}
	return web.OK(c, echo.Map{"results": len(users), "users": users})
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Validation("invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		return web.NotFound("user")
	}
	return web.OK(c, echo.Map{"user": user})
}

// UpdateUser is the administrative variant: role and the active flag
// are editable on top of the profile fields. Passwords never change
// through here.
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Validation("invalid user id")
	}

	var req struct {
		Email     *string `json:"email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Role      *string `json:"role"`
		IsActive  *bool   `json:"is_active"`
		Password  *string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return web.Validation("invalid request body")
	}
	if req.Password != nil {
		return web.Validation("this route is not for password updates")
	}
	if req.Role != nil && *req.Role != string(models.RoleUser) && *req.Role != string(models.RoleAdmin) {
		return web.Validation("invalid role")
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		return web.NotFound("user")
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return web.Validation("nothing to update")
	}

	if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
		return web.Internal(err)
	}
	return web.OK(c, echo.Map{"user": user})
}

// DeleteUser deactivates the account; rows stay for order history.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Validation("invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		return web.NotFound("user")
	}
	if err := h.DB.Model(&user).Update("is_active", false).Error; err != nil {
		return web.Internal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
