package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/cache"
	"github.com/kmalinin/shoply/internal/events"
	"github.com/kmalinin/shoply/internal/hash"
	"github.com/kmalinin/shoply/internal/logging"
	"github.com/kmalinin/shoply/internal/mailer"
	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/web"
)

// OTPs and reset tokens expire after this long.
const codeTTL = 10 * time.Minute

const (
	otpKeyPrefix   = "otp:"
	resetKeyPrefix = "pwreset:"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Codes     cache.Store
	Mail      mailer.Sender
	Producer  events.Publisher
	BaseURL   string
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		return web.Validation("invalid request body")
	}
	if req.Email == "" {
		return web.Validation("email is required")
	}
	if len(req.Password) < 8 {
		return web.Validation("password must be at least 8 characters")
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return web.Conflict("email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return web.Internal(err)
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return web.Internal(err)
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleUser,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return web.Internal(err)
	}

	otp, err := h.issueOTP(c, user.ID)
	if err != nil {
		return web.Internal(err)
	}
	if err := h.Mail.Send(c.Request().Context(), mailer.Message{
		To:      user.Email,
		Subject: "Email Verification OTP",
		HTML: fmt.Sprintf(
			"<h1>Welcome!</h1><p>Your verification code is:</p><h2>%s</h2><p>This code will expire in 10 minutes.</p>",
			otp,
		),
	}); err != nil {
		return web.Upstream("failed to send verification email", err)
	}

	token, err := auth.SignToken(h.JWTSecret, &user)
	if err != nil {
		return web.Internal(err)
	}

	publish(c, h.Producer, "user_events", strconv.FormatUint(uint64(user.ID), 10), map[string]interface{}{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusCreated, web.Envelope{
		Status:  "success",
		Message: "OTP sent to email",
		Data:    echo.Map{"token": token, "user": user},
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return web.Validation("invalid request body")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return web.Unauthorized("invalid email or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return web.Unauthorized("invalid email or password")
	}

	token, err := auth.SignToken(h.JWTSecret, &user)
	if err != nil {
		return web.Internal(err)
	}

	publish(c, h.Producer, "user_events", strconv.FormatUint(uint64(user.ID), 10), map[string]interface{}{
		"type":   "user_logged_in",
		"userID": user.ID,
	})

	return web.OK(c, echo.Map{"token": token, "user": user})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req struct {
		OTP string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil || req.OTP == "" {
		return web.Validation("otp is required")
	}

	ctx := c.Request().Context()
	stored, err := h.Codes.Get(ctx, otpKeyPrefix+req.OTP)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return web.Validation("invalid or expired OTP")
		}
		return web.Internal(err)
	}

	userID, err := strconv.ParseUint(stored, 10, 64)
	if err != nil {
		return web.Internal(err)
	}

	var user models.User
	if err := h.DB.First(&user, uint(userID)).Error; err != nil {
		return web.Validation("invalid or expired OTP")
	}

	if err := h.DB.Model(&user).Update("is_email_verified", true).Error; err != nil {
		return web.Internal(err)
	}
	_ = h.Codes.Del(ctx, otpKeyPrefix+req.OTP)

	if err := h.Mail.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: "Welcome!",
		HTML:    fmt.Sprintf("<h1>Welcome %s!</h1><p>Your account is now fully activated.</p>", user.FirstName),
	}); err != nil {
		logging.FromContext(ctx).Error("welcome email failed", "error", err)
	}

	return web.Message(c, http.StatusOK, "email verified successfully")
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return web.Validation("email is required")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return web.NotFound("user")
	}
	if user.IsEmailVerified {
		return web.Validation("email already verified")
	}

	otp, err := h.issueOTP(c, user.ID)
	if err != nil {
		return web.Internal(err)
	}
	if err := h.Mail.Send(c.Request().Context(), mailer.Message{
		To:      user.Email,
		Subject: "Email Verification OTP (resent)",
		HTML: fmt.Sprintf(
			"<h1>Email Verification</h1><p>Your new verification code is:</p><h2>%s</h2><p>This code will expire in 10 minutes.</p>",
			otp,
		),
	}); err != nil {
		return web.Upstream("failed to send verification email", err)
	}

	return web.Message(c, http.StatusOK, "new OTP sent to email")
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return web.Validation("email is required")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return web.NotFound("user")
	}

	ctx := c.Request().Context()
	rawToken := uuid.NewString()
	key := resetKeyPrefix + hashToken(rawToken)
	if err := h.Codes.Set(ctx, key, strconv.FormatUint(uint64(user.ID), 10), codeTTL); err != nil {
		return web.Internal(err)
	}

	resetURL := fmt.Sprintf("%s/api/v1/auth/reset-password/%s", h.BaseURL, rawToken)
	if err := h.Mail.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: "Your password reset token (valid for 10 minutes)",
		HTML: fmt.Sprintf(
			"<h1>Password Reset Request</h1><p>Submit a PATCH request with your new password to: %s</p><p>If you didn't forget your password, please ignore this email.</p>",
			resetURL,
		),
	}); err != nil {
		// Roll the token back so a half-delivered reset cannot linger.
		_ = h.Codes.Del(ctx, key)
		return web.Upstream("error sending email, try again later", err)
	}

	return web.Message(c, http.StatusOK, "token sent to email")
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return web.Validation("invalid request body")
	}
	if len(req.Password) < 8 {
		return web.Validation("password must be at least 8 characters")
	}

	ctx := c.Request().Context()
	key := resetKeyPrefix + hashToken(c.Param("token"))
	stored, err := h.Codes.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return web.Validation("token is invalid or has expired")
		}
		return web.Internal(err)
	}

	userID, err := strconv.ParseUint(stored, 10, 64)
	if err != nil {
		return web.Internal(err)
	}
	var user models.User
	if err := h.DB.First(&user, uint(userID)).Error; err != nil {
		return web.Validation("token is invalid or has expired")
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return web.Internal(err)
	}
	if err := h.DB.Model(&user).Update("password_hash", passwordHash).Error; err != nil {
		return web.Internal(err)
	}
	_ = h.Codes.Del(ctx, key)

	token, err := auth.SignToken(h.JWTSecret, &user)
	if err != nil {
		return web.Internal(err)
	}
	return web.OK(c, echo.Map{"token": token})
}

func (h *AuthHandler) issueOTP(c echo.Context, userID uint) (string, error) {
	otp, err := generateOTP()
	if err != nil {
		return "", err
	}
	err = h.Codes.Set(c.Request().Context(), otpKeyPrefix+otp, strconv.FormatUint(uint64(userID), 10), codeTTL)
	if err != nil {
		return "", err
	}
	return otp, nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
