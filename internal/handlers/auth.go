package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/hive/internal/constants"
	"github.com/yukikurage/hive/internal/dto"
	apierrors "github.com/yukikurage/hive/internal/errors"
	"github.com/yukikurage/hive/internal/middleware"
	"github.com/yukikurage/hive/internal/models"
	"github.com/yukikurage/hive/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService  *services.AuthService
	tokenTTL     time.Duration
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. secureCookie marks the token
// cookie Secure, which browsers only send over HTTPS.
func NewAuthHandler(authService *services.AuthService, tokenTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
	}
}

// Signup registers a new member once the email is verified.
func (h *AuthHandler) Signup(c *gin.Context) {
	type SignupRequest struct {
		Name     string `json:"name" binding:"required,max=255"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
		PIN      string `json:"pin"`
		OTP      string `json:"otp"`
	}

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	member, token, err := h.authService.Signup(c.Request.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
		PIN:      req.PIN,
		OTP:      req.OTP,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.setTokenCookie(c, token, int(h.tokenTTL.Seconds()))
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    dto.ToMemberDTO(*member),
		"token":   token,
	})
}

// Login authenticates a member and sets the token cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
		PIN      string `json:"pin"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	member, token, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
		PIN:      req.PIN,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.setTokenCookie(c, token, int(h.tokenTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    dto.ToMemberDTO(*member),
		"token":   token,
	})
}

// Logout clears the token cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setTokenCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the authenticated member.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	member, err := h.authService.GetMember(c.Request.Context(), userID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    dto.ToMemberDTO(*member),
	})
}

// SendOTP mails a verification code.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	type SendOTPRequest struct {
		Email               string `json:"email" binding:"required,email"`
		RequireExistingUser bool   `json:"requireExistingUser"`
	}

	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	if err := h.authService.SendOTP(c.Request.Context(), req.Email, req.RequireExistingUser); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP sent",
	})
}

// VerifyOTP checks a code ahead of signup or password reset.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	type VerifyOTPRequest struct {
		Email string `json:"email" binding:"required"`
		OTP   string `json:"otp" binding:"required"`
	}

	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	if err := h.authService.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP verified",
	})
}

// ResetPassword sets a new password after OTP verification.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	type ResetPasswordRequest struct {
		Email       string `json:"email" binding:"required"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword" binding:"required"`
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password updated",
	})
}

func (h *AuthHandler) setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.TokenCookieName, token, maxAge, "/", "", h.secureCookie, true)
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrInvalidOTP):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		apierrors.AlreadyExists(c, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c, err.Error())
	case errors.Is(err, services.ErrRoleMismatch),
		errors.Is(err, services.ErrInvalidPIN),
		errors.Is(err, services.ErrSignupDisabled):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrMemberNotFound):
		apierrors.NotFound(c, err.Error())
	default:
		apierrors.InternalError(c, err)
	}
}
