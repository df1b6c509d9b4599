package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"online-ide/internal/service"
)

// AccountHandler expone el ciclo de vida de la cuenta: alta, verificacion,
// login, Google, reset de password y perfil.
type AccountHandler struct {
	logger   *zap.Logger
	accounts *service.AccountService
	usage    *service.UsageService
}

func NewAccountHandler(logger *zap.Logger, accounts *service.AccountService, usage *service.UsageService) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{
		logger:   logger,
		accounts: accounts,
		usage:    usage,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

// Register maneja POST /register.
func (h *AccountHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, h.logger, "register", &req) {
		return
	}

	res, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, h.logger, "register", err)
		return
	}
	if res.Reissued {
		c.JSON(http.StatusOK, gin.H{"msg": "Email not verified."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Registration successful, please check your email for the OTP to verify your email address."})
}

// Login maneja POST /login.
func (h *AccountHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, h.logger, "login", &req) {
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "login", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GoogleAuth maneja POST /auth/google.
func (h *AccountHandler) GoogleAuth(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if !bindJSON(c, h.logger, "google auth", &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "Token is required"})
		return
	}

	session, err := h.accounts.GoogleAuth(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, h.logger, "google auth", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Authentication successful!",
		"token":        session.Token,
		"username":     session.Username,
		"isgoogleuser": session.GoogleUser,
	})
}

// VerifyOTP maneja POST /verify-otp.
func (h *AccountHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		OTP      string `json:"otp"`
		Password string `json:"password"`
	}
	if !bindJSON(c, h.logger, "verify otp", &req) {
		return
	}

	session, err := h.accounts.VerifyOTP(c.Request.Context(), req.Email, req.OTP, req.Password)
	if err != nil {
		writeError(c, h.logger, "verify otp", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": session.Token, "username": session.Username})
}

// ResendOTP maneja POST /resend-otp?forgot-password=bool.
func (h *AccountHandler) ResendOTP(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, h.logger, "resend otp", &req) {
		return
	}
	forgot, _ := strconv.ParseBool(c.Query("forgot-password"))

	if err := h.accounts.ResendOTP(c.Request.Context(), req.Email, forgot); err != nil {
		writeError(c, h.logger, "resend otp", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "OTP resent successfully"})
}

// DeleteWrongEmail maneja DELETE /wrong-email.
func (h *AccountHandler) DeleteWrongEmail(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, h.logger, "wrong email", &req) {
		return
	}
	if err := h.accounts.DeleteUnverified(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "wrong email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Unverified account deleted successfully"})
}

// CheckEmail maneja POST /check-email-exists.
func (h *AccountHandler) CheckEmail(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, h.logger, "check email", &req) {
		return
	}
	if err := h.accounts.CheckEmail(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "check email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Email exists"})
}

// ForgotPassword maneja POST /forgot-password.
func (h *AccountHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, h.logger, "forgot password", &req) {
		return
	}
	if err := h.accounts.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "forgot password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "OTP sent to your email"})
}

// ResetPassword maneja POST /reset-password; solo confirma el OTP.
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if !bindJSON(c, h.logger, "reset password", &req) {
		return
	}
	if err := h.accounts.ResetPasswordCheck(c.Request.Context(), req.Email, req.OTP); err != nil {
		writeError(c, h.logger, "reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "OTP verified successfully"})
}

// UpdatePassword maneja POST /update-password.
func (h *AccountHandler) UpdatePassword(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		OTP      string `json:"otp"`
		Password string `json:"password"`
	}
	if !bindJSON(c, h.logger, "update password", &req) {
		return
	}
	if err := h.accounts.UpdatePassword(c.Request.Context(), req.Email, req.OTP, req.Password); err != nil {
		writeError(c, h.logger, "update password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Password updated successfully"})
}

// Protected maneja GET /protected.
func (h *AccountHandler) Protected(c *gin.Context) {
	user, err := h.accounts.Profile(c.Request.Context(), sessionUserID(c))
	if err != nil {
		writeError(c, h.logger, "protected", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Protected data", "username": user.Username})
}

// AccountDetails maneja POST /account-details.
func (h *AccountHandler) AccountDetails(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.accounts.Profile(ctx, sessionUserID(c))
	if err != nil {
		writeError(c, h.logger, "account details", err)
		return
	}
	resp := gin.H{
		"msg":          "Protected data",
		"username":     user.Username,
		"email":        user.Email,
		"isgoogleuser": user.GoogleID() != "",
		"createdAt":    user.CreatedAt,
	}
	if h.usage != nil {
		counters, err := h.usage.Counters(ctx, user.ID)
		if err != nil {
			writeError(c, h.logger, "account details", err)
			return
		}
		resp["usage"] = counters
	}
	c.JSON(http.StatusOK, resp)
}

// ChangeUsername maneja PUT /change-username.
func (h *AccountHandler) ChangeUsername(c *gin.Context) {
	var req struct {
		NewUsername string `json:"newUsername"`
	}
	if !bindJSON(c, h.logger, "change username", &req) {
		return
	}
	if err := h.accounts.ChangeUsername(c.Request.Context(), sessionUserID(c), req.NewUsername); err != nil {
		writeError(c, h.logger, "change username", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Username updated successfully"})
}

// ChangePassword maneja PUT /change-password y devuelve un token nuevo.
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var req struct {
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !bindJSON(c, h.logger, "change password", &req) {
		return
	}
	session, err := h.accounts.ChangePassword(c.Request.Context(), sessionUserID(c), req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeError(c, h.logger, "change password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"msg":      "Password updated successfully",
		"token":    session.Token,
		"username": session.Username,
	})
}

// DeleteAccount maneja DELETE /account.
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	if err := h.accounts.DeleteAccount(c.Request.Context(), sessionUserID(c)); err != nil {
		writeError(c, h.logger, "delete account", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Account deleted successfully"})
}

// VerifyPassword maneja POST /verify-password.
func (h *AccountHandler) VerifyPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if !bindJSON(c, h.logger, "verify password", &req) {
		return
	}
	if err := h.accounts.VerifyPassword(c.Request.Context(), sessionUserID(c), req.Password); err != nil {
		writeError(c, h.logger, "verify password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Password verified"})
}
