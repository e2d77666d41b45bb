package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/seanlumasag/job-application-tracker/internal/auth"
)

type AuthHandler struct {
	service *auth.Service
}

func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfaCode"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type passwordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// disableMFARequest leaves the code optional: accounts whose MFA was never
// fully enabled can clear the pending secret without one.
type disableMFARequest struct {
	Code string `json:"code" validate:"omitempty,len=6,numeric"`
}

type deleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

// authResponse is the success payload of signup, login, and refresh. Token
// fields are omitted when policy withholds them.
type authResponse struct {
	UserID            string `json:"userId"`
	Email             string `json:"email"`
	AccessToken       string `json:"accessToken,omitempty"`
	RefreshToken      string `json:"refreshToken,omitempty"`
	EmailVerified     bool   `json:"emailVerified"`
	MFAEnabled        bool   `json:"mfaEnabled"`
	VerificationToken string `json:"verificationToken,omitempty"`
}

func toAuthResponse(r *auth.Result) authResponse {
	return authResponse{
		UserID:        r.UserID.String(),
		Email:         r.Email,
		AccessToken:   r.AccessToken,
		RefreshToken:  r.RefreshToken,
		EmailVerified: r.EmailVerified,
		MFAEnabled:    r.MFAEnabled,
	}
}

// bindAndValidate decodes and validates the request body. On failure the
// 400 envelope has already been written and ok is false.
func bindAndValidate(c echo.Context, req interface{}) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, writeBadRequest(c, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return false, writeBadRequest(c, "validation failed")
	}
	return true, nil
}

func (h *AuthHandler) Signup(c echo.Context) error {
	req := new(signupRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	result, verificationToken, err := h.service.Signup(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := toAuthResponse(result)
	if h.service.ReturnTokens() {
		resp.VerificationToken = verificationToken
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c echo.Context) error {
	req := new(loginRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	result, err := h.service.Login(c.Request().Context(), req.Email, req.Password, req.MFACode)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthResponse(result))
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	req := new(refreshRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	result, err := h.service.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthResponse(result))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	req := new(refreshRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	if err := h.service.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	req := new(tokenRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	if err := h.service.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "verified"})
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	req := new(emailRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	token, err := h.service.RequestEmailVerification(c.Request().Context(), req.Email)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := map[string]string{"status": "ok"}
	if h.service.ReturnTokens() && token != "" {
		resp["verificationToken"] = token
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	req := new(emailRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	token, err := h.service.RequestPasswordReset(c.Request().Context(), req.Email)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := map[string]string{"status": "ok"}
	if h.service.ReturnTokens() {
		resp["resetToken"] = token
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	req := new(passwordResetRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	if err := h.service.ConfirmPasswordReset(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "password_reset"})
}

func (h *AuthHandler) SetupMFA(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	setup, err := h.service.SetupMFA(c.Request().Context(), identity.UserID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"secret": setup.Secret,
		"uri":    setup.URI,
	})
}

func (h *AuthHandler) EnableMFA(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	req := new(mfaCodeRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	if err := h.service.EnableMFA(c.Request().Context(), identity.UserID, req.Code); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "mfa_enabled"})
}

func (h *AuthHandler) DisableMFA(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	req := new(disableMFARequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	if err := h.service.DisableMFA(c.Request().Context(), identity.UserID, req.Code); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "mfa_disabled"})
}

func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return writeUnauthorized(c, "missing identity")
	}
	req := new(deleteAccountRequest)
	if ok, err := bindAndValidate(c, req); !ok {
		return err
	}
	if err := h.service.DeleteAccount(c.Request().Context(), identity.UserID, req.Password); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
