package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"coursehub/internal/account"
	"coursehub/internal/models"
)

type AuthHandler struct {
	accounts *account.Service
}

func NewAuthHandler(accounts *account.Service) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin instructor"`
}

// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(&req); err != nil {
		badRequest(w, err.Error())
		return
	}

	session, err := h.accounts.Register(r.Context(), account.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
	})
	switch {
	case errors.Is(err, account.ErrInvalidRole):
		badRequest(w, "Only user accounts can be registered")
		return
	case errors.Is(err, account.ErrEmailTaken):
		conflict(w, "User already exists. Please login.")
		return
	case err != nil:
		slog.Error("error registering user", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin instructor"`
}

type OTPSentResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type OperatorLoginResponse struct {
	Token string      `json:"token"`
	Role  models.Role `json:"role"`
	Email string      `json:"email"`
}

// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password, models.Role(req.Role))
	switch {
	case errors.Is(err, account.ErrUnknownRole):
		badRequest(w, "Unknown role")
		return
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid email or password")
		return
	case errors.Is(err, account.ErrOTPDelivery):
		upstreamError(w, "Failed to send OTP")
		return
	case err != nil:
		slog.Error("error during login", "error", err)
		internalError(w)
		return
	}

	if result.OTPSent {
		writeJSON(w, http.StatusOK, OTPSentResponse{Message: "OTP sent", Email: result.Email})
		return
	}
	writeJSON(w, http.StatusOK, OperatorLoginResponse{Token: result.Token, Role: result.Role, Email: result.Email})
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	OTP   string `json:"otp" validate:"required,max=16"`
}

// POST /verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	session, err := h.accounts.VerifyOTP(r.Context(), req.Email, req.OTP)
	if errors.Is(err, account.ErrInvalidOTP) {
		writeError(w, http.StatusNotAcceptable, ErrCodeInvalidOTP, "Invalid or expired OTP")
		return
	}
	if err != nil {
		slog.Error("error verifying otp", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, session)
}
