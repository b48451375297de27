package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/member-auth/internal/application/auth"
	"github.com/member-auth/internal/domain"
	"github.com/member-auth/internal/pkg/validate"
	"github.com/member-auth/internal/transport/http/middleware"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	svc    auth.Service
	cookie CookieConfig
}

func NewAuthHandler(svc auth.Service, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	dob, err := time.Parse(domain.DateLayout, req.DOB)
	if err != nil {
		httpError(w, fmt.Errorf("dob must be YYYY-MM-DD: %w", domain.ErrBadRequest))
		return
	}
	err = h.svc.StartRegistration(r.Context(), auth.Registration{
		Email:     req.Email,
		FullName:  req.FullName,
		Contact:   req.Contact,
		BirthDate: dob,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification code sent to email"})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	token, m, err := h.svc.CompleteRegistration(r.Context(), req.Email, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthEnvelope{Token: token, Member: toMemberView(m), Message: "registration complete"})
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestOTP(r.Context(), req.Email); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "otp sent to email"})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	token, err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthEnvelope{Token: token, Message: "login successful"})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r, h.cookie.Name)
	if err := h.svc.Logout(r.Context(), token); err != nil {
		httpError(w, err)
		return
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// decode reads a JSON body into v and validates it, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		httpError(w, err)
		return false
	}
	return true
}
