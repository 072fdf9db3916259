package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/memberhub/internal/auth"
	"github.com/geocoder89/memberhub/internal/domain/user"
	"github.com/geocoder89/memberhub/internal/http/flash"
	"github.com/gin-gonic/gin"
)

const (
	MsgResetRequested = "If an account with that email exists, an e-mail has been sent with further instructions."
	MsgResetInvalid   = "Password reset token is invalid or has expired."
	MsgResetDone      = "Success! Your password has been changed."
)

type PasswordResetter interface {
	RequestReset(ctx context.Context, email, origin string) error
	ValidateToken(ctx context.Context, token string) (user.User, error)
	CompleteReset(ctx context.Context, token, password, confirm string) error
}

type ResetHandler struct {
	reset   PasswordResetter
	baseURL string
	log     *slog.Logger
}

// NewResetHandler builds reset links from baseURL. An empty baseURL falls
// back to the scheme and host of the incoming request.
func NewResetHandler(r PasswordResetter, baseURL string, log *slog.Logger) *ResetHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ResetHandler{reset: r, baseURL: baseURL, log: log}
}

func (h *ResetHandler) RequestPage(ctx *gin.Context) {
	Render(ctx, http.StatusOK, "reset.html", newPage(ctx, "Reset Password"))
}

// Request answers every well-formed submission the same way, so the page
// does not reveal which emails have accounts.
func (h *ResetHandler) Request(ctx *gin.Context) {
	var form resetForm
	if !BindForm(ctx, &form) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	err := h.reset.RequestReset(cctx, form.Email, h.origin(ctx))

	var verr *auth.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		p := newPage(ctx, "Reset Password")
		p.Errors = append(p.Errors, verr.Reasons...)
		p.Form["email"] = form.Email
		Render(ctx, http.StatusBadRequest, "reset.html", p)
		return
	case errors.Is(err, auth.ErrNotification):
		// already logged and counted by the reset manager
	default:
		h.log.ErrorContext(ctx.Request.Context(), "reset request failed", "err", err)
		flash.AddError(ctx, MsgErrorOccurred)
		flash.Redirect(ctx, "/reset")
		return
	}

	flash.AddSuccess(ctx, MsgResetRequested)
	flash.Redirect(ctx, "/reset")
}

func (h *ResetHandler) NewPasswordPage(ctx *gin.Context) {
	token := ctx.Param("token")

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if _, err := h.reset.ValidateToken(cctx, token); err != nil {
		if !errors.Is(err, auth.ErrInvalidOrExpiredToken) {
			h.log.ErrorContext(ctx.Request.Context(), "reset token lookup failed", "err", err)
			flash.AddError(ctx, MsgErrorOccurred)
		} else {
			flash.AddError(ctx, MsgResetInvalid)
		}
		flash.Redirect(ctx, "/reset")
		return
	}

	p := newPage(ctx, "Reset Password")
	p.Token = token
	Render(ctx, http.StatusOK, "reset-password.html", p)
}

func (h *ResetHandler) Complete(ctx *gin.Context) {
	token := ctx.Param("token")

	var form newPasswordForm
	if !BindForm(ctx, &form) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	err := h.reset.CompleteReset(cctx, token, form.Password, form.Password2)

	var verr *auth.ValidationError
	switch {
	case err == nil:
		flash.AddSuccess(ctx, MsgResetDone)
		flash.Redirect(ctx, "/login")
	case errors.Is(err, auth.ErrPasswordMismatch), errors.As(err, &verr):
		p := newPage(ctx, "Reset Password")
		p.Token = token
		p.Errors = append(p.Errors, messagesFor(err)...)
		Render(ctx, http.StatusBadRequest, "reset-password.html", p)
	case errors.Is(err, auth.ErrInvalidOrExpiredToken):
		flash.AddError(ctx, MsgResetInvalid)
		flash.Redirect(ctx, "/reset")
	default:
		h.log.ErrorContext(ctx.Request.Context(), "password reset failed", "err", err)
		flash.AddError(ctx, MsgErrorOccurred)
		flash.Redirect(ctx, "/reset")
	}
}

func (h *ResetHandler) origin(ctx *gin.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}

	scheme := "http"
	if ctx.Request.TLS != nil || ctx.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + ctx.Request.Host
}
