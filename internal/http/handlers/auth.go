package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/memberhub/internal/auth"
	"github.com/geocoder89/memberhub/internal/domain/user"
	"github.com/geocoder89/memberhub/internal/http/flash"
	"github.com/geocoder89/memberhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

const (
	MsgRegistered   = "You are now registered and logged in"
	MsgDetailsSaved = "Thank you for adding your details"
	MsgLoggedOut    = "You are logged out"
)

// Authenticator is the slice of auth.Service the page handlers use.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Logout(ctx context.Context, token string) error
	Register(ctx context.Context, req auth.RegisterRequest) (user.User, auth.Session, error)
	RegisterDetails(ctx context.Context, req auth.DetailsRequest) (user.User, error)
	Search(ctx context.Context, registrationNumber string) ([]user.User, error)
}

type AuthHandler struct {
	auth   Authenticator
	cookie middlewares.SessionCookie
	log    *slog.Logger
}

func NewAuthHandler(a Authenticator, cookie middlewares.SessionCookie, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{auth: a, cookie: cookie, log: log}
}

func (h *AuthHandler) LoginPage(ctx *gin.Context) {
	Render(ctx, http.StatusOK, "login.html", newPage(ctx, "login"))
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var form loginForm
	if !BindForm(ctx, &form) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	sess, err := h.auth.Login(cctx, form.Email, form.Password)
	if err != nil {
		h.logFailure(ctx, "login failed", err)

		p := newPage(ctx, "login")
		p.Errors = append(p.Errors, messagesFor(err)...)
		p.Form["email"] = form.Email
		Render(ctx, statusFor(err), "login.html", p)
		return
	}

	h.cookie.Set(ctx, sess)
	flash.Redirect(ctx, "/dashboard")
}

func (h *AuthHandler) SignupPage(ctx *gin.Context) {
	Render(ctx, http.StatusOK, "signup.html", newPage(ctx, "signUp"))
}

func (h *AuthHandler) Signup(ctx *gin.Context) {
	var form signupForm
	if !BindForm(ctx, &form) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	_, sess, err := h.auth.Register(cctx, auth.RegisterRequest{
		Name:      form.Name,
		Email:     form.Email,
		Password:  form.Password,
		Password2: form.Password2,
	})
	if err != nil {
		h.logFailure(ctx, "signup rejected", err)

		p := newPage(ctx, "signup")
		p.Errors = append(p.Errors, messagesFor(err)...)
		p.Form["name"] = form.Name
		p.Form["email"] = form.Email
		Render(ctx, statusFor(err), "signup.html", p)
		return
	}

	h.cookie.Set(ctx, sess)
	flash.AddSuccess(ctx, MsgRegistered)
	flash.Redirect(ctx, "/dashboard")
}

func (h *AuthHandler) DetailsPage(ctx *gin.Context) {
	Render(ctx, http.StatusOK, "details.html", newPage(ctx, "details"))
}

func (h *AuthHandler) Details(ctx *gin.Context) {
	var form detailsForm
	if !BindForm(ctx, &form) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	_, err := h.auth.RegisterDetails(cctx, auth.DetailsRequest{
		Name:               form.Name,
		Email:              form.Email,
		RegistrationNumber: form.RegistrationNumber,
		Address:            form.Address,
		PhoneNumber:        form.PhoneNumber,
	})
	if err != nil {
		h.logFailure(ctx, "details rejected", err)

		p := newPage(ctx, "details")
		p.Errors = append(p.Errors, messagesFor(err)...)
		p.Form["name"] = form.Name
		p.Form["email"] = form.Email
		p.Form["registration_number"] = form.RegistrationNumber
		p.Form["address"] = form.Address
		p.Form["phone_number"] = form.PhoneNumber
		Render(ctx, statusFor(err), "details.html", p)
		return
	}

	flash.AddSuccess(ctx, MsgDetailsSaved)
	flash.Redirect(ctx, "/dashboard")
}

// Logout always clears the cookie and lands on the login page, even when
// the stored session could not be removed.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	if token := h.cookie.Read(ctx); token != "" {
		cctx, cancel := requestContext(ctx)
		defer cancel()

		if err := h.auth.Logout(cctx, token); err != nil {
			h.log.ErrorContext(ctx.Request.Context(), "logout failed", "err", err)
		}
	}

	h.cookie.Clear(ctx)
	flash.AddSuccess(ctx, MsgLoggedOut)
	flash.Redirect(ctx, "/login")
}

func (h *AuthHandler) Dashboard(ctx *gin.Context) {
	Render(ctx, http.StatusOK, "dashboard.html", newPage(ctx, "dashboard"))
}

func (h *AuthHandler) Search(ctx *gin.Context) {
	query := ctx.Query("registration_number")

	cctx, cancel := requestContext(ctx)
	defer cancel()

	p := newPage(ctx, "Search Results")
	p.SearchQuery = query

	found, err := h.auth.Search(cctx, query)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "search failed", "err", err)

		p.Title = "Error"
		p.Errors = append(p.Errors, "An error occurred while searching for contacts.")
		Render(ctx, http.StatusInternalServerError, "dashboard.html", p)
		return
	}

	p.Searched = true
	p.SearchResults = toContacts(found)
	Render(ctx, http.StatusOK, "dashboard.html", p)
}

// logFailure logs internal faults at error level; rejected input is routine.
func (h *AuthHandler) logFailure(ctx *gin.Context, msg string, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.log.ErrorContext(ctx.Request.Context(), msg, "err", err, "request_id", middlewares.RequestIDFrom(ctx))
		return
	}
	h.log.DebugContext(ctx.Request.Context(), msg, "reason", err.Error())
}
