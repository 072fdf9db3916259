package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/memberhub/internal/auth"
	"github.com/geocoder89/memberhub/internal/domain/user"
	"github.com/geocoder89/memberhub/internal/http/flash"
	"github.com/geocoder89/memberhub/internal/http/middlewares"
	"github.com/geocoder89/memberhub/internal/http/views"
	"github.com/gin-gonic/gin"
)

const (
	MsgSomethingWrong = "Something went wrong. Please try again."
	MsgErrorOccurred  = "An error occurred."
)

const requestTimeout = 3 * time.Second

// requestContext bounds storage and hashing work for one request.
func requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), requestTimeout)
}

// newPage fills the fields every page shows: flash messages from the
// previous request, the signed-in user and the request id.
func newPage(ctx *gin.Context, title string) views.Page {
	in := flash.Incoming(ctx)

	p := views.Page{
		Title:     title,
		RequestID: middlewares.RequestIDFrom(ctx),
		Success:   in.Success,
		Errors:    in.Errors,
		Form:      map[string]string{},
	}

	if u, ok := middlewares.CurrentUser(ctx); ok {
		p.SignedIn = true
		p.UserName = u.Name
		p.UserEmail = u.Email
	}
	return p
}

func Render(ctx *gin.Context, status int, name string, p views.Page) {
	ctx.HTML(status, name, p)
}

func RenderError(ctx *gin.Context, status int) {
	p := newPage(ctx, "Error")
	if status == http.StatusNotFound {
		p.Title = "404"
		Render(ctx, status, "404.html", p)
		return
	}
	Render(ctx, status, "error.html", p)
}

func NotFound(ctx *gin.Context) {
	RenderError(ctx, http.StatusNotFound)
}

// statusFor maps an auth error onto the status of the re-rendered form.
func statusFor(err error) int {
	var verr *auth.ValidationError

	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.As(err, &verr), errors.Is(err, auth.ErrPasswordMismatch):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// messagesFor returns what the user is told about err. Internal failures
// get a generic message.
func messagesFor(err error) []string {
	var verr *auth.ValidationError

	switch {
	case errors.As(err, &verr):
		return verr.Reasons
	case errors.Is(err, auth.ErrDuplicateEmail):
		return []string{auth.MsgEmailExists}
	case errors.Is(err, auth.ErrPasswordMismatch):
		return []string{auth.MsgPasswordMismatch}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return []string{auth.MsgInvalidLogin}
	default:
		return []string{MsgSomethingWrong}
	}
}

func toContacts(users []user.User) []views.Contact {
	out := make([]views.Contact, 0, len(users))
	for _, u := range users {
		out = append(out, views.Contact{
			Name:               u.Name,
			Email:              u.Email,
			RegistrationNumber: u.RegistrationNumber,
			Address:            u.Address,
			PhoneNumber:        u.PhoneNumber,
		})
	}
	return out
}
