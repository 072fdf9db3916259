package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

type signupForm struct {
	Name      string `form:"name"`
	Email     string `form:"email"`
	Password  string `form:"password"`
	Password2 string `form:"password2"`
}

type detailsForm struct {
	Name               string `form:"name"`
	Email              string `form:"email"`
	RegistrationNumber string `form:"registration_number"`
	Address            string `form:"address"`
	PhoneNumber        string `form:"phone_number"`
}

type resetForm struct {
	Email string `form:"email"`
}

type newPasswordForm struct {
	Password  string `form:"password"`
	Password2 string `form:"password2"`
}

// BindForm decodes a form body into out. On failure it renders the error
// page and returns false. Field rules are checked by the auth services, not
// here, so every reason can be reported together.
func BindForm(ctx *gin.Context, out any) bool {
	err := ctx.ShouldBindWith(out, binding.Form)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RenderError(ctx, http.StatusRequestEntityTooLarge)
		return false
	}

	RenderError(ctx, http.StatusBadRequest)
	return false
}
