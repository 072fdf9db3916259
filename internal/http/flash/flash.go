// Package flash carries one-shot user messages across a redirect in a
// short-lived cookie.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const CookieName = "memberhub_flash"

type ctxKey string

const (
	ctxIncoming ctxKey = "flash.incoming"
	ctxOutgoing ctxKey = "flash.outgoing"
)

// Messages is the set of messages shown on the next rendered page.
type Messages struct {
	Success []string `json:"s,omitempty"`
	Errors  []string `json:"e,omitempty"`
}

func (m Messages) Empty() bool {
	return len(m.Success) == 0 && len(m.Errors) == 0
}

// Middleware decodes the incoming flash cookie, clears it and prepares an
// empty outgoing set for the handler.
func Middleware(secure bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var in Messages

		raw, err := ctx.Cookie(CookieName)
		if err == nil && raw != "" {
			in = decode(raw)
			setCookie(ctx, "", -1, secure)
		}

		ctx.Set(ctxIncoming, in)
		ctx.Set(ctxOutgoing, &outgoing{secure: secure})

		ctx.Next()
	}
}

type outgoing struct {
	msgs   Messages
	secure bool
}

// Incoming returns the messages written by the previous request.
func Incoming(ctx *gin.Context) Messages {
	v, ok := ctx.Get(ctxIncoming)
	if !ok {
		return Messages{}
	}
	m, _ := v.(Messages)
	return m
}

func AddSuccess(ctx *gin.Context, msg string) {
	if out := out(ctx); out != nil {
		out.msgs.Success = append(out.msgs.Success, msg)
	}
}

func AddError(ctx *gin.Context, msg string) {
	if out := out(ctx); out != nil {
		out.msgs.Errors = append(out.msgs.Errors, msg)
	}
}

// Redirect writes the outgoing messages and answers with a 302 to location.
func Redirect(ctx *gin.Context, location string) {
	if out := out(ctx); out != nil && !out.msgs.Empty() {
		setCookie(ctx, encode(out.msgs), 60, out.secure)
	}
	ctx.Redirect(http.StatusFound, location)
}

func out(ctx *gin.Context) *outgoing {
	v, ok := ctx.Get(ctxOutgoing)
	if !ok {
		return nil
	}
	o, _ := v.(*outgoing)
	return o
}

func setCookie(ctx *gin.Context, value string, maxAge int, secure bool) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(CookieName, value, maxAge, "/", "", secure, true)
}

func encode(m Messages) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// decode treats a malformed cookie as no messages.
func decode(raw string) Messages {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Messages{}
	}

	var m Messages
	if err := json.Unmarshal(b, &m); err != nil {
		return Messages{}
	}
	return m
}
