package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/memberhub/internal/actorctx"
	"github.com/geocoder89/memberhub/internal/auth"
	"github.com/geocoder89/memberhub/internal/domain/user"
	"github.com/geocoder89/memberhub/internal/http/flash"
	"github.com/gin-gonic/gin"
)

const MsgLoginRequired = "Please log in to view that resource"

// Small interface so tests can fake session resolution.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (auth.Principal, user.User, error)
}

// SessionCookie reads and writes the signed session cookie.
type SessionCookie struct {
	Name   string
	Secure bool
}

func (c SessionCookie) Read(ctx *gin.Context) string {
	raw, err := ctx.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return raw
}

func (c SessionCookie) Set(ctx *gin.Context, sess auth.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = 1
	}

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.Name, sess.Token, maxAge, "/", "", c.Secure, true)
}

func (c SessionCookie) Clear(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.Name, "", -1, "/", "", c.Secure, true)
}

type SessionMiddleware struct {
	sessions SessionResolver
	cookie   SessionCookie
	timeout  time.Duration
}

func NewSessionMiddleware(sessions SessionResolver, cookie SessionCookie) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: sessions,
		cookie:   cookie,
		timeout:  2 * time.Second,
	}
}

// LoadSession resolves the session cookie, when present, into a principal
// and the current user record. A cookie that no longer resolves is cleared.
func (m *SessionMiddleware) LoadSession() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := m.cookie.Read(ctx)
		if token == "" {
			ctx.Next()
			return
		}

		cctx, cancel := context.WithTimeout(ctx.Request.Context(), m.timeout)
		principal, u, err := m.sessions.Resolve(cctx, token)
		cancel()

		if err != nil {
			m.cookie.Clear(ctx)
			ctx.Next()
			return
		}

		ctx.Set(CtxPrincipal, principal)
		ctx.Set(CtxUser, u)
		ctx.Request = ctx.Request.WithContext(actorctx.WithUserID(ctx.Request.Context(), principal.UserID))

		ctx.Next()
	}
}

func (m *SessionMiddleware) RequireAuthenticated() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := PrincipalFrom(ctx); !ok {
			flash.AddError(ctx, MsgLoginRequired)
			flash.Redirect(ctx, "/login")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (m *SessionMiddleware) RequireAnonymous() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := PrincipalFrom(ctx); ok {
			ctx.Redirect(http.StatusFound, "/dashboard")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func PrincipalFrom(ctx *gin.Context) (auth.Principal, bool) {
	v, ok := ctx.Get(CtxPrincipal)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok && p.UserID != ""
}

func CurrentUser(ctx *gin.Context) (user.User, bool) {
	v, ok := ctx.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
