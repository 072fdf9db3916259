package middlewares

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const MsgCrossSiteRejected = "Cross-site request rejected."

// CORSMiddleware lets the configured origins read page responses. Sessions
// ride on cookies, so responses are never marked credentialed and a foreign
// script cannot read a signed-in page.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := originSet(allowedOrigins)

	return func(ctx *gin.Context) {
		if origin := ctx.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				ctx.Header("Access-Control-Allow-Origin", origin)
				ctx.Header("Access-Control-Allow-Methods", "GET,OPTIONS")
				ctx.Header("Access-Control-Allow-Headers", "Content-Type")
			}
			ctx.Writer.Header().Add("Vary", "Origin")
		}

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}

// OriginGuard rejects state-changing requests sent by another site. A request
// passes when it carries no Origin (older browsers, curl), when Origin matches
// the request host, or when Origin is one of allowedOrigins. SameSite=Lax on the
// session cookie covers the rest.
func OriginGuard(allowedOrigins []string) gin.HandlerFunc {
	allowed := originSet(allowedOrigins)

	return func(ctx *gin.Context) {
		switch ctx.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			ctx.Next()
			return
		}

		origin := ctx.GetHeader("Origin")
		if origin == "" {
			if ctx.GetHeader("Sec-Fetch-Site") == "cross-site" {
				reject(ctx)
				return
			}
			ctx.Next()
			return
		}

		if _, ok := allowed[origin]; ok || sameHost(origin, ctx.Request.Host) {
			ctx.Next()
			return
		}

		reject(ctx)
	}
}

func reject(ctx *gin.Context) {
	ctx.String(http.StatusForbidden, MsgCrossSiteRejected)
	ctx.Abort()
}

func originSet(origins []string) map[string]struct{} {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return set
}

// sameHost reports whether origin names host. "null" and unparsable origins never match.
func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}
