package middlewares

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireForm rejects state-changing requests whose body is not an HTML form.
func RequireForm() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
			if err != nil || (mediaType != "application/x-www-form-urlencoded" && mediaType != "multipart/form-data") {
				c.AbortWithStatus(http.StatusUnsupportedMediaType)
				return
			}
		}
		c.Next()
	}
}
