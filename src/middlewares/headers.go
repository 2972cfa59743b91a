package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func SecureHeaders(ctx *gin.Context) {
	ctx.Header("X-Content-Type-Options", "nosniff")
	ctx.Header("X-Frame-Options", "DENY")
	ctx.Header("Referrer-Policy", "no-referrer")
	ctx.Next()
}

// RequestID tags every request for log correlation.
func RequestID(ctx *gin.Context) {
	rid := ctx.GetHeader("X-Request-Id")
	if rid == "" {
		rid = uuid.New().String()
	}
	ctx.Set("request_id", rid)
	ctx.Header("X-Request-Id", rid)
	ctx.Next()
}
