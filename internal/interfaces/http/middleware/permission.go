package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/interfaces/http/dto"
)

// RequirePermission rejects requests whose token lacks permission.
// It must run after JWTAuth.
func RequirePermission(permission string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, "Authentication required", GetRequestID(c)))
			return
		}
		if !claims.HasPermission(permission) {
			log.Warn("Permission denied",
				zap.String("user_id", claims.UserID),
				zap.String("required", permission),
				zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, "Sorry, you are not allowed to do that.", GetRequestID(c)))
			return
		}
		c.Next()
	}
}
