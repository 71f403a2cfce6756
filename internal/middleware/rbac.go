package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
	"github.com/noah-isme/sma-grade-workflow/pkg/response"
)

// RequireRoles admits callers whose role is listed. Finer checks such as sheet ownership and
// head-of-class membership stay in the service.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrPermissionDenied, "role not allowed for this resource"))
			c.Abort()
			return
		}
		c.Next()
	}
}
