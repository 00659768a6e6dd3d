package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/utils"
)

// RequireRole menolak request yang rolenya tidak ada dalam daftar.
// Admin selalu lolos.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		roleVal, exists := c.Get("user_role")
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
			c.Abort()
			return
		}
		role, _ := roleVal.(string)

		if role == models.RoleAdmin {
			c.Next()
			return
		}
		if _, ok := allowed[role]; !ok {
			utils.RespondError(c, http.StatusForbidden, errors.New(role+" is not allowed to access this resource"))
			c.Abort()
			return
		}
		c.Next()
	}
}
