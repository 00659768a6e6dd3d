package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kantinku/kantinku-api/utils"
)

// WebSocketAuthMiddleware mengautentikasi handshake websocket. Browser tidak
// bisa mengirim header custom saat handshake, jadi token dibawa lewat query
// parameter.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}
