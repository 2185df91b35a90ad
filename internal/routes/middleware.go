package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-todo-api/internal/handlers"
	"go-todo-api/internal/services"
)

// AuthMiddleware はx-authヘッダーのトークンをユーザーに解決し、
// コンテキストに設定するミドルウェアです。
// 署名が不正なトークンもログアウト済みのトークンも同じ401になります。
func AuthMiddleware(userService *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader(handlers.AuthHeader)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "x-auth header required"})
			c.Abort()
			return
		}

		user, err := userService.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or revoked token"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("token", tokenString)
		c.Next()
	}
}
