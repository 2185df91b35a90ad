// Package routesはroutingを行います。
package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"go-todo-api/internal/handlers"
	"go-todo-api/internal/repositories"
	"go-todo-api/internal/services"
)

// SetupRouter はGinルーターをセットアップし、すべてのエンドポイントを登録します。
func SetupRouter(db *mongo.Database, jwtSecret string) *gin.Engine {
	r := gin.Default()

	// CORS対策
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"http://localhost:3000"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "x-auth"}
	config.ExposeHeaders = []string{"x-auth"}
	config.AllowCredentials = true
	r.Use(cors.New(config))

	// リポジトリ
	todoRepo := repositories.NewTodoRepository(db)
	userRepo := repositories.NewUserRepository(db)
	resetRepo := repositories.NewMongoResetTokenRepo(db)

	// サービス
	jwtService := services.NewJWTService(jwtSecret)
	todoService := services.NewTodoService(todoRepo)
	userService := services.NewUserService(userRepo, resetRepo, jwtService)

	// ハンドラー
	userHandler := handlers.NewUserHandler(userService)
	todoHandler := handlers.NewTodoHandler(todoService)

	// ルーティング
	r.GET("/api/hello", HelloHandler)
	r.GET("/api/dbcheck", func(c *gin.Context) {
		if err := db.Client().Ping(c.Request.Context(), nil); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Database connection failed", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Database connection is healthy"})
	})
	r.POST("/api/register", userHandler.RegisterHandler)
	r.POST("/api/login", userHandler.LoginHandler)
	r.POST("/api/forgot-password", userHandler.ForgotPasswordHandler)
	r.POST("/api/reset-password/:token", userHandler.ResetPasswordHandler)
	r.GET("/api/users/:id", userHandler.GetUserByIDHandler)

	authorized := r.Group("/")
	authorized.Use(AuthMiddleware(userService))
	{
		authorized.GET("/api/users/me", userHandler.MeHandler)
		authorized.DELETE("/api/logout", userHandler.LogoutHandler)
		authorized.GET("/api/todos", todoHandler.GetTodosHandler)
		authorized.GET("/api/todos/:id", todoHandler.GetTodoByIDHandler)
		authorized.POST("/api/todos", todoHandler.CreateTodoHandler)
		authorized.PATCH("/api/todos/:id", todoHandler.UpdateTodoHandler)
		authorized.DELETE("/api/todos/:id", todoHandler.DeleteTodoHandler)
	}

	return r
}

func HelloHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello from Go Backend!"})
}
