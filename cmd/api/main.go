package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"go-todo-api/internal/database"
	"go-todo-api/internal/repositories"
	"go-todo-api/internal/routes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	db := database.InitDB()

	// emailのユニークインデックスを作成
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repositories.NewUserRepository(db).EnsureIndexes(ctx); err != nil {
		log.Fatalf("Fatal: Failed to create indexes: %v", err)
	}

	r := routes.SetupRouter(db, secret)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// サーバー起動
	log.Printf("Server listening on port %s...", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
