package database

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetMongoURI は環境変数からMongoDBの接続URIを取得します。
func GetMongoURI() string {
	// main.go で godotenv.Load() が呼び出されるため、ここでは省略
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	return uri
}

// GetDatabaseName は環境変数からデータベース名を取得します。
func GetDatabaseName() string {
	name := os.Getenv("DB_NAME")
	if name == "" {
		name = "TodoApp"
	}
	return name
}

// InitDB はデータベース接続を初期化します。
func InitDB() *mongo.Database {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(GetMongoURI()))
	if err != nil {
		log.Fatalf("Fatal: Failed to open database connection: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("Fatal: Failed to ping database: %v", err)
	}
	log.Println("Successfully connected to MongoDB!")
	return client.Database(GetDatabaseName())
}
