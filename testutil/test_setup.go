package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-todo-api/internal/models"
	"go-todo-api/internal/repositories"
	"go-todo-api/internal/routes"
	"go-todo-api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// シードユーザー（テストのたびに作り直されます）
const (
	UserOneEmail    = "user_one@example.com"
	UserOnePassword = "passwordOne"
	UserTwoEmail    = "user_two@example.com"
	UserTwoPassword = "passwordTwo"
)

// JWTSecret はテスト用の署名シークレットを返します。
func JWTSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "test_jwt_secret"
	}
	return secret
}

// SetupTestDB はテスト用のデータベース接続を確立し、コレクションを空にし、
// トークンを1つ持った状態のシードユーザーを2人投入します。
func SetupTestDB(t *testing.T) (*mongo.Database, *gin.Engine, *repositories.TodoRepository, *repositories.UserRepository) {
	_ = godotenv.Load("../../.env")

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	name := os.Getenv("TEST_DB_NAME")
	if name == "" {
		name = "TodoAppTest"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}
	t.Cleanup(func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
	})

	db := client.Database(name)

	// 既存のコレクションを削除 (テストのたびにクリーンな状態にするため)
	for _, collection := range []string{"todos", "users", "password_reset_tokens"} {
		if err := db.Collection(collection).Drop(ctx); err != nil {
			t.Fatalf("Failed to drop %s collection: %v", collection, err)
		}
	}

	userRepo := repositories.NewUserRepository(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	// シードユーザーの挿入（どちらも有効なトークンを1つ持った状態）
	seedUser(t, userRepo, UserOneEmail, UserOnePassword)
	seedUser(t, userRepo, UserTwoEmail, UserTwoPassword)

	router := SetupTestRouter(t, db)
	todoRepo := repositories.NewTodoRepository(db)

	return db, router, todoRepo, userRepo
}

// SetupTestRouter はテスト用のGinルーターをセットアップします。
func SetupTestRouter(t *testing.T, db *mongo.Database) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return routes.SetupRouter(db, JWTSecret())
}

// seedUser はハッシュ済みパスワードと発行済みトークン1つを持つユーザーを作成します。
func seedUser(t *testing.T, userRepo *repositories.UserRepository, email, password string) *models.User {
	hashedPassword, err := repositories.HashPassword(password)
	require.NoError(t, err)

	newUser := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
	}
	createdUser, err := userRepo.Create(context.Background(), newUser)
	require.NoError(t, err)
	require.False(t, createdUser.ID.IsZero())

	jwtService := services.NewJWTService(JWTSecret())
	token, err := jwtService.GenerateToken(createdUser.ID.Hex(), models.AccessAuth)
	require.NoError(t, err)
	err = userRepo.AddToken(context.Background(), createdUser.ID, models.UserToken{Access: models.AccessAuth, Token: token})
	require.NoError(t, err)

	return createdUser
}

// SeedToken はシードユーザーが最初から持っているトークンを取得します。
func SeedToken(t *testing.T, userRepo *repositories.UserRepository, email string) string {
	user, err := userRepo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotEmpty(t, user.Tokens, "seed user should hold a token")
	return user.Tokens[0].Token
}

// CreateTestUser はテスト用のユーザーを作成し、データベースに保存します。
func CreateTestUser(t *testing.T, userRepo *repositories.UserRepository, email, password string) *models.User {
	hashedPassword, err := repositories.HashPassword(password)
	require.NoError(t, err)

	newUser := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
	}

	createdUser, err := userRepo.Create(context.Background(), newUser)
	require.NoError(t, err)
	require.NotNil(t, createdUser)
	require.False(t, createdUser.ID.IsZero())
	return createdUser
}

// CreateTestTodo はテスト用のTodoを作成し、データベースに保存します。
func CreateTestTodo(t *testing.T, router *gin.Engine, token, text string) *models.Todo {
	todoPayload := map[string]interface{}{
		"text": text,
	}
	body, _ := json.Marshal(todoPayload)

	req, _ := http.NewRequest(http.MethodPost, "/api/todos", bytes.NewBuffer(body))
	req.Header.Set("x-auth", token)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, "Todo作成に失敗しました: %s", resp.Body.String())

	var createdTodo models.Todo
	err := json.Unmarshal(resp.Body.Bytes(), &createdTodo)
	require.NoError(t, err)
	return &createdTodo
}

// LoginAndGetToken はログインしてx-authヘッダーのトークンを返します。
func LoginAndGetToken(t *testing.T, router *gin.Engine, email, password string) (string, error) {
	loginPayload := map[string]string{
		"email":    email,
		"password": password,
	}
	body, _ := json.Marshal(loginPayload)

	req, _ := http.NewRequest(http.MethodPost, "/api/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d: %s", resp.Code, resp.Body.String())
	}

	token := resp.Header().Get("x-auth")
	if token == "" {
		return "", errors.New("x-auth header not found in login response")
	}
	return token, nil
}
