// Package repositories はデータベース操作を行うリポジトリを提供します。
package repositories

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-todo-api/internal/models"

	"golang.org/x/crypto/bcrypt" // パスワードのハッシュ化用
)

// UserRepository はusersコレクションの操作を行うための構造体です。
type UserRepository struct {
	Users *mongo.Collection
}

// NewUserRepository は新しいUserRepositoryインスタンスを作成します。
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{Users: db.Collection("users")}
}

// HashPassword は与えられたパスワードをbcryptでハッシュ化します。
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedPassword), nil
}

// VerifyPassword はハッシュ化されたパスワードと平文のパスワードを比較します。
// 保存されたハッシュが壊れている場合もエラーになります（認証失敗扱い）。
func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

var (
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrUserNotFound   = errors.New("user not found")
)

// EnsureIndexes はemailのユニークインデックスを作成します。
// 事前チェックとレースになっても、重複INSERTはここで確実に失敗します。
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.Users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("could not create email index: %w", err)
	}
	return nil
}

// Create は新しいユーザーをデータベースに挿入します。
func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Tokens == nil {
		u.Tokens = []models.UserToken{}
	}

	res, err := r.Users.InsertOne(ctx, u)
	if err != nil {
		// ユニークインデックス違反（E11000）をチェック
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail // カスタムエラーを返す
		}
		log.Printf("Failed to insert user: %v", err)
		return nil, fmt.Errorf("could not insert user: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return u, nil
}

// FindByEmail はメールアドレスでユーザーを検索します。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.Users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		log.Printf("Failed to query user by email: %v", err)
		return nil, fmt.Errorf("could not query user: %w", err)
	}
	return &u, nil
}

// FindByID はIDでユーザーを検索します。
func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := r.Users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		log.Printf("Failed to query user by id: %v", err)
		return nil, fmt.Errorf("could not query user: %w", err)
	}
	return &u, nil
}

// FindByIDAndToken はIDと提示されたトークンの両方でユーザーを検索します。
// 署名が有効でもtokens配列から削除済みのトークンはヒットしません（失効のサポート）。
func (r *UserRepository) FindByIDAndToken(ctx context.Context, id primitive.ObjectID, token string) (*models.User, error) {
	filter := bson.M{
		"_id": id,
		"tokens": bson.M{"$elemMatch": bson.M{
			"access": models.AccessAuth,
			"token":  token,
		}},
	}
	var u models.User
	err := r.Users.FindOne(ctx, filter).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		log.Printf("Failed to query user by token: %v", err)
		return nil, fmt.Errorf("could not query user: %w", err)
	}
	return &u, nil
}

// AddToken はユーザーのtokens配列にトークンを追加します（$pushでアトミック）。
func (r *UserRepository) AddToken(ctx context.Context, id primitive.ObjectID, t models.UserToken) error {
	update := bson.M{
		"$push": bson.M{"tokens": t},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	res, err := r.Users.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("could not add token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RemoveToken はtokens配列から一致するトークンを削除します（$pullでアトミック）。
// 既に存在しない場合も成功扱いです（冪等）。
func (r *UserRepository) RemoveToken(ctx context.Context, id primitive.ObjectID, token string) error {
	update := bson.M{
		"$pull": bson.M{"tokens": bson.M{"token": token}},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	res, err := r.Users.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("could not remove token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword はユーザーのパスワードハッシュを更新します。
func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, newHash string) error {
	update := bson.M{"$set": bson.M{"password_hash": newHash, "updated_at": time.Now()}}
	res, err := r.Users.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("could not update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete はユーザーのレコードを削除します。
// 現在のルートからは呼ばれませんが、ストア操作として提供します。
func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.Users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("could not delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
