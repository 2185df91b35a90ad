package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessAuth は認証用トークンのaccessタグです。
const AccessAuth = "auth"

// UserToken はユーザーが保持している有効なトークンを表します。
// ログインごとに追加され、ログアウトで削除されます。
type UserToken struct {
	Access string `bson:"access" json:"access"`
	Token  string `bson:"token" json:"token"`
}

// User はユーザーのドキュメント構造体を表します。
// JSONタグ: クライアントとの通信用（パスワードハッシュとトークンは出さない）
// bsonタグ: MongoDBへの保存用
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Tokens       []UserToken        `bson:"tokens" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

type UserRegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"` // 生パスワード
}

type UserLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"` // 生パスワード
}

type UserForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type UserResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

type PasswordResetToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Token     string             `bson:"token" json:"token"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
	UsedAt    *time.Time         `bson:"used_at,omitempty" json:"used_at"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// TokenClaims は認証トークンにエンコードされるクレームです。
type TokenClaims struct {
	UserID string `json:"user_id"`
	Access string `json:"access"`
}
