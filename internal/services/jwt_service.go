package services

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-todo-api/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// JWTService はJWTトークンの生成と検証を扱います。
// シークレットはプロセス起動時に一度だけ渡され、以後は読み取り専用です。
type JWTService struct {
	secret []byte
}

// NewJWTService は新しいJWTServiceを作成します。
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// GenerateToken はユーザーIDとaccessタグを署名したトークンを生成します。
// 有効期限は持たせません。トークンはログアウトで失効するまで有効で、
// 失効の判定はユーザーのtokens配列側で行います。
// jtiを入れることで同一ユーザーの同時ログインでも毎回異なるトークンになります。
func (s *JWTService) GenerateToken(userID, access string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"access":  access,
		"jti":     uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken はJWTトークンを検証し、クレームを返します。
// ここでは署名の検証のみを行い、失効の確認は行いません（ストアを参照しない）。
func (s *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		userID, ok := claims["user_id"].(string)
		if !ok {
			return nil, ErrInvalidToken
		}
		access, ok := claims["access"].(string)
		if !ok {
			return nil, ErrInvalidToken
		}
		return &models.TokenClaims{
			UserID: userID,
			Access: access,
		}, nil
	}

	return nil, ErrInvalidToken
}
