package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-todo-api/internal/models"
	"go-todo-api/internal/repositories"
)

// ErrInvalidCredentials はログイン失敗を表します。
// メール未登録とパスワード不一致を呼び出し側から区別できないようにします。
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService はユーザー関連のビジネスロジックを扱います。
type UserService struct {
	userRepo       *repositories.UserRepository
	resetTokenRepo repositories.ResetTokenRepository
	jwtService     *JWTService
}

// NewUserService は新しいUserServiceを作成します。
func NewUserService(userRepo *repositories.UserRepository, resetTokenRepo repositories.ResetTokenRepository, jwtService *JWTService) *UserService {
	return &UserService{userRepo: userRepo, resetTokenRepo: resetTokenRepo, jwtService: jwtService}
}

// RegisterUser はユーザーを登録し、最初の認証トークンを発行します。
func (s *UserService) RegisterUser(ctx context.Context, req models.UserRegisterRequest) (*models.User, string, error) {
	hashedPassword, err := repositories.HashPassword(req.Password)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &models.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Tokens:       []models.UserToken{},
	}

	createdUser, err := s.userRepo.Create(ctx, newUser)
	if err != nil {
		return nil, "", err
	}

	token, err := s.issueAuthToken(ctx, createdUser)
	if err != nil {
		return nil, "", err
	}

	createdUser.PasswordHash = "" // レスポンスにパスワードを含めない
	return createdUser, token, nil
}

// LoginUser はユーザーを認証し、新しい認証トークンを発行してtokens配列に追加します。
func (s *UserService) LoginUser(ctx context.Context, req models.UserLoginRequest) (*models.User, string, error) {
	foundUser, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := repositories.VerifyPassword(foundUser.PasswordHash, req.Password); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueAuthToken(ctx, foundUser)
	if err != nil {
		return nil, "", err
	}

	foundUser.PasswordHash = "" // レスポンスにパスワードを含めない
	return foundUser, token, nil
}

// issueAuthToken はトークンを生成してユーザーのtokens配列に追加します。
func (s *UserService) issueAuthToken(ctx context.Context, user *models.User) (string, error) {
	token, err := s.jwtService.GenerateToken(user.ID.Hex(), models.AccessAuth)
	if err != nil {
		return "", err
	}
	entry := models.UserToken{Access: models.AccessAuth, Token: token}
	if err := s.userRepo.AddToken(ctx, user.ID, entry); err != nil {
		return "", err
	}
	user.Tokens = append(user.Tokens, entry)
	return token, nil
}

// Authenticate は提示されたトークンをユーザーに解決します。
// 署名が有効でも、ログアウト済みでtokens配列に無いトークンは失敗します。
func (s *UserService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.jwtService.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Access != models.AccessAuth {
		return nil, ErrInvalidToken
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.FindByIDAndToken(ctx, userID, tokenString)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

// LogoutUser は提示されたトークンをユーザーのtokens配列から削除します。
func (s *UserService) LogoutUser(ctx context.Context, user *models.User, tokenString string) error {
	return s.userRepo.RemoveToken(ctx, user.ID, tokenString)
}

// GetUserByID はIDでユーザーを取得します。IDの形式が不正な場合も未存在扱いです。
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrUserNotFound
	}
	user, err := s.userRepo.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// DeleteUser はユーザーのレコードを削除します。
func (s *UserService) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	return s.userRepo.Delete(ctx, id)
}

// ForgotPasswordUser はパスワードリセット用のトークンを発行してメールを送ります。
func (s *UserService) ForgotPasswordUser(ctx context.Context, email string) error {
	// 1. ユーザーが存在するか確認
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		// メール存在しない → バレないように成功扱い
		log.Printf("email not found but returning OK: %s", email)
		return nil
	}

	// 2. パスワードリセット用のトークンを生成
	token, err := generateResetToken()
	if err != nil {
		log.Printf("Failed to generate reset token: %v", err)
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	// 3. トークンをデータベースに保存（有効期限1時間）
	resetToken := &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}
	err = s.resetTokenRepo.Save(ctx, resetToken)
	if err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	// 4. フロントのリセットURLにトークンをセット
	resetURL := fmt.Sprintf("%s/reset-password/%s", frontendURL, token)

	// 5. メール送信
	err = s.sendPasswordResetEmail(email, resetURL)
	if err != nil {
		log.Printf("failed to send reset email: %v", err)
	}

	return nil
}

// generateResetToken はパスワードリセット用のランダムトークンを生成します。
func generateResetToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// ResetPasswordUser はトークンを使ってパスワードをリセットします。
func (s *UserService) ResetPasswordUser(ctx context.Context, token, newPassword string) error {
	// 1. トークンを検証
	resetToken, err := s.resetTokenRepo.FindByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("invalid or expired token")
	}

	// 2. トークンが有効か確認
	if time.Now().After(resetToken.ExpiresAt) {
		return fmt.Errorf("token expired")
	}

	if resetToken.UsedAt != nil {
		return fmt.Errorf("token already used")
	}

	// 3. パスワードをハッシュ化
	hashedPassword, err := repositories.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// 4. ユーザーのパスワードを更新
	err = s.userRepo.UpdatePassword(ctx, resetToken.UserID, hashedPassword)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// 5. トークンを使用済みにマーク
	err = s.resetTokenRepo.MarkUsed(ctx, resetToken.ID)
	if err != nil {
		log.Printf("Failed to mark token as used: %v", err)
		// 失敗しても続行
	}

	return nil
}

func (s *UserService) sendPasswordResetEmail(email, resetURL string) error {
	from := os.Getenv("SMTP_USER")
	password := os.Getenv("SMTP_PASSWORD")
	to := []string{email}

	smtpHost := "sandbox.smtp.mailtrap.io"
	smtpPort := "2525"

	// 件名と本文
	message := []byte(fmt.Sprintf(
		"Subject: パスワードリセット\r\n\r\n以下のURLからパスワードを再設定してください。\r\n%s",
		resetURL,
	))

	auth := smtp.PlainAuth("", from, password, smtpHost)

	err := smtp.SendMail(smtpHost+":"+smtpPort, auth, from, to, message)
	if err != nil {
		// Mailtrap が無くてもテストできるように成功扱いにする
		log.Printf("Failed to send reset email: %v", err)
		return nil
	}

	return nil
}
