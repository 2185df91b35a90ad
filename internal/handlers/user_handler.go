package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-todo-api/internal/models"
	"go-todo-api/internal/repositories"
	"go-todo-api/internal/services"
)

// AuthHeader は認証トークンを載せるヘッダー名です。
// リクエストとregister/loginのレスポンスの両方で使います。
const AuthHeader = "x-auth"

// UserHandler はユーザー関連のハンドラーを管理します。
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler は新しいUserHandlerを作成します。
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// currentUser はミドルウェアがコンテキストに設定したユーザーを取り出します。
func currentUser(c *gin.Context) (*models.User, bool) {
	val, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := val.(*models.User)
	return user, ok
}

// RegisterHandler はユーザー登録を処理します。
// 成功時は作成されたユーザーを返し、発行したトークンをx-authヘッダーに載せます。
func (h *UserHandler) RegisterHandler(c *gin.Context) {
	var req models.UserRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	user, token, err := h.userService.RegisterUser(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	c.Header(AuthHeader, token)
	c.JSON(http.StatusCreated, user)
}

// LoginHandler はユーザーログインを処理します。
// メール未登録とパスワード不一致は同じレスポンスになり、
// 失敗時はx-authヘッダーを付けません。
func (h *UserHandler) LoginHandler(c *gin.Context) {
	var req models.UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	user, token, err := h.userService.LoginUser(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
		return
	}

	c.Header(AuthHeader, token)
	c.JSON(http.StatusOK, user)
}

// LogoutHandler は提示されたトークンをユーザーのtokens配列から削除します。
func (h *UserHandler) LogoutHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}
	tokenVal, exists := c.Get("token")
	token, tok := tokenVal.(string)
	if !exists || !tok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token not found in context"})
		return
	}

	if err := h.userService.LogoutUser(c.Request.Context(), user, token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// MeHandler は認証済みユーザー自身を返します。
func (h *UserHandler) MeHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUserByIDHandler は公開プロフィール（IDとメールのみ）を返します。
// 存在しないIDも形式不正のIDも404です。
func (h *UserHandler) GetUserByIDHandler(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"_id": user.ID.Hex(), "email": user.Email})
}

// ForgotPasswordHandler はパスワードリセットリクエストを処理します。
func (h *UserHandler) ForgotPasswordHandler(c *gin.Context) {
	var req models.UserForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.userService.ForgotPasswordUser(c.Request.Context(), req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password reset"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset email sent"})
}

func (h *UserHandler) ResetPasswordHandler(c *gin.Context) {
	var req models.UserResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	token := c.Param("token")

	if err := h.userService.ResetPasswordUser(c.Request.Context(), token, req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}
