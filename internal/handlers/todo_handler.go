package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-todo-api/internal/models"
	"go-todo-api/internal/repositories"
	"go-todo-api/internal/services"
)

// TodoHandler はTodo関連のハンドラーを管理します。
type TodoHandler struct {
	todoService *services.TodoService
}

// NewTodoHandler は新しいTodoHandlerを作成します。
func NewTodoHandler(todoService *services.TodoService) *TodoHandler {
	return &TodoHandler{todoService: todoService}
}

// CreateTodoHandler は新しいTodoを作成します。
func (h *TodoHandler) CreateTodoHandler(c *gin.Context) {
	var newTodo models.Todo
	if err := c.ShouldBindJSON(&newTodo); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
		return
	}

	createdTodo, err := h.todoService.CreateTodo(c.Request.Context(), &newTodo, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save todo to database"})
		return
	}
	c.JSON(http.StatusCreated, createdTodo)
}

// GetTodosHandler は認証済みユーザー自身のTodoリストを取得します。
func (h *TodoHandler) GetTodosHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
		return
	}

	todos, err := h.todoService.GetTodos(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch todos"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"todos": todos})
}

// GetTodoByIDHandler は指定IDのTodoを取得します。
// 他人のTodo、存在しないID、形式不正のIDはすべて404です。
func (h *TodoHandler) GetTodoByIDHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
		return
	}

	todo, err := h.todoService.GetTodoByID(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrTodoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Todo not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch todo"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"todo": todo})
}

// UpdateTodoHandler はTodoを部分更新します。
func (h *TodoHandler) UpdateTodoHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
		return
	}

	var req models.TodoUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	updatedTodo, err := h.todoService.UpdateTodo(c.Request.Context(), c.Param("id"), req, user.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrTodoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Todo not found"})
			return
		}
		if errors.Is(err, services.ErrTodoTextRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Todo text must not be empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update todo"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"todo": updatedTodo})
}

// DeleteTodoHandler はTodoを削除し、削除前の状態を返します。
func (h *TodoHandler) DeleteTodoHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
		return
	}

	deletedTodo, err := h.todoService.DeleteTodo(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrTodoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Todo not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete todo"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"todo": deletedTodo})
}
