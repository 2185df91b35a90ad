package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-todo-api/internal/models"
	"go-todo-api/internal/repositories"
)

// ErrTodoTextRequired は更新でtextを空にしようとしたときのエラーです。
var ErrTodoTextRequired = errors.New("todo text required")

// TodoService はTodo関連のビジネスロジックを扱います。
type TodoService struct {
	todoRepo *repositories.TodoRepository
}

// NewTodoService は新しいTodoServiceを作成します。
func NewTodoService(todoRepo *repositories.TodoRepository) *TodoService {
	return &TodoService{todoRepo: todoRepo}
}

// CreateTodo は新しいTodoを作成します。completedは必ずfalseで始まります。
func (s *TodoService) CreateTodo(ctx context.Context, todo *models.Todo, creatorID primitive.ObjectID) (*models.Todo, error) {
	todo.CreatorID = creatorID
	todo.Completed = false
	todo.CompletedAt = nil
	return s.todoRepo.Create(ctx, todo)
}

// GetTodos はユーザー自身のTodoのみを取得します。
func (s *TodoService) GetTodos(ctx context.Context, creatorID primitive.ObjectID) ([]*models.Todo, error) {
	return s.todoRepo.FindByCreator(ctx, creatorID)
}

// GetTodoByID は指定IDのTodoを取得します。
// 他人のTodoと存在しないIDはどちらもErrTodoNotFoundになります。
func (s *TodoService) GetTodoByID(ctx context.Context, id string, creatorID primitive.ObjectID) (*models.Todo, error) {
	return s.todoRepo.FindOwned(ctx, id, creatorID)
}

// UpdateTodo はTodoを部分更新します。
// completedがtrueになるときcompletedAtを現在時刻に設定し、
// falseになるときcompletedAtをドキュメントから削除します。
func (s *TodoService) UpdateTodo(ctx context.Context, id string, req models.TodoUpdateRequest, creatorID primitive.ObjectID) (*models.Todo, error) {
	set := bson.M{"updated_at": time.Now()}
	var unset bson.M

	if req.Text != nil {
		if strings.TrimSpace(*req.Text) == "" {
			return nil, ErrTodoTextRequired
		}
		set["text"] = *req.Text
	}

	if req.Completed != nil {
		if *req.Completed {
			set["completed"] = true
			set["completedAt"] = time.Now()
		} else {
			set["completed"] = false
			unset = bson.M{"completedAt": ""}
		}
	}

	update := bson.M{"$set": set}
	if unset != nil {
		update["$unset"] = unset
	}

	return s.todoRepo.UpdateOwned(ctx, id, creatorID, update)
}

// DeleteTodo はTodoを削除し、削除前の状態を返します。
func (s *TodoService) DeleteTodo(ctx context.Context, id string, creatorID primitive.ObjectID) (*models.Todo, error) {
	return s.todoRepo.DeleteOwned(ctx, id, creatorID)
}
