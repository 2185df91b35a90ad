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
)

var ErrTodoNotFound = errors.New("todo not found")

// TodoRepository はtodosコレクションの操作を行うための構造体です。
// すべてのID指定の操作は {_id, _creator} で絞り込むため、
// 他人のTodoは存在しないものとして扱われます。
type TodoRepository struct {
	Todos *mongo.Collection
}

// NewTodoRepository は新しいTodoRepositoryインスタンスを作成します。
func NewTodoRepository(db *mongo.Database) *TodoRepository {
	return &TodoRepository{Todos: db.Collection("todos")}
}

// ownedFilter はID文字列をObjectIDに変換し、所有者で絞り込むフィルタを作ります。
// IDの形式が不正な場合はErrTodoNotFoundを返します（存在しないIDと区別しない）。
func ownedFilter(id string, creatorID primitive.ObjectID) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrTodoNotFound
	}
	return bson.M{"_id": oid, "_creator": creatorID}, nil
}

// Create は新しいTodoをデータベースに挿入します。
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) (*models.Todo, error) {
	now := time.Now()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	res, err := r.Todos.InsertOne(ctx, todo)
	if err != nil {
		log.Printf("Failed to insert todo: %v", err)
		return nil, fmt.Errorf("could not insert todo: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		todo.ID = oid
	}
	return todo, nil
}

// FindByCreator は指定ユーザーが作成したTodoをすべて取得します。
func (r *TodoRepository) FindByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]*models.Todo, error) {
	cursor, err := r.Todos.Find(ctx, bson.M{"_creator": creatorID})
	if err != nil {
		log.Printf("Failed to query todos: %v", err)
		return nil, fmt.Errorf("could not query todos: %w", err)
	}
	todos := []*models.Todo{}
	if err := cursor.All(ctx, &todos); err != nil {
		return nil, fmt.Errorf("could not decode todos: %w", err)
	}
	return todos, nil
}

// FindOwned は指定IDのTodoを所有者で絞り込んで取得します。
func (r *TodoRepository) FindOwned(ctx context.Context, id string, creatorID primitive.ObjectID) (*models.Todo, error) {
	filter, err := ownedFilter(id, creatorID)
	if err != nil {
		return nil, err
	}
	var todo models.Todo
	if err := r.Todos.FindOne(ctx, filter).Decode(&todo); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTodoNotFound
		}
		log.Printf("Failed to query todo: %v", err)
		return nil, fmt.Errorf("could not query todo: %w", err)
	}
	return &todo, nil
}

// UpdateOwned は所有者で絞り込んだうえでupdateドキュメントを適用し、
// 更新後のTodoを返します。
func (r *TodoRepository) UpdateOwned(ctx context.Context, id string, creatorID primitive.ObjectID, update bson.M) (*models.Todo, error) {
	filter, err := ownedFilter(id, creatorID)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var todo models.Todo
	if err := r.Todos.FindOneAndUpdate(ctx, filter, update, opts).Decode(&todo); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTodoNotFound
		}
		log.Printf("Failed to update todo: %v", err)
		return nil, fmt.Errorf("could not update todo: %w", err)
	}
	return &todo, nil
}

// DeleteOwned は所有者で絞り込んだうえでTodoを削除し、削除前の状態を返します。
func (r *TodoRepository) DeleteOwned(ctx context.Context, id string, creatorID primitive.ObjectID) (*models.Todo, error) {
	filter, err := ownedFilter(id, creatorID)
	if err != nil {
		return nil, err
	}
	var todo models.Todo
	if err := r.Todos.FindOneAndDelete(ctx, filter).Decode(&todo); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTodoNotFound
		}
		log.Printf("Failed to delete todo: %v", err)
		return nil, fmt.Errorf("could not delete todo: %w", err)
	}
	return &todo, nil
}
