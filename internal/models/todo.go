// Package modelsはTodoを定義します。
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Todo struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"` // 主キー
	Text        string             `bson:"text" json:"text" binding:"required"` // タスクの本文（必須）
	Completed   bool               `bson:"completed" json:"completed"`          // 完了状態
	CompletedAt *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"` // 完了日時（未完了のときは存在しない）
	CreatorID   primitive.ObjectID `bson:"_creator" json:"_creator"`            // 作成者のユーザーID
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// TodoUpdateRequest は部分更新のリクエストボディです。
// nilのフィールドは変更されません。
type TodoUpdateRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}
