// Package repositories はデータベース操作を行うリポジトリを提供します。
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go-todo-api/internal/models"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

type ResetTokenRepository interface {
	Save(ctx context.Context, token *models.PasswordResetToken) error
	FindByToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id primitive.ObjectID) error
	CleanupExpired(ctx context.Context) error
}

type MongoResetTokenRepo struct {
	Tokens *mongo.Collection
}

func NewMongoResetTokenRepo(db *mongo.Database) *MongoResetTokenRepo {
	return &MongoResetTokenRepo{Tokens: db.Collection("password_reset_tokens")}
}

func (r *MongoResetTokenRepo) Save(ctx context.Context, t *models.PasswordResetToken) error {
	t.CreatedAt = time.Now()
	res, err := r.Tokens.InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("could not save reset token: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = oid
	}
	return nil
}

func (r *MongoResetTokenRepo) FindByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	var pr models.PasswordResetToken
	err := r.Tokens.FindOne(ctx, bson.M{"token": token}).Decode(&pr)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("could not query reset token: %w", err)
	}
	return &pr, nil
}

func (r *MongoResetTokenRepo) MarkUsed(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.Tokens.UpdateByID(ctx, id, bson.M{"$set": bson.M{"used_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("could not mark reset token as used: %w", err)
	}
	return nil
}

func (r *MongoResetTokenRepo) CleanupExpired(ctx context.Context) error {
	filter := bson.M{"$or": bson.A{
		bson.M{"used_at": bson.M{"$exists": true}},
		bson.M{"expires_at": bson.M{"$lt": time.Now()}},
	}}
	if _, err := r.Tokens.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("could not clean up reset tokens: %w", err)
	}
	return nil
}
