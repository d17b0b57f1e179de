package repository

import (
	"context"
	"errors"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepository definition user lookups and presence writes. Account CRUD
// lives with the external auth provider; this side only reads profiles and
// flips presence fields.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	FindSummaries(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error)
	AllExist(ctx context.Context, userIDs []string) (bool, error)
	SetStatus(ctx context.Context, userID string, status domain.UserStatus, lastSeenAt time.Time) error
}

type userRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository create a UserRepository
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		coll: db.Collection("users"),
	}
}

func (r *userRepository) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindSummaries batch-load the participant views for population on reads.
func (r *userRepository) FindSummaries(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, err
	}
	var users []domain.UserSummary
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}

	out := make(map[string]domain.UserSummary, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *userRepository) AllExist(ctx context.Context, userIDs []string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return false, err
	}
	return n == int64(len(userIDs)), nil
}

func (r *userRepository) SetStatus(ctx context.Context, userID string, status domain.UserStatus, lastSeenAt time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"status": status, "last_seen_at": lastSeenAt}},
	)
	return err
}
