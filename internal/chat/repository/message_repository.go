package repository

import (
	"context"
	"errors"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository definition message document store
type MessageRepository interface {
	EnsureIndexes(ctx context.Context) error
	Insert(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
	// FindVisibleInConversation resolves replyTo targets: same conversation,
	// not soft-deleted.
	FindVisibleInConversation(ctx context.Context, messageID, conversationID string) (*domain.Message, error)
	// FindPage returns non-deleted messages newest-first plus the total
	// count; callers reverse for display order.
	FindPage(ctx context.Context, conversationID string, page, limit int) ([]domain.Message, int64, error)
	// FindLatestVisible returns the most recent non-deleted message of the
	// conversation, or nil when none remains.
	FindLatestVisible(ctx context.Context, conversationID string) (*domain.Message, error)
	// CountAfter counts non-deleted messages newer than after, excluding
	// those sent by excludeSender.
	CountAfter(ctx context.Context, conversationID string, after time.Time, excludeSender string) (int64, error)
	// SetContent rewrites the content and edit markers without touching the
	// rest of the document.
	SetContent(ctx context.Context, messageID, content string, editedAt time.Time) error
	// AddReadReceipt pushes the receipt unless the user already has one, and
	// promotes a sent message to delivered. The duplicate guard lives in the
	// filter so concurrent readers cannot double-append.
	AddReadReceipt(ctx context.Context, messageID string, receipt domain.ReadReceipt) error
	SoftDelete(ctx context.Context, messageID string) error
	HardDelete(ctx context.Context, messageID string) error
}

type messageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll: db.Collection("messages"),
	}
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "conversation", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "sender", Value: 1}},
		},
	})
	return err
}

func (r *messageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

func (r *messageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindVisibleInConversation(ctx context.Context, messageID, conversationID string) (*domain.Message, error) {
	filter := bson.M{
		"_id":          messageID,
		"conversation": conversationID,
		"is_deleted":   false,
	}
	var msg domain.Message
	err := r.coll.FindOne(ctx, filter).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindPage(ctx context.Context, conversationID string, page, limit int) ([]domain.Message, int64, error) {
	filter := bson.M{
		"conversation": conversationID,
		"is_deleted":   false,
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var msgs []domain.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, 0, err
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return msgs, total, nil
}

func (r *messageRepository) FindLatestVisible(ctx context.Context, conversationID string) (*domain.Message, error) {
	filter := bson.M{
		"conversation": conversationID,
		"is_deleted":   false,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var msg domain.Message
	err := r.coll.FindOne(ctx, filter, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) CountAfter(ctx context.Context, conversationID string, after time.Time, excludeSender string) (int64, error) {
	filter := bson.M{
		"conversation": conversationID,
		"is_deleted":   false,
		"created_at":   bson.M{"$gt": after},
	}
	if excludeSender != "" {
		filter["sender"] = bson.M{"$ne": excludeSender}
	}
	return r.coll.CountDocuments(ctx, filter)
}

func (r *messageRepository) SetContent(ctx context.Context, messageID, content string, editedAt time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$set": bson.M{
			"content":    content,
			"is_edited":  true,
			"edited_at":  editedAt,
			"updated_at": editedAt,
		}},
	)
	return err
}

func (r *messageRepository) AddReadReceipt(ctx context.Context, messageID string, receipt domain.ReadReceipt) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "read_by.user": bson.M{"$ne": receipt.UserID}},
		bson.M{
			"$push": bson.M{"read_by": receipt},
			"$set":  bson.M{"updated_at": receipt.ReadAt},
		},
	)
	if err != nil || res.MatchedCount == 0 {
		return err
	}
	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "status": domain.MessageStatusSent},
		bson.M{"$set": bson.M{"status": domain.MessageStatusDelivered}},
	)
	return err
}

// SoftDelete flags the message, swaps in the placeholder content and strips
// file metadata in one update.
func (r *messageRepository) SoftDelete(ctx context.Context, messageID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{
			"$set": bson.M{
				"is_deleted": true,
				"content":    domain.DeletedPlaceholder,
				"updated_at": time.Now(),
			},
			"$unset": bson.M{"file": ""},
		},
	)
	return err
}

// HardDelete removes the document. Only used as the compensating step when
// the paired conversation update fails after an insert.
func (r *messageRepository) HardDelete(ctx context.Context, messageID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": messageID})
	return err
}
