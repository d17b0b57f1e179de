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

// ErrDuplicatePair is returned when a concurrent createPrivate won the race
// on the unique (type, pair_key) index. Callers re-fetch and converge on the
// winner.
var ErrDuplicatePair = errors.New("private pair already exists")

// ConversationRepository definition conversation document store
type ConversationRepository interface {
	EnsureIndexes(ctx context.Context) error
	Create(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, conversationID string) (*domain.Conversation, error)
	FindPrivateByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error)
	FindByUser(ctx context.Context, userID string, page, limit int) ([]domain.Conversation, int64, error)
	FindActiveIDsByUser(ctx context.Context, userID string) ([]string, error)
	// AddParticipants appends participants in one $push so concurrent counter
	// and snapshot updates on the same document are never overwritten.
	AddParticipants(ctx context.Context, conversationID string, participants []domain.Participant) error
	// RemoveParticipant pulls the user out of participants and admin in one
	// update.
	RemoveParticipant(ctx context.Context, conversationID, userID string) error
	SetActive(ctx context.Context, conversationID string, active bool) error
	SetLastMessage(ctx context.Context, conversationID string, lm domain.LastMessage) error
	// IncrementUnread bumps unread_count for every participant except
	// excludeUserID in one atomic store-side update.
	IncrementUnread(ctx context.Context, conversationID, excludeUserID string) error
	// ResetRead advances userID's cursor and zeroes its unread_count in one
	// atomic positional update.
	ResetRead(ctx context.Context, conversationID, userID, lastMessageID string, at time.Time) error
	// AdvanceCursor moves userID's read cursor forward monotonically ($max),
	// leaving the unread counter to the cursor-based computation.
	AdvanceCursor(ctx context.Context, conversationID, userID, messageID string, at time.Time) error
}

type conversationRepository struct {
	coll *mongo.Collection
}

// NewMongoConversationRepository create a ConversationRepository
func NewMongoConversationRepository(db *mongo.Database) ConversationRepository {
	return &conversationRepository{
		coll: db.Collection("conversations"),
	}
}

// EnsureIndexes creates the participant lookup index, the lastMessage sort
// index, and the unique sparse pair index that collapses concurrent private
// creations into one document.
func (r *conversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "participants.user", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "last_message.created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	return err
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	_, err := r.coll.InsertOne(ctx, conv)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicatePair
	}
	return err
}

func (r *conversationRepository) FindByID(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) FindPrivateByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	filter := bson.M{
		"type":     domain.ConversationTypePrivate,
		"pair_key": pairKey,
	}
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, filter).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByUser lists active conversations for userID sorted by last message
// recency, conversations without messages falling back to updated_at.
func (r *conversationRepository) FindByUser(ctx context.Context, userID string, page, limit int) ([]domain.Conversation, int64, error) {
	filter := bson.M{
		"participants.user": userID,
		"is_active":         true,
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "last_message.created_at", Value: -1}, {Key: "updated_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var convs []domain.Conversation
	if err := cur.All(ctx, &convs); err != nil {
		return nil, 0, err
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return convs, total, nil
}

func (r *conversationRepository) FindActiveIDsByUser(ctx context.Context, userID string) ([]string, error) {
	filter := bson.M{
		"participants.user": userID,
		"is_active":         true,
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (r *conversationRepository) AddParticipants(ctx context.Context, conversationID string, participants []domain.Participant) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{
			"$push": bson.M{"participants": bson.M{"$each": participants}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	return err
}

func (r *conversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{
			"$pull": bson.M{
				"participants": bson.M{"user": userID},
				"admin":        userID,
			},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	return err
}

func (r *conversationRepository) SetActive(ctx context.Context, conversationID string, active bool) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"is_active": active, "updated_at": time.Now()}},
	)
	return err
}

func (r *conversationRepository) SetLastMessage(ctx context.Context, conversationID string, lm domain.LastMessage) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"last_message": lm, "updated_at": time.Now()}},
	)
	return err
}

func (r *conversationRepository) IncrementUnread(ctx context.Context, conversationID, excludeUserID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$inc": bson.M{"participants.$[p].unread_count": 1}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"p.user": bson.M{"$ne": excludeUserID}},
			},
		}),
	)
	return err
}

func (r *conversationRepository) ResetRead(ctx context.Context, conversationID, userID, lastMessageID string, at time.Time) error {
	set := bson.M{
		"participants.$.last_read_at": at,
		"participants.$.unread_count": 0,
	}
	if lastMessageID != "" {
		set["participants.$.last_read_message"] = lastMessageID
	}
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID, "participants.user": userID},
		bson.M{"$set": set},
	)
	return err
}

func (r *conversationRepository) AdvanceCursor(ctx context.Context, conversationID, userID, messageID string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID, "participants.user": userID},
		bson.M{
			"$max": bson.M{"participants.$.last_read_at": at},
			"$set": bson.M{"participants.$.last_read_message": messageID},
		},
	)
	return err
}
