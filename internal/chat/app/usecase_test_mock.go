package app

import (
	"context"
	"io"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

// FindByID mock find user by id
func (m *MockUserRepository) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindSummaries mock batch load summaries
func (m *MockUserRepository) FindSummaries(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]domain.UserSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// AllExist mock existence check
func (m *MockUserRepository) AllExist(ctx context.Context, userIDs []string) (bool, error) {
	args := m.Called(ctx, userIDs)
	return args.Bool(0), args.Error(1)
}

// SetStatus mock presence write
func (m *MockUserRepository) SetStatus(ctx context.Context, userID string, status domain.UserStatus, lastSeenAt time.Time) error {
	args := m.Called(ctx, userID, status, lastSeenAt)
	return args.Error(0)
}

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// EnsureIndexes mock index creation
func (m *MockConversationRepository) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Create mock insert conversation
func (m *MockConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// FindByID mock find conversation by id
func (m *MockConversationRepository) FindByID(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindPrivateByPairKey mock find private conversation
func (m *MockConversationRepository) FindPrivateByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	args := m.Called(ctx, pairKey)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByUser mock list conversations
func (m *MockConversationRepository) FindByUser(ctx context.Context, userID string, page, limit int) ([]domain.Conversation, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

// FindActiveIDsByUser mock list active conversation ids
func (m *MockConversationRepository) FindActiveIDsByUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// AddParticipants mock membership push
func (m *MockConversationRepository) AddParticipants(ctx context.Context, conversationID string, participants []domain.Participant) error {
	args := m.Called(ctx, conversationID, participants)
	return args.Error(0)
}

// RemoveParticipant mock membership pull
func (m *MockConversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

// SetActive mock flip is_active
func (m *MockConversationRepository) SetActive(ctx context.Context, conversationID string, active bool) error {
	args := m.Called(ctx, conversationID, active)
	return args.Error(0)
}

// SetLastMessage mock write last message snapshot
func (m *MockConversationRepository) SetLastMessage(ctx context.Context, conversationID string, lm domain.LastMessage) error {
	args := m.Called(ctx, conversationID, lm)
	return args.Error(0)
}

// IncrementUnread mock unread bump
func (m *MockConversationRepository) IncrementUnread(ctx context.Context, conversationID, excludeUserID string) error {
	args := m.Called(ctx, conversationID, excludeUserID)
	return args.Error(0)
}

// ResetRead mock cursor reset
func (m *MockConversationRepository) ResetRead(ctx context.Context, conversationID, userID, lastMessageID string, at time.Time) error {
	args := m.Called(ctx, conversationID, userID, lastMessageID, at)
	return args.Error(0)
}

// AdvanceCursor mock cursor advance
func (m *MockConversationRepository) AdvanceCursor(ctx context.Context, conversationID, userID, messageID string, at time.Time) error {
	args := m.Called(ctx, conversationID, userID, messageID, at)
	return args.Error(0)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// EnsureIndexes mock index creation
func (m *MockMessageRepository) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Insert mock insert message
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindByID mock find message by id
func (m *MockMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindVisibleInConversation mock reply target lookup
func (m *MockMessageRepository) FindVisibleInConversation(ctx context.Context, messageID, conversationID string) (*domain.Message, error) {
	args := m.Called(ctx, messageID, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindPage mock page of messages
func (m *MockMessageRepository) FindPage(ctx context.Context, conversationID string, page, limit int) ([]domain.Message, int64, error) {
	args := m.Called(ctx, conversationID, page, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

// FindLatestVisible mock latest surviving message
func (m *MockMessageRepository) FindLatestVisible(ctx context.Context, conversationID string) (*domain.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// CountAfter mock unread count
func (m *MockMessageRepository) CountAfter(ctx context.Context, conversationID string, after time.Time, excludeSender string) (int64, error) {
	args := m.Called(ctx, conversationID, after, excludeSender)
	return args.Get(0).(int64), args.Error(1)
}

// SetContent mock content rewrite
func (m *MockMessageRepository) SetContent(ctx context.Context, messageID, content string, editedAt time.Time) error {
	args := m.Called(ctx, messageID, content, editedAt)
	return args.Error(0)
}

// AddReadReceipt mock guarded receipt push
func (m *MockMessageRepository) AddReadReceipt(ctx context.Context, messageID string, receipt domain.ReadReceipt) error {
	args := m.Called(ctx, messageID, receipt)
	return args.Error(0)
}

// SoftDelete mock soft delete
func (m *MockMessageRepository) SoftDelete(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

// HardDelete mock compensating delete
func (m *MockMessageRepository) HardDelete(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

// MockBroadcaster Mock Broadcaster
type MockBroadcaster struct {
	mock.Mock
}

// ToConversation mock room fanout
func (m *MockBroadcaster) ToConversation(conversationID, event string, payload interface{}) {
	m.Called(conversationID, event, payload)
}

// ToUser mock direct push
func (m *MockBroadcaster) ToUser(userID, event string, payload interface{}) {
	m.Called(userID, event, payload)
}

// MockMediaStore Mock MediaStore
type MockMediaStore struct {
	mock.Mock
}

// Upload mock attachment upload
func (m *MockMediaStore) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (*domain.FileInfo, error) {
	args := m.Called(ctx, r, size, filename, contentType)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.FileInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

// Delete mock attachment removal
func (m *MockMediaStore) Delete(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}
