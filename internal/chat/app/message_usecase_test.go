package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	errdef "realtime_chat_service/pkg/err"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func activeConversation(participants ...string) *domain.Conversation {
	conv := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypePrivate,
		IsActive: true,
	}
	for _, id := range participants {
		conv.Participants = append(conv.Participants, domain.Participant{UserID: id})
	}
	return conv
}

func TestMessageUseCase_Create(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	otherID := uuid.New().String()
	conv := activeConversation(senderID, otherID)

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockBroadcaster := new(MockBroadcaster)

	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("Insert", ctx, mock.Anything).Return(nil)
	mockConvRepo.On("SetLastMessage", ctx, conv.ID, mock.Anything).Return(nil)
	mockConvRepo.On("IncrementUnread", ctx, conv.ID, senderID).Return(nil)
	mockBroadcaster.On("ToConversation", conv.ID, domain.EventMessageNew, mock.Anything).Return()

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, mockBroadcaster)
	msg, err := uc.Create(ctx, senderID, CreateMessageInput{
		ConversationID: conv.ID,
		Content:        "  Hello, world!  ",
	})

	assert.NoError(t, err)
	assert.Equal(t, "Hello, world!", msg.Content)
	assert.Equal(t, domain.MessageTypeText, msg.Type)
	assert.Equal(t, domain.MessageStatusSent, msg.Status)
	mockConvRepo.AssertExpectations(t)
	mockBroadcaster.AssertExpectations(t)
}

func TestMessageUseCase_Create_NotParticipant(t *testing.T) {
	ctx := context.Background()
	conv := activeConversation(uuid.New().String(), uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewMessageUseCase(mockConvRepo, new(MockMessageRepository), nil, nil)
	_, err := uc.Create(ctx, uuid.New().String(), CreateMessageInput{
		ConversationID: conv.ID,
		Content:        "hi",
	})

	assert.Error(t, err)
	assert.Equal(t, errdef.KindAccessDenied, errdef.KindOf(err))
}

func TestMessageUseCase_Create_ContentValidation(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewMessageUseCase(mockConvRepo, new(MockMessageRepository), nil, nil)

	_, err := uc.Create(ctx, senderID, CreateMessageInput{ConversationID: conv.ID, Content: "   "})
	assert.Equal(t, errdef.KindValidation, errdef.KindOf(err))

	_, err = uc.Create(ctx, senderID, CreateMessageInput{
		ConversationID: conv.ID,
		Content:        strings.Repeat("x", domain.MaxContentLength+1),
	})
	assert.Equal(t, errdef.KindValidation, errdef.KindOf(err))
}

func TestMessageUseCase_Create_RollsBackOnConversationFailure(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockBroadcaster := new(MockBroadcaster)

	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("Insert", ctx, mock.Anything).Return(nil)
	mockConvRepo.On("SetLastMessage", ctx, conv.ID, mock.Anything).Return(errors.New("write conflict"))
	mockMsgRepo.On("HardDelete", ctx, mock.Anything).Return(nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, mockBroadcaster)
	_, err := uc.Create(ctx, senderID, CreateMessageInput{
		ConversationID: conv.ID,
		Content:        "hello",
	})

	assert.Error(t, err)
	assert.Equal(t, errdef.KindInternal, errdef.KindOf(err))
	// The inserted message is removed and nothing is emitted.
	mockMsgRepo.AssertCalled(t, "HardDelete", ctx, mock.Anything)
	mockBroadcaster.AssertNotCalled(t, "ToConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageUseCase_Create_ReplyTargetMissing(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())
	replyTo := uuid.New().String()

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("FindVisibleInConversation", ctx, replyTo, conv.ID).Return(nil, nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, nil)
	_, err := uc.Create(ctx, senderID, CreateMessageInput{
		ConversationID: conv.ID,
		Content:        "re: nothing",
		ReplyTo:        replyTo,
	})

	assert.Error(t, err)
	assert.Equal(t, errdef.KindNotFound, errdef.KindOf(err))
	mockMsgRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestMessageUseCase_Edit(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        "old",
		Type:           domain.MessageTypeText,
		CreatedAt:      time.Now(),
	}
	conv.LastMessage = domain.LastMessage{MessageID: msg.ID}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockBroadcaster := new(MockBroadcaster)

	mockMsgRepo.On("FindByID", ctx, msg.ID).Return(msg, nil)
	mockMsgRepo.On("SetContent", ctx, msg.ID, "new", mock.AnythingOfType("time.Time")).Return(nil)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	// Editing the latest message refreshes the preview.
	mockConvRepo.On("SetLastMessage", ctx, conv.ID, mock.MatchedBy(func(lm domain.LastMessage) bool {
		return lm.Content == "new"
	})).Return(nil)
	mockBroadcaster.On("ToConversation", conv.ID, domain.EventMessageEdit, mock.Anything).Return()

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, mockBroadcaster)
	edited, err := uc.Edit(ctx, msg.ID, senderID, "new")

	assert.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.NotNil(t, edited.EditedAt)
	mockConvRepo.AssertExpectations(t)
}

func TestMessageUseCase_Edit_ForeignMessage(t *testing.T) {
	ctx := context.Background()
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: uuid.New().String(),
		SenderID:       uuid.New().String(),
		Content:        "not yours",
	}

	mockMsgRepo := new(MockMessageRepository)
	mockMsgRepo.On("FindByID", ctx, msg.ID).Return(msg, nil)

	uc := NewMessageUseCase(new(MockConversationRepository), mockMsgRepo, nil, nil)
	_, err := uc.Edit(ctx, msg.ID, uuid.New().String(), "mine now")

	assert.Error(t, err)
	assert.Equal(t, errdef.KindPermissionDenied, errdef.KindOf(err))
}

func TestMessageUseCase_Edit_DeletedMessage(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: uuid.New().String(),
		SenderID:       senderID,
		Content:        domain.DeletedPlaceholder,
		IsDeleted:      true,
	}

	mockMsgRepo := new(MockMessageRepository)
	mockMsgRepo.On("FindByID", ctx, msg.ID).Return(msg, nil)

	uc := NewMessageUseCase(new(MockConversationRepository), mockMsgRepo, nil, nil)
	_, err := uc.Edit(ctx, msg.ID, senderID, "resurrect")

	assert.Error(t, err)
	assert.Equal(t, errdef.KindInvalidOperation, errdef.KindOf(err))
}

func TestMessageUseCase_Delete_RecomputesLastMessage(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        "latest",
		Type:           domain.MessageTypeText,
		CreatedAt:      time.Now(),
	}
	conv.LastMessage = domain.LastMessage{MessageID: msg.ID, Content: "latest"}

	previous := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        "previous",
		Type:           domain.MessageTypeText,
		CreatedAt:      msg.CreatedAt.Add(-time.Minute),
	}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockBroadcaster := new(MockBroadcaster)

	mockMsgRepo.On("FindByID", ctx, msg.ID).Return(msg, nil)
	mockMsgRepo.On("SoftDelete", ctx, msg.ID).Return(nil)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("FindLatestVisible", ctx, conv.ID).Return(previous, nil)
	mockConvRepo.On("SetLastMessage", ctx, conv.ID, mock.MatchedBy(func(lm domain.LastMessage) bool {
		return lm.MessageID == previous.ID && lm.Content == "previous"
	})).Return(nil)
	mockBroadcaster.On("ToConversation", conv.ID, domain.EventMessageDelete, mock.Anything).Return()

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, mockBroadcaster)
	deleted, err := uc.Delete(ctx, msg.ID, senderID)

	assert.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, domain.DeletedPlaceholder, deleted.Content)
	mockConvRepo.AssertExpectations(t)
}

func TestMessageUseCase_Delete_LastSurvivor(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        "only one",
		Type:           domain.MessageTypeText,
		CreatedAt:      time.Now(),
	}
	conv.LastMessage = domain.LastMessage{MessageID: msg.ID}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockBroadcaster := new(MockBroadcaster)

	mockMsgRepo.On("FindByID", ctx, msg.ID).Return(msg, nil)
	mockMsgRepo.On("SoftDelete", ctx, msg.ID).Return(nil)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("FindLatestVisible", ctx, conv.ID).Return(nil, nil)
	// No survivor: every snapshot field resets, not a stale preview.
	mockConvRepo.On("SetLastMessage", ctx, conv.ID, domain.LastMessage{}).Return(nil)
	mockBroadcaster.On("ToConversation", conv.ID, domain.EventMessageDelete, mock.Anything).Return()

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, mockBroadcaster)
	_, err := uc.Delete(ctx, msg.ID, senderID)

	assert.NoError(t, err)
	mockConvRepo.AssertExpectations(t)
}

func TestMessageUseCase_Delete_Idempotent(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: uuid.New().String(),
		SenderID:       senderID,
		Content:        domain.DeletedPlaceholder,
		IsDeleted:      true,
	}

	mockMsgRepo := new(MockMessageRepository)
	mockBroadcaster := new(MockBroadcaster)
	mockMsgRepo.On("FindByID", ctx, msg.ID).Return(msg, nil)

	uc := NewMessageUseCase(new(MockConversationRepository), mockMsgRepo, nil, mockBroadcaster)
	deleted, err := uc.Delete(ctx, msg.ID, senderID)

	assert.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	mockMsgRepo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
	mockBroadcaster.AssertNotCalled(t, "ToConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageUseCase_Delete_RemovesAttachment(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        "photo.png",
		Type:           domain.MessageTypeImage,
		File:           &domain.FileInfo{PublicID: "attachments/abc.png", URL: "http://minio/abc"},
		CreatedAt:      time.Now(),
	}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockMedia := new(MockMediaStore)
	mockBroadcaster := new(MockBroadcaster)

	mockMsgRepo.On("FindByID", ctx, msg.ID).Return(msg, nil)
	mockMsgRepo.On("SoftDelete", ctx, msg.ID).Return(nil)
	mockMedia.On("Delete", ctx, "attachments/abc.png").Return(nil)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockBroadcaster.On("ToConversation", conv.ID, domain.EventMessageDelete, mock.Anything).Return()

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, mockMedia, mockBroadcaster)
	_, err := uc.Delete(ctx, msg.ID, senderID)

	assert.NoError(t, err)
	mockMedia.AssertExpectations(t)
}

func TestMessageUseCase_List(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()
	conv := activeConversation(userID, uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	newer := domain.Message{ID: "m2", ConversationID: conv.ID, CreatedAt: time.Now()}
	older := domain.Message{ID: "m1", ConversationID: conv.ID, CreatedAt: time.Now().Add(-time.Minute)}
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("FindPage", ctx, conv.ID, 1, 20).Return([]domain.Message{newer, older}, int64(2), nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, nil)
	msgs, pagination, err := uc.List(ctx, conv.ID, userID, 1, 20)

	assert.NoError(t, err)
	// Newest-first storage order is reversed for display.
	assert.Equal(t, []string{"m1", "m2"}, []string{msgs[0].ID, msgs[1].ID})
	assert.Equal(t, int64(2), pagination.TotalItems)
}

func TestMessageUseCase_List_NotParticipant(t *testing.T) {
	ctx := context.Background()
	conv := activeConversation(uuid.New().String(), uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewMessageUseCase(mockConvRepo, new(MockMessageRepository), nil, nil)
	_, _, err := uc.List(ctx, conv.ID, uuid.New().String(), 1, 20)

	assert.Error(t, err)
	assert.Equal(t, errdef.KindAccessDenied, errdef.KindOf(err))
}

func TestMessageUseCase_MarkMessageRead(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	readerID := uuid.New().String()
	conv := activeConversation(senderID, readerID)
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        "read me",
		Status:         domain.MessageStatusSent,
		CreatedAt:      time.Now(),
	}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockBroadcaster := new(MockBroadcaster)

	mockMsgRepo.On("FindByID", ctx, msg.ID).Return(msg, nil)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("AddReadReceipt", ctx, msg.ID, mock.MatchedBy(func(rc domain.ReadReceipt) bool {
		return rc.UserID == readerID
	})).Return(nil)
	mockConvRepo.On("AdvanceCursor", ctx, conv.ID, readerID, msg.ID, msg.CreatedAt).Return(nil)
	mockBroadcaster.On("ToConversation", conv.ID, domain.EventMessageRead, mock.Anything).Return()

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, mockBroadcaster)
	readBy, err := uc.MarkMessageRead(ctx, msg.ID, readerID)

	assert.NoError(t, err)
	assert.Len(t, readBy, 1)
	assert.Equal(t, readerID, readBy[0].UserID)
	assert.Equal(t, domain.MessageStatusDelivered, msg.Status)
	mockConvRepo.AssertExpectations(t)
}

func TestMessageUseCase_MarkMessageRead_Idempotent(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New().String()
	readerID := uuid.New().String()
	conv := activeConversation(senderID, readerID)
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Status:         domain.MessageStatusDelivered,
		ReadBy:         []domain.ReadReceipt{{UserID: readerID, ReadAt: time.Now()}},
		CreatedAt:      time.Now(),
	}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	mockMsgRepo.On("FindByID", ctx, msg.ID).Return(msg, nil)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, nil)
	readBy, err := uc.MarkMessageRead(ctx, msg.ID, readerID)

	assert.NoError(t, err)
	assert.Len(t, readBy, 1)
	mockMsgRepo.AssertNotCalled(t, "AddReadReceipt", mock.Anything, mock.Anything, mock.Anything)
}
