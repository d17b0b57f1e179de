package app

import (
	"context"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	errdef "realtime_chat_service/pkg/err"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestConversationUseCase_CreatePrivate(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New().String()
	participantID := uuid.New().String()

	mockUserRepo := new(MockUserRepository)
	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	mockUserRepo.On("AllExist", ctx, []string{creatorID, participantID}).Return(true, nil)
	mockConvRepo.On("FindPrivateByPairKey", ctx, domain.PrivatePairKey(creatorID, participantID)).Return(nil, nil)
	mockConvRepo.On("Create", ctx, mock.Anything).Return(nil)
	mockMsgRepo.On("CountAfter", ctx, mock.Anything, mock.Anything, creatorID).Return(int64(0), nil)
	mockUserRepo.On("FindSummaries", ctx, mock.Anything).Return(map[string]domain.UserSummary{}, nil)

	uc := NewConversationUseCase(mockUserRepo, mockConvRepo, mockMsgRepo)
	view, isNew, err := uc.CreatePrivate(ctx, creatorID, participantID)

	assert.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, domain.ConversationTypePrivate, view.Conversation.Type)
	assert.Len(t, view.Conversation.Participants, 2)
	assert.True(t, view.Conversation.IsActive)
	mockConvRepo.AssertExpectations(t)
}

func TestConversationUseCase_CreatePrivate_ReturnsExisting(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New().String()
	participantID := uuid.New().String()
	pairKey := domain.PrivatePairKey(creatorID, participantID)

	mockUserRepo := new(MockUserRepository)
	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	existing := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypePrivate,
		PairKey:  pairKey,
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: creatorID}, {UserID: participantID},
		},
	}
	mockUserRepo.On("AllExist", ctx, []string{creatorID, participantID}).Return(true, nil)
	mockConvRepo.On("FindPrivateByPairKey", ctx, pairKey).Return(existing, nil)
	mockMsgRepo.On("CountAfter", ctx, existing.ID, mock.Anything, creatorID).Return(int64(0), nil)
	mockUserRepo.On("FindSummaries", ctx, mock.Anything).Return(map[string]domain.UserSummary{}, nil)

	uc := NewConversationUseCase(mockUserRepo, mockConvRepo, mockMsgRepo)
	view, isNew, err := uc.CreatePrivate(ctx, creatorID, participantID)

	assert.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, existing.ID, view.Conversation.ID)
	mockConvRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConversationUseCase_CreatePrivate_ReactivatesInactive(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New().String()
	participantID := uuid.New().String()
	pairKey := domain.PrivatePairKey(creatorID, participantID)

	mockUserRepo := new(MockUserRepository)
	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	existing := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypePrivate,
		PairKey:  pairKey,
		IsActive: false,
		Participants: []domain.Participant{
			{UserID: creatorID}, {UserID: participantID},
		},
	}
	mockUserRepo.On("AllExist", ctx, []string{creatorID, participantID}).Return(true, nil)
	mockConvRepo.On("FindPrivateByPairKey", ctx, pairKey).Return(existing, nil)
	mockConvRepo.On("SetActive", ctx, existing.ID, true).Return(nil)
	mockMsgRepo.On("CountAfter", ctx, existing.ID, mock.Anything, creatorID).Return(int64(0), nil)
	mockUserRepo.On("FindSummaries", ctx, mock.Anything).Return(map[string]domain.UserSummary{}, nil)

	uc := NewConversationUseCase(mockUserRepo, mockConvRepo, mockMsgRepo)
	view, isNew, err := uc.CreatePrivate(ctx, creatorID, participantID)

	assert.NoError(t, err)
	assert.False(t, isNew)
	assert.True(t, view.Conversation.IsActive)
	mockConvRepo.AssertExpectations(t)
}

func TestConversationUseCase_CreatePrivate_WithSelf(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()

	uc := NewConversationUseCase(new(MockUserRepository), new(MockConversationRepository), new(MockMessageRepository))
	_, _, err := uc.CreatePrivate(ctx, userID, userID)

	assert.Error(t, err)
	assert.Equal(t, errdef.KindInvalidOperation, errdef.KindOf(err))
}

func TestConversationUseCase_CreatePrivate_DuplicateRace(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New().String()
	participantID := uuid.New().String()
	pairKey := domain.PrivatePairKey(creatorID, participantID)

	mockUserRepo := new(MockUserRepository)
	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	winner := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypePrivate,
		PairKey:  pairKey,
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: creatorID}, {UserID: participantID},
		},
	}
	mockUserRepo.On("AllExist", ctx, []string{creatorID, participantID}).Return(true, nil)
	// First lookup misses, the insert loses the unique index race, the
	// second lookup converges on the winner.
	mockConvRepo.On("FindPrivateByPairKey", ctx, pairKey).Return(nil, nil).Once()
	mockConvRepo.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicatePair)
	mockConvRepo.On("FindPrivateByPairKey", ctx, pairKey).Return(winner, nil).Once()
	mockMsgRepo.On("CountAfter", ctx, winner.ID, mock.Anything, creatorID).Return(int64(0), nil)
	mockUserRepo.On("FindSummaries", ctx, mock.Anything).Return(map[string]domain.UserSummary{}, nil)

	uc := NewConversationUseCase(mockUserRepo, mockConvRepo, mockMsgRepo)
	view, isNew, err := uc.CreatePrivate(ctx, creatorID, participantID)

	assert.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, winner.ID, view.Conversation.ID)
	mockConvRepo.AssertExpectations(t)
}

func TestConversationUseCase_CreateGroup(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New().String()
	memberA := uuid.New().String()
	memberB := uuid.New().String()

	mockUserRepo := new(MockUserRepository)
	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	mockUserRepo.On("AllExist", ctx, mock.Anything).Return(true, nil)
	mockConvRepo.On("Create", ctx, mock.Anything).Return(nil)
	mockMsgRepo.On("CountAfter", ctx, mock.Anything, mock.Anything, creatorID).Return(int64(0), nil)
	mockUserRepo.On("FindSummaries", ctx, mock.Anything).Return(map[string]domain.UserSummary{}, nil)

	uc := NewConversationUseCase(mockUserRepo, mockConvRepo, mockMsgRepo)
	view, err := uc.CreateGroup(ctx, creatorID, "team", []string{memberA, memberB, creatorID}, nil)

	assert.NoError(t, err)
	assert.Equal(t, domain.ConversationTypeGroup, view.Conversation.Type)
	assert.Len(t, view.Conversation.Participants, 3)
	assert.Equal(t, []string{creatorID}, view.Conversation.Admin)
}

func TestConversationUseCase_CreateGroup_TooSmall(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New().String()

	uc := NewConversationUseCase(new(MockUserRepository), new(MockConversationRepository), new(MockMessageRepository))
	_, err := uc.CreateGroup(ctx, creatorID, "pair", []string{uuid.New().String()}, nil)

	assert.Error(t, err)
	assert.Equal(t, errdef.KindInvalidOperation, errdef.KindOf(err))
}

func TestConversationUseCase_AddMembers_NotAdmin(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New().String()
	memberID := uuid.New().String()
	thirdID := uuid.New().String()

	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypeGroup,
		Admin:    []string{adminID},
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: adminID}, {UserID: memberID}, {UserID: thirdID},
		},
	}
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewConversationUseCase(new(MockUserRepository), mockConvRepo, new(MockMessageRepository))
	_, err := uc.AddMembers(ctx, conv.ID, memberID, []string{uuid.New().String()})

	assert.Error(t, err)
	assert.Equal(t, errdef.KindPermissionDenied, errdef.KindOf(err))
}

func TestConversationUseCase_RemoveMember_KeepsFloor(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New().String()
	memberID := uuid.New().String()
	thirdID := uuid.New().String()

	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypeGroup,
		Admin:    []string{adminID},
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: adminID}, {UserID: memberID}, {UserID: thirdID},
		},
	}
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewConversationUseCase(new(MockUserRepository), mockConvRepo, new(MockMessageRepository))
	_, err := uc.RemoveMember(ctx, conv.ID, adminID, memberID)

	assert.Error(t, err)
	assert.Equal(t, errdef.KindInvalidOperation, errdef.KindOf(err))
	mockConvRepo.AssertNotCalled(t, "RemoveParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversationUseCase_AddMembers_PushesOnlyNewMembers(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New().String()
	memberID := uuid.New().String()
	thirdID := uuid.New().String()
	newID := uuid.New().String()

	mockUserRepo := new(MockUserRepository)
	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	conv := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypeGroup,
		Admin:    []string{adminID},
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: adminID}, {UserID: memberID}, {UserID: thirdID},
		},
	}
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockUserRepo.On("AllExist", ctx, mock.Anything).Return(true, nil)
	// The write must carry only the joiners, never the whole participant
	// array, so concurrent unread bumps on the document survive.
	mockConvRepo.On("AddParticipants", ctx, conv.ID, mock.MatchedBy(func(joined []domain.Participant) bool {
		return len(joined) == 1 && joined[0].UserID == newID
	})).Return(nil)
	mockUserRepo.On("FindSummaries", ctx, mock.Anything).Return(map[string]domain.UserSummary{}, nil)
	mockMsgRepo.On("CountAfter", ctx, conv.ID, mock.Anything, adminID).Return(int64(0), nil)

	uc := NewConversationUseCase(mockUserRepo, mockConvRepo, mockMsgRepo)
	view, err := uc.AddMembers(ctx, conv.ID, adminID, []string{memberID, newID})

	assert.NoError(t, err)
	assert.Len(t, view.Conversation.Participants, 4)
	mockConvRepo.AssertExpectations(t)
}

func TestConversationUseCase_AddMembers_NoNewMembersSkipsWrite(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New().String()
	memberID := uuid.New().String()
	thirdID := uuid.New().String()

	mockUserRepo := new(MockUserRepository)
	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	conv := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypeGroup,
		Admin:    []string{adminID},
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: adminID}, {UserID: memberID}, {UserID: thirdID},
		},
	}
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockUserRepo.On("AllExist", ctx, mock.Anything).Return(true, nil)
	mockUserRepo.On("FindSummaries", ctx, mock.Anything).Return(map[string]domain.UserSummary{}, nil)
	mockMsgRepo.On("CountAfter", ctx, conv.ID, mock.Anything, adminID).Return(int64(0), nil)

	uc := NewConversationUseCase(mockUserRepo, mockConvRepo, mockMsgRepo)
	view, err := uc.AddMembers(ctx, conv.ID, adminID, []string{memberID})

	assert.NoError(t, err)
	assert.Len(t, view.Conversation.Participants, 3)
	mockConvRepo.AssertNotCalled(t, "AddParticipants", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversationUseCase_RemoveMember_PullsMemberAndAdmin(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New().String()
	secondAdminID := uuid.New().String()
	memberID := uuid.New().String()
	fourthID := uuid.New().String()

	mockUserRepo := new(MockUserRepository)
	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	conv := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypeGroup,
		Admin:    []string{adminID, secondAdminID},
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: adminID}, {UserID: secondAdminID}, {UserID: memberID}, {UserID: fourthID},
		},
	}
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockConvRepo.On("RemoveParticipant", ctx, conv.ID, secondAdminID).Return(nil)
	mockUserRepo.On("FindSummaries", ctx, mock.Anything).Return(map[string]domain.UserSummary{}, nil)
	mockMsgRepo.On("CountAfter", ctx, conv.ID, mock.Anything, adminID).Return(int64(0), nil)

	uc := NewConversationUseCase(mockUserRepo, mockConvRepo, mockMsgRepo)
	view, err := uc.RemoveMember(ctx, conv.ID, adminID, secondAdminID)

	assert.NoError(t, err)
	assert.Len(t, view.Conversation.Participants, 3)
	assert.Equal(t, []string{adminID}, view.Conversation.Admin)
	mockConvRepo.AssertExpectations(t)
}

func TestConversationUseCase_List_ComputesUnreadFromCursor(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()
	cursor := time.Now().Add(-time.Hour)

	mockUserRepo := new(MockUserRepository)
	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	conv := domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypePrivate,
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: userID, LastReadAt: &cursor},
			{UserID: uuid.New().String()},
		},
	}
	mockConvRepo.On("FindByUser", ctx, userID, 1, 20).Return([]domain.Conversation{conv}, int64(1), nil)
	mockMsgRepo.On("CountAfter", ctx, conv.ID, cursor, userID).Return(int64(4), nil)
	mockUserRepo.On("FindSummaries", ctx, mock.Anything).Return(map[string]domain.UserSummary{}, nil)

	uc := NewConversationUseCase(mockUserRepo, mockConvRepo, mockMsgRepo)
	views, pagination, err := uc.List(ctx, userID, 1, 20)

	assert.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, 4, views[0].Conversation.UnreadCount)
	assert.Equal(t, int64(1), pagination.TotalItems)
}

func TestConversationUseCase_GetByID_NotParticipant(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()

	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypePrivate,
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: uuid.New().String()}, {UserID: uuid.New().String()},
		},
	}
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewConversationUseCase(new(MockUserRepository), mockConvRepo, new(MockMessageRepository))
	_, err := uc.GetByID(ctx, conv.ID, userID)

	assert.Error(t, err)
	assert.Equal(t, errdef.KindNotFound, errdef.KindOf(err))
}

func TestConversationUseCase_MarkRead(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()
	cursor := time.Now().Add(-time.Hour)

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)

	conv := &domain.Conversation{
		ID:       uuid.New().String(),
		Type:     domain.ConversationTypePrivate,
		IsActive: true,
		Participants: []domain.Participant{
			{UserID: userID, LastReadAt: &cursor, UnreadCount: 3},
			{UserID: uuid.New().String()},
		},
		LastMessage: domain.LastMessage{MessageID: uuid.New().String()},
	}
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("CountAfter", ctx, conv.ID, cursor, userID).Return(int64(3), nil)
	mockConvRepo.On("ResetRead", ctx, conv.ID, userID, conv.LastMessage.MessageID, mock.Anything).Return(nil)

	uc := NewConversationUseCase(new(MockUserRepository), mockConvRepo, mockMsgRepo)
	unreadBefore, err := uc.MarkRead(ctx, conv.ID, userID)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), unreadBefore)
	mockConvRepo.AssertExpectations(t)
}
