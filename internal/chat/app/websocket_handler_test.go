package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWebsocketHandler_PresenceTargets_RefreshesActiveConversations(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()
	connectTimeID := uuid.New().String()
	joinedLaterID := uuid.New().String()

	mockConvRepo := new(MockConversationRepository)
	mockConvRepo.On("FindActiveIDsByUser", ctx, userID).
		Return([]string{connectTimeID, joinedLaterID}, nil)

	convUC := NewConversationUseCase(new(MockUserRepository), mockConvRepo, new(MockMessageRepository))
	h := NewWebsocketHandler(NewHub(nil), convUC, nil, new(MockUserRepository))

	// A conversation joined after connect must still receive the offline
	// broadcast, so the connect-time snapshot is not enough.
	ids := h.presenceTargets(ctx, userID, []string{connectTimeID})

	assert.ElementsMatch(t, []string{connectTimeID, joinedLaterID}, ids)
}

func TestWebsocketHandler_PresenceTargets_FallsBackOnError(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()
	connectTimeID := uuid.New().String()

	mockConvRepo := new(MockConversationRepository)
	mockConvRepo.On("FindActiveIDsByUser", ctx, userID).
		Return(nil, errors.New("mongo down"))

	convUC := NewConversationUseCase(new(MockUserRepository), mockConvRepo, new(MockMessageRepository))
	h := NewWebsocketHandler(NewHub(nil), convUC, nil, new(MockUserRepository))

	ids := h.presenceTargets(ctx, userID, []string{connectTimeID})

	assert.Equal(t, []string{connectTimeID}, ids)
}
