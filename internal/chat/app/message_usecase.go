package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	errdef "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
)

// Broadcaster fans an event out to a room. Implemented by the websocket hub;
// emits happen only after the durable write they describe, and a failed emit
// never fails the request.
type Broadcaster interface {
	ToConversation(conversationID, event string, payload interface{})
	ToUser(userID, event string, payload interface{})
}

// CreateMessageInput carries everything a send needs besides the sender
// identity.
type CreateMessageInput struct {
	ConversationID string
	Content        string
	Type           domain.MessageType
	File           *domain.FileInfo
	ReplyTo        string
	ForwardedFrom  string
}

// MessageUseCase definition message business logic
type MessageUseCase struct {
	convRepo    repository.ConversationRepository
	msgRepo     repository.MessageRepository
	media       domain.MediaStore
	broadcaster Broadcaster
	locks       *conversationLocks
}

// NewMessageUseCase create MessageUseCase. media and broadcaster may be nil
// in tests.
func NewMessageUseCase(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, media domain.MediaStore, broadcaster Broadcaster) *MessageUseCase {
	return &MessageUseCase{
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		media:       media,
		broadcaster: broadcaster,
		locks:       newConversationLocks(),
	}
}

// Create persists a message and updates the conversation's last-message
// snapshot and unread counters under the conversation lock. If the
// conversation update fails the inserted message is removed again so the two
// documents never diverge.
func (uc *MessageUseCase) Create(ctx context.Context, senderID string, in CreateMessageInput) (*domain.Message, error) {
	conv, err := uc.convRepo.FindByID(ctx, in.ConversationID)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "find conversation", err)
	}
	if conv == nil || !conv.IsActive {
		return nil, errdef.New(errdef.KindNotFound, "conversation not found")
	}
	if !conv.HasParticipant(senderID) {
		return nil, errdef.New(errdef.KindAccessDenied, "you are not a participant of this conversation")
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, errdef.New(errdef.KindValidation, "message content cannot be empty")
	}
	if len(content) > domain.MaxContentLength {
		return nil, errdef.New(errdef.KindValidation, "message content too long (max 2000 characters)")
	}
	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	if in.ReplyTo != "" {
		target, err := uc.msgRepo.FindVisibleInConversation(ctx, in.ReplyTo, in.ConversationID)
		if err != nil {
			return nil, errdef.Wrap(errdef.KindInternal, "find replied message", err)
		}
		if target == nil {
			return nil, errdef.New(errdef.KindNotFound, "replied message not found")
		}
	}

	now := time.Now()
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: in.ConversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		File:           in.File,
		ReplyTo:        in.ReplyTo,
		ForwardedFrom:  in.ForwardedFrom,
		Status:         domain.MessageStatusSent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	unlock := uc.locks.Acquire(in.ConversationID)
	defer unlock()

	if err := uc.msgRepo.Insert(ctx, msg); err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "insert message", err)
	}
	if err := uc.applyToConversation(ctx, msg); err != nil {
		// Compensate: without the conversation update the message must not
		// surface, so the insert is rolled back.
		if derr := uc.msgRepo.HardDelete(ctx, msg.ID); derr != nil {
			logger.Log.Errorf(fmt.Sprintf("rollback of message %s failed", msg.ID), derr)
		}
		return nil, errdef.Wrap(errdef.KindInternal, "update conversation", err)
	}

	uc.emitToConversation(in.ConversationID, domain.EventMessageNew, msg)
	return msg, nil
}

// Edit rewrites the content of the caller's own message. Deleted messages
// cannot be edited. If the message is the conversation's latest, the
// last-message preview is refreshed too.
func (uc *MessageUseCase) Edit(ctx context.Context, messageID, userID, newContent string) (*domain.Message, error) {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "find message", err)
	}
	if msg == nil {
		return nil, errdef.New(errdef.KindNotFound, "message not found")
	}
	if msg.SenderID != userID {
		return nil, errdef.New(errdef.KindPermissionDenied, "you can only edit your own messages")
	}
	if msg.IsDeleted {
		return nil, errdef.New(errdef.KindInvalidOperation, "cannot edit a deleted message")
	}
	content := strings.TrimSpace(newContent)
	if content == "" {
		return nil, errdef.New(errdef.KindValidation, "message content cannot be empty")
	}
	if len(content) > domain.MaxContentLength {
		return nil, errdef.New(errdef.KindValidation, "message content too long (max 2000 characters)")
	}

	now := time.Now()
	if err := uc.msgRepo.SetContent(ctx, msg.ID, content, now); err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "update message", err)
	}
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now
	msg.UpdatedAt = now

	unlock := uc.locks.Acquire(msg.ConversationID)
	conv, cerr := uc.convRepo.FindByID(ctx, msg.ConversationID)
	if cerr == nil && conv != nil && conv.LastMessage.MessageID == msg.ID {
		if err := uc.convRepo.SetLastMessage(ctx, conv.ID, msg.Preview()); err != nil {
			logger.Log.Errorf(fmt.Sprintf("refresh last message of %s failed", conv.ID), err)
		}
	}
	unlock()

	uc.emitToConversation(msg.ConversationID, domain.EventMessageEdit, msg)
	return msg, nil
}

// Delete soft-deletes the caller's own message, removes any stored
// attachment and, when the message was the conversation's latest, recomputes
// the last-message snapshot from the store. Deleting an already deleted
// message is a no-op success.
func (uc *MessageUseCase) Delete(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "find message", err)
	}
	if msg == nil {
		return nil, errdef.New(errdef.KindNotFound, "message not found")
	}
	if msg.SenderID != userID {
		return nil, errdef.New(errdef.KindPermissionDenied, "you can only delete your own messages")
	}
	if msg.IsDeleted {
		return msg, nil
	}

	unlock := uc.locks.Acquire(msg.ConversationID)
	defer unlock()

	if err := uc.msgRepo.SoftDelete(ctx, msg.ID); err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "delete message", err)
	}
	if uc.media != nil && msg.File != nil && msg.File.PublicID != "" {
		if err := uc.media.Delete(ctx, msg.File.PublicID); err != nil {
			logger.Log.Errorf(fmt.Sprintf("remove attachment %s failed", msg.File.PublicID), err)
		}
	}
	msg.IsDeleted = true
	msg.Content = domain.DeletedPlaceholder
	msg.File = nil

	conv, err := uc.convRepo.FindByID(ctx, msg.ConversationID)
	if err == nil && conv != nil && conv.LastMessage.MessageID == msg.ID {
		if err := uc.recomputeLastMessage(ctx, conv.ID); err != nil {
			logger.Log.Errorf(fmt.Sprintf("recompute last message of %s failed", conv.ID), err)
		}
	}

	uc.emitToConversation(msg.ConversationID, domain.EventMessageDelete, map[string]string{
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
	})
	return msg, nil
}

// List pages through a conversation's messages in chronological order.
func (uc *MessageUseCase) List(ctx context.Context, conversationID, userID string, page, limit int) ([]domain.Message, domain.Pagination, error) {
	conv, err := uc.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, domain.Pagination{}, errdef.Wrap(errdef.KindInternal, "find conversation", err)
	}
	if conv == nil || !conv.IsActive {
		return nil, domain.Pagination{}, errdef.New(errdef.KindNotFound, "conversation not found")
	}
	if !conv.HasParticipant(userID) {
		return nil, domain.Pagination{}, errdef.New(errdef.KindAccessDenied, "you are not a participant of this conversation")
	}

	msgs, total, err := uc.msgRepo.FindPage(ctx, conversationID, page, limit)
	if err != nil {
		return nil, domain.Pagination{}, errdef.Wrap(errdef.KindInternal, "list messages", err)
	}
	// Stored newest-first for the skip/limit, displayed oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, domain.NewPagination(page, limit, total), nil
}

// MarkMessageRead records a per-message read receipt for userID and advances
// the conversation read cursor when the message is newer than it. Repeat
// calls return the existing receipts unchanged.
func (uc *MessageUseCase) MarkMessageRead(ctx context.Context, messageID, userID string) ([]domain.ReadReceipt, error) {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "find message", err)
	}
	if msg == nil {
		return nil, errdef.New(errdef.KindNotFound, "message not found")
	}
	conv, err := uc.convRepo.FindByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "find conversation", err)
	}
	if conv == nil || !conv.IsActive || !conv.HasParticipant(userID) {
		return nil, errdef.New(errdef.KindAccessDenied, "you are not a participant of this conversation")
	}
	if msg.SenderID == userID || msg.HasReader(userID) {
		return msg.ReadBy, nil
	}

	now := time.Now()
	receipt := domain.ReadReceipt{UserID: userID, ReadAt: now}
	if err := uc.msgRepo.AddReadReceipt(ctx, msg.ID, receipt); err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "update message", err)
	}
	msg.ReadBy = append(msg.ReadBy, receipt)
	if msg.Status == domain.MessageStatusSent {
		msg.Status = domain.MessageStatusDelivered
	}

	if p := conv.Participant(userID); p == nil || p.LastReadAt == nil || msg.CreatedAt.After(*p.LastReadAt) {
		if err := uc.convRepo.AdvanceCursor(ctx, conv.ID, userID, msg.ID, msg.CreatedAt); err != nil {
			logger.Log.Errorf(fmt.Sprintf("advance read cursor of %s failed", conv.ID), err)
		}
	}

	uc.emitToConversation(msg.ConversationID, domain.EventMessageRead, domain.ReadPayload{
		MessageID: msg.ID,
		ReadBy:    msg.ReadBy,
		ReadAt:    now.Format(time.RFC3339),
	})
	return msg.ReadBy, nil
}

// applyToConversation writes the last-message snapshot and bumps every other
// participant's unread counter. Caller holds the conversation lock.
func (uc *MessageUseCase) applyToConversation(ctx context.Context, msg *domain.Message) error {
	if err := uc.convRepo.SetLastMessage(ctx, msg.ConversationID, msg.Preview()); err != nil {
		return err
	}
	return uc.convRepo.IncrementUnread(ctx, msg.ConversationID, msg.SenderID)
}

// recomputeLastMessage rebuilds the snapshot from the latest surviving
// message, or clears it to the empty snapshot when none remains. Caller holds
// the conversation lock.
func (uc *MessageUseCase) recomputeLastMessage(ctx context.Context, conversationID string) error {
	latest, err := uc.msgRepo.FindLatestVisible(ctx, conversationID)
	if err != nil {
		return err
	}
	if latest == nil {
		return uc.convRepo.SetLastMessage(ctx, conversationID, domain.LastMessage{})
	}
	return uc.convRepo.SetLastMessage(ctx, conversationID, latest.Preview())
}

func (uc *MessageUseCase) emitToConversation(conversationID, event string, payload interface{}) {
	if uc.broadcaster == nil {
		return
	}
	uc.broadcaster.ToConversation(conversationID, event, payload)
}
