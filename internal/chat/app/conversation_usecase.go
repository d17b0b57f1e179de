package app

import (
	"context"
	"errors"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg"
	errdef "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
)

// ConversationView is a conversation enriched with the data the client
// renders next to it: the computed unread count for the requesting user and
// summaries of every participant.
type ConversationView struct {
	Conversation *domain.Conversation          `json:"conversation"`
	Users        map[string]domain.UserSummary `json:"users,omitempty"`
}

// ConversationUseCase definition conversation business logic
type ConversationUseCase struct {
	userRepo repository.UserRepository
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
}

// NewConversationUseCase create ConversationUseCase
func NewConversationUseCase(userRepo repository.UserRepository, convRepo repository.ConversationRepository, msgRepo repository.MessageRepository) *ConversationUseCase {
	return &ConversationUseCase{
		userRepo: userRepo,
		convRepo: convRepo,
		msgRepo:  msgRepo,
	}
}

// CreatePrivate returns the private conversation between creator and
// participant, creating it if absent. The second return reports whether a new
// conversation was created. A soft-deleted pair is reactivated instead of
// duplicated.
func (uc *ConversationUseCase) CreatePrivate(ctx context.Context, creatorID, participantID string) (*ConversationView, bool, error) {
	if participantID == "" {
		return nil, false, errdef.New(errdef.KindValidation, "participantId is required")
	}
	if creatorID == participantID {
		return nil, false, errdef.New(errdef.KindInvalidOperation, "cannot create a conversation with yourself")
	}
	ok, err := uc.userRepo.AllExist(ctx, []string{creatorID, participantID})
	if err != nil {
		return nil, false, errdef.Wrap(errdef.KindInternal, "check participants", err)
	}
	if !ok {
		return nil, false, errdef.New(errdef.KindNotFound, "participant not found")
	}

	pairKey := domain.PrivatePairKey(creatorID, participantID)
	existing, err := uc.convRepo.FindPrivateByPairKey(ctx, pairKey)
	if err != nil {
		return nil, false, errdef.Wrap(errdef.KindInternal, "find private conversation", err)
	}
	if existing != nil {
		if !existing.IsActive {
			if err := uc.convRepo.SetActive(ctx, existing.ID, true); err != nil {
				return nil, false, errdef.Wrap(errdef.KindInternal, "reactivate conversation", err)
			}
			existing.IsActive = true
		}
		view, err := uc.buildView(ctx, existing, creatorID)
		return view, false, err
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:   uuid.New().String(),
		Type: domain.ConversationTypePrivate,
		Participants: []domain.Participant{
			{UserID: creatorID},
			{UserID: participantID},
		},
		IsActive:  true,
		PairKey:   pairKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.convRepo.Create(ctx, conv); err != nil {
		if errors.Is(err, repository.ErrDuplicatePair) {
			// A concurrent create won the unique index race. Converge on the
			// winner.
			winner, ferr := uc.convRepo.FindPrivateByPairKey(ctx, pairKey)
			if ferr != nil || winner == nil {
				return nil, false, errdef.Wrap(errdef.KindInternal, "resolve duplicate conversation", err)
			}
			view, verr := uc.buildView(ctx, winner, creatorID)
			return view, false, verr
		}
		return nil, false, errdef.Wrap(errdef.KindInternal, "create conversation", err)
	}

	view, err := uc.buildView(ctx, conv, creatorID)
	return view, true, err
}

// CreateGroup creates a group conversation. The creator is always a member
// and the sole initial admin. Groups need at least three distinct members.
func (uc *ConversationUseCase) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string, avatar *domain.Avatar) (*ConversationView, error) {
	if name == "" {
		return nil, errdef.New(errdef.KindValidation, "group name is required")
	}
	members := pkg.Dedup(append(memberIDs, creatorID))
	if len(members) < domain.MinGroupMembers {
		return nil, errdef.New(errdef.KindInvalidOperation, "a group needs at least 3 members")
	}
	ok, err := uc.userRepo.AllExist(ctx, members)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "check members", err)
	}
	if !ok {
		return nil, errdef.New(errdef.KindNotFound, "some members not found")
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:        uuid.New().String(),
		Type:      domain.ConversationTypeGroup,
		Name:      name,
		Admin:     []string{creatorID},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if avatar != nil {
		conv.Avatar = *avatar
	}
	for _, id := range members {
		conv.Participants = append(conv.Participants, domain.Participant{UserID: id})
	}
	if err := uc.convRepo.Create(ctx, conv); err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "create group", err)
	}
	return uc.buildView(ctx, conv, creatorID)
}

// AddMembers adds users to a group. Admin only. Joiners start with a zeroed
// read cursor so history before joining counts as unread.
func (uc *ConversationUseCase) AddMembers(ctx context.Context, conversationID, actingUserID string, memberIDs []string) (*ConversationView, error) {
	conv, err := uc.requireGroup(ctx, conversationID, actingUserID)
	if err != nil {
		return nil, err
	}
	if !conv.IsAdmin(actingUserID) {
		return nil, errdef.New(errdef.KindPermissionDenied, "only an admin can add members")
	}
	memberIDs = pkg.Dedup(memberIDs)
	if len(memberIDs) == 0 {
		return nil, errdef.New(errdef.KindValidation, "no members to add")
	}
	ok, err := uc.userRepo.AllExist(ctx, memberIDs)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "check members", err)
	}
	if !ok {
		return nil, errdef.New(errdef.KindNotFound, "some members not found")
	}
	var joined []domain.Participant
	for _, id := range memberIDs {
		if conv.HasParticipant(id) {
			continue
		}
		joined = append(joined, domain.Participant{UserID: id})
	}
	if len(joined) > 0 {
		// A scoped $push keeps concurrent unread bumps and last-message
		// writes on the same document intact.
		if err := uc.convRepo.AddParticipants(ctx, conversationID, joined); err != nil {
			return nil, errdef.Wrap(errdef.KindInternal, "add members", err)
		}
		conv.Participants = append(conv.Participants, joined...)
		conv.UpdatedAt = time.Now()
	}
	return uc.buildView(ctx, conv, actingUserID)
}

// RemoveMember removes a user from a group. Admin only, and the group may not
// shrink below its minimum size.
func (uc *ConversationUseCase) RemoveMember(ctx context.Context, conversationID, actingUserID, memberID string) (*ConversationView, error) {
	conv, err := uc.requireGroup(ctx, conversationID, actingUserID)
	if err != nil {
		return nil, err
	}
	if !conv.IsAdmin(actingUserID) {
		return nil, errdef.New(errdef.KindPermissionDenied, "only an admin can remove members")
	}
	if !conv.HasParticipant(memberID) {
		return nil, errdef.New(errdef.KindNotFound, "member not found in this group")
	}
	if len(conv.Participants)-1 < domain.MinGroupMembers {
		return nil, errdef.New(errdef.KindInvalidOperation, "group must keep at least 3 members")
	}
	if err := uc.convRepo.RemoveParticipant(ctx, conversationID, memberID); err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "remove member", err)
	}
	kept := conv.Participants[:0]
	for _, p := range conv.Participants {
		if p.UserID != memberID {
			kept = append(kept, p)
		}
	}
	conv.Participants = kept
	admins := conv.Admin[:0]
	for _, id := range conv.Admin {
		if id != memberID {
			admins = append(admins, id)
		}
	}
	conv.Admin = admins
	conv.UpdatedAt = time.Now()
	return uc.buildView(ctx, conv, actingUserID)
}

// List returns the user's active conversations ordered by latest activity,
// with the unread count computed from the user's read cursor.
func (uc *ConversationUseCase) List(ctx context.Context, userID string, page, limit int) ([]ConversationView, domain.Pagination, error) {
	convs, total, err := uc.convRepo.FindByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, domain.Pagination{}, errdef.Wrap(errdef.KindInternal, "list conversations", err)
	}
	views := make([]ConversationView, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		if err := uc.attachUnread(ctx, conv, userID); err != nil {
			return nil, domain.Pagination{}, err
		}
		view, err := uc.buildViewNoUnread(ctx, conv)
		if err != nil {
			return nil, domain.Pagination{}, err
		}
		views = append(views, *view)
	}
	return views, domain.NewPagination(page, limit, total), nil
}

// GetByID returns a single conversation. Missing, inactive and foreign
// conversations all read as not found so existence is never leaked.
func (uc *ConversationUseCase) GetByID(ctx context.Context, conversationID, userID string) (*ConversationView, error) {
	conv, err := uc.requireMember(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return uc.buildView(ctx, conv, userID)
}

// ActiveConversationIDs lists the ids of the user's active conversations,
// used to auto-join realtime rooms on connect.
func (uc *ConversationUseCase) ActiveConversationIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := uc.convRepo.FindActiveIDsByUser(ctx, userID)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "list conversation ids", err)
	}
	return ids, nil
}

// SoftDelete hides a conversation without destroying its history.
func (uc *ConversationUseCase) SoftDelete(ctx context.Context, conversationID, userID string) error {
	if _, err := uc.requireMember(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := uc.convRepo.SetActive(ctx, conversationID, false); err != nil {
		return errdef.Wrap(errdef.KindInternal, "deactivate conversation", err)
	}
	return nil
}

// MarkRead moves the user's read cursor to now and zeroes the unread counter.
// It returns how many messages were unread before the reset so the client can
// adjust its badge total without refetching.
func (uc *ConversationUseCase) MarkRead(ctx context.Context, conversationID, userID string) (int64, error) {
	conv, err := uc.requireMember(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	unreadBefore, err := uc.msgRepo.CountAfter(ctx, conversationID, cursorOf(conv, userID), userID)
	if err != nil {
		return 0, errdef.Wrap(errdef.KindInternal, "count unread", err)
	}
	if err := uc.convRepo.ResetRead(ctx, conversationID, userID, conv.LastMessage.MessageID, time.Now()); err != nil {
		return 0, errdef.Wrap(errdef.KindInternal, "reset read cursor", err)
	}
	return unreadBefore, nil
}

func (uc *ConversationUseCase) requireMember(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	conv, err := uc.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindInternal, "find conversation", err)
	}
	if conv == nil || !conv.IsActive || !conv.HasParticipant(userID) {
		return nil, errdef.New(errdef.KindNotFound, "conversation not found or access denied")
	}
	return conv, nil
}

func (uc *ConversationUseCase) requireGroup(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	conv, err := uc.requireMember(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv.Type != domain.ConversationTypeGroup {
		return nil, errdef.New(errdef.KindInvalidOperation, "not a group conversation")
	}
	return conv, nil
}

// attachUnread computes the cursor-based unread count. An unset cursor reads
// as the epoch so every message counts.
func (uc *ConversationUseCase) attachUnread(ctx context.Context, conv *domain.Conversation, userID string) error {
	n, err := uc.msgRepo.CountAfter(ctx, conv.ID, cursorOf(conv, userID), userID)
	if err != nil {
		return errdef.Wrap(errdef.KindInternal, "count unread", err)
	}
	conv.UnreadCount = int(n)
	return nil
}

func (uc *ConversationUseCase) buildView(ctx context.Context, conv *domain.Conversation, userID string) (*ConversationView, error) {
	if err := uc.attachUnread(ctx, conv, userID); err != nil {
		return nil, err
	}
	return uc.buildViewNoUnread(ctx, conv)
}

func (uc *ConversationUseCase) buildViewNoUnread(ctx context.Context, conv *domain.Conversation) (*ConversationView, error) {
	ids := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		ids = append(ids, p.UserID)
	}
	users, err := uc.userRepo.FindSummaries(ctx, ids)
	if err != nil {
		logger.Log.Errorf("populate participants failed", err)
		users = nil
	}
	return &ConversationView{Conversation: conv, Users: users}, nil
}

func cursorOf(conv *domain.Conversation, userID string) time.Time {
	if p := conv.Participant(userID); p != nil && p.LastReadAt != nil {
		return *p.LastReadAt
	}
	return time.Unix(0, 0)
}
