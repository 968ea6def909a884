package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/saadkhi/Side/internal/errors"
	"github.com/saadkhi/Side/internal/model"
	"github.com/saadkhi/Side/internal/repository"
	"github.com/saadkhi/Side/internal/util"
)

const (
	titleMaxRunes  = 50
	logPreviewSize = 120
)

type ChatService struct {
	convRepo  repository.ConversationRepository
	msgRepo   repository.MessageRepository
	responder Responder
	now       func() time.Time
}

func NewChatService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	responder Responder,
) *ChatService {
	if responder == nil {
		responder = FallbackResponder{}
	}
	return &ChatService{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		responder: responder,
		now:       time.Now,
	}
}

// Send records the user's message and the assistant's answer. Without a
// conversation id a new conversation is started, titled after the message.
func (s *ChatService) Send(ctx context.Context, userID int64, req model.ChatRequest) (*model.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apperrors.ValidationError("Message cannot be empty")
	}

	conv, err := s.conversationFor(ctx, userID, req.ConversationID, message)
	if err != nil {
		return nil, err
	}

	if _, err := s.msgRepo.Create(ctx, model.CreateMessageParams{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        message,
	}); err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Int64("conversationId", conv.ID).
		Str("message", util.Truncate(message, logPreviewSize)).
		Msg("received message")

	answer, err := s.responder.Respond(ctx, message)
	if err != nil {
		log.Error().Err(err).Int64("conversationId", conv.ID).Msg("model call failed, falling back")
		answer = FallbackAnswer(message)
	}

	if _, err := s.msgRepo.Create(ctx, model.CreateMessageParams{
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        answer,
	}); err != nil {
		return nil, apperrors.Database(err)
	}

	if err := s.convRepo.Touch(ctx, conv.ID, s.now()); err != nil {
		log.Warn().Err(err).Int64("conversationId", conv.ID).Msg("failed to update conversation timestamp")
	}

	return &model.ChatResponse{Response: answer, ConversationID: conv.ID}, nil
}

func (s *ChatService) conversationFor(ctx context.Context, userID int64, id *int64, message string) (*model.Conversation, error) {
	if id != nil {
		conv, err := s.convRepo.FindByID(ctx, *id, userID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if conv == nil {
			return nil, apperrors.NotFound("Conversation")
		}
		return conv, nil
	}

	conv, err := s.convRepo.Create(ctx, model.CreateConversationParams{
		UserID: userID,
		Title:  util.Title(message, titleMaxRunes),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	log.Info().Int64("conversationId", conv.ID).Int64("userId", userID).Msg("conversation started")
	return conv, nil
}

func (s *ChatService) Conversations(ctx context.Context, userID int64) ([]model.Conversation, error) {
	convs, err := s.convRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return convs, nil
}

func (s *ChatService) Conversation(ctx context.Context, userID, id int64) (*model.ConversationDetail, error) {
	conv, err := s.convRepo.FindByID(ctx, id, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}

	msgs, err := s.msgRepo.FindByConversationID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return &model.ConversationDetail{Conversation: *conv, Messages: msgs}, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, userID, id int64) error {
	deleted, err := s.convRepo.Delete(ctx, id, userID)
	if err != nil {
		return apperrors.Database(err)
	}
	if !deleted {
		return apperrors.NotFound("Conversation")
	}
	log.Info().Int64("conversationId", id).Int64("userId", userID).Msg("conversation deleted")
	return nil
}
