package api

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/saadkhi/Side/internal/errors"
	"github.com/saadkhi/Side/internal/model"
)

const NoResponseData = "No response data received"

type ChatService struct {
	api Requester
}

func NewChatService(api Requester) *ChatService {
	return &ChatService{api: api}
}

// Send posts a message. With a nil conversationID the server starts a new
// conversation and returns its id.
func (s *ChatService) Send(ctx context.Context, message string, conversationID *int64) (*model.ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.MissingRequired("message")
	}

	var resp model.ChatResponse
	if err := s.api.Post(ctx, "/chat/", model.ChatRequest{Message: message, ConversationID: conversationID}, &resp); err != nil {
		return nil, err
	}
	if resp.ConversationID == 0 {
		return nil, apperrors.New(apperrors.ErrCodeServer, NoResponseData)
	}
	return &resp, nil
}

func (s *ChatService) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := s.api.Get(ctx, "/conversations/", &convs); err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	return convs, nil
}

func (s *ChatService) Conversation(ctx context.Context, id int64) (*model.ConversationDetail, error) {
	var detail model.ConversationDetail
	if err := s.api.Get(ctx, conversationPath(id), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, id int64) error {
	return s.api.Delete(ctx, conversationPath(id))
}

func conversationPath(id int64) string {
	return fmt.Sprintf("/conversations/%d/", id)
}
