package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
)

// ReplyRequest describes the user message an assistant reply answers.
type ReplyRequest struct {
	SessionID string
	Kind      chat.Kind
	Text      string
}

// Service produces assistant replies through an eino chat model.
type Service struct {
	chatModel model.BaseChatModel
	persona   persona.Persona
	prompts   *PersonaPromptManager
	logger    *zap.Logger
}

// NewService wires an assistant profile to a chat model.
func NewService(chatModel model.BaseChatModel, p persona.Persona, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		chatModel: chatModel,
		persona:   p,
		prompts:   NewPersonaPromptManager(),
		logger:    logger,
	}
}

// NewCannedService returns a Service backed by the profile's CannedModel.
func NewCannedService(p persona.Persona, logger *zap.Logger) *Service {
	return NewService(NewCannedModel(p), p, logger)
}

// Reply generates the assistant's answer to req.
func (s *Service) Reply(ctx context.Context, req ReplyRequest) (string, error) {
	response, err := s.chatModel.Generate(ctx, s.buildInput(req))
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	s.logger.Debug("generated reply",
		zap.String("session", req.SessionID),
		zap.String("persona", s.persona.ID),
		zap.String("kind", string(req.Kind)),
		zap.Int("length", len(response.Content)),
	)
	return response.Content, nil
}

func (s *Service) buildInput(req ReplyRequest) []*schema.Message {
	user := schema.UserMessage(req.Text)
	user.Name = string(req.Kind.Normalize())

	return []*schema.Message{
		schema.SystemMessage(s.prompts.BuildSystemPrompt(&s.persona)),
		user,
	}
}
