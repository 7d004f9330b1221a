package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
)

var (
	errNoUserMessage  = errors.New("no user message in input")
	errNoSystemPrompt = errors.New("no system prompt in input")
)

var _ model.BaseChatModel = (*CannedModel)(nil)

// CannedModel is a local chat model that answers from fixed templates keyed
// by the kind of the last user message. The user message's Name carries its
// chat.Kind; unknown kinds answer with the text template.
type CannedModel struct {
	templates map[chat.Kind]prompt.ChatTemplate
}

// NewCannedModel builds the reply templates for an assistant profile.
func NewCannedModel(p persona.Persona) *CannedModel {
	p = p.WithDefaults()
	return &CannedModel{
		templates: map[chat.Kind]prompt.ChatTemplate{
			chat.KindText:  prompt.FromMessages(schema.FString, schema.AssistantMessage(p.EchoTemplate, nil)),
			chat.KindVoice: prompt.FromMessages(schema.FString, schema.AssistantMessage(p.VoiceReply, nil)),
		},
	}
}

// Generate renders the reply for the last user message in input. The input
// must open with the assistant's system prompt.
func (m *CannedModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if len(input) == 0 || input[0] == nil || input[0].Role != schema.System || input[0].Content == "" {
		return nil, errNoSystemPrompt
	}
	user := lastUserMessage(input)
	if user == nil {
		return nil, errNoUserMessage
	}

	template, ok := m.templates[chat.Kind(user.Name).Normalize()]
	if !ok {
		template = m.templates[chat.KindText]
	}

	rendered, err := template.Format(ctx, map[string]any{"text": user.Content})
	if err != nil {
		return nil, fmt.Errorf("render canned reply: %w", err)
	}
	if len(rendered) == 0 {
		return nil, errors.New("canned template produced no message")
	}

	return schema.AssistantMessage(rendered[len(rendered)-1].Content, nil), nil
}

// Stream delivers the Generate result as a single-chunk stream.
func (m *CannedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func lastUserMessage(input []*schema.Message) *schema.Message {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			return input[i]
		}
	}
	return nil
}
