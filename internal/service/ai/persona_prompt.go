package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
)

// PromptTemplate holds per-profile context rules.
type PromptTemplate struct {
	SystemPrompt string
	ContextRules []string
}

// PersonaPromptManager builds system prompts for assistant profiles.
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a prompt manager with the built-in templates.
func NewPersonaPromptManager() *PersonaPromptManager {
	return &PersonaPromptManager{
		templates: map[string]*PromptTemplate{
			persona.DefaultID: {
				SystemPrompt: "You are a friendly agricultural assistant inside a farmer's mobile app.",
				ContextRules: []string{
					"Answer in short, practical sentences",
					"Prefer advice a smallholder can act on this season",
					"Ask about the crop type when a recommendation depends on it",
				},
			},
		},
	}
}

// BuildSystemPrompt renders the system message for p.
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	template, ok := pm.templates[p.ID]
	if !ok {
		return fmt.Sprintf("You are %s, %s.", p.Name, strings.ToLower(p.Title))
	}

	var b strings.Builder
	b.WriteString(template.SystemPrompt)
	fmt.Fprintf(&b, "\nName: %s\nRole: %s", p.Name, p.Title)
	if len(p.Expertise) > 0 {
		fmt.Fprintf(&b, "\nExpertise: %s", strings.Join(p.Expertise, ", "))
	}
	if len(template.ContextRules) > 0 {
		b.WriteString("\nRules:\n- ")
		b.WriteString(strings.Join(template.ContextRules, "\n- "))
	}
	return b.String()
}
