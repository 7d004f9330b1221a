package persona

// DefaultID names the seeded farm assistant profile.
const DefaultID = "farm-assistant"

// Persona captures an assistant profile and the canned lines it answers with.
type Persona struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Title           string   `json:"title" yaml:"title"`
	Tagline         string   `json:"tagline,omitempty" yaml:"tagline"`
	OpeningLine     string   `json:"openingLine" yaml:"openingLine"`
	VoiceTranscript string   `json:"voiceTranscript" yaml:"voiceTranscript"` // canned capture result
	VoiceReply      string   `json:"voiceReply" yaml:"voiceReply"`
	EchoTemplate    string   `json:"echoTemplate" yaml:"echoTemplate"` // {text} is the user's draft
	Expertise       []string `json:"expertise,omitempty" yaml:"expertise"`
}

// Seed provides the default assistant profile.
func Seed() []Persona {
	return []Persona{
		{
			ID:              DefaultID,
			Name:            "Farm Assistant",
			Title:           "Your AI farming expert",
			Tagline:         "Ask about crops, soil, markets and schemes",
			OpeningLine:     "Ready to start conversation! Your AI assistant is ready!",
			VoiceTranscript: "Voice message transcribed: How can I improve my crop yield?",
			VoiceReply:      "Great question! To improve crop yield, consider soil testing, proper irrigation, and using quality fertilizers. Would you like specific recommendations for your crop type?",
			EchoTemplate:    `I understand you said: "{text}". How can I help you with your farming needs today?`,
			Expertise:       []string{"crop yield", "irrigation", "soil health", "fertilizers"},
		},
	}
}

// WithDefaults fills empty canned lines from the seeded profile.
func (p Persona) WithDefaults() Persona {
	base := Seed()[0]
	if p.Name == "" {
		p.Name = base.Name
	}
	if p.VoiceTranscript == "" {
		p.VoiceTranscript = base.VoiceTranscript
	}
	if p.VoiceReply == "" {
		p.VoiceReply = base.VoiceReply
	}
	if p.EchoTemplate == "" {
		p.EchoTemplate = base.EchoTemplate
	}
	return p
}
