package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/farm-assistant/backend/internal/notification"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
)

// Config aggregates every setting of the service.
type Config struct {
	Server    ServerConfig
	Panel     PanelConfig
	Notify    NotifyConfig
	Log       LogConfig
	Assistant AssistantConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	panelCfg, err := loadPanelConfig()
	if err != nil {
		return nil, err
	}

	notify, err := loadNotifyConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Panel:     panelCfg,
		Notify:    notify,
		Log:       logCfg,
		Assistant: loadAssistantConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as given.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// PanelConfig holds the simulated interaction timings.
type PanelConfig struct {
	CaptureDelay    time.Duration
	TranscribeDelay time.Duration
	VoiceReplyDelay time.Duration
	TextReplyDelay  time.Duration
	Language        string
	Greeting        bool
}

// Controller converts the settings into a panel.Config.
func (c PanelConfig) Controller() panel.Config {
	cfg := panel.DefaultConfig()
	cfg.CaptureDelay = c.CaptureDelay
	cfg.TranscribeDelay = c.TranscribeDelay
	cfg.VoiceReplyDelay = c.VoiceReplyDelay
	cfg.TextReplyDelay = c.TextReplyDelay
	cfg.Language = c.Language
	return cfg
}

func loadPanelConfig() (PanelConfig, error) {
	def := panel.DefaultConfig()

	capture, err := parseDurationEnv("PANEL_CAPTURE_DELAY", def.CaptureDelay)
	if err != nil {
		return PanelConfig{}, err
	}
	transcribe, err := parseDurationEnv("PANEL_TRANSCRIBE_DELAY", def.TranscribeDelay)
	if err != nil {
		return PanelConfig{}, err
	}
	voiceReply, err := parseDurationEnv("PANEL_VOICE_REPLY_DELAY", def.VoiceReplyDelay)
	if err != nil {
		return PanelConfig{}, err
	}
	textReply, err := parseDurationEnv("PANEL_TEXT_REPLY_DELAY", def.TextReplyDelay)
	if err != nil {
		return PanelConfig{}, err
	}
	greeting, err := parseBoolEnv("PANEL_GREETING", true)
	if err != nil {
		return PanelConfig{}, err
	}

	return PanelConfig{
		CaptureDelay:    capture,
		TranscribeDelay: transcribe,
		VoiceReplyDelay: voiceReply,
		TextReplyDelay:  textReply,
		Language:        getEnvOrDefault("PANEL_LANGUAGE", def.Language),
		Greeting:        greeting,
	}, nil
}

// NotifyConfig selects where panel alerts go.
type NotifyConfig struct {
	Mode notification.Mode
}

func loadNotifyConfig() (NotifyConfig, error) {
	mode, err := notification.ParseMode(os.Getenv("NOTIFY_MODE"))
	if err != nil {
		return NotifyConfig{}, fmt.Errorf("invalid NOTIFY_MODE: %w", err)
	}
	return NotifyConfig{Mode: mode}, nil
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level       string
	Development bool
}

func loadLogConfig() (LogConfig, error) {
	dev, err := parseBoolEnv("LOG_DEVELOPMENT", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:       strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Development: dev,
	}, nil
}

// AssistantConfig points at optional extra assistant profiles.
type AssistantConfig struct {
	ProfilesPath string
	DefaultID    string
}

// Profiles returns the seeded profiles merged with the YAML file, if any.
func (c AssistantConfig) Profiles() ([]persona.Persona, error) {
	profiles := persona.Seed()
	if c.ProfilesPath == "" {
		return profiles, nil
	}
	extra, err := persona.LoadFile(c.ProfilesPath)
	if err != nil {
		return nil, err
	}
	return persona.Merge(profiles, extra), nil
}

func loadAssistantConfig() AssistantConfig {
	return AssistantConfig{
		ProfilesPath: strings.TrimSpace(os.Getenv("ASSISTANT_PROFILES")),
		DefaultID:    getEnvOrDefault("ASSISTANT_DEFAULT", persona.DefaultID),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
