package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/clock"
	"github.com/zhouzirui/farm-assistant/backend/internal/config"
	"github.com/zhouzirui/farm-assistant/backend/internal/logging"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/farm-assistant/backend/internal/notification"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
)

type rootOptions struct {
	assistant string
	profiles  string
	logLevel  string
	logFile   string
	notify    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "farmchat",
		Short: "Terminal chat panel for the farm assistant",
		Long: `farmchat runs the farm assistant chat panel locally.

Available subcommands:
  tui   - interactive chat panel in the terminal
  demo  - scripted conversation printed to stdout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// A missing .env file is fine, the environment still applies.
			_ = godotenv.Load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.assistant, "assistant", "a", "", "assistant profile id (default from ASSISTANT_DEFAULT)")
	flags.StringVar(&opts.profiles, "profiles", "", "YAML file with extra assistant profiles")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of discarding them")
	flags.StringVar(&opts.notify, "notify", string(notification.ModeNone), "extra alert sink: log, desktop or none")

	cmd.AddCommand(newTUICmd(opts))
	cmd.AddCommand(newDemoCmd(opts))
	return cmd
}

// environment is what every subcommand needs to open a panel.
type environment struct {
	cfg       *config.Config
	logger    *zap.Logger
	sched     *clock.Real
	chatSvc   *chat.Service
	assistant persona.Persona
}

func (e *environment) Close() {
	e.chatSvc.CloseAll()
	e.sched.Stop()
	_ = e.logger.Sync()
}

// setup loads configuration and builds the panel registry. extra is added to
// the configured notifier.
func (o *rootOptions) setup(extra panel.Notifier, adjust func(*panel.Config)) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if o.profiles != "" {
		cfg.Assistant.ProfilesPath = o.profiles
	}
	if o.assistant != "" {
		cfg.Assistant.DefaultID = o.assistant
	}

	logger := zap.NewNop()
	if o.logFile != "" {
		logger, err = logging.New(o.logLevel, cfg.Log.Development, o.logFile)
		if err != nil {
			return nil, err
		}
	}

	mode, err := notification.ParseMode(o.notify)
	if err != nil {
		return nil, err
	}
	var notifier panel.Notifier = notification.FromMode(mode, logger)
	if extra != nil {
		notifier = notification.Multi{notifier, extra}
	}

	profiles, err := cfg.Assistant.Profiles()
	if err != nil {
		return nil, fmt.Errorf("load assistant profiles: %w", err)
	}
	store := persona.NewMemoryStore(profiles)
	assistant, ok := store.FindByID(cfg.Assistant.DefaultID)
	if !ok {
		return nil, fmt.Errorf("assistant %q not found", cfg.Assistant.DefaultID)
	}

	panelCfg := cfg.Panel.Controller()
	if adjust != nil {
		adjust(&panelCfg)
	}

	sched := clock.NewReal()
	factory := chat.NewPanelFactory(chat.Options{
		Panel:     panelCfg,
		Greeting:  cfg.Panel.Greeting,
		Scheduler: sched,
		Notifier:  notifier,
		Logger:    logger,
	})

	return &environment{
		cfg:       cfg,
		logger:    logger,
		sched:     sched,
		chatSvc:   chat.NewService(store, factory, logger.Named("chat")),
		assistant: assistant,
	}, nil
}
