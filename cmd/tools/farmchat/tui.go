package main

import (
	"github.com/spf13/cobra"

	"github.com/zhouzirui/farm-assistant/backend/internal/tui"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Chat with the assistant in an interactive terminal panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.setup(nil, nil)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			session, err := env.chatSvc.CreateSession(ctx, env.assistant.ID)
			if err != nil {
				return err
			}
			p, err := env.chatSvc.Panel(ctx, session.ID)
			if err != nil {
				return err
			}

			title := env.assistant.Name
			if env.assistant.Title != "" {
				title += " · " + env.assistant.Title
			}
			return tui.Run(ctx, p, tui.Options{Title: title})
		},
	}
}
