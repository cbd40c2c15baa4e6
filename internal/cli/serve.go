package cli

import (
	"github.com/spf13/cobra"

	"github.com/DoyleJ11/combo-overlay/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	var emotes map[string]string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference config and combo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := server.New(ctx, server.Options{
				Addr: app.Config.Addr,
				Routes: server.RouteOptions{
					WSPath:    app.Config.WSPath,
					ProbePath: app.Config.ProbePath,
				},
				Hub:    server.HubOptions{Emotes: emotes},
				Logger: app.Log,
			})
			return s.Run(ctx)
		},
	}
	cmd.Flags().StringToStringVar(&emotes, "emote", nil, "emote name=image URL, repeatable")
	return cmd
}
