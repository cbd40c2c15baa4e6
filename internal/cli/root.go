package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/combo-overlay/internal/config"
	"github.com/DoyleJ11/combo-overlay/internal/logging"
)

type App struct {
	Config config.Config
	Log    *zap.Logger

	server   string
	addr     string
	logLevel string
	dev      bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "combosync",
		Short:        "Live config dashboard and combo overlay client",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the reference server
  combosync serve

  # Edit config against it
  combosync dashboard --server http://localhost:4150

  # Show the combo overlay
  combosync overlay
`),
	}

	cmd.PersistentFlags().StringVar(&app.server, "server", "", "server base URL (overrides COMBOSYNC_SERVER)")
	cmd.PersistentFlags().StringVar(&app.addr, "addr", "", "listen address for serve (overrides COMBOSYNC_ADDR)")
	cmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "debug, info, warn or error (overrides COMBOSYNC_LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&app.dev, "dev", false, "human-readable logs")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.Log != nil {
			_ = app.Log.Sync()
		}
		return nil
	}

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newDashboardCmd(app))
	cmd.AddCommand(newOverlayCmd(app))
	return cmd
}

func (app *App) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if app.server != "" {
		cfg.Server = app.server
	}
	if app.addr != "" {
		cfg.Addr = app.addr
	}
	if app.logLevel != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(app.logLevel)); err != nil {
			return err
		}
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, app.dev)
	if err != nil {
		return err
	}
	app.Config = cfg
	app.Log = log
	return nil
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
