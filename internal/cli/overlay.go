package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/combo-overlay/internal/client"
	"github.com/DoyleJ11/combo-overlay/internal/combo"
	"github.com/DoyleJ11/combo-overlay/internal/overlay"
	"github.com/DoyleJ11/combo-overlay/internal/supervisor"
)

func newOverlayCmd(app *App) *cobra.Command {
	var altScreen bool

	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Show live chat combos",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []tea.ProgramOption{tea.WithContext(cmd.Context())}
			if altScreen {
				opts = append(opts, tea.WithAltScreen())
			}
			return runOverlay(cmd.Context(), app, tea.NewProgram(overlay.NewModel(), opts...))
		},
	}
	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "draw on the terminal's alternate screen")
	return cmd
}

func runOverlay(ctx context.Context, app *App, p *tea.Program) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := overlay.NewAdapter(p.Send)
	sup := supervisor.New(supervisor.Config{
		URL:           app.Config.WebSocketURL(),
		ProbeURL:      app.Config.ProbeURL(),
		RetryInterval: app.Config.RetryInterval,
		Indicator:     view,
		Logger:        app.Log,
	})
	router := client.NewRouter(app.Log)
	loop := client.New(sup.Events(), router, app.Log)
	reg := combo.NewRegistry(view, loop, app.Config.RemovalGrace, app.Log)
	reg.Register(router)
	loop.OnOpen(reg.Reset)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sup.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
