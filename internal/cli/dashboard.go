package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/combo-overlay/internal/client"
	"github.com/DoyleJ11/combo-overlay/internal/mirror"
	"github.com/DoyleJ11/combo-overlay/internal/render"
	"github.com/DoyleJ11/combo-overlay/internal/server"
	"github.com/DoyleJ11/combo-overlay/internal/supervisor"
)

var errQuit = errors.New("quit")

var stockKeys = []string{
	server.KeyComboTimeout,
	server.KeyComboThreshold,
	server.KeyMaxCombo,
	server.KeyDifferentUser,
	server.KeyUserID,
}

func newDashboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Edit the server's config from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), app, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runDashboard(ctx context.Context, app *App, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	form := render.NewMemory(stockKeys...)
	sup := supervisor.New(supervisor.Config{
		URL:           app.Config.WebSocketURL(),
		ProbeURL:      app.Config.ProbeURL(),
		RetryInterval: app.Config.RetryInterval,
		Indicator:     form,
		Logger:        app.Log,
	})
	router := client.NewRouter(app.Log)
	dash := mirror.NewDashboard(form, sup, app.Log, mirror.DefaultDashboardOptions())
	dash.Register(router)
	loop := client.New(sup.Events(), router, app.Log)
	loop.OnClose(dash.SessionLost)

	r := &repl{
		ctx:  ctx,
		form: form,
		dash: dash,
		post: loop.Post,
		out:  out,
		connect: func(ctx context.Context) error {
			return postConnect(ctx, strings.TrimSuffix(app.Config.Server, "/")+"/connect")
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sup.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })

	// stdin reads cannot be interrupted, so the repl is not part of the group.
	replErr := make(chan error, 1)
	go func() {
		replErr <- r.serve(in)
		cancel()
	}()

	err := g.Wait()
	select {
	case rerr := <-replErr:
		if rerr != nil {
			return rerr
		}
	default:
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func postConnect(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("connect: %s", resp.Status)
	}
	return nil
}

// repl is the line-oriented dashboard. Every action that touches the mirror
// runs on the client loop via post.
type repl struct {
	ctx     context.Context
	form    *render.Memory
	dash    *mirror.Dashboard
	post    func(func())
	connect func(context.Context) error
	out     io.Writer
}

func (r *repl) serve(in io.Reader) error {
	sc := bufio.NewScanner(in)
	fmt.Fprintln(r.out, `type "help" for commands`)
	for sc.Scan() {
		if err := r.exec(sc.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(r.out, "error:", err)
		}
	}
	return sc.Err()
}

// do runs f on the loop and waits for it.
func (r *repl) do(f func()) {
	done := make(chan struct{})
	r.post(func() {
		f()
		close(done)
	})
	select {
	case <-done:
	case <-r.ctx.Done():
	}
}

const helpText = `commands:
  show                   list every field
  set <key> <value>      edit a field
  check <key> on|off     flip a checkbox (sent immediately)
  submit                 send edited fields
  describe <key>         show a field's help
  reset                  restore server defaults
  connect                ask the server to connect to chat
  shutdown               stop the server
  quit`

func (r *repl) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(r.out, helpText)

	case "quit", "exit":
		return errQuit

	case "show":
		r.do(func() {
			snap := r.dash.Snapshot()
			if r.form.Disconnected() {
				fmt.Fprintln(r.out, "(disconnected)")
			}
			for _, key := range stockKeys {
				ctl, _ := r.form.Read(key)
				v, ok := snap[key]
				var shown string
				switch {
				case !ok:
					shown = "-"
				case v.IsBool():
					shown = fmt.Sprintf("%t", ctl.Checked)
				default:
					shown = fmt.Sprintf("%q", ctl.Value)
				}
				if ctl.Disabled {
					shown += " (disabled)"
				}
				fmt.Fprintf(r.out, "%-16s %s\n", key, shown)
			}
		})

	case "set":
		if len(args) < 1 {
			return errors.New("usage: set <key> <value>")
		}
		key, value := args[0], strings.Join(args[1:], " ")
		var ok bool
		r.do(func() { ok = r.form.Edit(key, value) })
		if !ok {
			return fmt.Errorf("%s is not editable", key)
		}

	case "check":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			return errors.New("usage: check <key> on|off")
		}
		key, on := args[0], args[1] == "on"
		var ok bool
		var sent int
		r.do(func() {
			if ok = r.form.Check(key, on); ok {
				sent = r.dash.Toggle(key)
			}
		})
		if !ok {
			return fmt.Errorf("%s is not a checkbox", key)
		}
		fmt.Fprintf(r.out, "sent %d change(s)\n", sent)

	case "submit":
		var sent int
		r.do(func() { sent = r.dash.Submit() })
		fmt.Fprintf(r.out, "sent %d change(s)\n", sent)

	case "describe":
		if len(args) != 1 {
			return errors.New("usage: describe <key>")
		}
		var text string
		r.do(func() {
			r.dash.Describe(args[0])
			text = r.form.Description()
		})
		fmt.Fprintln(r.out, text)

	case "reset":
		r.do(r.dash.RequestReset)

	case "shutdown":
		r.do(r.dash.RequestShutdown)

	case "connect":
		var enabled bool
		r.do(func() { enabled = r.form.ConnectEnabled() })
		if !enabled {
			return errors.New("connect is unavailable: already connected or no session")
		}
		return r.connect(r.ctx)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

