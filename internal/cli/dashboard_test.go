package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/combo-overlay/internal/client"
	"github.com/DoyleJ11/combo-overlay/internal/mirror"
	"github.com/DoyleJ11/combo-overlay/internal/protocol"
	"github.com/DoyleJ11/combo-overlay/internal/render"
	"github.com/DoyleJ11/combo-overlay/internal/server"
)

type sentMsg struct {
	event string
	data  any
}

type recorder struct{ msgs []sentMsg }

func (r *recorder) Send(event string, data any) {
	r.msgs = append(r.msgs, sentMsg{event, data})
}

func newTestRepl(t *testing.T) (*repl, *recorder, *bytes.Buffer, *int) {
	t.Helper()
	form := render.NewMemory(stockKeys...)
	out := &recorder{}
	dash := mirror.NewDashboard(form, out, nil, mirror.DefaultDashboardOptions())
	router := client.NewRouter(zap.NewNop())
	dash.Register(router)
	env, err := protocol.NewEnvelope(protocol.EvtConfig, server.DefaultSettings())
	require.NoError(t, err)
	require.True(t, router.Dispatch(env))

	var buf bytes.Buffer
	connects := 0
	r := &repl{
		ctx:  context.Background(),
		form: form,
		dash: dash,
		post: func(f func()) { f() },
		out:  &buf,
		connect: func(context.Context) error {
			connects++
			return nil
		},
	}
	return r, out, &buf, &connects
}

func TestRepl_SetAndSubmit(t *testing.T) {
	r, out, buf, _ := newTestRepl(t)

	require.NoError(t, r.exec("set combo_threshold 4"))
	require.NoError(t, r.exec("submit"))

	require.Len(t, out.msgs, 1)
	assert.Equal(t, protocol.EvtConfigSet, out.msgs[0].event)
	assert.Equal(t, protocol.ConfigSet{Key: "combo_threshold", Value: protocol.Number(4)}, out.msgs[0].data)
	assert.Contains(t, buf.String(), "sent 1 change(s)")

	v, _ := r.dash.Get("combo_threshold")
	assert.Equal(t, protocol.Number(4), v)
}

func TestRepl_CheckEnablesDependentField(t *testing.T) {
	r, out, _, _ := newTestRepl(t)

	err := r.exec("set user_id streamer")
	require.Error(t, err, "user_id is disabled until different_user is checked")

	require.NoError(t, r.exec("check different_user on"))
	require.Len(t, out.msgs, 1)
	assert.Equal(t, protocol.ConfigSet{Key: "different_user", Value: protocol.Bool(true)}, out.msgs[0].data)

	require.NoError(t, r.exec("set user_id streamer"))
	require.NoError(t, r.exec("submit"))
	require.Len(t, out.msgs, 2)
	assert.Equal(t, protocol.ConfigSet{Key: "user_id", Value: protocol.Text("streamer")}, out.msgs[1].data)
}

func TestRepl_ServerCommands(t *testing.T) {
	r, out, _, connects := newTestRepl(t)

	require.NoError(t, r.exec("reset"))
	require.NoError(t, r.exec("shutdown"))
	require.Len(t, out.msgs, 2)
	assert.Equal(t, protocol.EvtConfigReset, out.msgs[0].event)
	assert.Equal(t, protocol.EvtShutdown, out.msgs[1].event)

	require.NoError(t, r.exec("connect"))
	assert.Equal(t, 1, *connects)

	r.form.SetConnectEnabled(false)
	require.Error(t, r.exec("connect"))
	assert.Equal(t, 1, *connects)
}

func TestRepl_ShowAndDescribe(t *testing.T) {
	r, _, buf, _ := newTestRepl(t)

	require.NoError(t, r.exec("show"))
	shown := buf.String()
	assert.Contains(t, shown, `combo_timeout    "10"`)
	assert.Contains(t, shown, "different_user   false")
	assert.Contains(t, shown, `user_id          "" (disabled)`)

	buf.Reset()
	require.NoError(t, r.exec("describe max_combo"))
	assert.Equal(t, "Most combos shown at once.\n", buf.String())
}

func TestRepl_Errors(t *testing.T) {
	r, _, _, _ := newTestRepl(t)

	assert.Error(t, r.exec("bogus"))
	assert.Error(t, r.exec("check different_user maybe"))
	assert.Error(t, r.exec("set nope 1"))
	assert.NoError(t, r.exec("   "))
	assert.True(t, errors.Is(r.exec("quit"), errQuit))
}

func TestRepl_ServeStopsOnQuit(t *testing.T) {
	r, out, buf, _ := newTestRepl(t)

	err := r.serve(strings.NewReader("bogus\nreset\nquit\nshutdown\n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `error: unknown command "bogus"`)
	require.Len(t, out.msgs, 1, "lines after quit are not read")
}
