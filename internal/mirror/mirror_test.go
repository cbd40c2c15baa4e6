package mirror

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/combo-overlay/internal/client"
	"github.com/DoyleJ11/combo-overlay/internal/protocol"
	"github.com/DoyleJ11/combo-overlay/internal/render"
)

type sent struct {
	Event string
	Data  any
}

type recordingSender struct{ msgs []sent }

func (r *recordingSender) Send(event string, data any) {
	r.msgs = append(r.msgs, sent{Event: event, Data: data})
}

func dump(t *testing.T, raw string) protocol.ConfigDump {
	t.Helper()
	var d protocol.ConfigDump
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	return d
}

func TestApplyDump_ReplacesEverything(t *testing.T) {
	form := render.NewMemory("volume", "muted", "stale")
	m := New(form, &recordingSender{}, nil)

	m.ApplyDump(dump(t, `{"stale":"x","volume":"10"}`))
	m.ApplyDump(dump(t, `{"volume":"50","muted":false}`))

	assert.Equal(t, map[string]protocol.Value{
		"volume": protocol.Text("50"),
		"muted":  protocol.Bool(false),
	}, m.Snapshot())

	ctl, _ := form.Read("volume")
	assert.Equal(t, "50", ctl.Value)
	ctl, _ = form.Read("muted")
	assert.False(t, ctl.Checked)
}

func TestApplyDump_KeyWithoutControlIsKept(t *testing.T) {
	m := New(render.NewMemory(), &recordingSender{}, nil)
	m.ApplyDump(dump(t, `{"orphan":1}`))

	v, ok := m.Get("orphan")
	require.True(t, ok)
	assert.Equal(t, protocol.Number(1), v)
}

func TestApplyPatch_TouchesOnlyOneKey(t *testing.T) {
	form := render.NewMemory("volume", "muted")
	m := New(form, &recordingSender{}, nil)
	m.ApplyDump(dump(t, `{"volume":"50","muted":false}`))

	m.ApplyPatch("muted", protocol.Bool(true))

	assert.Equal(t, map[string]protocol.Value{
		"volume": protocol.Text("50"),
		"muted":  protocol.Bool(true),
	}, m.Snapshot())
	ctl, _ := form.Read("muted")
	assert.True(t, ctl.Checked)
}

func TestApplyPatch_KeepsDumpedKind(t *testing.T) {
	m := New(render.NewMemory("muted"), &recordingSender{}, nil)
	m.ApplyDump(dump(t, `{"muted":false}`))

	m.ApplyPatch("muted", protocol.Text("true"))

	v, _ := m.Get("muted")
	assert.Equal(t, protocol.Bool(true), v)
}

func TestApplyPatch_DropsValueOfWrongKind(t *testing.T) {
	form := render.NewMemory("muted", "combo_timeout")
	m := New(form, &recordingSender{}, nil)
	m.ApplyDump(dump(t, `{"muted":false,"combo_timeout":10}`))

	assert.False(t, m.ApplyPatch("muted", protocol.Text("")))
	assert.False(t, m.ApplyPatch("combo_timeout", protocol.Text("soon")))

	assert.Equal(t, map[string]protocol.Value{
		"muted":         protocol.Bool(false),
		"combo_timeout": protocol.Number(10),
	}, m.Snapshot())
	ctl, _ := form.Read("combo_timeout")
	assert.Equal(t, "10", ctl.Value)
}

func TestDashboard_IncompleteChangeKeepsCheckboxWorking(t *testing.T) {
	form := render.NewMemory("muted")
	out := &recordingSender{}
	d := NewDashboard(form, out, nil, DefaultDashboardOptions())
	r := client.NewRouter(nil)
	d.Register(r)

	r.Dispatch(protocol.Envelope{Event: protocol.EvtConfig, Data: json.RawMessage(`{"muted":false}`)})
	r.Dispatch(protocol.Envelope{Event: protocol.EvtConfigChange, Data: json.RawMessage(`{"key":"muted"}`)})
	r.Dispatch(protocol.Envelope{Event: protocol.EvtConfigChange, Data: json.RawMessage(`{"key":"muted","value":null}`)})
	r.Dispatch(protocol.Envelope{Event: protocol.EvtConfigChange, Data: json.RawMessage(`{"key":"muted","value":"maybe"}`)})

	v, _ := d.Get("muted")
	require.Equal(t, protocol.Bool(false), v)
	assert.Equal(t, protocol.KindBool, v.Kind())

	form.Check("muted", true)
	assert.Equal(t, 1, d.Submit())
	assert.Equal(t, []sent{
		{Event: protocol.EvtConfigSet, Data: protocol.ConfigSet{Key: "muted", Value: protocol.Bool(true)}},
	}, out.msgs)
}

func TestSubmitLocalEdits_SendsOnlyDifferences(t *testing.T) {
	form := render.NewMemory("volume", "muted", "combo_timeout")
	out := &recordingSender{}
	m := New(form, out, nil)
	m.ApplyDump(dump(t, `{"volume":"50","muted":false,"combo_timeout":10}`))

	assert.Zero(t, m.SubmitLocalEdits())
	assert.Empty(t, out.msgs)

	form.Edit("volume", "75")
	form.Edit("combo_timeout", "12.5")
	assert.Equal(t, 2, m.SubmitLocalEdits())
	assert.ElementsMatch(t, []sent{
		{Event: protocol.EvtConfigSet, Data: protocol.ConfigSet{Key: "volume", Value: protocol.Text("75")}},
		{Event: protocol.EvtConfigSet, Data: protocol.ConfigSet{Key: "combo_timeout", Value: protocol.Number(12.5)}},
	}, out.msgs)

	// already mirrored; nothing more to send
	assert.Zero(t, m.SubmitLocalEdits())
	assert.Len(t, out.msgs, 2)
}

func TestSubmitLocalEdits_CheckboxIsOptimistic(t *testing.T) {
	form := render.NewMemory("volume", "muted")
	out := &recordingSender{}
	m := New(form, out, nil)
	m.ApplyDump(dump(t, `{"volume":"50","muted":false}`))

	form.Check("muted", true)
	require.Equal(t, 1, m.SubmitLocalEdits())

	assert.Equal(t, []sent{
		{Event: protocol.EvtConfigSet, Data: protocol.ConfigSet{Key: "muted", Value: protocol.Bool(true)}},
	}, out.msgs)
	v, _ := m.Get("muted")
	assert.Equal(t, protocol.Bool(true), v, "mirror updates before any confirmation")
}

func TestSubmitLocalEdits_SkipsUnparseableNumber(t *testing.T) {
	form := render.NewMemory("max_combo")
	out := &recordingSender{}
	m := New(form, out, nil)
	m.ApplyDump(dump(t, `{"max_combo":5}`))

	form.Edit("max_combo", "lots")
	assert.Zero(t, m.SubmitLocalEdits())
	v, _ := m.Get("max_combo")
	assert.Equal(t, protocol.Number(5), v)
}

func TestResetAndShutdown(t *testing.T) {
	out := &recordingSender{}
	m := New(render.NewMemory(), out, nil)
	m.ApplyDump(dump(t, `{"a":"b"}`))

	m.RequestReset()
	m.RequestShutdown()

	assert.Equal(t, []sent{
		{Event: protocol.EvtConfigReset, Data: protocol.Empty{}},
		{Event: protocol.EvtShutdown, Data: protocol.Empty{}},
	}, out.msgs)
	assert.Equal(t, map[string]protocol.Value{"a": protocol.Text("b")}, m.Snapshot())
}

func TestDashboard_RoutesServerEvents(t *testing.T) {
	form := render.NewMemory("different_user", "user_id")
	out := &recordingSender{}
	d := NewDashboard(form, out, nil, DefaultDashboardOptions())
	r := client.NewRouter(nil)
	d.Register(r)

	r.Dispatch(protocol.Envelope{Event: protocol.EvtConfig, Data: json.RawMessage(`{"different_user":false,"user_id":""}`)})
	ctl, _ := form.Read("user_id")
	assert.True(t, ctl.Disabled, "dependent field follows its toggle")

	r.Dispatch(protocol.Envelope{Event: protocol.EvtConfigChange, Data: json.RawMessage(`{"key":"user_id","value":"someone"}`)})
	v, _ := d.Get("user_id")
	assert.Equal(t, protocol.Text("someone"), v)

	// missing key is ignored
	r.Dispatch(protocol.Envelope{Event: protocol.EvtConfigChange, Data: json.RawMessage(`{"value":"x"}`)})
	assert.Len(t, d.Snapshot(), 2)

	r.Dispatch(protocol.Envelope{Event: protocol.EvtConnect, Data: json.RawMessage(`{"connected":true}`)})
	assert.False(t, form.ConnectEnabled())
	r.Dispatch(protocol.Envelope{Event: protocol.EvtConnect, Data: json.RawMessage(`{"connected":false}`)})
	assert.True(t, form.ConnectEnabled())
	assert.Empty(t, out.msgs)

	d.SessionLost()
	assert.False(t, form.ConnectEnabled())
}

func TestDashboard_ToggleEnablesAndSubmits(t *testing.T) {
	form := render.NewMemory("different_user", "user_id")
	out := &recordingSender{}
	d := NewDashboard(form, out, nil, DefaultDashboardOptions())
	d.ApplyDump(dump(t, `{"different_user":false,"user_id":""}`))

	form.Check("different_user", true)
	assert.Equal(t, 1, d.Toggle("different_user"))

	ctl, _ := form.Read("user_id")
	assert.False(t, ctl.Disabled)
	assert.Equal(t, []sent{
		{Event: protocol.EvtConfigSet, Data: protocol.ConfigSet{Key: "different_user", Value: protocol.Bool(true)}},
	}, out.msgs)

	d.Describe("user_id")
	assert.Equal(t, "Channel to read chat from.", form.Description())
	d.Describe("unknown")
	assert.Equal(t, "Channel to read chat from.", form.Description())
}
