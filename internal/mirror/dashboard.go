package mirror

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/combo-overlay/internal/client"
	"github.com/DoyleJ11/combo-overlay/internal/protocol"
	"github.com/DoyleJ11/combo-overlay/internal/render"
)

type DashboardOptions struct {
	// Toggles maps a checkbox key to the field it enables.
	Toggles map[string]string
	// Descriptions is the help text shown when a field is hovered.
	Descriptions map[string]string
}

// DefaultDashboardOptions matches the server's stock config keys.
func DefaultDashboardOptions() DashboardOptions {
	return DashboardOptions{
		Toggles: map[string]string{"different_user": "user_id"},
		Descriptions: map[string]string{
			"combo_timeout":   "Seconds a combo stays up after its last repeat.",
			"combo_threshold": "Repeats needed before a message becomes a combo.",
			"max_combo":       "Most combos shown at once.",
			"different_user":  "Read chat from a channel other than your own.",
			"user_id":         "Channel to read chat from.",
		},
	}
}

// configChange is protocol.ConfigChange with the value's presence visible.
type configChange struct {
	Key   string          `json:"key"`
	Value *protocol.Value `json:"value"`
}

// Dashboard is the config-editing client role: a Mirror plus the dashboard's
// extra controls.
type Dashboard struct {
	*Mirror
	form render.Form
	opts DashboardOptions
}

func NewDashboard(form render.Form, out Sender, log *zap.Logger, opts DashboardOptions) *Dashboard {
	return &Dashboard{
		Mirror: New(form, out, log),
		form:   form,
		opts:   opts,
	}
}

// Register binds the server events this role consumes.
func (d *Dashboard) Register(r *client.Router) {
	log := r.Logger()
	r.Handle(protocol.EvtConfig, client.Decode(log, func(dump protocol.ConfigDump) {
		d.ApplyDump(dump)
		d.syncToggles()
	}))
	r.Handle(protocol.EvtConfigChange, client.Decode(log, func(c configChange) {
		if c.Key == "" || c.Value == nil {
			log.Debug("ignoring incomplete config_change", zap.String("key", c.Key))
			return
		}
		if d.ApplyPatch(c.Key, *c.Value) {
			d.syncToggles()
		}
	}))
	r.Handle(protocol.EvtConnect, client.Decode(log, func(c protocol.Connect) {
		d.form.SetConnectEnabled(!c.Connected)
	}))
}

// SessionLost disables the connect control until the next session reports
// the server's connection status.
func (d *Dashboard) SessionLost() { d.form.SetConnectEnabled(false) }

// Submit is the form's submit action.
func (d *Dashboard) Submit() int { return d.SubmitLocalEdits() }

// Toggle handles a checkbox change: the dependent field follows the box and
// the edit is submitted straight away.
func (d *Dashboard) Toggle(key string) int {
	d.syncToggle(key)
	return d.SubmitLocalEdits()
}

// Describe handles hovering a described field.
func (d *Dashboard) Describe(key string) {
	if text, ok := d.opts.Descriptions[key]; ok {
		d.form.ShowDescription(text)
	}
}

func (d *Dashboard) syncToggles() {
	for key := range d.opts.Toggles {
		d.syncToggle(key)
	}
}

func (d *Dashboard) syncToggle(key string) {
	dep, ok := d.opts.Toggles[key]
	if !ok {
		return
	}
	ctl, ok := d.form.Read(key)
	if !ok {
		return
	}
	d.form.SetEnabled(dep, ctl.Checked)
}
