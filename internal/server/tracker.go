package server

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
)

// TrackerSettings are read from the config store on every call so edits
// take effect without a restart.
type TrackerSettings struct {
	Timeout   time.Duration
	Threshold int
	MaxLive   int
}

func settingsFrom(s *Store) TrackerSettings {
	return TrackerSettings{
		Timeout:   time.Duration(s.Number(KeyComboTimeout, 10) * float64(time.Second)),
		Threshold: int(s.Number(KeyComboThreshold, 3)),
		MaxLive:   int(s.Number(KeyMaxCombo, 5)),
	}
}

type chatCombo struct {
	text    string
	entries int
	expires time.Time
	live    bool
}

// Tracker counts repeated chat lines and turns them into combo events. It is
// not safe for concurrent use; the hub owns it.
type Tracker struct {
	combos []*chatCombo
	live   int
	emotes map[string]string
	fold   cases.Caser
}

// NewTracker returns a tracker. emotes maps an emote name to its image URL.
func NewTracker(emotes map[string]string) *Tracker {
	return &Tracker{emotes: emotes, fold: cases.Fold()}
}

var punctuation = strings.NewReplacer(".", "", ",", "", "!", "", "?", "", ":", "")

// same reports whether a chat line repeats a combo. Single words compare
// case-insensitively; multi-word lines also ignore punctuation.
func (t *Tracker) same(combo, line string) bool {
	if strings.Contains(line, " ") {
		combo = punctuation.Replace(combo)
		line = punctuation.Replace(line)
	}
	return t.fold.String(combo) == t.fold.String(line)
}

// Read counts one chat line and returns the events it causes.
func (t *Tracker) Read(line string, now time.Time, s TrackerSettings) []protocol.Envelope {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	var out []protocol.Envelope
	found := false
	for _, c := range t.combos {
		if !t.same(c.text, line) {
			continue
		}
		found = true
		c.entries++
		c.expires = now.Add(s.Timeout)
		out = append(out, t.promote(c, s)...)
	}
	if found {
		return out
	}
	// A first sighting is never a combo, whatever the threshold.
	t.combos = append(t.combos, &chatCombo{text: line, entries: 1, expires: now.Add(s.Timeout)})
	return nil
}

func (t *Tracker) promote(c *chatCombo, s TrackerSettings) []protocol.Envelope {
	if c.entries < s.Threshold {
		return nil
	}
	if c.live {
		return envelopes(protocol.EvtComboUpdate, protocol.ComboUpdate{Text: c.text, Combo: c.entries})
	}
	if t.live >= s.MaxLive {
		return nil
	}
	c.live = true
	t.live++
	return envelopes(protocol.EvtComboCreate, protocol.ComboCreate{
		Text:  c.text,
		Combo: c.entries,
		Emote: t.parts(c.text),
	})
}

// Sweep expires combos whose timeout passed.
func (t *Tracker) Sweep(now time.Time) []protocol.Envelope {
	var out []protocol.Envelope
	kept := t.combos[:0]
	for _, c := range t.combos {
		if c.expires.After(now) {
			kept = append(kept, c)
			continue
		}
		if c.live {
			t.live--
			out = append(out, envelopes(protocol.EvtComboRemove, protocol.ComboRemove{Text: c.text})...)
		}
	}
	t.combos = kept
	return out
}

// Live returns the number of combos currently on screen.
func (t *Tracker) Live() int { return t.live }

// parts splits text into emote and text parts. Adjacent words that are not
// emotes stay together as one text part.
func (t *Tracker) parts(text string) []protocol.EmotePart {
	var parts []protocol.EmotePart
	var words []string
	flush := func() {
		if len(words) > 0 {
			parts = append(parts, protocol.EmotePart{Type: protocol.PartText, Value: strings.Join(words, " ")})
			words = nil
		}
	}
	for _, w := range strings.Fields(text) {
		url, ok := t.emotes[w]
		if !ok {
			words = append(words, w)
			continue
		}
		flush()
		parts = append(parts, protocol.EmotePart{Type: protocol.PartEmote, Value: url, Text: w})
	}
	flush()
	return parts
}

func envelopes(event string, data any) []protocol.Envelope {
	env, err := protocol.NewEnvelope(event, data)
	if err != nil {
		return nil
	}
	return []protocol.Envelope{env}
}
