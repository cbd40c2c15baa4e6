package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMissingEvent = errors.New("envelope has no event tag")

// Server -> Client
const (
	EvtConfig       = "config"
	EvtConfigChange = "config_change"
	EvtConnect      = "connect"
	EvtComboCreate  = "combo_create"
	EvtComboUpdate  = "combo_update"
	EvtComboRemove  = "combo_remove"
)

// Client -> Server
const (
	EvtConfigSet   = "config_set"
	EvtConfigReset = "config_reset"
	EvtShutdown    = "shutdown"
)

// Envelope is the frame sent in both directions. Data is decoded by whoever
// handles Event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into an envelope. A nil data becomes {}.
func NewEnvelope(event string, data any) (Envelope, error) {
	if data == nil {
		data = Empty{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Decode parses a text frame into an envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}

// Encode is the inverse of Decode.
func Encode(env Envelope) ([]byte, error) {
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("{}")
	}
	return json.Marshal(env)
}

// Empty is the payload of config_reset and shutdown.
type Empty struct{}

// ConfigDump is the payload of a config event.
type ConfigDump map[string]Value

type ConfigChange struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// ConfigSet has the same shape as ConfigChange but travels client -> server.
type ConfigSet = ConfigChange

type Connect struct {
	Connected bool `json:"connected"`
}

type PartType string

const (
	PartText  PartType = "text"
	PartEmote PartType = "emote"
)

// EmotePart is one segment of a combo's display: literal text, or an image
// reference with its alt text.
type EmotePart struct {
	Type  PartType `json:"type"`
	Value string   `json:"value"`
	Text  string   `json:"text,omitempty"`
}

type ComboCreate struct {
	Text  string      `json:"text"`
	Combo int         `json:"combo"`
	Emote []EmotePart `json:"emote"`
}

type ComboUpdate struct {
	Text  string `json:"text"`
	Combo int    `json:"combo"`
}

type ComboRemove struct {
	Text string `json:"text"`
}
