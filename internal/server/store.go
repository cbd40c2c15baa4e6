package server

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
)

var ErrUnknownKey = errors.New("unknown config key")

// Stock config keys.
const (
	KeyComboTimeout   = "combo_timeout"
	KeyComboThreshold = "combo_threshold"
	KeyMaxCombo       = "max_combo"
	KeyDifferentUser  = "different_user"
	KeyUserID         = "user_id"
)

func DefaultSettings() map[string]protocol.Value {
	return map[string]protocol.Value{
		KeyComboTimeout:   protocol.Number(10),
		KeyComboThreshold: protocol.Number(3),
		KeyMaxCombo:       protocol.Number(5),
		KeyDifferentUser:  protocol.Bool(false),
		KeyUserID:         protocol.Text(""),
	}
}

type setting struct {
	current protocol.Value
	def     protocol.Value
}

// Store is the authoritative config. Every key has a default; the key set is
// fixed at construction. Owned by the hub loop.
type Store struct {
	settings map[string]*setting
}

func NewStore(defaults map[string]protocol.Value) *Store {
	s := &Store{settings: make(map[string]*setting, len(defaults))}
	for k, v := range defaults {
		s.settings[k] = &setting{current: v, def: v}
	}
	return s
}

func (s *Store) Dump() protocol.ConfigDump {
	d := make(protocol.ConfigDump, len(s.settings))
	for k, st := range s.settings {
		d[k] = st.current
	}
	return d
}

func (s *Store) Get(key string) (protocol.Value, bool) {
	st, ok := s.settings[key]
	if !ok {
		return protocol.Value{}, false
	}
	return st.current, true
}

// Set stores v for key, converted to the kind of key's default. It returns
// the stored value.
func (s *Store) Set(key string, v protocol.Value) (protocol.Value, error) {
	st, ok := s.settings[key]
	if !ok {
		return protocol.Value{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	v = protocol.Coerce(st.def.Kind(), v)
	if v.Kind() != st.def.Kind() {
		return protocol.Value{}, fmt.Errorf("config %q wants a %s, got %s", key, st.def.Kind(), v.Kind())
	}
	st.current = v
	return v, nil
}

// ResetAll puts every key back to its default.
func (s *Store) ResetAll() {
	for _, st := range s.settings {
		st.current = st.def
	}
}

// Number reads a number key, falling back to fallback when the key is
// missing or not numeric.
func (s *Store) Number(key string, fallback float64) float64 {
	v, ok := s.Get(key)
	if !ok {
		return fallback
	}
	if n, ok := v.Float(); ok {
		return n
	}
	return fallback
}
