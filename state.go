package pinkit

import (
	"sync"
	"time"
)

type StateSource uint8

const (
	SourceNone StateSource = iota
	SourcePoll
	SourceCommand
)

func (ss StateSource) String() string {
	switch ss {
	case SourcePoll:
		return "poll"
	case SourceCommand:
		return "command"
	}
	return "none"
}

// PinState is the last known value of a single pin, together with
// when and how it was observed.
type PinState struct {
	Value       bool        `json:"value"`
	LastUpdated time.Time   `json:"last_updated"`
	Source      StateSource `json:"-"`
}

type ConnectionStatus struct {
	Connected     bool      `json:"connected"`
	LastError     string    `json:"last_error,omitempty"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
}

// Snapshot is an independent copy of the whole store, safe to keep
// and marshal after the store moved on.
type Snapshot struct {
	Pins       map[PinID]PinState `json:"pins"`
	Connection ConnectionStatus   `json:"connection"`
}

// StateStore caches the last known state of every registry pin plus
// device connectivity. It never talks to the device itself: the
// Poller and the Dispatcher write into it, everything else reads
// snapshots. All access is serialized on a single mutex, change
// listeners are fired outside of it.
type StateStore struct {
	mu   sync.Mutex
	pins map[PinID]PinState
	conn ConnectionStatus

	pinListeners  []func(PinID, bool)
	connListeners []func(bool)
}

func NewStateStore() *StateStore {
	st := &StateStore{
		pins: make(map[PinID]PinState, len(registry)),
	}
	for _, desc := range registry {
		st.pins[desc.ID] = PinState{}
	}
	return st
}

// OnPinChange registers a listener called whenever a pin value
// actually changes.
func (st *StateStore) OnPinChange(fn func(pin PinID, value bool)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pinListeners = append(st.pinListeners, fn)
}

// OnConnectionChange registers a listener called whenever the
// connected flag flips.
func (st *StateStore) OnConnectionChange(fn func(connected bool)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.connListeners = append(st.connListeners, fn)
}

func (st *StateStore) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	snap := Snapshot{
		Pins:       make(map[PinID]PinState, len(st.pins)),
		Connection: st.conn,
	}
	for id, state := range st.pins {
		snap.Pins[id] = state
	}
	return snap
}

type pinChange struct {
	pin   PinID
	value bool
}

// ApplyPoll stores a successful poll result. Pins missing from
// observed keep their previous state, so a partial response never
// erases known values.
func (st *StateStore) ApplyPoll(observed map[PinID]bool, t time.Time) {
	st.mu.Lock()

	var changes []pinChange
	for id, value := range observed {
		prev, found := st.pins[id]
		if !found {
			continue
		}
		if prev.Source == SourceNone || prev.Value != value {
			changes = append(changes, pinChange{pin: id, value: value})
		}
		st.pins[id] = PinState{Value: value, LastUpdated: t, Source: SourcePoll}
	}
	connFlipped := !st.conn.Connected
	st.conn = ConnectionStatus{Connected: true, LastSuccessAt: t}

	st.mu.Unlock()

	st.notify(changes, connFlipped, true)
}

// ApplyPollFailure records a failed poll. Pin states are left alone,
// stale values beat no values.
func (st *StateStore) ApplyPollFailure(reason string, t time.Time) {
	st.mu.Lock()
	connFlipped := st.conn.Connected
	st.conn.Connected = false
	st.conn.LastError = reason
	st.mu.Unlock()

	st.notify(nil, connFlipped, false)
}

// ApplyCommandResult stores the outcome of a set command. Successful
// commands update the pin exactly like a poll observation would,
// failed ones only mark the connection as broken.
func (st *StateStore) ApplyCommandResult(pin PinID, value bool, ok bool, reason string, t time.Time) {
	st.mu.Lock()

	var changes []pinChange
	connFlipped := false
	if ok {
		prev, found := st.pins[pin]
		if found {
			if prev.Source == SourceNone || prev.Value != value {
				changes = append(changes, pinChange{pin: pin, value: value})
			}
			st.pins[pin] = PinState{Value: value, LastUpdated: t, Source: SourceCommand}
		}
		connFlipped = !st.conn.Connected
		st.conn = ConnectionStatus{Connected: true, LastSuccessAt: t}
	} else {
		connFlipped = st.conn.Connected
		st.conn.Connected = false
		st.conn.LastError = reason
	}

	st.mu.Unlock()

	st.notify(changes, connFlipped, ok)
}

func (st *StateStore) notify(changes []pinChange, connFlipped bool, connected bool) {
	st.mu.Lock()
	pinFns := append([]func(PinID, bool){}, st.pinListeners...)
	connFns := append([]func(bool){}, st.connListeners...)
	st.mu.Unlock()

	for _, change := range changes {
		for _, fn := range pinFns {
			fn(change.pin, change.value)
		}
	}
	if connFlipped {
		for _, fn := range connFns {
			fn(connected)
		}
	}
}
