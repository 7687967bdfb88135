package engine

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sweeney/energy-dashboard/internal/energy"
	"github.com/sweeney/energy-dashboard/internal/telemetry"
)

// ErrDisposed is returned by mutations on a disposed Engine.
var ErrDisposed = errors.New("engine disposed")

// UpdateKind says what produced an Update.
type UpdateKind string

const (
	KindTick   UpdateKind = "tick"
	KindToggle UpdateKind = "toggle"
	KindFault  UpdateKind = "fault"
	// KindSnapshot is never published by the engine; transports use it to
	// send current state to a newly connected client.
	KindSnapshot UpdateKind = "snapshot"
)

// Update is published to subscribers after every state change.
type Update struct {
	Kind      UpdateKind
	Snapshot  energy.RealTime
	Breakdown []energy.TypePower // toggle only
	Toggle    *ToggleResult      // toggle only
	Err       error              // fault only
}

type updateJSON struct {
	Kind      UpdateKind         `json:"kind"`
	Snapshot  energy.RealTime    `json:"snapshot"`
	Breakdown []energy.TypePower `json:"breakdown,omitempty"`
	Toggle    *toggleJSON        `json:"toggle,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type toggleJSON struct {
	ID       int           `json:"id"`
	Name     string        `json:"name"`
	Status   energy.Status `json:"status"`
	Previous energy.Status `json:"previous"`
	Message  string        `json:"message"`
}

// MarshalJSON renders the wire form shared by the websocket and MQTT feeds.
func (u Update) MarshalJSON() ([]byte, error) {
	out := updateJSON{
		Kind:      u.Kind,
		Snapshot:  u.Snapshot,
		Breakdown: u.Breakdown,
	}
	out.Snapshot.Timestamp = out.Snapshot.Timestamp.UTC().Truncate(time.Second)
	if u.Toggle != nil {
		out.Toggle = &toggleJSON{
			ID:       u.Toggle.Appliance.ID,
			Name:     u.Toggle.Appliance.Name,
			Status:   u.Toggle.Appliance.Status,
			Previous: u.Toggle.Previous,
			Message:  u.Toggle.Message(),
		}
	}
	if u.Err != nil {
		out.Error = u.Err.Error()
	}
	return json.Marshal(out)
}

// Subscribe registers for updates. Updates arrive in publication order; if
// the buffer is full the update is dropped for this subscriber. The
// returned function unsubscribes and closes the channel.
func (e *Engine) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Update, buffer)

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			close(c)
			delete(e.subs, id)
		}
	}
}

func (e *Engine) publishLocked(u Update) {
	for _, ch := range e.subs {
		select {
		case ch <- u:
		default:
			telemetry.DroppedUpdates.Inc()
		}
	}
}
