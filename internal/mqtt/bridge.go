package mqtt

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/energy"
	"github.com/sweeney/energy-dashboard/internal/engine"
)

// Forward publishes every update from updates until ctx is done or the
// channel closes. Publish failures are logged and skipped.
func Forward(ctx context.Context, updates <-chan engine.Update, pub Publisher, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := pub.PublishUpdate(u); err != nil {
				log.Warn("publish update failed", zap.String("kind", string(u.Kind)), zap.Error(err))
			}
		}
	}
}

// HandleToggle applies the toggle command received on topic. Malformed
// topics and unknown ids are logged and ignored.
func HandleToggle(t Toggler, topic string, log *zap.Logger) {
	id, err := ParseToggleTopic(topic)
	if err != nil {
		log.Warn("ignoring toggle command", zap.Error(err))
		return
	}
	res, err := t.ToggleAppliance(id)
	switch {
	case errors.Is(err, energy.ErrNotFound):
		log.Warn("toggle command for unknown appliance", zap.Int("id", id))
	case err != nil:
		log.Error("toggle command failed", zap.Int("id", id), zap.Error(err))
	default:
		log.Info("toggle command applied", zap.Int("id", id), zap.String("status", string(res.Appliance.Status)))
	}
}
