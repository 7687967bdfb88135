package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/engine"
	"github.com/sweeney/energy-dashboard/internal/telemetry"
)

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 100

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string // empty generates "energy-dashboard-<uuid>"
	BufferSize int
	// OnToggle receives the topic of every toggle command. Nil disables
	// the command subscription.
	OnToggle func(topic string)
	Logger   *zap.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down, or while the breaker is open, are buffered
// and replayed in order on reconnect.
type RealPublisher struct {
	client   paho.Client
	breaker  *gobreaker.CircuitBreaker
	onToggle func(topic string)
	log      *zap.Logger

	mu            sync.Mutex
	buf           *replayBuffer
	connectedOnce bool
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// is not reachable within the connect timeout the publisher is still
// returned and keeps retrying in the background.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ClientID == "" {
		o.ClientID = "energy-dashboard-" + uuid.NewString()[:8]
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		onToggle: o.OnToggle,
		log:      o.Logger,
		buf:      newReplayBuffer(o.BufferSize, o.Logger),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mqtt-publish",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Warn("mqtt breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetKeepAlive(60*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("mqtt connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.log.Warn("mqtt broker not reachable yet, buffering", zap.String("broker", o.Broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// PublishUpdate sends a state update. QoS 0, not retained.
func (p *RealPublisher) PublishUpdate(u engine.Update) error {
	payload, err := FormatPayload(u)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish("update", bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event. QoS 1 so lifecycle events
// survive a flaky link.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish("system", bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the client currently holds a connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

func (p *RealPublisher) publish(kind string, msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.buffer(kind, msg)
		return nil
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.send(msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			p.buffer(kind, msg)
			return nil
		}
		telemetry.MQTTPublishes.WithLabelValues(kind, "error").Inc()
		return err
	}
	telemetry.MQTTPublishes.WithLabelValues(kind, "ok").Inc()
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) buffer(kind string, msg bufferedMsg) {
	msg.kind = kind
	p.mu.Lock()
	old, evicted := p.buf.push(msg)
	p.mu.Unlock()
	telemetry.MQTTPublishes.WithLabelValues(kind, "buffered").Inc()
	if evicted {
		telemetry.MQTTPublishes.WithLabelValues(old.kind, "dropped").Inc()
	}
}

// onConnect runs on every (re)connection: subscribe to commands, announce
// the reconnect, then replay whatever was buffered.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.log.Info("mqtt connected")

	if p.onToggle != nil {
		token := c.Subscribe(TopicToggle, 1, func(_ paho.Client, m paho.Message) {
			p.onToggle(m.Topic())
		})
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			p.log.Error("subscribe to toggle commands failed", zap.Error(token.Error()))
		}
	}

	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	pending, dropped := p.buf.drain()
	p.mu.Unlock()

	if dropped > 0 {
		p.log.Warn("buffered messages lost while offline", zap.Int("dropped", dropped))
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err := p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			p.log.Warn("publish reconnected event failed", zap.Error(err))
		}
	}
	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.Warn("replay buffered message failed", zap.String("topic", msg.topic), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		p.log.Info("replayed buffered messages", zap.Int("count", len(pending)))
	}
}
