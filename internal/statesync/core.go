package statesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lumahome/luma-core/internal/infrastructure/mqtt"
	"github.com/lumahome/luma-core/internal/registry"
	"github.com/lumahome/luma-core/internal/threshold"
)

// defaultInboundBuffer sizes the inbound message queue. The paho
// library delivers messages on its own goroutines; the buffer absorbs
// bursts while the single dispatch goroutine drains sequentially.
const defaultInboundBuffer = 256

// DeviceStore is the interface the core needs from the registry.
type DeviceStore interface {
	GetByTopic(ctx context.Context, topic string) (*registry.Device, error)
	SetState(ctx context.Context, id string, state registry.State, status string, online bool, ts time.Time) error
	AppendReading(ctx context.Context, deviceID string, value float64, ts time.Time) error
	GetThreshold(ctx context.Context, deviceID string) (*registry.SensorThreshold, error)
	CreateDefaultThreshold(ctx context.Context, deviceID string) (*registry.SensorThreshold, error)
}

// Subscriber is the interface for receiving inbound device messages.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MetricsWriter mirrors numeric readings to a time-series store.
// May be nil when the mirror is disabled.
type MetricsWriter interface {
	WriteSensorReading(deviceID, deviceType, location string, value float64, timestamp time.Time)
}

// Logger defines the logging interface used by the core.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// inboundMessage pairs a topic with its raw payload for dispatch.
type inboundMessage struct {
	topic   string
	payload []byte
}

// Core is the synchronisation state machine between the MQTT transport
// and the device registry.
//
// All inbound messages funnel through one buffered channel drained by a
// single dispatch goroutine, so no two messages are ever processed
// concurrently against the registry. Persistence happens strictly
// before alerting and observer notification for each message.
type Core struct {
	store   DeviceStore
	metrics MetricsWriter
	logger  Logger
	qos     byte

	inbound chan inboundMessage
	obs     *observers

	// now is swappable for tests.
	now func() time.Time

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// NewCore creates a synchronisation core.
// metrics may be nil; qos applies to the wildcard subscription.
func NewCore(store DeviceStore, logger Logger, metrics MetricsWriter, qos byte) *Core {
	return &Core{
		store:   store,
		metrics: metrics,
		logger:  logger,
		qos:     qos,
		inbound: make(chan inboundMessage, defaultInboundBuffer),
		obs:     newObservers(),
		now:     time.Now,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the device topic namespace and launches the
// dispatch goroutine. It returns once the subscription is active;
// cancel ctx to stop processing.
func (c *Core) Start(ctx context.Context, sub Subscriber) error {
	topic := mqtt.Topics{}.AllDeviceStates()
	if err := sub.Subscribe(topic, c.qos, c.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	go c.dispatch(ctx)

	c.logger.Info("state sync started", "topic", topic)
	return nil
}

// HandleMessage enqueues an inbound message for sequential dispatch.
// It is the transport's receive callback and must not block: when the
// queue is full the message is dropped, the next periodic refresh from
// the device supersedes it.
func (c *Core) HandleMessage(topic string, payload []byte) error {
	select {
	case <-c.stopped:
		return ErrCoreStopped
	default:
	}

	msg := inboundMessage{topic: topic, payload: make([]byte, len(payload))}
	copy(msg.payload, payload)

	select {
	case c.inbound <- msg:
		return nil
	default:
		c.logger.Warn("inbound queue full, dropping message", "topic", topic)
		return nil
	}
}

// Subscribe registers an observer for state-change and alert events.
// Handlers run on the dispatch goroutine and must return quickly.
// The returned function unsubscribes.
func (c *Core) Subscribe(handler func(Event)) func() {
	return c.obs.add(handler)
}

// Done is closed when the dispatch goroutine has drained and exited.
func (c *Core) Done() <-chan struct{} {
	return c.done
}

// dispatch drains the inbound queue until ctx is cancelled.
// In-flight registry transactions complete before shutdown finalises.
func (c *Core) dispatch(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.stopOnce.Do(func() { close(c.stopped) })
			c.logger.Info("state sync stopped")
			return
		case msg := <-c.inbound:
			c.process(ctx, msg)
		}
	}
}

// process applies one inbound message to the registry.
//
// Order is fixed: resolve device, parse value, persist state, append
// reading (numeric sensors only), evaluate threshold, notify. A failure
// at any step drops the message without retry; the next inbound update
// supersedes it.
func (c *Core) process(ctx context.Context, msg inboundMessage) {
	topics := mqtt.Topics{}
	if topics.IsControl(msg.topic) || msg.topic == topics.SystemStatus() {
		return
	}

	env, err := DecodeEnvelope(msg.topic, msg.payload)
	if err != nil {
		c.logger.Warn("dropping malformed message", "topic", msg.topic, "error", err)
		return
	}

	device, err := c.store.GetByTopic(ctx, msg.topic)
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			// Expected noise from unrelated namespaces.
			c.logger.Debug("no device for topic", "topic", msg.topic)
			return
		}
		c.logger.Error("device lookup failed", "topic", msg.topic, "error", err)
		return
	}

	state, err := env.ParseValue(msg.topic, device.Type)
	if err != nil {
		c.logger.Warn("dropping unparseable value",
			"topic", msg.topic,
			"device_id", device.ID,
			"error", err,
		)
		return
	}

	ts := env.ReceivedAt(c.now().UTC())

	if err := c.store.SetState(ctx, device.ID, state, env.Status, true, ts); err != nil {
		c.logger.Error("persisting state failed", "device_id", device.ID, "error", err)
		return
	}

	// Refresh the local snapshot for observers.
	device.State = state
	device.Status = env.Status
	device.IsOnline = true
	device.LastUpdated = &ts

	if device.Type.IsNumericSensor() {
		value, _ := state.Numeric()
		if err := c.store.AppendReading(ctx, device.ID, value, ts); err != nil {
			c.logger.Error("appending reading failed", "device_id", device.ID, "error", err)
		} else if c.metrics != nil {
			c.metrics.WriteSensorReading(device.ID, string(device.Type), device.Location, value, ts)
		}

		c.evaluateThreshold(ctx, device, value, ts)
	}

	c.obs.notify(Event{
		Kind:      EventStateChanged,
		Device:    *device,
		Timestamp: ts,
	})
}

// evaluateThreshold checks a numeric reading against the device's
// alerting band and emits an alert event on violation. Persistence has
// already happened; nothing here can undo it.
func (c *Core) evaluateThreshold(ctx context.Context, device *registry.Device, value float64, ts time.Time) {
	band, err := c.store.GetThreshold(ctx, device.ID)
	if errors.Is(err, registry.ErrThresholdNotFound) {
		band, err = c.store.CreateDefaultThreshold(ctx, device.ID)
	}
	if err != nil {
		c.logger.Error("fetching threshold failed", "device_id", device.ID, "error", err)
		return
	}

	decision, err := threshold.Evaluate(value, band)
	if err != nil {
		// Inconsistent band: log, never fire a guessed alert.
		c.logger.Error("threshold evaluation failed", "device_id", device.ID, "error", err)
		return
	}

	if !decision.IsAlert() {
		return
	}

	c.logger.Info("threshold alert",
		"device_id", device.ID,
		"device_name", device.Name,
		"outcome", string(decision.Outcome),
		"value", value,
	)

	c.obs.notify(Event{
		Kind:      EventAlert,
		Device:    *device,
		Alert:     &decision,
		Timestamp: ts,
	})
}
