package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/lumahome/luma-core/internal/infrastructure/mqtt"
	"github.com/lumahome/luma-core/internal/registry"
)

// DefaultTick is the interval between simulated sensor updates.
const DefaultTick = 5 * time.Second

// Transport is the broker interface the simulation needs.
// Compatible with mqtt.Client.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by the simulation.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// envelope is the message body published on each state topic.
type envelope struct {
	Value     any    `json:"value"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Alert     string `json:"alert,omitempty"`
}

// controlPayload is the body received on /control topics.
type controlPayload struct {
	Command string `json:"command"`
}

// Simulation owns a table of fake devices and drives them: numeric
// sensors random-walk on every tick, cameras occasionally detect
// motion, and actuators respond to commands on their /control topics.
// Each instance is independent; nothing is process-global.
type Simulation struct {
	logger Logger
	qos    byte
	tick   time.Duration

	mu      sync.Mutex
	devices map[string]*device
	pub     Transport

	rng *rand.Rand
	now func() time.Time

	done chan struct{}
}

// New creates a simulation with the default household roster.
// A tick of zero selects DefaultTick.
func New(logger Logger, tick time.Duration, qos byte) *Simulation {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Simulation{
		logger:  logger,
		qos:     qos,
		tick:    tick,
		devices: defaultRoster(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Start subscribes to the control topics, publishes an initial state
// for every device, and launches the tick loop. Cancel ctx to stop.
func (s *Simulation) Start(ctx context.Context, transport Transport) error {
	s.mu.Lock()
	s.pub = transport
	topics := make([]string, 0, len(s.devices))
	for topic := range s.devices {
		topics = append(topics, topic)
	}
	s.mu.Unlock()

	for _, topic := range topics {
		control := mqtt.Topics{}.Control(topic)
		if err := transport.Subscribe(control, s.qos, s.handleControl); err != nil {
			return fmt.Errorf("subscribing to %s: %w", control, err)
		}
	}

	go s.loop(ctx)

	s.logger.Info("simulation started", "devices", len(topics), "tick", s.tick.String())
	return nil
}

// Done is closed when the tick loop has exited.
func (s *Simulation) Done() <-chan struct{} {
	return s.done
}

func (s *Simulation) loop(ctx context.Context) {
	defer close(s.done)

	// Announce initial states before the first tick.
	s.step()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation stopped")
			return
		case <-ticker.C:
			s.step()
		}
	}
}

// step advances every device one tick and publishes its state.
func (s *Simulation) step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for topic, dev := range s.devices {
		switch dev.deviceType {
		case registry.TypeTemperature:
			dev.value = round1(dev.value + s.rng.Float64()*0.6 - 0.3)
		case registry.TypeHumidity:
			dev.value = round1(dev.value + s.rng.Float64()*2 - 1)
		case registry.TypeCamera:
			if dev.running {
				dev.motion = s.rng.Float64() < 0.1
			} else {
				dev.motion = false
			}
		}
		s.publishStateLocked(topic, dev)
	}
}

// handleControl applies a command to the addressed device and
// republishes its state, changed or not.
func (s *Simulation) handleControl(topic string, payload []byte) error {
	base := mqtt.Topics{}.StateTopic(topic)

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[base]
	if !ok {
		return nil
	}

	var body controlPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		s.logger.Warn("ignoring malformed command", "topic", topic, "error", err)
		return nil
	}
	if body.Command == "" {
		return nil
	}

	if dev.apply(body.Command) {
		s.logger.Info("command applied", "topic", base, "command", body.Command)
	} else {
		s.logger.Warn("command rejected", "topic", base, "command", body.Command)
	}

	s.publishStateLocked(base, dev)
	return nil
}

// publishStateLocked publishes a device's current state envelope.
// Caller holds s.mu.
func (s *Simulation) publishStateLocked(topic string, dev *device) {
	env := envelope{
		Value:     dev.reportedValue(),
		Status:    "Online",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	if dev.deviceType == registry.TypeCamera && dev.motion {
		env.Alert = "Motion detected!"
	}

	payload, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("encoding state failed", "topic", topic, "error", err)
		return
	}

	if err := s.pub.Publish(topic, payload, s.qos, false); err != nil {
		s.logger.Error("publishing state failed", "topic", topic, "error", err)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
