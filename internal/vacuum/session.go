package vacuum

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/dyson360-bridge/internal/infrastructure/mqtt"
)

// DefaultCommandTimeout bounds how long a command waits for confirmation.
const DefaultCommandTimeout = 10 * time.Second

// Transport is the publish/subscribe connection to the robot's broker.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// Logger defines the logging interface used by the Session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener is called after every reconciled CURRENT-STATE with the state
// before and after it. Listeners run on the inbound message path and must
// not block.
type Listener func(prev, next State)

// Options configures a Session.
type Options struct {
	// Username is the robot serial. It selects the N223 topics.
	Username string

	// Transport carries messages to and from the robot.
	Transport Transport

	// Logger receives session diagnostics. Optional.
	Logger Logger

	// QoS is used for subscribe and publish. Default: 0
	QoS byte

	// CommandTimeout bounds command confirmation. Default: DefaultCommandTimeout
	CommandTimeout time.Duration

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// Session is the single owner of a robot's state.
//
// Thread Safety:
//   - Queries and commands are safe for concurrent use.
//   - HandleStatusMessage expects sequential delivery, which the MQTT
//     client's ordered mode provides.
type Session struct {
	username       string
	statusTopic    string
	commandTopic   string
	transport      Transport
	logger         Logger
	qos            byte
	commandTimeout time.Duration
	now            func() time.Time

	mu                 sync.Mutex
	state              State
	refreshPending     bool
	refreshRequestedAt time.Time
	waiters            map[uint64]chan State
	nextWaiterID       uint64

	listenersMu sync.RWMutex
	listeners   []Listener

	// commandSlot admits one command at a time.
	commandSlot chan struct{}
}

// NewSession creates a session with the default state. Nothing is sent
// until HandleConnect is called.
func NewSession(opts Options) *Session {
	topics := mqtt.Topics{}

	s := &Session{
		username:       opts.Username,
		statusTopic:    topics.DeviceStatus(opts.Username),
		commandTopic:   topics.DeviceCommand(opts.Username),
		transport:      opts.Transport,
		logger:         opts.Logger,
		qos:            opts.QoS,
		commandTimeout: opts.CommandTimeout,
		now:            opts.Now,
		state:          DefaultState(),
		waiters:        make(map[uint64]chan State),
		commandSlot:    make(chan struct{}, 1),
	}

	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.commandTimeout <= 0 {
		s.commandTimeout = DefaultCommandTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Username returns the robot serial the session is bound to.
func (s *Session) Username() string {
	return s.username
}

// CommandTimeout returns the configured confirmation timeout.
func (s *Session) CommandTimeout() time.Duration {
	return s.commandTimeout
}

// AddListener registers a callback for reconciled state changes.
func (s *Session) AddListener(l Listener) {
	if l == nil {
		return
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenersMu.Unlock()
}

// HandleConnect subscribes to the status topic and asks for the current
// state. It is called on every (re)connect; bursts of calls collapse into
// a single outstanding refresh.
func (s *Session) HandleConnect() error {
	if err := s.transport.Subscribe(s.statusTopic, s.qos, s.HandleStatusMessage); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotSubscribed, s.statusTopic, err)
	}

	s.logger.Info("subscribed to robot status", "topic", s.statusTopic)

	return s.RequestRefresh()
}

// HandleStatusMessage processes one payload from the status topic.
//
// Malformed payloads return an ErrMalformedStatus error and leave the
// snapshot untouched. Message types other than CURRENT-STATE are ignored.
func (s *Session) HandleStatusMessage(topic string, payload []byte) error {
	status, err := DecodeStatus(payload)
	if err != nil {
		return fmt.Errorf("status on %s: %w", topic, err)
	}

	if !status.IsCurrentState() {
		s.logger.Debug("ignoring status message", "topic", topic, "msg", status.Msg)
		return nil
	}

	s.reconcile(status)
	return nil
}

// RequestRefresh publishes REQUEST-CURRENT-STATE unless one is already
// outstanding. A refresh older than the command timeout counts as lost.
func (s *Session) RequestRefresh() error {
	s.mu.Lock()
	now := s.now()
	if s.refreshPending && now.Sub(s.refreshRequestedAt) < s.commandTimeout {
		s.mu.Unlock()
		s.logger.Debug("refresh already pending", "since", s.refreshRequestedAt)
		return nil
	}
	s.refreshPending = true
	s.refreshRequestedAt = now
	s.mu.Unlock()

	if err := s.publish(requestCurrentStateCommand()); err != nil {
		s.mu.Lock()
		if s.refreshRequestedAt.Equal(now) {
			s.refreshPending = false
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	return nil
}

// RefreshPending reports whether a refresh request is outstanding.
func (s *Session) RefreshPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshPending
}

// reconcile replaces the snapshot, clears the refresh guard, resolves every
// registered waiter and notifies listeners.
func (s *Session) reconcile(status Status) {
	s.mu.Lock()
	prev := s.state
	next := State{
		Lifecycle:    status.Lifecycle,
		PowerMode:    status.PowerMode,
		BatteryLevel: ClampBattery(status.BatteryLevel),
		UpdatedAt:    s.now(),
		DeviceTime:   status.DeviceTime,
	}
	s.state = next
	s.refreshPending = false

	waiters := s.waiters
	s.waiters = make(map[uint64]chan State)
	s.mu.Unlock()

	if !next.Lifecycle.IsKnown() {
		s.logger.Warn("unknown lifecycle state", "state", string(next.Lifecycle))
	}
	if prev.Lifecycle != next.Lifecycle || prev.PowerMode != next.PowerMode {
		s.logger.Info("robot state changed",
			"from", string(prev.Lifecycle),
			"to", string(next.Lifecycle),
			"power_mode", string(next.PowerMode),
			"battery", next.BatteryLevel,
		)
	}

	// Buffered with capacity one and removed from the map above, so each
	// send happens exactly once and never blocks.
	for _, ch := range waiters {
		ch <- next
	}

	s.notify(prev, next)
}

// notify runs listeners, isolating the session from listener panics.
func (s *Session) notify(prev, next State) {
	s.listenersMu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("state listener panic recovered", "panic", r)
				}
			}()
			l(prev, next)
		}()
	}
}

// addWaiter registers a one-shot waiter for the next reconciled status.
func (s *Session) addWaiter() (uint64, <-chan State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWaiterID++
	id := s.nextWaiterID
	ch := make(chan State, 1)
	s.waiters[id] = ch
	return id, ch
}

// removeWaiter drops a waiter that gave up. Safe after resolution.
func (s *Session) removeWaiter(id uint64) {
	s.mu.Lock()
	delete(s.waiters, id)
	s.mu.Unlock()
}

// pendingWaiters returns the number of registered waiters.
func (s *Session) pendingWaiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

func (s *Session) publish(cmd command) error {
	payload, err := cmd.encode()
	if err != nil {
		return err
	}
	if err := s.transport.Publish(s.commandTopic, payload, s.qos, false); err != nil {
		return fmt.Errorf("publishing %s: %w", cmd.Msg, err)
	}
	s.logger.Debug("command published", "topic", s.commandTopic, "msg", cmd.Msg)
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsCleaning reports whether a clean is running.
func (s *Session) IsCleaning() bool { return s.Snapshot().IsCleaning() }

// IsDockRequested reports whether the robot was sent back to its dock.
func (s *Session) IsDockRequested() bool { return s.Snapshot().IsDockRequested() }

// IsDocked reports whether the robot is on its dock.
func (s *Session) IsDocked() bool { return s.Snapshot().IsDocked() }

// IsQuietPower reports whether half power is selected.
func (s *Session) IsQuietPower() bool { return s.Snapshot().IsQuietPower() }

// BatteryLevel returns the last reported charge in percent.
func (s *Session) BatteryLevel() int { return s.Snapshot().BatteryLevel }

// IsCharging reports whether the robot is docked and charging.
func (s *Session) IsCharging() bool { return s.Snapshot().IsCharging() }
