// Package telemetry turns reconciled robot states into history rows and
// InfluxDB points.
//
// The Recorder is registered as a session listener. Observe only queues;
// a single worker goroutine (Run) does the I/O so the MQTT delivery path is
// never held up by SQLite or the network.
package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/dyson360-bridge/internal/history"
	"github.com/nerrad567/dyson360-bridge/internal/vacuum"
)

const (
	// Measurement is the InfluxDB measurement name for robot state.
	Measurement = "vacuum"

	defaultQueueSize = 64
	writeTimeout     = 5 * time.Second
)

// PointWriter accepts time-series points. influxdb.Client implements it.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Recorder. History and Points are both optional.
type Options struct {
	DeviceID  string
	History   history.Repository
	Points    PointWriter
	Logger    Logger
	QueueSize int
}

type observation struct {
	prev, next vacuum.State
}

// Recorder persists observed states.
type Recorder struct {
	deviceID string
	history  history.Repository
	points   PointWriter
	logger   Logger
	queue    chan observation
}

// NewRecorder creates a recorder. Call Run to start processing.
func NewRecorder(opts Options) *Recorder {
	r := &Recorder{
		deviceID: opts.DeviceID,
		history:  opts.History,
		points:   opts.Points,
		logger:   opts.Logger,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}

	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	r.queue = make(chan observation, size)

	return r
}

// Observe queues a state transition. It never blocks; when the queue is
// full the observation is dropped and logged. Matches vacuum.Listener.
func (r *Recorder) Observe(prev, next vacuum.State) {
	select {
	case r.queue <- observation{prev: prev, next: next}:
	default:
		r.logger.Warn("telemetry queue full, dropping state",
			"lifecycle", string(next.Lifecycle),
			"battery", next.BatteryLevel,
		)
	}
}

// Run processes observations until ctx is cancelled, then drains whatever
// is still queued before returning.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case obs := <-r.queue:
			r.process(ctx, obs)
		case <-ctx.Done():
			for {
				select {
				case obs := <-r.queue:
					r.process(ctx, obs)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) process(ctx context.Context, obs observation) {
	if r.points != nil {
		tags, fields := Point(r.deviceID, obs.next)
		r.points.WritePoint(Measurement, tags, fields, obs.next.UpdatedAt)
	}

	if r.history == nil || !Changed(obs.prev, obs.next) {
		return
	}

	source := history.SourceStatus
	if !obs.prev.Synced() {
		source = history.SourceSync
	}

	// Writes outlive shutdown cancellation so the final states still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.history.Record(writeCtx, r.deviceID, obs.next, source); err != nil {
		r.logger.Error("recording state history failed", "error", err)
		return
	}
	r.logger.Debug("state history recorded", "source", source, "lifecycle", string(obs.next.Lifecycle))
}

// Changed reports whether next differs from prev in a way worth a history
// row. The first status after startup always counts.
func Changed(prev, next vacuum.State) bool {
	if !prev.Synced() {
		return true
	}
	return prev.Lifecycle != next.Lifecycle ||
		prev.PowerMode != next.PowerMode ||
		prev.BatteryLevel != next.BatteryLevel
}

// Point builds the tags and fields written for a state.
func Point(deviceID string, s vacuum.State) (map[string]string, map[string]any) {
	tags := map[string]string{
		"device_id":  deviceID,
		"lifecycle":  string(s.Lifecycle),
		"power_mode": string(s.PowerMode),
	}
	fields := map[string]any{
		"battery_level": s.BatteryLevel,
		"cleaning":      s.IsCleaning(),
		"docked":        s.IsDocked(),
		"charging":      s.IsCharging(),
	}
	return tags, fields
}
