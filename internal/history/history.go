// Package history keeps an audit log of the robot's confirmed states in
// SQLite. The log is write-mostly: it is served over the API and pruned by
// retention, but never read back into the live session.
package history

import (
	"context"
	"time"

	"github.com/nerrad567/dyson360-bridge/internal/vacuum"
)

// Source values.
const (
	// SourceSync marks the first status after the bridge (re)started.
	SourceSync = "sync"

	// SourceStatus marks a change reported by a later status message.
	SourceStatus = "status"
)

// Entry is one recorded state.
type Entry struct {
	ID             int64                 `json:"id"`
	DeviceID       string                `json:"device_id"`
	LifecycleState vacuum.LifecycleState `json:"lifecycle_state"`
	PowerMode      vacuum.PowerMode      `json:"power_mode"`
	BatteryLevel   int                   `json:"battery_level"`
	Source         string                `json:"source"`

	// DeviceTime is the robot's own timestamp, zero when it sent none.
	DeviceTime time.Time `json:"device_time,omitzero"`

	// CreatedAt is when the bridge received the state (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves state history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record appends a state for the device.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Robot serial
	//   - state: Confirmed state snapshot
	//   - source: SourceSync or SourceStatus
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	Record(ctx context.Context, deviceID string, state vacuum.State, source string) error

	// GetHistory returns recent entries, newest first. The limit is
	// clamped to [1, 200]; zero or negative selects 50.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]Entry, error)

	// Prune deletes entries older than the given age and reports how many.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
