package vacuum

import "time"

// LifecycleState is the robot's operating mode as reported on the wire.
//
// Values the bridge does not know are kept verbatim so they still show up
// in logs and history.
type LifecycleState string

// Known lifecycle states.
const (
	LifecycleDockedCharged   LifecycleState = "INACTIVE_CHARGED"
	LifecycleDockedCharging  LifecycleState = "INACTIVE_CHARGING"
	LifecycleCleaning        LifecycleState = "FULL_CLEAN_RUNNING"
	LifecycleCleaningPaused  LifecycleState = "FULL_CLEAN_PAUSED"
	LifecycleCleaningAborted LifecycleState = "FULL_CLEAN_ABORTED"
)

// IsKnown reports whether the bridge has a mapping for the state.
func (l LifecycleState) IsKnown() bool {
	switch l {
	case LifecycleDockedCharged, LifecycleDockedCharging, LifecycleCleaning,
		LifecycleCleaningPaused, LifecycleCleaningAborted:
		return true
	default:
		return false
	}
}

// IsDocked reports whether the robot sits on its dock.
func (l LifecycleState) IsDocked() bool {
	return l == LifecycleDockedCharged || l == LifecycleDockedCharging
}

// PowerMode is the robot's suction setting.
type PowerMode string

// Power modes.
const (
	PowerModeFull PowerMode = "fullPower"
	PowerModeHalf PowerMode = "halfPower"
)

// Battery bounds.
const (
	minBatteryLevel = 0
	maxBatteryLevel = 100
)

// State is a copy of the robot's last confirmed state.
type State struct {
	Lifecycle    LifecycleState `json:"lifecycle"`
	PowerMode    PowerMode      `json:"power_mode"`
	BatteryLevel int            `json:"battery_level"`

	// UpdatedAt is when the bridge received the status. Zero until the
	// first CURRENT-STATE arrives.
	UpdatedAt time.Time `json:"updated_at"`

	// DeviceTime is the robot's own timestamp for the status, if it sent
	// a parseable one.
	DeviceTime time.Time `json:"device_time"`
}

// DefaultState is assumed until the robot reports: docked, charged, full
// power, empty battery.
func DefaultState() State {
	return State{
		Lifecycle:    LifecycleDockedCharged,
		PowerMode:    PowerModeFull,
		BatteryLevel: minBatteryLevel,
	}
}

// IsCleaning reports whether a clean is running.
func (s State) IsCleaning() bool {
	return s.Lifecycle == LifecycleCleaning
}

// IsDockRequested reports whether the robot was sent home.
func (s State) IsDockRequested() bool {
	return s.Lifecycle == LifecycleCleaningAborted
}

// IsDocked reports whether the robot is on its dock.
func (s State) IsDocked() bool {
	return s.Lifecycle.IsDocked()
}

// IsQuietPower reports whether half power is selected.
func (s State) IsQuietPower() bool {
	return s.PowerMode == PowerModeHalf
}

// IsCharging reports whether the robot is docked and charging.
func (s State) IsCharging() bool {
	return s.Lifecycle == LifecycleDockedCharging
}

// Synced reports whether a status has been received since startup.
func (s State) Synced() bool {
	return !s.UpdatedAt.IsZero()
}

// ClampBattery limits a reported charge level to [0,100].
func ClampBattery(level int) int {
	if level < minBatteryLevel {
		return minBatteryLevel
	}
	if level > maxBatteryLevel {
		return maxBatteryLevel
	}
	return level
}
