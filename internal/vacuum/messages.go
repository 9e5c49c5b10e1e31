package vacuum

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Message types carried in the "msg" field.
const (
	MsgCurrentState        = "CURRENT-STATE"
	MsgRequestCurrentState = "REQUEST-CURRENT-STATE"
	MsgStart               = "START"
	MsgPause               = "PAUSE"
	MsgResume              = "RESUME"
	MsgAbort               = "ABORT"
	MsgStateSet            = "STATE-SET"
)

// fullCleanImmediate is the only clean type the bridge requests.
const fullCleanImmediate = "immediate"

// commandTimeLayout matches the robot app's millisecond UTC timestamps.
const commandTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// statusPayload is the raw shape of a status message. Every field is a
// pointer so that absent and zero values can be told apart.
type statusPayload struct {
	Msg                    *string  `json:"msg"`
	State                  *string  `json:"state"`
	CurrentVacuumPowerMode *string  `json:"currentVacuumPowerMode"`
	BatteryChargeLevel     *float64 `json:"batteryChargeLevel"`
	Time                   *string  `json:"time"`
}

// Status is a decoded status message.
//
// Only CURRENT-STATE messages populate the state fields; for any other
// type Msg is set and the rest is zero.
type Status struct {
	Msg          string
	Lifecycle    LifecycleState
	PowerMode    PowerMode
	BatteryLevel int
	DeviceTime   time.Time
}

// IsCurrentState reports whether the status carries a full state snapshot.
func (s Status) IsCurrentState() bool {
	return s.Msg == MsgCurrentState
}

// DecodeStatus parses a payload from the status topic.
//
// Returns ErrMalformedStatus when the payload is not JSON, has no msg
// field, or is a CURRENT-STATE without state, currentVacuumPowerMode and
// batteryChargeLevel. An unparseable time field is not an error.
func DecodeStatus(payload []byte) (Status, error) {
	var raw statusPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Status{}, fmt.Errorf("%w: %w", ErrMalformedStatus, err)
	}
	if raw.Msg == nil || *raw.Msg == "" {
		return Status{}, fmt.Errorf("%w: missing msg", ErrMalformedStatus)
	}

	status := Status{Msg: *raw.Msg}
	if !status.IsCurrentState() {
		return status, nil
	}

	switch {
	case raw.State == nil:
		return Status{}, fmt.Errorf("%w: %s without state", ErrMalformedStatus, MsgCurrentState)
	case raw.CurrentVacuumPowerMode == nil:
		return Status{}, fmt.Errorf("%w: %s without currentVacuumPowerMode", ErrMalformedStatus, MsgCurrentState)
	case raw.BatteryChargeLevel == nil:
		return Status{}, fmt.Errorf("%w: %s without batteryChargeLevel", ErrMalformedStatus, MsgCurrentState)
	}

	status.Lifecycle = LifecycleState(*raw.State)
	status.PowerMode = PowerMode(*raw.CurrentVacuumPowerMode)
	status.BatteryLevel = ClampBattery(int(math.Round(*raw.BatteryChargeLevel)))

	if raw.Time != nil {
		if t, err := time.Parse(time.RFC3339, *raw.Time); err == nil {
			status.DeviceTime = t
		}
	}

	return status, nil
}

// command is the outbound message envelope. Field order is the wire order.
type command struct {
	Msg           string        `json:"msg"`
	Time          string        `json:"time,omitempty"`
	FullCleanType string        `json:"fullCleanType,omitempty"`
	Data          *stateSetData `json:"data,omitempty"`
}

type stateSetData struct {
	CurrentVacuumPowerMode PowerMode `json:"currentVacuumPowerMode"`
	DefaultVacuumPowerMode PowerMode `json:"defaultVacuumPowerMode"`
}

func (c command) encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", c.Msg, err)
	}
	return data, nil
}

func formatCommandTime(t time.Time) string {
	return t.UTC().Format(commandTimeLayout)
}

func requestCurrentStateCommand() command {
	return command{Msg: MsgRequestCurrentState}
}

func startCommand(now time.Time) command {
	return command{Msg: MsgStart, Time: formatCommandTime(now), FullCleanType: fullCleanImmediate}
}

func pauseCommand(now time.Time) command {
	return command{Msg: MsgPause, Time: formatCommandTime(now)}
}

func resumeCommand(now time.Time) command {
	return command{Msg: MsgResume, Time: formatCommandTime(now)}
}

func abortCommand(now time.Time) command {
	return command{Msg: MsgAbort, Time: formatCommandTime(now), FullCleanType: fullCleanImmediate}
}

func stateSetCommand(now time.Time, mode PowerMode) command {
	return command{
		Msg:  MsgStateSet,
		Time: formatCommandTime(now),
		Data: &stateSetData{
			CurrentVacuumPowerMode: mode,
			DefaultVacuumPowerMode: mode,
		},
	}
}
