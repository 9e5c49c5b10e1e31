package accessory

import (
	"context"
	"fmt"

	"github.com/nerrad567/dyson360-bridge/internal/vacuum"
)

// Controller is the robot surface the accessory drives.
// vacuum.Session implements it.
type Controller interface {
	IsCleaning() bool
	IsDockRequested() bool
	IsDocked() bool
	IsQuietPower() bool
	BatteryLevel() int
	IsCharging() bool

	SetCleaning(ctx context.Context, on bool) (bool, error)
	SetGoToDock(ctx context.Context, on bool) (bool, error)
	SetQuietPower(ctx context.Context, on bool) (bool, error)
}

// Logger defines the logging interface used by the Accessory.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// Information is the static identity reported to the host.
type Information struct {
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
}

// Characteristic names.
const (
	Clean         = "clean"
	GoToDock      = "go_to_dock"
	QuietPower    = "quiet_power"
	DockOccupancy = "dock_occupancy"
	BatteryLevel  = "battery_level"
	ChargingState = "charging_state"
)

// Value formats.
const (
	FormatBool    = "bool"
	FormatPercent = "percent"
)

// Service types.
const (
	ServiceSwitch    = "switch"
	ServiceOccupancy = "occupancy_sensor"
	ServiceBattery   = "battery"
)

// Descriptor describes one characteristic.
type Descriptor struct {
	Name     string `json:"name"`
	Format   string `json:"format"`
	Writable bool   `json:"writable"`
	Min      *int   `json:"min,omitempty"`
	Max      *int   `json:"max,omitempty"`
}

// Service is a named group of characteristics.
type Service struct {
	Type            string       `json:"type"`
	Subtype         string       `json:"subtype"`
	Name            string       `json:"name"`
	Characteristics []Descriptor `json:"characteristics"`
}

// Value is a characteristic reading.
type Value struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

var (
	percentMin = 0
	percentMax = 100
)

var descriptors = map[string]Descriptor{
	Clean:         {Name: Clean, Format: FormatBool, Writable: true},
	GoToDock:      {Name: GoToDock, Format: FormatBool, Writable: true},
	QuietPower:    {Name: QuietPower, Format: FormatBool, Writable: true},
	DockOccupancy: {Name: DockOccupancy, Format: FormatBool},
	BatteryLevel:  {Name: BatteryLevel, Format: FormatPercent, Min: &percentMin, Max: &percentMax},
	ChargingState: {Name: ChargingState, Format: FormatBool},
}

// order is the stable order used for listings and broadcasts.
var order = []string{Clean, GoToDock, QuietPower, DockOccupancy, BatteryLevel, ChargingState}

// Accessory adapts a Controller to the host's characteristic model.
//
// Thread Safety: safe for concurrent use if the Controller is.
type Accessory struct {
	info   Information
	ctrl   Controller
	logger Logger
}

// New creates an accessory for the controller.
func New(info Information, ctrl Controller) *Accessory {
	return &Accessory{
		info:   info,
		ctrl:   ctrl,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for identify requests.
func (a *Accessory) SetLogger(logger Logger) {
	a.logger = logger
}

// Information returns the accessory identity.
func (a *Accessory) Information() Information {
	return a.info
}

// Identify handles a host identify request. The robot has no locator
// signal, so the request is only logged.
func (a *Accessory) Identify() {
	a.logger.Info("identify requested", "name", a.info.Name)
}

// Services returns the service layout exposed to the host.
func (a *Accessory) Services() []Service {
	return []Service{
		{Type: ServiceSwitch, Subtype: "clean", Name: a.info.Name + " Clean", Characteristics: []Descriptor{descriptors[Clean]}},
		{Type: ServiceSwitch, Subtype: "goToDock", Name: a.info.Name + " Go to Dock", Characteristics: []Descriptor{descriptors[GoToDock]}},
		{Type: ServiceOccupancy, Subtype: "dockState", Name: a.info.Name + " Dock", Characteristics: []Descriptor{descriptors[DockOccupancy]}},
		{Type: ServiceSwitch, Subtype: "quietPower", Name: a.info.Name + " Quiet", Characteristics: []Descriptor{descriptors[QuietPower]}},
		{Type: ServiceBattery, Subtype: "battery", Name: "Battery", Characteristics: []Descriptor{descriptors[BatteryLevel], descriptors[ChargingState]}},
	}
}

// Characteristics returns every descriptor in listing order.
func Characteristics() []Descriptor {
	out := make([]Descriptor, 0, len(order))
	for _, name := range order {
		out = append(out, descriptors[name])
	}
	return out
}

// Lookup returns the descriptor for name.
func Lookup(name string) (Descriptor, error) {
	d, ok := descriptors[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownCharacteristic, name)
	}
	return d, nil
}

// Get reads one characteristic from the controller.
func (a *Accessory) Get(name string) (any, error) {
	switch name {
	case Clean:
		return a.ctrl.IsCleaning(), nil
	case GoToDock:
		return a.ctrl.IsDockRequested(), nil
	case QuietPower:
		return a.ctrl.IsQuietPower(), nil
	case DockOccupancy:
		return a.ctrl.IsDocked(), nil
	case BatteryLevel:
		return a.ctrl.BatteryLevel(), nil
	case ChargingState:
		return a.ctrl.IsCharging(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharacteristic, name)
	}
}

// Set writes a boolean characteristic and returns the confirmed value.
//
// Controller errors are returned together with the last known value so the
// host can show it.
func (a *Accessory) Set(ctx context.Context, name string, value any) (any, error) {
	d, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if !d.Writable {
		return nil, fmt.Errorf("%w: %q", ErrReadOnly, name)
	}

	on, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: %q expects a boolean, got %T", ErrInvalidValue, name, value)
	}

	switch name {
	case Clean:
		return a.ctrl.SetCleaning(ctx, on)
	case GoToDock:
		return a.ctrl.SetGoToDock(ctx, on)
	default:
		return a.ctrl.SetQuietPower(ctx, on)
	}
}

// Values reads every characteristic from the controller.
func (a *Accessory) Values() []Value {
	out := make([]Value, 0, len(order))
	for _, name := range order {
		v, _ := a.Get(name)
		out = append(out, Value{Name: name, Value: v})
	}
	return out
}

// ValuesFromState derives every characteristic from a state snapshot.
// Used for push notifications, where the snapshot is already at hand.
func ValuesFromState(s vacuum.State) []Value {
	return []Value{
		{Name: Clean, Value: s.IsCleaning()},
		{Name: GoToDock, Value: s.IsDockRequested()},
		{Name: QuietPower, Value: s.IsQuietPower()},
		{Name: DockOccupancy, Value: s.IsDocked()},
		{Name: BatteryLevel, Value: s.BatteryLevel},
		{Name: ChargingState, Value: s.IsCharging()},
	}
}

var _ Controller = (*vacuum.Session)(nil)
