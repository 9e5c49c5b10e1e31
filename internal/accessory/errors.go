package accessory

import "errors"

// Domain errors for the accessory package.
var (
	// ErrUnknownCharacteristic is returned for names the accessory does not expose.
	ErrUnknownCharacteristic = errors.New("accessory: unknown characteristic")

	// ErrReadOnly is returned when writing a sensor characteristic.
	ErrReadOnly = errors.New("accessory: characteristic is read-only")

	// ErrInvalidValue is returned when a write carries the wrong type.
	ErrInvalidValue = errors.New("accessory: invalid value")
)
