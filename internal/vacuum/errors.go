package vacuum

import "errors"

// Domain errors for the vacuum package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, vacuum.ErrDeviceUnresponsive) {
//	    // the robot did not confirm in time
//	}
var (
	// ErrDeviceUnresponsive is returned when no status message confirms a
	// command within the command timeout.
	ErrDeviceUnresponsive = errors.New("vacuum: device unresponsive")

	// ErrCommandFailed is returned when a command could not be published.
	ErrCommandFailed = errors.New("vacuum: command failed")

	// ErrRefreshFailed is returned when a REQUEST-CURRENT-STATE could not be published.
	ErrRefreshFailed = errors.New("vacuum: refresh request failed")

	// ErrMalformedStatus is returned for status payloads that cannot be decoded.
	ErrMalformedStatus = errors.New("vacuum: malformed status message")

	// ErrNotSubscribed is returned when the status topic subscription fails.
	ErrNotSubscribed = errors.New("vacuum: status subscription failed")
)
