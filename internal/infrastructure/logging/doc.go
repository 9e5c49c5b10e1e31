// Package logging provides structured logging for the bridge.
//
// It wraps log/slog: JSON output for production, text output for
// development, level filtering and service/version fields on every entry.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log the robot password or JWT secret.
package logging
