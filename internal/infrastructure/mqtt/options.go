package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/dyson360-bridge/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 30 * time.Second

	// defaultOperationTimeout is the maximum time to wait for publish/subscribe acknowledgment.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when the config leaves keep_alive unset.
	defaultKeepAlive = 10 * time.Second

	// protocolVersion31 selects MQTT 3.1 (MQIsdp), the only dialect the robot speaks.
	protocolVersion31 = 3

	// clientIDSuffixLength is how many random hex characters follow the prefix.
	clientIDSuffixLength = 12

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// newClientID returns prefix_<random>. A fresh ID per process keeps a
// restarted bridge from colliding with its own stale session on the robot.
func newClientID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:clientIDSuffixLength]
	if prefix == "" {
		return suffix
	}
	return prefix + "_" + suffix
}

// buildClientOptions creates paho MQTT options for the robot's broker.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Randomised client ID
//   - Robot credentials (serial as username)
//   - MQTT 3.1 with a short keepalive
//   - Auto-reconnect with exponential backoff
//   - Clean session mode
func buildClientOptions(device config.DeviceConfig, cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if device.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, device.Host, device.Port))

	opts.SetClientID(clientID)

	if device.Username != "" {
		opts.SetUsername(device.Username)
		opts.SetPassword(device.Password)
	}

	opts.SetProtocolVersion(protocolVersion31)
	opts.SetCleanSession(true)

	// Status messages must reach the reconciler in arrival order.
	opts.SetOrderMatters(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := defaultKeepAlive
	if cfg.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if device.TLS {
		// The robot presents a self-signed certificate when TLS is fronted by a proxy.
		opts.SetTLSConfig(&tls.Config{
			MinVersion:         tlsMinVersion,
			InsecureSkipVerify: true, //nolint:gosec // robot certificates are self-signed
		})
	}

	return opts
}
