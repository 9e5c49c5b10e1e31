package mqtt

import "fmt"

// TopicPrefixN223 is the product-type root used by the Dyson 360 Eye.
const TopicPrefixN223 = "N223"

// Topics provides builders for the robot's MQTT topics.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.DeviceStatus("JH1-EU-ABC1234A")
//	// Returns: "N223/JH1-EU-ABC1234A/status"
type Topics struct{}

// DeviceStatus returns the topic the robot publishes its state on.
//
// Example: N223/JH1-EU-ABC1234A/status
func (Topics) DeviceStatus(username string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixN223, username)
}

// DeviceCommand returns the topic the robot accepts commands on.
//
// Example: N223/JH1-EU-ABC1234A/command
func (Topics) DeviceCommand(username string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixN223, username)
}

// AllDeviceStatuses matches the status topic of every robot on a broker.
//
// Pattern: N223/+/status
func (Topics) AllDeviceStatuses() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixN223)
}
