// Package mqtt provides the MQTT transport to the robot's on-board broker.
//
// This package manages:
//   - Connection with a randomised client ID and auto-reconnect
//   - Publishing command payloads
//   - Topic subscriptions restored on every reconnect
//   - Panic recovery around message handlers
//
// # Architecture
//
// The Dyson 360 Eye runs its own broker. The bridge connects to it with the
// robot's serial as username and exchanges JSON on two topics:
//
//	N223/{serial}/status   robot → bridge
//	N223/{serial}/command  bridge → robot
//
// Reconnection and resubscription are handled here and by paho; callers see
// only repeated OnConnect callbacks.
//
// # Usage
//
//	client := mqtt.New(cfg.Device, cfg.MQTT)
//	client.SetOnConnect(session.HandleConnect)
//	if err := client.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
package mqtt
