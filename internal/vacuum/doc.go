// Package vacuum keeps a Dyson 360 Eye robot and its local model in step.
//
// The robot runs its own MQTT broker. It publishes a full snapshot of its
// state on N223/{serial}/status and accepts commands on
// N223/{serial}/command. A Session owns that topic pair:
//
//	┌──────────────┐  SetCleaning / SetGoToDock / SetQuietPower
//	│   Caller     │─────────────────────────────┐
//	└──────────────┘                             ▼
//	        ▲                          ┌───────────────────┐  command + REQUEST-CURRENT-STATE
//	        │ post-command value       │    Dispatcher     │──────────────────────────────▶ robot
//	        │                          └───────────────────┘
//	        │                                    │ waiter
//	┌──────────────┐   CURRENT-STATE   ┌───────────────────┐
//	│  Snapshot    │◀──────────────────│    Reconciler     │◀────────────────────────────── robot
//	└──────────────┘                   └───────────────────┘
//
// # Commands
//
// A command only requests a transition. The snapshot changes when the robot
// confirms it with a CURRENT-STATE message, so every command registers a
// waiter, publishes the command and a refresh request, then blocks until the
// next status arrives, the command timeout expires or the context ends.
// Commands on one Session are serialized.
//
// Requests that make no sense in the current state (pausing a docked robot,
// starting a robot that is already cleaning) publish nothing and return the
// current value with a nil error.
//
// # Usage
//
//	session := vacuum.NewSession(vacuum.Options{
//	    Username:  cfg.Device.Username,
//	    Transport: transport,
//	    Logger:    logger,
//	})
//	mqttClient.SetOnConnect(func() { session.HandleConnect() })
//
//	cleaning, err := session.SetCleaning(ctx, true)
//	if errors.Is(err, vacuum.ErrDeviceUnresponsive) {
//	    // cleaning holds the last known value
//	}
package vacuum
