// Package accessory exposes the robot to a home-automation host as a fixed
// set of named characteristics.
//
// The accessory groups its characteristics into services the way a HomeKit
// style host expects them:
//
//	Service           Characteristic   Access
//	────────────────  ───────────────  ──────
//	switch "Clean"    clean            read/write
//	switch "Go to     go_to_dock       read/write
//	  Dock"
//	switch "Quiet"    quiet_power      read/write
//	occupancy "Dock"  dock_occupancy   read
//	battery           battery_level    read (0-100)
//	                  charging_state   read
//
// Reads are served from the controller's snapshot. Writes run the matching
// robot command and return the value the robot confirmed. When the robot
// rejects or ignores a write the caller simply sees the unchanged value.
package accessory
