// Package command turns desired device states into MQTT control
// messages. Each actuator type has a small command vocabulary (ON/OFF,
// OPEN/CLOSE/SET:<n>, LOCK/UNLOCK, START/STOP); the dispatcher records
// the expected state in the registry first, then publishes
// {"command": token} on the device's /control topic.
package command
