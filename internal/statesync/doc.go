// Package statesync bridges the MQTT transport and the device registry.
//
// The Core consumes inbound device messages from the home/# namespace,
// persists state and readings, evaluates alert thresholds, and fans out
// change notifications to registered observers (the WebSocket hub).
//
// Processing discipline:
//   - One buffered inbound channel, one dispatch goroutine: messages
//     are applied to the registry strictly sequentially.
//   - Persistence happens before alerting and notification; an alert
//     can never be emitted for a reading that was not stored.
//   - Failures drop the message without retry. Devices publish periodic
//     refreshes, so the next update supersedes a lost one.
//   - Unknown topics are noise, not errors; malformed payloads are
//     logged and dropped with the device's prior state untouched.
package statesync
