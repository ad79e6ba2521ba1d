// Package mqtt wraps the Eclipse Paho MQTT client with Luma-specific
// functionality.
//
// Features:
//   - Connection management with auto-reconnect and exponential backoff
//   - Last Will and Testament on home/system/status for offline detection
//   - Subscription tracking with automatic restoration on reconnect
//   - Panic recovery around message handlers
//   - Topic builders for the home/{location}/{device_type} scheme
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1, handleMessage)
//
// Consumers that only publish or subscribe should declare a narrow local
// interface rather than depending on this package's Client directly.
package mqtt
