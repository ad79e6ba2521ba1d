package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading mirrors a numeric sensor reading to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Called by the state sync core after the reading is committed to SQLite,
// so a dropped point never loses canonical history.
//
// Example:
//
//	client.WriteSensorReading("dev-123", "temperature", "livingroom", 21.5, ts)
func (c *Client) WriteSensorReading(deviceID, deviceType, location string, value float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"device_id":   deviceID,
			"device_type": deviceType,
			"location":    location,
		},
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
