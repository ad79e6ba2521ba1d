// Package influxdb provides an optional time-series mirror for numeric
// sensor readings.
//
// SQLite is the canonical store for device state and reading history;
// this package batches the same numeric readings into InfluxDB for
// long-range dashboards. Writes are non-blocking and errors surface
// through an async callback, so the mirror can never stall or fail
// state synchronisation.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // mirror off; continue without it
//	}
package influxdb
