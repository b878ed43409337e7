// Package influxdb records appliance state history as time series.
//
// The bridge calls WriteStateSnapshot on every device update; each numeric
// field of the state map becomes a field on one appliance_state point,
// tagged with the device class and ID. Dashboards graph litter levels,
// hopper levels and cycle counts straight from that measurement.
//
// Telemetry is optional. When the influxdb section of config.yaml is
// disabled, Connect returns ErrDisabled and the daemon carries on with a
// nil client.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    client = nil
//	}
//
// Writes are batched (batch_size, flush_interval in config.yaml) and never
// block the caller; batch failures are reported through the SetOnError
// callback. Close flushes whatever is still buffered.
package influxdb
