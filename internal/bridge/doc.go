// Package bridge connects a pawlink cloud account to a local MQTT broker.
//
// The bridge subscribes to state updates from every discovered appliance and
// republishes them as retained MQTT messages, so home automation systems see
// current state immediately on connect. In the other direction it consumes
// command messages from MQTT, dispatches them to the matching appliance via
// the vendor cloud, and publishes acknowledgements.
//
// Topic layout (see the mqtt package for builders):
//
//	pawlink/state/{class}/{device_id}        retained state snapshots
//	pawlink/event/{class}/{device_id}        discrete events
//	pawlink/command/{class}/{device_id}      inbound commands
//	pawlink/ack/{class}/{device_id}          command acknowledgements
//	pawlink/availability/{class}/{device_id} online/offline markers
//
// State changes are optionally recorded to a SQLite history store and
// forwarded to InfluxDB for long-term telemetry. Both sinks are best-effort:
// a failed write is logged and never blocks MQTT publishing.
//
// Thread Safety: all exported methods are safe for concurrent use.
package bridge
