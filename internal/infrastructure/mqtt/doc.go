// Package mqtt is the bridge daemon's connection to the home MQTT broker.
//
// The daemon mirrors appliance state onto retained broker topics so home
// automation systems can consume it without speaking the vendor cloud
// protocols, and subscribes to command topics so they can drive the
// appliances back through the cloud:
//
//	Vendor cloud ↔ pawlinkd ↔ MQTT broker ↔ Home automation
//
// The Topics type owns the pawlink/ namespace layout. The client handles
// the rest of the broker relationship: automatic reconnection with replayed
// subscriptions, a retained Last Will on pawlink/system/status so consumers
// can tell a crashed daemon from a stopped one, and panic isolation around
// inbound message handlers.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1, handleCommand)
//
// Enable cfg.Broker.TLS outside of local development; payloads are not
// encrypted beyond the transport.
package mqtt
