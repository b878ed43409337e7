// Package pawlink is a client library for a family of networked smart pet
// appliances: self-cleaning litter boxes (generations 3 and 4) and a smart
// feeder.
//
// The entry point is Account. It authenticates against the vendor cloud,
// discovers the appliances registered to the account and keeps their state
// current over whichever channel each generation supports: Gen3 units are
// polled over REST, Gen4 units and feeders receive push updates over one
// shared WebSocket per device class.
//
//	acct, err := pawlink.NewAccount(pawlink.Config{Token: token, UserID: uid})
//	if err != nil { ... }
//	if err := acct.Connect(ctx); err != nil { ... }
//	if err := acct.StartUpdates(ctx); err != nil { ... }
//	defer acct.StopUpdates(context.Background())
//
//	for _, d := range acct.Devices() {
//		d.OnUpdate(func(ev device.Event) { ... })
//	}
//
// The transport machinery (shared-socket monitors, per-device pollers,
// reconnect backoff) lives in the transport package and is reusable on its
// own; the device package holds the appliance models and their wire
// protocols.
package pawlink
