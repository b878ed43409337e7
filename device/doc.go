// Package device models the networked pet appliances behind one uniform
// abstraction.
//
// Each product generation speaks a different wire protocol to the vendor
// cloud, so each model pairs a REST or GraphQL refresh path with the
// delivery strategy its class supports:
//
//   - Gen3 litter boxes: plain REST, no push channel — kept fresh by a
//     transport.Poller.
//   - Gen4 litter boxes: GraphQL refresh plus a shared WebSocket
//     subscription channel (see Gen4Protocol).
//   - Feeders: REST refresh plus a command-bus style WebSocket channel
//     (see FeederProtocol).
//
// All models embed Base, which owns the mutable state map, merge-on-update
// semantics for partial payloads, and typed change notification through an
// Emitter. State listeners are isolated from each other: a failing listener
// is logged and never prevents delivery to the rest.
package device
