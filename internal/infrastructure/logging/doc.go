// Package logging builds the daemon's structured logger on top of log/slog.
//
// One Logger is created at startup from the logging section of config.yaml
// (level, format, output) and handed down to every subsystem; packages that
// want a component tag derive a child with With. Records are JSON by default
// so broker-side log collectors can parse them, with a text format for
// development:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "json"   # json, text
//	  output: "stdout" # stdout, stderr
//
// Cloud tokens and broker credentials must never appear in log attributes.
package logging
