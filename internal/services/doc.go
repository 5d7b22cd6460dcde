// Package services defines shared utilities consumed by the orchestration
// engine, the batch scheduler, and the shipped codecs.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, batch IDs, chain steps, format
//     pairs, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every failure carries
//     a classifiable kind (not supported, invalid chain, step failure, ...)
//     together with the component and operation that produced it.
//
// Use these helpers when wiring new converters or engine paths so error
// handling and observability stay uniform across the system.
package services
