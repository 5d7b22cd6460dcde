// Package main hosts the transmute CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration once, discovers the
// shipped codecs into a registry, and hands conversions to the engine and
// batch scheduler. Commands cover single conversions, batches with progress
// reporting and run history, path and format inspection, environment checks,
// and configuration scaffolding.
//
// Keep this package lean: add behaviour to the internal packages first and
// surface it here through commands or flags.
package main
