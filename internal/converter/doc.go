// Package converter defines the contract every pluggable format converter
// implements, plus the pieces shared by all of them.
//
// A Converter handles exactly one (source, target) format pair. Providers are
// described by a Descriptor that names the formats they accept and produce and
// supplies a Load hook; the registry calls Load during discovery and keeps the
// returned Factory for every pair the descriptor covers.
//
// Failures are values: Convert returns a Result rather than an error and must
// not panic. SafeConvert and New apply the shared guards (source validation,
// target directory creation, panic recovery, empty-output detection) so
// individual codecs only implement the transformation itself.
package converter
