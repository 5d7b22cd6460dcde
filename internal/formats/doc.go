// Package formats normalizes file format tokens and models the values the
// orchestration engine passes around: single formats, source/target pairs,
// and multi-hop conversion paths.
//
// Formats are case-insensitive on entry and always stored lowercase. Aliases
// are deliberately not merged: "yml" and "yaml" are distinct formats and
// only connect through registered capabilities.
package formats
