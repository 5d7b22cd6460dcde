// Package preflight provides readiness checks for the filesystem paths and
// external tools transmute depends on.
//
// These checks run in two contexts:
//   - The batch command calls RunAll before scheduling work so a missing or
//     read-only work directory fails fast instead of failing every task.
//   - The CLI "transmute doctor" command renders RunAll, CheckSystemDeps, and
//     CodecResults as one health table.
//
// Optional features (history, metrics export) are only checked when enabled.
package preflight
