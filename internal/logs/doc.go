// Package logs reads back the JSON log file the CLI writes.
//
// Tail returns the last N lines or everything after a byte offset, and can
// wait for new lines in follow mode. Filter narrows records to one batch,
// task, component, or minimum level. Memory use stays bounded by the number
// of lines requested, not the file size.
package logs
