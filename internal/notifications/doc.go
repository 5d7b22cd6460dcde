// Package notifications posts batch outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers notify unconditionally. Messages are plain text with ntfy's Title,
// Tags, and Priority headers.
package notifications
