// Package codecs ships the format converters transmute discovers at startup.
//
// Catalog returns one descriptor per provider: structured data (CSV, JSON,
// YAML, TOML, XML), xlsx workbooks, markup (markdown, HTML, plain text), PDF
// layout and text extraction, email, HTML printing through headless Chrome,
// raster images, and ffmpeg-backed audio and video. Providers that need an external binary resolve it in their
// Load hook, so a missing tool removes only that provider's pairs from the
// graph. Every converter is built with converter.New and writes its output
// atomically.
package codecs
