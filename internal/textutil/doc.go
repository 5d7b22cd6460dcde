// Package textutil holds small text helpers shared by the codecs, currently
// filename sanitization for names taken from file contents.
package textutil
