// Package token signs session payloads into compact HS256 tokens and verifies them
// with a fixed 24 hour lifetime and strict parsing.
package token
