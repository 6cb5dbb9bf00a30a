// ABOUTME: Package ai defines the completion-service client seam and error taxonomy.
// ABOUTME: The engine only ever talks to the remote service through these types.

// Package ai declares what the session engine needs from a hosted AI
// completion service: thread lifecycle, run polling, tool output
// submission and the media endpoints, plus a typed error taxonomy so
// recovery decisions are made over codes rather than message strings.
package ai
