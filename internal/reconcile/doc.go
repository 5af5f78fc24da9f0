// Package reconcile matches transcription status events to in-flight upload
// records. The worker reports object keys the server rewrote (path prefix,
// timestamp, sanitized name), so events rarely name the file the way the
// client did. A job id minted at upload time is the reliable join; filename
// heuristics remain as the fallback for events without one.
package reconcile
