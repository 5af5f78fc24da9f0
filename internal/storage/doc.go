// Package storage holds the S3 access layer: the audio uploader used by the
// HTTP server, the object store the worker downloads jobs from, and the
// result store both sides use for finished transcripts.
//
// Keys follow the bucket layout the rest of the system relies on: audio
// lands under uploads/ with a unix timestamp prefix, transcripts under
// processed/<object key>.json.
package storage
