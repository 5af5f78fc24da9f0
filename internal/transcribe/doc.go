// Package transcribe implements the worker side of the pipeline: it parses
// S3 object-created notifications from the job queue, runs whisper-cli over
// the downloaded audio, stores the transcript document next to the source
// object and publishes status events for the relay to fan out.
package transcribe
