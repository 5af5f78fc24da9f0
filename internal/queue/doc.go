// Package queue provides SQS plumbing shared by the status relay and the
// transcription worker: a long-polling Poller that dispatches received
// messages to a handler and deletes them on success, and a Publisher that
// sends JSON-encoded payloads.
//
// The poller retries failed receives with capped exponential backoff and
// jitter instead of hammering the API in a tight loop. Stopping the poller
// aborts any backoff sleep immediately but never interrupts an in-flight
// long poll; callers bound the wait instead.
package queue
