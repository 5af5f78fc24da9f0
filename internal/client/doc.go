// Package client is the HTTP client for the transcription service: multipart
// uploads with progress reporting, transcript retrieval, and the server-sent
// event stream that carries transcription status updates.
package client
