// Package domain defines the core domain types shared across binaries.
//
// This package contains concept-oriented files (status.go, transcript.go,
// errors.go) with the wire contracts the server, worker, and client agree on.
// No implementation code - just contracts. Prevents circular imports by
// keeping shared types out of the transport and storage packages.
package domain
