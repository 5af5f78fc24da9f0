// Package broadcast implements the live event stream core: a registry of
// connected subscribers and a broadcaster that fans status payloads out to
// all of them over server-sent events.
//
// Payloads are relayed verbatim; the broadcaster never inspects or rewrites
// what the worker published. A subscriber whose connection fails a write is
// evicted and closed so it cannot affect delivery to the others.
package broadcast
