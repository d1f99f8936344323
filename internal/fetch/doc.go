// Package fetch performs outbound HTTP requests through two independent
// client stacks. The primary transport is net/http with the shared tuned
// Transport; the secondary is fasthttp. A request that fails on the primary
// (connection error, timeout, or a recognized rate-limit status) is retried
// exactly once on the secondary with identical semantics — a bounded
// fallback, never an unbounded retry loop. Non-2xx statuses surface as
// *fetch.Error with a classified Kind so callers can pick their own recovery
// policy. Bodies are fully read before a Result is returned; no partial
// payload ever reaches a caller.
package fetch
