// Package client is the consumer-side half of the stack: a persistent
// request cache and an image load coordinator, mirroring what the site's
// browser code did with localStorage and in-page promise maps. The request
// cache maps a request fingerprint (URL + body) to a TTL-stamped payload in
// a bbolt database; the TTL is deliberately close to "until cleared" so
// rate-limited upstreams are hit as rarely as possible. The image loader
// de-duplicates concurrent loads of the same URL, memoizes permanent
// failures for the lifetime of the process, and degrades to a placeholder
// instead of surfacing broken images.
package client
