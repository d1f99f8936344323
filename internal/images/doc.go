// Package images serves the gallery: a derived-asset cache that converts
// source images to WebP on first request and serves the cached file forever
// after (content-addressed by source path, no TTL, no eviction — growth is
// unbounded by design for this asset volume), and a paginated listing of the
// dump directory. Derived files are written temp-then-rename so a conversion
// failure never leaves a partial file behind.
package images
