// Package cache defines the disk-backed store responsible for translating
// logical cache keys into StoragePath/<scope>/<name> files. Each entry is a
// small JSON envelope carrying its payload and per-entry TTL; validity is
// decided on read and expired entries are removed as a side effect. The store
// exposes read/write primitives with safe semantics (temp file + rename) so a
// reader never observes a half-written entry, and a Sweep primitive for
// manual cleanup of aged files. The README and profile services depend on
// this package instead of duplicating filesystem logic.
package cache
