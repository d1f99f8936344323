// Package github implements the cached GitHub endpoints behind the site:
// rendered repository READMEs and the owner's profile/repo list. Both
// services follow the same orchestration: check the disk cache, fetch
// upstream through the dual-transport fetcher on a miss, store the fresh
// result, and return it tagged with its source. Upstream failures come back
// as structured results ({success:false, error}) and are never cached; cache
// write failures are logged and swallowed so the caller still gets the
// freshly fetched value.
package github
