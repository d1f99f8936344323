// Package server hosts the Fiber HTTP service and the endpoint handlers for
// the cached GitHub data and the image gallery. The app attaches recover and
// request-ID middlewares, mirrors the CORS headers the site's frontend
// expects, and mounts every route under an optional base path so local and
// production deployments share one contract. Handlers depend on narrow
// provider interfaces so tests can inject fakes instead of live services.
package server
