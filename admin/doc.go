// Package admin serves a read-only HTTP view of the filter lifecycle
// registry:
//
//	GET /health   component health, 503 when any component is unhealthy
//	GET /version  build information
//	GET /filters  registered filters with their reference counts
//
// The server is a component.Component, so the composition root starts and
// stops it through component.Registry. HTTP/2 cleartext is accepted on the
// same port.
package admin
