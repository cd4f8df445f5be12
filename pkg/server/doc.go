// Package server exposes a metrics registry over HTTP.
//
// Every request runs through the same pipeline: the configured filters, an
// exact-match router with two routes (GET /metrics and GET /stats), the
// matched handler, and finally a single error mapper. Handlers return errors
// instead of writing error responses themselves. The mapper turns those
// errors, and any panic, into the JSON body
//
//	{"error": "not_found", "message": "...", "request_id": "..."}
//
// so a failing request never takes the listener down with it.
package server
