// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers write through these helpers instead of raw http.ResponseWriter
// calls so that every endpoint shares one JSON envelope and one mapping
// from service errors to status codes.
package httputil
