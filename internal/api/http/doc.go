// Package http exposes the terminal host over a JSON control API.
//
// Routes are grouped by project. A project's session is created on first
// start; reading or stopping a project that has no session yields 404.
// Errors map to status codes as follows:
//
//	spawn failure            502, retryable
//	invalid id or payload    400
//	unknown project          404
//	anything else            500
package http
