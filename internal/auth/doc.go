// Package auth provides optional HS256 JWT bearer authentication for the
// HTTP API. When no secret is configured the API runs open, with a warning.
package auth
