// Package server exposes the completion stream over HTTP: each POST to
// /v1/chat is answered with the Token/Done/Error events as server-sent events.
package server

// Config is the HTTP server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8787")
	ListenAddr string

	// Model is used when a request names none.
	Model string

	// Temperature is used when a request sets none.
	Temperature *float64
}
