// Package server holds configuration for the operational HTTP server.
//
// The server itself is assembled in the start command; this package only
// owns the settings (listen port and the API key that guards every
// endpoint) so they participate in the shared config loading.
package server
