// Package inbound exposes the OAuth authorize and callback endpoints as
// net/http handlers.
//
// The callback handler always answers with a JSON status document or a
// redirect; adapter errors and panics never reach the transport.
package inbound
