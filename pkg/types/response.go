// Package types holds the wire shapes shared by every API handler.
package types

// SuccessEnvelope wraps every 2xx payload so mobile clients parse
// responses uniformly.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Details carries structured
// context such as field validation messages or the exceeded limit.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx payload.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
