package dto

import "encoding/json"

// Envelope is the backend's standard response wrapper. Not every route uses it, so the
// API client only unwraps bodies that carry the "success" key.
type Envelope struct {
	Success *bool             `json:"success"`
	Code    int               `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Data    json.RawMessage   `json:"data,omitempty"`
}
