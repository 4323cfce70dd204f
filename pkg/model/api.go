package model

import "time"

// Response is the standard envelope for all qcal API responses.
type Response struct {
	Status     string      `json:"status"` // "ok" or "error"
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error,omitempty"`
}

// Pagination describes the window a list response covers.
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListOptions controls pagination for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns the standard page size.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50}
}
