package store

import "time"

// Item is a stored record. The Batcher treats items as opaque — only backends
// read or write their fields.
type Item struct {
	Namespace []string
	Key       string
	Value     map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}
