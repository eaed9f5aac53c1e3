// Package queue owns the durable scrape work queue: pending items, failure
// records, blacklist policy, and priority ordering. All key construction for
// the backing store lives here.
package queue

// Priority is the scheduling class of a queue item.
type Priority string

// Priority classes. Refresh items are always dispatched ahead of normal
// items so re-scrapes are never starved by a backlog of new additions.
const (
	PriorityNormal  Priority = "normal"
	PriorityRefresh Priority = "refresh"
)

// Item statuses stored on the wire for compatibility with values written by
// earlier producers.
const (
	statusPending = "pending"
	statusFailed  = "failed"
)

// Item is one unit of scrape work keyed by an external game identifier.
// Timestamps are unix milliseconds to match the wire format of existing
// queue entries.
type Item struct {
	ID           string   `json:"-"`
	AddedAt      int64    `json:"addedAt"`
	Source       string   `json:"source"`
	Status       string   `json:"status,omitempty"`
	FailureCount int      `json:"failureCount"`
	LastFailedAt int64    `json:"lastFailedAt,omitempty"`
	Blacklisted  bool     `json:"blacklisted,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Priority     Priority `json:"priority,omitempty"`
	ForceRefresh bool     `json:"forceRefresh,omitempty"`
}

// IsRefresh reports whether the item belongs to the refresh scheduling class.
func (i Item) IsRefresh() bool {
	return i.ForceRefresh || i.Priority == PriorityRefresh
}

// Stats summarizes queue occupancy.
type Stats struct {
	Pending     int `json:"pending"`
	Failed      int `json:"failed"`
	Blacklisted int `json:"blacklisted"`
}
