// Package model defines domain structs shared across the engine and the
// persistence layer.
package model

// Status is the visible availability state of a node.
type Status string

const (
	StatusOnline   Status = "Online"
	StatusDegraded Status = "Degraded"
	StatusOffline  Status = "Offline"
)

// ParseStatus maps a persisted status string to a Status.
// Unknown strings map to Offline rather than dropping the row.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusOnline, StatusDegraded, StatusOffline:
		return Status(s)
	default:
		return StatusOffline
	}
}

// IsValid reports whether s is one of the three visible states.
func (s Status) IsValid() bool {
	return s == StatusOnline || s == StatusDegraded || s == StatusOffline
}
