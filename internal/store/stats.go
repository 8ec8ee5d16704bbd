package store

import (
	"fmt"
	"time"

	"github.com/nodewatch/nodewatch/internal/model"
)

// CurrentStatusDuration returns how long the node has been in its current
// status: time since the most recent status change, falling back to the
// first-ever sample when no change has been recorded. Returns nil when the
// node has neither.
func (s *Store) CurrentStatusDuration(nodeID int64) (*int64, error) {
	changes, err := s.ListStatusChanges(nodeID, 1)
	if err != nil {
		return nil, err
	}

	var since time.Time
	switch {
	case len(changes) > 0:
		since = changes[0].ChangedAt
	default:
		first, err := s.FirstProbeSampleAt(nodeID)
		if err != nil {
			return nil, err
		}
		if first == nil {
			return nil, nil
		}
		since = *first
	}

	ms := s.now().UTC().Sub(since).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return &ms, nil
}

// UptimePercentage computes the fraction of [start, end] the node spent
// Online, from the status-change timeline clipped to the window, as 0-100.
// With an empty timeline the node's current status decides: 100 when Online,
// 0 otherwise. The open tail segment is clipped to end (or now, whichever is
// earlier).
func (s *Store) UptimePercentage(nodeID int64, start, end time.Time) (float64, error) {
	if !end.After(start) {
		return 0, fmt.Errorf("store: uptime for node %d: window end must be after start", nodeID)
	}

	changes, err := s.listStatusChangesAsc(nodeID, formatTime(end))
	if err != nil {
		return 0, fmt.Errorf("store: uptime for node %d: %w", nodeID, err)
	}

	if len(changes) == 0 {
		n, err := s.GetNode(nodeID)
		if err != nil {
			return 0, fmt.Errorf("store: uptime for node %d: %w", nodeID, err)
		}
		if n.Status == model.StatusOnline {
			return 100, nil
		}
		return 0, nil
	}

	start = start.UTC()
	end = end.UTC()

	// Status at the window start: the first change's from_status, advanced
	// through every change at or before start.
	cur := changes[0].From
	var online time.Duration
	segStart := start

	for _, c := range changes {
		at := c.ChangedAt
		if !at.After(start) {
			cur = c.To
			continue
		}
		if at.After(end) {
			at = end
		}
		if cur == model.StatusOnline {
			online += at.Sub(segStart)
		}
		segStart = at
		cur = c.To
	}

	// Open tail: clip to end, or to now when the window extends past it.
	tail := end
	if now := s.now().UTC(); now.Before(tail) {
		tail = now
	}
	if tail.After(segStart) && cur == model.StatusOnline {
		online += tail.Sub(segStart)
	}

	total := end.Sub(start)
	return float64(online) / float64(total) * 100, nil
}
