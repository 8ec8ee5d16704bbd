package model

import "time"

// ProbeSample is a persisted check result. The engine records a sample only
// for a node's first-ever check and for checks that cross a status
// transition; Status is the state assigned by the state machine, not the raw
// probe outcome.
type ProbeSample struct {
	ID             int64
	NodeID         int64
	At             time.Time
	Status         Status
	ResponseTimeMs *int64
	Detail         string
}

// StatusChange records a confirmed transition between visible states.
// From and To always differ. DurationMs is the time spent in From, nil for
// the first recorded transition of a node.
type StatusChange struct {
	ID         int64
	NodeID     int64
	From       Status
	To         Status
	ChangedAt  time.Time
	DurationMs *int64
}
