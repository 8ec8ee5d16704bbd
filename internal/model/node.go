package model

import "time"

// Defaults applied when a node definition omits the optional knobs.
const (
	DefaultMaxCheckAttempts = 3
	DefaultRetryIntervalSec = 15
)

// Node is a monitored endpoint: its probe configuration plus the runtime
// state the engine maintains for it.
type Node struct {
	ID     int64
	Name   string
	Detail NodeDetail

	Status Status

	// Cadence. RetryIntervalSec applies while the node is Degraded and
	// must be <= MonitoringIntervalSec.
	MonitoringIntervalSec int
	RetryIntervalSec      int

	// MaxCheckAttempts is the number of consecutive failures before the
	// node is confirmed Offline. 1 skips the Degraded state entirely.
	MaxCheckAttempts int

	// Runtime fields, owned by the engine once the node is scheduled.
	ConsecutiveFailures int
	LastCheckAt         *time.Time
	LastResponseTimeMs  *int64

	// CredentialID references an entry in the credential store. Empty
	// means no credential. Only meaningful for SSH-capable endpoints.
	CredentialID string

	// DisplayOrder is persisted for UI sorting only; the engine never
	// interprets it. Zero means "order as id".
	DisplayOrder int
}

// EffectiveInterval returns the probe cadence currently in force:
// the retry interval while Degraded, the monitoring interval otherwise.
func (n *Node) EffectiveInterval() time.Duration {
	if n.Status == StatusDegraded {
		return time.Duration(n.RetryIntervalSec) * time.Second
	}
	return time.Duration(n.MonitoringIntervalSec) * time.Second
}

// ApplyDefaults fills zero-valued optional knobs with their defaults.
func (n *Node) ApplyDefaults() {
	if n.Status == "" {
		n.Status = StatusOnline
	}
	if n.MaxCheckAttempts <= 0 {
		n.MaxCheckAttempts = DefaultMaxCheckAttempts
	}
	if n.RetryIntervalSec <= 0 {
		n.RetryIntervalSec = DefaultRetryIntervalSec
	}
	if n.RetryIntervalSec > n.MonitoringIntervalSec && n.MonitoringIntervalSec > 0 {
		n.RetryIntervalSec = n.MonitoringIntervalSec
	}
}

// MergeConfig overwrites n's configuration fields from incoming while
// preserving n's runtime fields. Used by the engine's Update command.
func (n *Node) MergeConfig(incoming *Node) {
	n.Name = incoming.Name
	n.Detail = incoming.Detail
	n.MonitoringIntervalSec = incoming.MonitoringIntervalSec
	n.RetryIntervalSec = incoming.RetryIntervalSec
	n.MaxCheckAttempts = incoming.MaxCheckAttempts
	n.CredentialID = incoming.CredentialID
	n.DisplayOrder = incoming.DisplayOrder
}

// Clone returns a deep copy of the node, including the detail union and the
// optional runtime pointers. The engine publishes clones so receivers never
// alias loop-owned state.
func (n *Node) Clone() Node {
	out := *n
	switch {
	case n.Detail.HTTP != nil:
		h := *n.Detail.HTTP
		out.Detail.HTTP = &h
	case n.Detail.Ping != nil:
		p := *n.Detail.Ping
		out.Detail.Ping = &p
	case n.Detail.TCP != nil:
		t := *n.Detail.TCP
		out.Detail.TCP = &t
	}
	if n.LastCheckAt != nil {
		t := *n.LastCheckAt
		out.LastCheckAt = &t
	}
	if n.LastResponseTimeMs != nil {
		v := *n.LastResponseTimeMs
		out.LastResponseTimeMs = &v
	}
	return out
}
