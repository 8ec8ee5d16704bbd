// Package probe implements the probe adapters: one bounded check attempt per
// call, no internal retries. The engine decides what a failure means.
package probe

import (
	"context"
	"time"

	"github.com/nodewatch/nodewatch/internal/model"
)

// Outcome is the result of a single probe attempt. Latency is the wall time
// from probe start to probe end, success or not.
type Outcome struct {
	OK      bool
	Latency time.Duration
	Detail  string
}

// LatencyMs returns the latency in whole milliseconds.
func (o Outcome) LatencyMs() int64 {
	return o.Latency.Milliseconds()
}

// Func executes a probe for a node detail. Injectable for testing.
type Func func(ctx context.Context, detail model.NodeDetail) Outcome

// Config configures the dispatcher's adapters.
type Config struct {
	// HTTPTimeout bounds HTTP probes; ping and tcp carry their own
	// per-node timeouts.
	HTTPTimeout time.Duration

	// PingPrivileged selects raw-socket ICMP (needs CAP_NET_RAW) over
	// unprivileged UDP ping.
	PingPrivileged bool
}

// Dispatcher routes a probe to the adapter matching the detail's
// discriminator.
type Dispatcher struct {
	http *HTTPProber
	ping *PingProber
	tcp  *TCPProber
}

// NewDispatcher creates a dispatcher with adapters built from cfg.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	return &Dispatcher{
		http: NewHTTPProber(cfg.HTTPTimeout),
		ping: NewPingProber(cfg.PingPrivileged),
		tcp:  &TCPProber{},
	}
}

// Probe executes one attempt for the given detail.
func (d *Dispatcher) Probe(ctx context.Context, detail model.NodeDetail) Outcome {
	switch detail.Type {
	case model.MonitorHTTP:
		return d.http.Probe(ctx, detail.HTTP)
	case model.MonitorPing:
		return d.ping.Probe(ctx, detail.Ping)
	case model.MonitorTCP:
		return d.tcp.Probe(ctx, detail.TCP)
	default:
		// Cannot happen for details that passed validation.
		return Outcome{OK: false, Detail: "unknown monitor type: " + string(detail.Type)}
	}
}
