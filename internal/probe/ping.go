package probe

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/nodewatch/nodewatch/internal/model"
)

// invalidIPDetail is the fixed failure detail for non-literal ping hosts.
// Hostname resolution is not a probe responsibility.
const invalidIPDetail = "Invalid IP address"

// PingProber sends a single ICMP echo and waits for any reply within the
// detail's timeout. The detail's count field is accepted but one echo is
// issued per call.
type PingProber struct {
	privileged bool
}

// NewPingProber creates a ping prober. privileged selects raw-socket ICMP;
// unprivileged uses UDP datagram sockets (no capability needed on Linux
// with net.ipv4.ping_group_range configured).
func NewPingProber(privileged bool) *PingProber {
	return &PingProber{privileged: privileged}
}

// Probe sends one echo to detail.Host.
func (p *PingProber) Probe(ctx context.Context, detail *model.PingDetail) Outcome {
	start := time.Now()

	addr, err := netip.ParseAddr(detail.Host)
	if err != nil {
		return Outcome{OK: false, Latency: time.Since(start), Detail: invalidIPDetail}
	}

	pinger, err := probing.NewPinger(addr.String())
	if err != nil {
		return Outcome{OK: false, Latency: time.Since(start), Detail: fmt.Sprintf("pinger: %v", err)}
	}
	pinger.SetPrivileged(p.privileged)
	pinger.Count = 1
	pinger.Timeout = time.Duration(detail.TimeoutSec) * time.Second

	if err := pinger.RunWithContext(ctx); err != nil {
		return Outcome{OK: false, Latency: time.Since(start), Detail: fmt.Sprintf("ping failed: %v", err)}
	}

	latency := time.Since(start)
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return Outcome{OK: false, Latency: latency, Detail: "no reply"}
	}
	return Outcome{
		OK:      true,
		Latency: latency,
		Detail:  fmt.Sprintf("reply in %d ms", stats.AvgRtt.Milliseconds()),
	}
}
