package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nodewatch/nodewatch/internal/model"
)

// TCPProber attempts a TCP connection and closes it immediately on success.
type TCPProber struct{}

// Probe dials detail.Host:detail.Port within the detail's timeout.
func (p *TCPProber) Probe(ctx context.Context, detail *model.TCPDetail) Outcome {
	start := time.Now()

	target := net.JoinHostPort(detail.Host, strconv.Itoa(detail.Port))
	dialer := net.Dialer{Timeout: time.Duration(detail.TimeoutSec) * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return Outcome{OK: false, Latency: time.Since(start), Detail: fmt.Sprintf("connect failed: %v", err)}
	}
	conn.Close()

	return Outcome{OK: true, Latency: time.Since(start), Detail: "connected to " + target}
}
