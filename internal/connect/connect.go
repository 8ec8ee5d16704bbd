// Package connect implements interactive connection actions against
// monitored nodes: bounded reachability checks for HTTP, ping, and TCP
// targets, and authenticated SSH sessions using the credential store.
package connect

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nodewatch/nodewatch/internal/credential"
	"github.com/nodewatch/nodewatch/internal/model"
	"github.com/nodewatch/nodewatch/internal/probe"
)

// Kind selects the connection strategy.
type Kind string

const (
	KindHTTP Kind = "Http"
	KindSSH  Kind = "Ssh"
	KindPing Kind = "Ping"
	KindTCP  Kind = "Tcp"
)

// Result describes an established (and already released) connection.
type Result struct {
	SessionID   string
	Kind        Kind
	Address     string
	Detail      string
	ConnectedAt time.Time
	Latency     time.Duration
}

// Connector establishes one connection to the target node and reports the
// outcome. Implementations release any resources before returning.
type Connector interface {
	Connect(ctx context.Context, target model.Node) (Result, error)
}

// Credentials is the credential-store subset the SSH connector needs.
type Credentials interface {
	Get(id string) (credential.Credential, error)
	MarkUsed(id string) error
}

// Config wires the factory.
type Config struct {
	Credentials Credentials
	Timeout     time.Duration // per-connection bound, default 10s
	SSHPort     int           // default 22
}

// Factory hands out connectors by kind.
type Factory struct {
	cfg Config
}

// NewFactory creates a connector factory.
func NewFactory(cfg Config) *Factory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SSHPort <= 0 {
		cfg.SSHPort = 22
	}
	return &Factory{cfg: cfg}
}

// For returns the connector for a kind.
func (f *Factory) For(kind Kind) (Connector, error) {
	switch kind {
	case KindHTTP:
		return &httpConnector{timeout: f.cfg.Timeout}, nil
	case KindPing:
		return &pingConnector{timeout: f.cfg.Timeout}, nil
	case KindTCP:
		return &tcpConnector{timeout: f.cfg.Timeout}, nil
	case KindSSH:
		return &sshConnector{
			creds:   f.cfg.Credentials,
			timeout: f.cfg.Timeout,
			port:    f.cfg.SSHPort,
		}, nil
	default:
		return nil, fmt.Errorf("connect: unknown kind %q", kind)
	}
}

func newResult(kind Kind, address, detail string, latency time.Duration) Result {
	return Result{
		SessionID:   uuid.New().String(),
		Kind:        kind,
		Address:     address,
		Detail:      detail,
		ConnectedAt: time.Now().UTC(),
		Latency:     latency,
	}
}

// targetHost extracts the host the node's detail points at, regardless of
// monitor type.
func targetHost(n *model.Node) (string, error) {
	switch n.Detail.Type {
	case model.MonitorHTTP:
		u, err := url.Parse(n.Detail.HTTP.URL)
		if err != nil {
			return "", fmt.Errorf("connect: parse url: %w", err)
		}
		return u.Hostname(), nil
	case model.MonitorPing:
		return n.Detail.Ping.Host, nil
	case model.MonitorTCP:
		return n.Detail.TCP.Host, nil
	default:
		return "", fmt.Errorf("connect: node %d has no target host", n.ID)
	}
}

type httpConnector struct {
	timeout time.Duration
}

func (c *httpConnector) Connect(ctx context.Context, target model.Node) (Result, error) {
	if target.Detail.Type != model.MonitorHTTP {
		return Result{}, fmt.Errorf("connect: node %d is not an http target", target.ID)
	}
	out := probe.NewHTTPProber(c.timeout).Probe(ctx, target.Detail.HTTP)
	if !out.OK {
		return Result{}, fmt.Errorf("connect: http %s: %s", target.Detail.HTTP.URL, out.Detail)
	}
	return newResult(KindHTTP, target.Detail.HTTP.URL, out.Detail, out.Latency), nil
}

type pingConnector struct {
	timeout time.Duration
}

func (c *pingConnector) Connect(ctx context.Context, target model.Node) (Result, error) {
	host, err := targetHost(&target)
	if err != nil {
		return Result{}, err
	}
	detail := &model.PingDetail{Host: host, Count: 1, TimeoutSec: int(c.timeout.Seconds())}
	out := probe.NewPingProber(false).Probe(ctx, detail)
	if !out.OK {
		return Result{}, fmt.Errorf("connect: ping %s: %s", host, out.Detail)
	}
	return newResult(KindPing, host, out.Detail, out.Latency), nil
}

type tcpConnector struct {
	timeout time.Duration
}

func (c *tcpConnector) Connect(ctx context.Context, target model.Node) (Result, error) {
	if target.Detail.Type != model.MonitorTCP {
		return Result{}, fmt.Errorf("connect: node %d is not a tcp target", target.ID)
	}
	address := net.JoinHostPort(target.Detail.TCP.Host, strconv.Itoa(target.Detail.TCP.Port))

	start := time.Now()
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Result{}, fmt.Errorf("connect: tcp %s: %w", address, err)
	}
	conn.Close()

	return newResult(KindTCP, address, "connected to "+address, time.Since(start)), nil
}
