package model

import (
	"encoding/json"
	"fmt"
)

// MonitorType is the serialized probe discriminator. It round-trips through
// the nodes table (monitor_type column) and the import/export format.
type MonitorType string

const (
	MonitorHTTP MonitorType = "http"
	MonitorPing MonitorType = "ping"
	MonitorTCP  MonitorType = "tcp"
)

// IsValid reports whether t is a known monitor type.
func (t MonitorType) IsValid() bool {
	return t == MonitorHTTP || t == MonitorPing || t == MonitorTCP
}

// HTTPDetail carries the parameters of an HTTP probe.
type HTTPDetail struct {
	URL            string `json:"url"`
	ExpectedStatus int    `json:"expected_status"`
}

// PingDetail carries the parameters of an ICMP echo probe.
// Count is accepted and persisted but the adapter issues one echo per call.
type PingDetail struct {
	Host       string `json:"host"`
	Count      int    `json:"count"`
	TimeoutSec int    `json:"timeout"`
}

// TCPDetail carries the parameters of a TCP connect probe.
type TCPDetail struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	TimeoutSec int    `json:"timeout"`
}

// NodeDetail is the tagged union over probe parameters. Exactly one of the
// pointer fields is non-nil, matching Type.
type NodeDetail struct {
	Type MonitorType
	HTTP *HTTPDetail
	Ping *PingDetail
	TCP  *TCPDetail
}

// HTTPNodeDetail builds an HTTP detail.
func HTTPNodeDetail(url string, expectedStatus int) NodeDetail {
	return NodeDetail{Type: MonitorHTTP, HTTP: &HTTPDetail{URL: url, ExpectedStatus: expectedStatus}}
}

// PingNodeDetail builds a ping detail.
func PingNodeDetail(host string, count, timeoutSec int) NodeDetail {
	return NodeDetail{Type: MonitorPing, Ping: &PingDetail{Host: host, Count: count, TimeoutSec: timeoutSec}}
}

// TCPNodeDetail builds a TCP detail.
func TCPNodeDetail(host string, port, timeoutSec int) NodeDetail {
	return NodeDetail{Type: MonitorTCP, TCP: &TCPDetail{Host: host, Port: port, TimeoutSec: timeoutSec}}
}

// Validate checks the union shape and the type-specific parameters that must
// never reach the engine invalid (spec'd at the form/import boundary).
func (d NodeDetail) Validate() error {
	switch d.Type {
	case MonitorHTTP:
		if d.HTTP == nil {
			return fmt.Errorf("detail: http type with nil http params")
		}
		if d.HTTP.URL == "" {
			return fmt.Errorf("detail: http url must not be empty")
		}
		if d.HTTP.ExpectedStatus < 100 || d.HTTP.ExpectedStatus > 599 {
			return fmt.Errorf("detail: http expected status must be 100-599, got %d", d.HTTP.ExpectedStatus)
		}
	case MonitorPing:
		if d.Ping == nil {
			return fmt.Errorf("detail: ping type with nil ping params")
		}
		if d.Ping.Host == "" {
			return fmt.Errorf("detail: ping host must not be empty")
		}
		if d.Ping.TimeoutSec <= 0 {
			return fmt.Errorf("detail: ping timeout must be positive, got %d", d.Ping.TimeoutSec)
		}
	case MonitorTCP:
		if d.TCP == nil {
			return fmt.Errorf("detail: tcp type with nil tcp params")
		}
		if d.TCP.Host == "" {
			return fmt.Errorf("detail: tcp host must not be empty")
		}
		if d.TCP.Port < 1 || d.TCP.Port > 65535 {
			return fmt.Errorf("detail: tcp port must be 1-65535, got %d", d.TCP.Port)
		}
		if d.TCP.TimeoutSec <= 0 {
			return fmt.Errorf("detail: tcp timeout must be positive, got %d", d.TCP.TimeoutSec)
		}
	default:
		return fmt.Errorf("detail: unknown monitor type %q", d.Type)
	}
	return nil
}

// wire discriminators used by the import/export format.
const (
	wireTypeHTTP = "Http"
	wireTypePing = "Ping"
	wireTypeTCP  = "Tcp"
)

// detailWire is the flattened JSON shape of a NodeDetail:
// {"type":"Http"|"Ping"|"Tcp", ...type-specific fields...}.
type detailWire struct {
	Type string `json:"type"`

	URL            string `json:"url,omitempty"`
	ExpectedStatus int    `json:"expected_status,omitempty"`

	Host  string `json:"host,omitempty"`
	Count int    `json:"count,omitempty"`
	Port  int    `json:"port,omitempty"`

	TimeoutSec int `json:"timeout,omitempty"`
}

// MarshalJSON serializes the union in the import/export wire shape.
func (d NodeDetail) MarshalJSON() ([]byte, error) {
	var w detailWire
	switch d.Type {
	case MonitorHTTP:
		if d.HTTP == nil {
			return nil, fmt.Errorf("detail: http type with nil http params")
		}
		w = detailWire{Type: wireTypeHTTP, URL: d.HTTP.URL, ExpectedStatus: d.HTTP.ExpectedStatus}
	case MonitorPing:
		if d.Ping == nil {
			return nil, fmt.Errorf("detail: ping type with nil ping params")
		}
		w = detailWire{Type: wireTypePing, Host: d.Ping.Host, Count: d.Ping.Count, TimeoutSec: d.Ping.TimeoutSec}
	case MonitorTCP:
		if d.TCP == nil {
			return nil, fmt.Errorf("detail: tcp type with nil tcp params")
		}
		w = detailWire{Type: wireTypeTCP, Host: d.TCP.Host, Port: d.TCP.Port, TimeoutSec: d.TCP.TimeoutSec}
	default:
		return nil, fmt.Errorf("detail: unknown monitor type %q", d.Type)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the wire shape. Unknown fields are ignored.
func (d *NodeDetail) UnmarshalJSON(data []byte) error {
	var w detailWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case wireTypeHTTP:
		*d = HTTPNodeDetail(w.URL, w.ExpectedStatus)
	case wireTypePing:
		*d = PingNodeDetail(w.Host, w.Count, w.TimeoutSec)
	case wireTypeTCP:
		*d = TCPNodeDetail(w.Host, w.Port, w.TimeoutSec)
	default:
		return fmt.Errorf("detail: unknown wire type %q", w.Type)
	}
	return nil
}
