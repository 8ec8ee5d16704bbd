// Package transfer implements the JSON import/export format for node
// definitions. Validation happens here, at the boundary: nothing invalid
// reaches the store or the engine.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"

	"github.com/zeebo/xxh3"

	"github.com/nodewatch/nodewatch/internal/model"
)

// NodeImport is one entry of the import/export file. Pointer fields
// distinguish "absent, use default" from an explicit zero. Unknown JSON
// fields are ignored.
type NodeImport struct {
	Name               string           `json:"name"`
	Detail             model.NodeDetail `json:"detail"`
	MonitoringInterval int              `json:"monitoring_interval"`
	CredentialID       *string          `json:"credential_id"`
	MaxCheckAttempts   *int             `json:"max_check_attempts"`
	RetryInterval      *int             `json:"retry_interval"`
}

// Import parses a JSON array of NodeImport entries into nodes ready for the
// store. Every entry is validated; any failure aborts the whole import so a
// bad file never lands partially. Entries that duplicate an earlier entry's
// {name, detail} pair within the same file are dropped.
func Import(data []byte) ([]model.Node, error) {
	var entries []NodeImport
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("transfer: parse import: %w", err)
	}
	return Normalize(entries)
}

// Normalize validates and deduplicates entries and converts them to nodes.
// Shared by Import and the seed-file loader.
func Normalize(entries []NodeImport) ([]model.Node, error) {
	var (
		nodes []model.Node
		errs  []error
		seen  = map[xxh3.Uint128]struct{}{}
	)
	for i, entry := range entries {
		if err := validateEntry(&entry); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, entry.Name, err))
			continue
		}

		fp, err := fingerprint(&entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, entry.Name, err))
			continue
		}
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}

		nodes = append(nodes, entry.toNode())
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("transfer: import rejected: %w", errors.Join(errs...))
	}
	return nodes, nil
}

// Export serializes nodes in the import shape. Round-trips with Import on
// name, detail, monitoring interval, credential id, max check attempts, and
// retry interval.
func Export(nodes []model.Node) ([]byte, error) {
	entries := make([]NodeImport, 0, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		entry := NodeImport{
			Name:               n.Name,
			Detail:             n.Detail,
			MonitoringInterval: n.MonitoringIntervalSec,
			MaxCheckAttempts:   intPtr(n.MaxCheckAttempts),
			RetryInterval:      intPtr(n.RetryIntervalSec),
		}
		if n.CredentialID != "" {
			id := n.CredentialID
			entry.CredentialID = &id
		}
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("transfer: export: %w", err)
	}
	return data, nil
}

func validateEntry(entry *NodeImport) error {
	if entry.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if err := entry.Detail.Validate(); err != nil {
		return err
	}
	// Ping hosts must be literal IPs; the adapter refuses anything else,
	// so refuse it here instead of letting the node flap forever.
	if entry.Detail.Type == model.MonitorPing {
		if _, err := netip.ParseAddr(entry.Detail.Ping.Host); err != nil {
			return fmt.Errorf("ping host %q is not a literal IP", entry.Detail.Ping.Host)
		}
	}
	if entry.MonitoringInterval <= 0 {
		return fmt.Errorf("monitoring_interval must be positive, got %d", entry.MonitoringInterval)
	}
	if entry.MaxCheckAttempts != nil && *entry.MaxCheckAttempts < 1 {
		return fmt.Errorf("max_check_attempts must be at least 1, got %d", *entry.MaxCheckAttempts)
	}
	if entry.RetryInterval != nil && *entry.RetryInterval < 1 {
		return fmt.Errorf("retry_interval must be at least 1, got %d", *entry.RetryInterval)
	}
	return nil
}

// fingerprint hashes the canonical JSON of {name, detail}. encoding/json
// sorts map keys, so the bytes are deterministic.
func fingerprint(entry *NodeImport) (xxh3.Uint128, error) {
	canonical, err := json.Marshal(struct {
		Name   string           `json:"name"`
		Detail model.NodeDetail `json:"detail"`
	}{entry.Name, entry.Detail})
	if err != nil {
		return xxh3.Uint128{}, fmt.Errorf("fingerprint: %w", err)
	}
	return xxh3.Hash128(canonical), nil
}

func (entry *NodeImport) toNode() model.Node {
	n := model.Node{
		Name:                  entry.Name,
		Detail:                entry.Detail,
		Status:                model.StatusOffline,
		MonitoringIntervalSec: entry.MonitoringInterval,
		MaxCheckAttempts:      model.DefaultMaxCheckAttempts,
		RetryIntervalSec:      model.DefaultRetryIntervalSec,
	}
	if entry.CredentialID != nil {
		n.CredentialID = *entry.CredentialID
	}
	if entry.MaxCheckAttempts != nil {
		n.MaxCheckAttempts = *entry.MaxCheckAttempts
	}
	if entry.RetryInterval != nil {
		n.RetryIntervalSec = *entry.RetryInterval
	}
	n.ApplyDefaults()
	return n
}

func intPtr(v int) *int { return &v }
