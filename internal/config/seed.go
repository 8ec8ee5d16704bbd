package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nodewatch/nodewatch/internal/model"
	"github.com/nodewatch/nodewatch/internal/transfer"
)

// seedEntry is one node definition in the YAML seed file. The shape mirrors
// the JSON import format with the detail fields flattened per type.
type seedEntry struct {
	Name   string `yaml:"name"`
	Detail struct {
		Type           string `yaml:"type"` // Http | Ping | Tcp
		URL            string `yaml:"url"`
		ExpectedStatus int    `yaml:"expected_status"`
		Host           string `yaml:"host"`
		Count          int    `yaml:"count"`
		Port           int    `yaml:"port"`
		Timeout        int    `yaml:"timeout"`
	} `yaml:"detail"`
	MonitoringInterval int     `yaml:"monitoring_interval"`
	CredentialID       *string `yaml:"credential_id"`
	MaxCheckAttempts   *int    `yaml:"max_check_attempts"`
	RetryInterval      *int    `yaml:"retry_interval"`
}

// LoadSeedFile parses the YAML seed file into nodes, applying the same
// validation, defaults, and dedupe rules as a JSON import. A missing file is
// not an error: seeding is optional.
func LoadSeedFile(path string) ([]model.Node, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read seed file %s: %w", path, err)
	}

	var seeds []seedEntry
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("config: parse seed file %s: %w", path, err)
	}

	entries := make([]transfer.NodeImport, 0, len(seeds))
	for _, s := range seeds {
		entry := transfer.NodeImport{
			Name:               s.Name,
			MonitoringInterval: s.MonitoringInterval,
			CredentialID:       s.CredentialID,
			MaxCheckAttempts:   s.MaxCheckAttempts,
			RetryInterval:      s.RetryInterval,
		}
		switch s.Detail.Type {
		case "Http":
			entry.Detail = model.HTTPNodeDetail(s.Detail.URL, s.Detail.ExpectedStatus)
		case "Ping":
			entry.Detail = model.PingNodeDetail(s.Detail.Host, s.Detail.Count, s.Detail.Timeout)
		case "Tcp":
			entry.Detail = model.TCPNodeDetail(s.Detail.Host, s.Detail.Port, s.Detail.Timeout)
		default:
			return nil, fmt.Errorf("config: seed entry %q: unknown detail type %q", s.Name, s.Detail.Type)
		}
		entries = append(entries, entry)
	}

	nodes, err := transfer.Normalize(entries)
	if err != nil {
		return nil, fmt.Errorf("config: seed file %s: %w", path, err)
	}
	return nodes, nil
}
