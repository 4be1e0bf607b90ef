// Package meshconfig loads and validates the YAML configuration file that
// seeds a mesh node at startup: its own identity and listen address, the
// paths to its mTLS material, and the fixed peer set it will dial.
package meshconfig

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// Peer is one entry in the configured peer set.
type Peer struct {
	NodeID  string `yaml:"node_id"`
	Address string `yaml:"address"`
}

// Config is the root of a node's configuration file.
type Config struct {
	NodeID        string `yaml:"node_id"`
	ListenAddress string `yaml:"listen_address"`
	CertPath      string `yaml:"cert_path"`
	KeyPath       string `yaml:"key_path"`
	CAPath        string `yaml:"ca_path"`
	Peers         []Peer `yaml:"peers"`
}

// Load reads and validates the configuration file at path. Any failure here
// is fatal at startup.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks syntactic correctness of the config: node_id present,
// listen_address and peer addresses are host:port, peer node_ids are
// unique, and this node does not appear in its own peer list.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id is required")
	}
	if err := validateHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("listen_address: %w", err)
	}
	if c.CertPath == "" || c.KeyPath == "" || c.CAPath == "" {
		return fmt.Errorf("cert_path, key_path, and ca_path are all required")
	}

	seen := make(map[string]struct{}, len(c.Peers))
	for _, p := range c.Peers {
		if p.NodeID == "" {
			return fmt.Errorf("peer entry has empty node_id")
		}
		if p.NodeID == c.NodeID {
			return fmt.Errorf("peer list contains self (%s)", c.NodeID)
		}
		if _, dup := seen[p.NodeID]; dup {
			return fmt.Errorf("duplicate peer node_id %q", p.NodeID)
		}
		seen[p.NodeID] = struct{}{}
		if err := validateHostPort(p.Address); err != nil {
			return fmt.Errorf("peer %s address: %w", p.NodeID, err)
		}
	}
	return nil
}

func validateHostPort(addr string) error {
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q is not host:port: %w", addr, err)
	}
	if port == "" {
		return fmt.Errorf("%q is missing a port", addr)
	}
	_ = host // host may legitimately be empty (e.g. ":8080") per net.SplitHostPort
	return nil
}
