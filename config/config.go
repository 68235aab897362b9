// Package config loads a node's YAML configuration, modeled on the
// teacher's config/ package: a plain struct with defaults plus a loader and
// validator, no code generation or reflection magic.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageBackend selects the admin store implementation; the scabbard store
// is always badger.
type StorageBackend string

const (
	BackendBadger StorageBackend = "badger"
	BackendPebble StorageBackend = "pebble"
)

// NodeConfig is the on-disk configuration for a single splinter node.
type NodeConfig struct {
	NodeID      string            `yaml:"node_id"`
	DisplayName string            `yaml:"display_name,omitempty"`
	Endpoints   []string          `yaml:"endpoints"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`

	DataDir string         `yaml:"data_dir"`
	Storage StorageBackend `yaml:"storage_backend"`

	AdminKeys []string `yaml:"admin_keys"`

	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	AdminTimeout        time.Duration `yaml:"admin_timeout"`
	TwoPCTimeout        time.Duration `yaml:"two_pc_timeout"`
	ReconnectBaseDelay  time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay   time.Duration `yaml:"reconnect_max_delay"`
	InboundQueueDepth   int           `yaml:"inbound_queue_depth"`
	ProtocolVersionMin  uint32        `yaml:"protocol_version_min"`
	ProtocolVersionMax  uint32        `yaml:"protocol_version_max"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`

	GRPCListenAddr string `yaml:"grpc_listen_addr,omitempty"`
}

// Default returns a NodeConfig with every interval and limit set to a safe
// default, matching the teacher's DefaultParams pattern in config/config.go.
func Default() NodeConfig {
	return NodeConfig{
		Storage:            BackendBadger,
		HeartbeatInterval:  5 * time.Second,
		AdminTimeout:       60 * time.Second,
		TwoPCTimeout:       10 * time.Second,
		ReconnectBaseDelay: 200 * time.Millisecond,
		ReconnectMaxDelay:  30 * time.Second,
		InboundQueueDepth:  1024,
		ProtocolVersionMin: 1,
		ProtocolVersionMax: 1,
		LogLevel:           "info",
	}
}

// Load reads and validates a NodeConfig from path.
func Load(path string) (NodeConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required fields and bounds.
func (c NodeConfig) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id is required")
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("node %s: at least one endpoint is required", c.NodeID)
	}
	if c.DataDir == "" {
		return fmt.Errorf("node %s: data_dir is required", c.NodeID)
	}
	switch c.Storage {
	case BackendBadger, BackendPebble:
	default:
		return fmt.Errorf("node %s: unknown storage_backend %q", c.NodeID, c.Storage)
	}
	if c.ProtocolVersionMin > c.ProtocolVersionMax {
		return fmt.Errorf("node %s: protocol_version_min > protocol_version_max", c.NodeID)
	}
	return nil
}
