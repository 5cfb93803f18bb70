package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon's bootstrap settings: where it keeps state, which
// principals identify its components, and where metrics are served.
type Config struct {
	DataDir        string `toml:"DataDir"`
	MetricsAddress string `toml:"MetricsAddress"`
	Environment    string `toml:"Environment"`

	// Hex-encoded 20-byte principals.
	OwnerAddress string `toml:"OwnerAddress"`
	VaultAddress string `toml:"VaultAddress"`
	BookAddress  string `toml:"BookAddress"`
}

const defaultConfig = `# swapd configuration
DataDir = "./swapd-data"
MetricsAddress = ":9464"
Environment = "dev"

# Hex-encoded 20-byte principals.
OwnerAddress = "0000000000000000000000000000000000000001"
VaultAddress = "0000000000000000000000000000000000000002"
BookAddress  = "0000000000000000000000000000000000000003"
`

// Load reads the configuration from the given path, creating a commented
// default file when none exists. Unknown keys are rejected so typos fail
// loudly.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(defaultConfig), 0o644)
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	for name, value := range map[string]string{
		"OwnerAddress": c.OwnerAddress,
		"VaultAddress": c.VaultAddress,
		"BookAddress":  c.BookAddress,
	} {
		if _, err := ParseAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}

// ParseAddress decodes a hex-encoded 20-byte principal, accepting an
// optional 0x prefix.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// Owner returns the parsed owner principal.
func (c *Config) Owner() [20]byte { return mustAddress(c.OwnerAddress) }

// Vault returns the parsed escrow vault principal.
func (c *Config) Vault() [20]byte { return mustAddress(c.VaultAddress) }

// Book returns the parsed order-book module principal.
func (c *Config) Book() [20]byte { return mustAddress(c.BookAddress) }

// mustAddress is only reachable after validate has vetted the field.
func mustAddress(value string) [20]byte {
	addr, err := ParseAddress(value)
	if err != nil {
		panic(err)
	}
	return addr
}
