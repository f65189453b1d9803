package config

import (
	"encoding/hex"
	"os"

	"leased/crypto"
	"leased/lease"

	"github.com/BurntSushi/toml"
)

// Config is the top-level runtime configuration for a lease-module node: the
// ambient listen/RPC/storage settings plus the lease-specific [lease] table.
type Config struct {
	ListenAddress string      `toml:"ListenAddress"`
	RPCAddress    string      `toml:"RPCAddress"`
	DataDir       string      `toml:"DataDir"`
	OperatorKey   string      `toml:"OperatorKey"`
	Lease         leaseConfig `toml:"lease"`
}

// leaseConfig is an alias of lease.Config, decoded directly from the [lease]
// TOML table; Load applies its defaults after decoding.
type leaseConfig = lease.Config

// Load loads the configuration from the given path, generating and
// persisting defaults (including a fresh operator key) on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.Lease.EnsureDefaults()

	if cfg.OperatorKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.OperatorKey = hex.EncodeToString(key.Bytes())

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress: ":6001",
		RPCAddress:    ":8080",
		DataDir:       "./lease-data",
		OperatorKey:   hex.EncodeToString(key.Bytes()),
	}
	cfg.Lease.EnsureDefaults()

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
