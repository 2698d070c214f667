// Package config loads the service configuration: HTTP listen address,
// per-chain RPC endpoints, per-protocol deployment addresses, and the
// metadata directory.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
)

type Config struct {
	ListenAddress string            `toml:"ListenAddress"`
	MetadataDir   string            `toml:"MetadataDir"`
	Chains        map[string]Chain  `toml:"Chains"`
	Deployments   []DeploymentEntry `toml:"Deployments"`
}

type Chain struct {
	RPCURL string `toml:"RPCURL"`
}

type DeploymentEntry struct {
	Protocol  string            `toml:"Protocol"`
	Chain     string            `toml:"Chain"`
	Contracts map[string]string `toml:"Contracts"`
}

var chainsByName = map[string]adapter.Chain{
	"ethereum": adapter.ChainEthereum,
	"arbitrum": adapter.ChainArbitrum,
	"base":     adapter.ChainBase,
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	if cfg.MetadataDir == "" {
		cfg.MetadataDir = "metadata"
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("no chains configured")
	}
	for name, chain := range c.Chains {
		if _, ok := chainsByName[name]; !ok {
			return fmt.Errorf("unknown chain %q", name)
		}
		if strings.TrimSpace(chain.RPCURL) == "" {
			return fmt.Errorf("chain %s: missing RPCURL", name)
		}
	}

	if len(c.Deployments) == 0 {
		return fmt.Errorf("no deployments configured")
	}
	for _, dep := range c.Deployments {
		if _, ok := chainsByName[dep.Chain]; !ok {
			return fmt.Errorf("deployment %s: unknown chain %q", dep.Protocol, dep.Chain)
		}
		if _, ok := c.Chains[dep.Chain]; !ok {
			return fmt.Errorf("deployment %s: chain %q has no RPC endpoint", dep.Protocol, dep.Chain)
		}
		if len(dep.Contracts) == 0 {
			return fmt.Errorf("deployment %s on %s: no contracts", dep.Protocol, dep.Chain)
		}
		for role, addr := range dep.Contracts {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("deployment %s on %s: contract %q has invalid address %q", dep.Protocol, dep.Chain, role, addr)
			}
		}
	}
	return nil
}

// ChainID resolves a configured chain name.
func ChainID(name string) (adapter.Chain, bool) {
	id, ok := chainsByName[name]
	return id, ok
}

// Deployment converts a validated entry into the registry's form.
func (d DeploymentEntry) Deployment() adapter.Deployment {
	contracts := make(map[string]common.Address, len(d.Contracts))
	for role, addr := range d.Contracts {
		contracts[role] = common.HexToAddress(addr)
	}
	chainID := chainsByName[d.Chain]
	return adapter.Deployment{Chain: chainID, Contracts: contracts}
}
