package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/austinjfi/mmi-defi-adapters/internal/chain"
	"github.com/austinjfi/mmi-defi-adapters/internal/observability"
)

// Key identifies one adapter implementation.
type Key struct {
	Protocol Protocol
	Chain    Chain
	Product  Product
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Protocol, k.Chain, k.Product)
}

// Deployment carries the immutable contract addresses an adapter needs,
// resolved from configuration at construction time.
type Deployment struct {
	Chain     Chain
	Contracts map[string]common.Address
}

// Contract returns the address registered under role, or an error if the
// deployment does not define it.
func (d Deployment) Contract(role string) (common.Address, error) {
	addr, ok := d.Contracts[role]
	if !ok {
		return common.Address{}, fmt.Errorf("deployment for chain %s missing contract %q", d.Chain, role)
	}
	return addr, nil
}

// Deps are the external collaborators handed to adapter factories.
type Deps struct {
	Caller     chain.ContractCaller
	Filterer   chain.LogFilterer
	Metadata   MetadataResolver
	Deployment Deployment
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
}

// Factory builds one adapter instance from its collaborators.
type Factory func(Deps) (ProtocolAdapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Key]Factory)
)

// Register installs a factory for key. Adapter packages call it from init;
// a duplicate key is a programming error and panics.
func Register(key Key, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[key]; dup {
		panic(fmt.Sprintf("adapter: duplicate registration for %s", key))
	}
	registry[key] = factory
}

// New constructs the adapter registered for key.
func New(key Key, deps Deps) (ProtocolAdapter, error) {
	registryMu.RLock()
	factory, ok := registry[key]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("adapter: no adapter registered for %s", key)
	}
	return factory(deps)
}

// SupportedProtocols lists registered adapter keys in stable order.
func SupportedProtocols() []Key {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]Key, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
