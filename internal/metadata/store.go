package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
)

// Store reads and writes the per-protocol-per-chain market metadata files.
// Files are plain JSON arrays of markets, regenerated by cmd/buildmetadata.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(protocol adapter.Protocol, chainID adapter.Chain) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", protocol, chainID))
}

// Read loads the cached markets for a protocol on a chain. A missing file is
// reported via os.IsNotExist so callers can fall back to a live lookup.
func (s *Store) Read(protocol adapter.Protocol, chainID adapter.Chain) ([]adapter.Market, error) {
	data, err := os.ReadFile(s.path(protocol, chainID))
	if err != nil {
		return nil, err
	}
	var markets []adapter.Market
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path(protocol, chainID), err)
	}
	return markets, nil
}

// Write replaces the cached markets atomically (temp file + rename) so a
// concurrent reader never observes a partial file.
func (s *Store) Write(protocol adapter.Protocol, chainID adapter.Chain, markets []adapter.Market) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(markets, "", "  ")
	if err != nil {
		return err
	}

	target := s.path(protocol, chainID)
	tmp, err := os.CreateTemp(s.dir, ".metadata-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}
