// Package agentstore persists agent credentials locally, one record per
// wallet owner. Records never leave the machine; they exist only to construct
// the order-submission client.
package agentstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/hyperdash/internal/domain"
)

const defaultStateDir = "./state/agents"

// Store keeps one JSON file per owner address under a state directory.
type Store struct {
	dir string
}

func getStateDir() string {
	if dir := os.Getenv("HYPERDASH_AGENT_DIR"); dir != "" {
		return dir
	}
	return defaultStateDir
}

// NewStore creates the store, creating the state directory if needed. An
// empty dir falls back to HYPERDASH_AGENT_DIR or the default location.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = getStateDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create agent state dir")
	}
	return &Store{dir: dir}, nil
}

// Get loads the record for an owner. Returns nil without error when no
// record exists.
func (s *Store) Get(owner string) (*domain.AgentRecord, error) {
	payload, err := os.ReadFile(s.recordPath(owner))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read agent record")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var record domain.AgentRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, errors.Wrap(err, "decode agent record")
	}
	return &record, nil
}

// Put writes the record atomically via a temp file.
func (s *Store) Put(record domain.AgentRecord) error {
	if record.OwnerAddress == "" {
		return errors.New("agent record needs an owner address")
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode agent record")
	}

	path := s.recordPath(record.OwnerAddress)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return errors.Wrap(err, "write agent record")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "replace agent record")
	}
	return nil
}

// Clear removes the record for an owner. Removing a missing record is not an
// error.
func (s *Store) Clear(owner string) error {
	if err := os.Remove(s.recordPath(owner)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove agent record")
	}
	return nil
}

func (s *Store) recordPath(owner string) string {
	name := strings.ToLower(strings.TrimSpace(owner))
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", name))
}
