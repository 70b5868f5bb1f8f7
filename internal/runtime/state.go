package runtime

import (
	"os"
	"path/filepath"

	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"

	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/errors"
)

// StateStore persists connector state as a JSON file. Saves go through
// a temp file and rename so a crash mid-write never corrupts the last
// good checkpoint.
type StateStore struct {
	path string
}

// NewStateStore creates a store at path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file location.
func (s *StateStore) Path() string {
	return s.path
}

// Load reads the persisted state. A missing file is a first run and
// yields an empty state.
func (s *StateStore) Load() (core.State, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return core.State{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read state file")
	}

	state := core.State{}
	if err := jsonpool.UnmarshalUseNumber(data, &state); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeData, "state file %s is not valid JSON", s.path)
	}
	return state, nil
}

// Save atomically replaces the persisted state.
func (s *StateStore) Save(state core.State) error {
	data, err := jsonpool.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create state directory")
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create state temp file")
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close state temp file")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to replace state file")
	}
	return nil
}
