package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/emergenetwork/darwinia/storage"
)

// Manager exposes typed key/value helpers over the raw database. Values are
// RLP encoded so that every node derives byte-identical state for identical
// inputs.
type Manager struct {
	db storage.Database
}

// NewManager constructs a state manager bound to the provided database.
func NewManager(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, errors.New("state: database not configured")
	}
	return &Manager{db: db}, nil
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key was present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("state: get %q: %w", key, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value with RLP and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	if err := m.db.Put(key, encoded); err != nil {
		return fmt.Errorf("state: put %q: %w", key, err)
	}
	return nil
}

// KVDelete removes the key from the store. Deleting an absent key is not an
// error.
func (m *Manager) KVDelete(key []byte) error {
	if err := m.db.Delete(key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("state: delete %q: %w", key, err)
	}
	return nil
}

// KVHas reports whether the key exists.
func (m *Manager) KVHas(key []byte) (bool, error) {
	ok, err := m.db.Has(key)
	if err != nil {
		return false, fmt.Errorf("state: has %q: %w", key, err)
	}
	return ok, nil
}
