package storage

import (
	"errors"

	"github.com/ethereum/go-ethereum/rlp"
)

// State adapts a Database into the typed KV interface the accounting
// modules consume, encoding records with RLP so the byte layout is
// deterministic across backends.
type State struct {
	db Database
}

// NewState wraps the supplied database.
func NewState(db Database) *State {
	return &State{db: db}
}

// KVGet decodes the value stored under key into out, reporting whether the
// key existed at all.
func (s *State) KVGet(key []byte, out interface{}) (bool, error) {
	value, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(value, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVPut encodes value with RLP and stores it under key.
func (s *State) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.db.Put(key, encoded)
}
