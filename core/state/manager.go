package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"bloomsocial/storage"
)

var (
	// ErrJournalActive is returned by Begin when a journal is already open.
	ErrJournalActive = errors.New("state: journal already active")
	// ErrNoJournal is returned by writes and Commit outside a journal.
	ErrNoJournal = errors.New("state: no active journal")
)

// Manager reads and writes RLP-encoded ledger state on top of a key-value
// database. Writes are staged in a journal opened with Begin and reach the
// database only through Commit, as one atomic batch.
type Manager struct {
	db      storage.Database
	journal map[string]journalEntry
	order   []string
}

type journalEntry struct {
	value   []byte
	deleted bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a journal. Subsequent reads observe staged writes.
func (m *Manager) Begin() error {
	if m.journal != nil {
		return ErrJournalActive
	}
	m.journal = make(map[string]journalEntry)
	m.order = m.order[:0]
	return nil
}

// InJournal reports whether a journal is open.
func (m *Manager) InJournal() bool { return m.journal != nil }

// Commit writes every staged change in a single batch and closes the journal.
// On a write failure the journal is discarded and nothing is applied.
func (m *Manager) Commit() error {
	if m.journal == nil {
		return ErrNoJournal
	}
	batch := m.db.NewBatch()
	for _, key := range m.order {
		entry := m.journal[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	m.journal = nil
	m.order = m.order[:0]
	if batch.Len() == 0 {
		return nil
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Rollback discards every staged change and closes the journal.
func (m *Manager) Rollback() {
	m.journal = nil
	m.order = m.order[:0]
}

// Pending reports the number of keys staged in the open journal.
func (m *Manager) Pending() int { return len(m.journal) }

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) stage(hashed []byte, entry journalEntry) error {
	if m.journal == nil {
		return ErrNoJournal
	}
	k := string(hashed)
	if _, seen := m.journal[k]; !seen {
		m.order = append(m.order, k)
	}
	m.journal[k] = entry
	return nil
}

func (m *Manager) read(hashed []byte) ([]byte, bool, error) {
	if m.journal != nil {
		if entry, ok := m.journal[string(hashed)]; ok {
			if entry.deleted {
				return nil, false, nil
			}
			return entry.value, true, nil
		}
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// KVPut stores the RLP encoding of value under the supplied key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.stage(kvKey(key), journalEntry{value: encoded})
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.read(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key. Deleting a missing key is not an error.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.stage(kvKey(key), journalEntry{deleted: true})
}
