// Package cas provides content-addressable storage for packed revision
// payloads and the BLAKE3 hashing used to address them.
package cas

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	"lukechampine.com/blake3"
)

// ErrNotFound is returned when no payload is stored under a hash.
var ErrNotFound = errors.New("cas: hash not found")

// Hash represents a BLAKE3-256 hash value.
type Hash [32]byte

// String returns the hexadecimal representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 8 hex characters, used in logs and revision names.
func (h Hash) Short() string {
	return h.String()[:8]
}

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ParseHash decodes a 64 character hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("invalid hash length: %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// SumB3 computes the BLAKE3 hash of the given data.
func SumB3(data []byte) Hash {
	return blake3.Sum256(data)
}

// CAS defines the content-addressable storage interface.
type CAS interface {
	// Put stores data keyed by its hash.
	Put(hash Hash, data []byte) error

	// Get retrieves data by its hash.
	Get(hash Hash) ([]byte, error)

	// Has checks if data exists for the given hash.
	Has(hash Hash) (bool, error)
}

// Store hashes data and puts it into c, returning the address.
func Store(c CAS, data []byte) (Hash, error) {
	h := SumB3(data)
	if err := c.Put(h, data); err != nil {
		return Hash{}, err
	}
	return h, nil
}

// MemoryCAS implements CAS using in-memory storage with thread-safe access.
type MemoryCAS struct {
	mu   sync.RWMutex
	data map[Hash][]byte
}

// NewMemoryCAS creates a new in-memory CAS.
func NewMemoryCAS() *MemoryCAS {
	return &MemoryCAS{
		data: make(map[Hash][]byte),
	}
}

// Put implements CAS.Put.
func (m *MemoryCAS) Put(hash Hash, data []byte) error {
	if computed := SumB3(data); computed != hash {
		return fmt.Errorf("hash mismatch: expected %s, got %s", hash, computed)
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.mu.Lock()
	m.data[hash] = dataCopy
	m.mu.Unlock()
	return nil
}

// Get implements CAS.Get.
func (m *MemoryCAS) Get(hash Hash) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.data[hash]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Has implements CAS.Has.
func (m *MemoryCAS) Has(hash Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.data[hash]
	return exists, nil
}

// Delete drops a payload; deleting a missing hash is not an error.
func (m *MemoryCAS) Delete(hash Hash) {
	m.mu.Lock()
	delete(m.data, hash)
	m.mu.Unlock()
}

// Hashes lists stored hashes in ascending order.
func (m *MemoryCAS) Hashes() []Hash {
	m.mu.RLock()
	out := make([]Hash, 0, len(m.data))
	for h := range m.data {
		out = append(out, h)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Len returns the number of objects stored in the CAS.
func (m *MemoryCAS) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
