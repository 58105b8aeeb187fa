package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/originmark/provenance/internal/models"
)

// memoryState is the shared state behind one in-memory ledger. The mutex
// linearizes state-changing calls the way a chain linearizes transactions:
// two concurrent registrations of the same hash race and exactly one wins.
type memoryState struct {
	mu       sync.Mutex
	entries  map[[32]byte]models.ContentEntry
	bindings map[bindingKey][32]byte
	events   []RegistrationEvent
	height   uint64
	now      func() uint64
}

// Platform names are kept opaque; mixed-case pairs occupy distinct slots.
type bindingKey struct {
	platform   string
	platformID string
}

// MemoryRegistry is an in-process Registry with the same semantics as the
// on-chain contract. It backs the "memory" ledger backend for local
// development and the engine tests.
type MemoryRegistry struct {
	state  *memoryState
	caller string
}

// NewMemoryRegistry creates an empty in-memory ledger whose transactions are
// signed by caller.
func NewMemoryRegistry(caller string) *MemoryRegistry {
	return &MemoryRegistry{
		state: &memoryState{
			entries:  make(map[[32]byte]models.ContentEntry),
			bindings: make(map[bindingKey][32]byte),
			now:      func() uint64 { return uint64(time.Now().Unix()) },
		},
		caller: caller,
	}
}

// AsCaller returns a view of the same ledger acting as a different caller.
func (r *MemoryRegistry) AsCaller(addr string) *MemoryRegistry {
	return &MemoryRegistry{state: r.state, caller: addr}
}

// SetClock replaces the timestamp source. Intended for tests.
func (r *MemoryRegistry) SetClock(now func() uint64) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.now = now
}

func (r *MemoryRegistry) Caller() string { return r.caller }

func (r *MemoryRegistry) Register(_ context.Context, hash [32]byte, manifestURI string) (TxRef, error) {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[hash]; exists {
		return "", models.ErrAlreadyRegistered
	}

	entry := models.ContentEntry{
		ContentHash: HashHex(hash),
		Creator:     r.caller,
		ManifestURI: manifestURI,
		Timestamp:   s.now(),
	}
	s.entries[hash] = entry

	tx := s.nextTx()
	s.events = append(s.events, RegistrationEvent{
		ContentHash: entry.ContentHash,
		Creator:     entry.Creator,
		ManifestURI: entry.ManifestURI,
		Timestamp:   entry.Timestamp,
		TxHash:      string(tx),
		BlockNumber: s.height,
	})
	return tx, nil
}

func (r *MemoryRegistry) UpdateManifest(_ context.Context, hash [32]byte, manifestURI string) (TxRef, error) {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[hash]
	if !exists {
		return "", models.ErrNotFound
	}
	if entry.Creator != r.caller {
		return "", models.ErrNotCreator
	}

	entry.ManifestURI = manifestURI
	entry.Timestamp = s.now()
	s.entries[hash] = entry
	return s.nextTx(), nil
}

func (r *MemoryRegistry) Revoke(_ context.Context, hash [32]byte) (TxRef, error) {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[hash]
	if !exists {
		return "", models.ErrNotFound
	}
	if entry.Creator != r.caller {
		return "", models.ErrNotCreator
	}

	// Revocation is visible, not erasure: creator and timestamp persist.
	entry.ManifestURI = ""
	entry.Timestamp = s.now()
	s.entries[hash] = entry
	return s.nextTx(), nil
}

func (r *MemoryRegistry) BindPlatform(_ context.Context, hash [32]byte, platform, platformID string) (TxRef, error) {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[hash]
	if !exists {
		return "", models.ErrNotFound
	}
	if entry.Creator != r.caller {
		return "", models.ErrNotCreator
	}

	key := bindingKey{platform: platform, platformID: platformID}
	if _, bound := s.bindings[key]; bound {
		return "", models.ErrAlreadyBound
	}
	s.bindings[key] = hash
	return s.nextTx(), nil
}

func (r *MemoryRegistry) Entries(_ context.Context, hash [32]byte) (models.ContentEntry, error) {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[hash]
	if !exists {
		return zeroEntry(), nil
	}
	return entry, nil
}

func (r *MemoryRegistry) ResolveByPlatform(_ context.Context, platform, platformID string) (models.ContentEntry, error) {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, bound := s.bindings[bindingKey{platform: platform, platformID: platformID}]
	if !bound {
		return zeroEntry(), nil
	}
	return s.entries[hash], nil
}

func (r *MemoryRegistry) FilterRegistrations(_ context.Context, hash [32]byte, from, to uint64) ([]RegistrationEvent, error) {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	want := HashHex(hash)
	var matches []RegistrationEvent
	for _, ev := range s.events {
		if ev.ContentHash == want && ev.BlockNumber >= from && ev.BlockNumber <= to {
			matches = append(matches, ev)
		}
	}
	return matches, nil
}

func (r *MemoryRegistry) HeadBlock(_ context.Context) (uint64, error) {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height, nil
}

// nextTx advances the chain height by one block per transaction and returns a
// synthetic transaction hash. Callers must hold the lock.
func (s *memoryState) nextTx() TxRef {
	s.height++
	return TxRef(fmt.Sprintf("0x%064x", s.height))
}

func zeroEntry() models.ContentEntry {
	return models.ContentEntry{Creator: models.ZeroAddress}
}

// HashHex renders a 32-byte fingerprint as its canonical 0x-prefixed form.
func HashHex(hash [32]byte) string {
	return "0x" + hex.EncodeToString(hash[:])
}
