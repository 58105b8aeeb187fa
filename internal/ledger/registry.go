// Package ledger provides the typed client for the on-chain content registry.
//
// All state-changing calls execute as ledger transactions and are linearized
// by the ledger itself; the client performs no locking of its own beyond what
// an individual implementation needs for internal bookkeeping.
package ledger

import (
	"context"

	"github.com/originmark/provenance/internal/models"
)

// TxRef identifies a submitted ledger transaction.
type TxRef string

// RegistrationEvent is a ContentRegistered event read from the ledger log.
type RegistrationEvent struct {
	ContentHash string `json:"content_hash"`
	Creator     string `json:"creator"`
	ManifestURI string `json:"manifest_uri"`
	Timestamp   uint64 `json:"timestamp"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// Registry is the typed interface over the six registry operations plus the
// bounded event-log scan used for proof generation. Reads return zero-valued
// entries for absent hashes and unbound platform pairs rather than erroring.
type Registry interface {
	// Register creates an entry for hash with the caller as creator.
	// Fails with models.ErrAlreadyRegistered if an entry exists.
	Register(ctx context.Context, hash [32]byte, manifestURI string) (TxRef, error)

	// UpdateManifest overwrites the manifest URI of an existing entry.
	// Fails with models.ErrNotFound or models.ErrNotCreator.
	UpdateManifest(ctx context.Context, hash [32]byte, manifestURI string) (TxRef, error)

	// Revoke clears the manifest URI of an existing entry. The entry and its
	// creator remain queryable. Same authorization as UpdateManifest.
	Revoke(ctx context.Context, hash [32]byte) (TxRef, error)

	// BindPlatform maps (platform, platformID) to an already-registered hash.
	// Fails with models.ErrAlreadyBound if the pair is already mapped,
	// including to the same hash.
	BindPlatform(ctx context.Context, hash [32]byte, platform, platformID string) (TxRef, error)

	// Entries returns the entry for hash, zero-valued if absent.
	Entries(ctx context.Context, hash [32]byte) (models.ContentEntry, error)

	// ResolveByPlatform returns the entry bound to (platform, platformID),
	// zero-valued if the pair is unbound.
	ResolveByPlatform(ctx context.Context, platform, platformID string) (models.ContentEntry, error)

	// FilterRegistrations scans ContentRegistered events for hash over the
	// inclusive block range [from, to]. Callers must bound the range.
	FilterRegistrations(ctx context.Context, hash [32]byte, from, to uint64) ([]RegistrationEvent, error)

	// HeadBlock returns the current ledger height.
	HeadBlock(ctx context.Context) (uint64, error)

	// Caller returns the address this client signs transactions with.
	Caller() string
}
