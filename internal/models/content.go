// Package models defines the domain types shared across the provenance service.
package models

import (
	"strings"
	"time"
)

// ZeroAddress is the zero-valued creator address returned by the registry for
// absent entries and unbound platform lookups.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ContentEntry is the on-chain registration record for a content fingerprint.
// A revoked entry keeps its creator and timestamp with an empty manifest URI.
type ContentEntry struct {
	ContentHash string `json:"content_hash" db:"content_hash"`
	Creator     string `json:"creator" db:"creator"`
	ManifestURI string `json:"manifest_uri" db:"manifest_uri"`
	Timestamp   uint64 `json:"timestamp" db:"timestamp"`
}

// Registered reports whether the entry exists on chain. The registry returns
// a zero-valued struct for unknown hashes, so the creator address is the
// existence signal.
func (e ContentEntry) Registered() bool {
	return e.Creator != "" && !strings.EqualFold(e.Creator, ZeroAddress)
}

// Revoked reports whether the entry exists but its manifest URI was cleared.
func (e ContentEntry) Revoked() bool {
	return e.Registered() && e.ManifestURI == ""
}

// PlatformBinding maps a platform-specific identifier to a registered
// fingerprint. Bindings are immutable once created.
type PlatformBinding struct {
	Platform    string `json:"platform" db:"platform"`
	PlatformID  string `json:"platform_id" db:"platform_id"`
	ContentHash string `json:"content_hash" db:"content_hash"`
}

// VerificationStatus is the tri-state verdict of the verification pipeline.
type VerificationStatus string

const (
	StatusOK   VerificationStatus = "OK"
	StatusWarn VerificationStatus = "WARN"
	StatusFail VerificationStatus = "FAIL"
)

// VerificationRecord is an append-only audit log entry written after every
// verify or proof call. Records are not deduplicated.
type VerificationRecord struct {
	ID               string             `json:"id" db:"id"`
	ContentHash      string             `json:"content_hash" db:"content_hash"`
	ManifestURI      string             `json:"manifest_uri" db:"manifest_uri"`
	RecoveredAddress string             `json:"recovered_address" db:"recovered_address"`
	CreatorOnchain   string             `json:"creator_onchain" db:"creator_onchain"`
	Status           VerificationStatus `json:"status" db:"status"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
}
