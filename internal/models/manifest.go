package models

import "encoding/json"

// ManifestVersion is the current manifest document version.
const ManifestVersion = "1.0"

// ManifestAlgorithm is the only supported fingerprint algorithm.
const ManifestAlgorithm = "sha256"

// Manifest is the signed, off-chain JSON document asserting a fingerprint,
// its location, and its creator. Documents are immutable once signed; any
// mutation invalidates the signature and is treated as tamper evidence.
type Manifest struct {
	Version      string            `json:"version"`
	Algorithm    string            `json:"algorithm"`
	ContentHash  string            `json:"content_hash"`
	ContentURI   string            `json:"content_uri,omitempty"`
	CreatorDID   string            `json:"creator_did"`
	CreatedAt    string            `json:"created_at"`
	Signature    string            `json:"signature"`
	Attestations []json.RawMessage `json:"attestations"`
}
