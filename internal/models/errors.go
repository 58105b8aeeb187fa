package models

import "errors"

// Registry errors mirror the revert conditions of the on-chain registry.
var (
	// ErrAlreadyRegistered is returned when a content hash already has an entry
	ErrAlreadyRegistered = errors.New("content hash already registered")

	// ErrNotCreator is returned when a mutating call is made by an address
	// other than the entry creator
	ErrNotCreator = errors.New("caller is not the content creator")

	// ErrNotFound is returned when no entry exists for a content hash
	ErrNotFound = errors.New("content entry not found")

	// ErrAlreadyBound is returned when a (platform, platformId) pair is
	// already mapped to a content hash
	ErrAlreadyBound = errors.New("platform identifier already bound")
)

// Manifest resolution errors.
var (
	// ErrUnsupportedManifestURI is returned for manifest pointer schemes other
	// than ipfs:// and http(s)://
	ErrUnsupportedManifestURI = errors.New("unsupported manifest URI scheme")

	// ErrManifestFetchFailed is returned when the manifest endpoint responds
	// with a non-2xx status
	ErrManifestFetchFailed = errors.New("manifest fetch failed")

	// ErrManifestParseFailed is returned when the manifest body is not valid JSON
	ErrManifestParseFailed = errors.New("manifest parse failed")
)

var (
	// ErrInvalidContentHash is returned when a fingerprint is not a 0x-prefixed
	// 64-hex-digit string
	ErrInvalidContentHash = errors.New("invalid content hash")

	// ErrJobNotFound is returned when polling an unknown job identifier
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidRequest is returned when a job request fails validation
	ErrInvalidRequest = errors.New("invalid request")
)
