package manifest

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/originmark/provenance/internal/models"
)

const signatureLen = 65

// Builder constructs and signs manifest documents for one creator identity.
type Builder struct {
	key     *ecdsa.PrivateKey
	chainID int64
}

// NewBuilder creates a Builder signing with the given secp256k1 key on the
// given chain.
func NewBuilder(key *ecdsa.PrivateKey, chainID int64) *Builder {
	return &Builder{key: key, chainID: chainID}
}

// NewBuilderFromHex creates a Builder from a hex-encoded private key.
func NewBuilderFromHex(privateKey string, chainID int64) (*Builder, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, HashPrefix))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return NewBuilder(key, chainID), nil
}

// Address returns the creator address derived from the signing key.
func (b *Builder) Address() string {
	return crypto.PubkeyToAddress(b.key.PublicKey).Hex()
}

// Build produces a signed manifest for contentHash. The signature covers the
// raw 32 bytes decoded from the fingerprint, not its hex rendering, so it can
// be recovered without the document itself.
func (b *Builder) Build(contentHash, contentURI string) (models.Manifest, error) {
	digest, err := DecodeHash(contentHash)
	if err != nil {
		return models.Manifest{}, err
	}

	sig, err := crypto.Sign(digest[:], b.key)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("sign content hash: %w", err)
	}

	return models.Manifest{
		Version:      models.ManifestVersion,
		Algorithm:    models.ManifestAlgorithm,
		ContentHash:  contentHash,
		ContentURI:   contentURI,
		CreatorDID:   fmt.Sprintf("did:pkh:eip155:%d:%s", b.chainID, b.Address()),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		Signature:    HashPrefix + hex.EncodeToString(sig),
		Attestations: []json.RawMessage{},
	}, nil
}

// RecoverSigner recovers the address that signed contentHash. It fails
// closed: malformed hashes or signatures yield the zero address, which never
// matches a real creator, rather than an error.
func RecoverSigner(contentHash, signature string) string {
	digest, err := DecodeHash(contentHash)
	if err != nil {
		return models.ZeroAddress
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(signature, HashPrefix))
	if err != nil || len(sig) != signatureLen {
		return models.ZeroAddress
	}

	// Accept both 0/1 and legacy 27/28 recovery identifiers.
	if sig[signatureLen-1] >= 27 {
		sig = append(append([]byte{}, sig[:signatureLen-1]...), sig[signatureLen-1]-27)
	}

	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return models.ZeroAddress
	}
	return crypto.PubkeyToAddress(*pub).Hex()
}
