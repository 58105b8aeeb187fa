package manifest_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originmark/provenance/internal/manifest"
	"github.com/originmark/provenance/internal/models"
)

func newTestBuilder(t *testing.T, chainID int64) *manifest.Builder {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return manifest.NewBuilder(key, chainID)
}

func TestBuildSignsRecoverably(t *testing.T) {
	b := newTestBuilder(t, 137)

	doc, err := b.Build(helloWorldHash, "ipfs://QmContent")
	require.NoError(t, err)

	assert.Equal(t, models.ManifestVersion, doc.Version)
	assert.Equal(t, models.ManifestAlgorithm, doc.Algorithm)
	assert.Equal(t, helloWorldHash, doc.ContentHash)
	assert.Equal(t, "ipfs://QmContent", doc.ContentURI)
	assert.Equal(t, fmt.Sprintf("did:pkh:eip155:137:%s", b.Address()), doc.CreatorDID)
	assert.NotEmpty(t, doc.CreatedAt)
	assert.NotNil(t, doc.Attestations)

	recovered := manifest.RecoverSigner(doc.ContentHash, doc.Signature)
	assert.Equal(t, b.Address(), recovered)
}

func TestBuildRejectsMalformedHash(t *testing.T) {
	b := newTestBuilder(t, 1)
	_, err := b.Build("0xnothex", "")
	assert.ErrorIs(t, err, models.ErrInvalidContentHash)
}

func TestRecoverSignerTamperedHash(t *testing.T) {
	b := newTestBuilder(t, 1)
	doc, err := b.Build(helloWorldHash, "")
	require.NoError(t, err)

	// The same signature over a different hash recovers to a different
	// address rather than failing.
	otherHash := "0x" + strings.Repeat("11", 32)
	recovered := manifest.RecoverSigner(otherHash, doc.Signature)
	assert.NotEqual(t, models.ZeroAddress, recovered)
	assert.NotEqual(t, b.Address(), recovered)
}

func TestRecoverSignerFailsClosed(t *testing.T) {
	testCases := []struct {
		name      string
		hash      string
		signature string
	}{
		{"malformed hash", "0xnope", "0x" + strings.Repeat("ab", 65)},
		{"non-hex signature", helloWorldHash, "0xzz"},
		{"short signature", helloWorldHash, "0x" + strings.Repeat("ab", 30)},
		{"long signature", helloWorldHash, "0x" + strings.Repeat("ab", 70)},
		{"empty signature", helloWorldHash, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, models.ZeroAddress, manifest.RecoverSigner(tc.hash, tc.signature))
		})
	}
}

func TestRecoverSignerLegacyRecoveryID(t *testing.T) {
	b := newTestBuilder(t, 1)
	doc, err := b.Build(helloWorldHash, "")
	require.NoError(t, err)

	// Shift v from 0/1 to the legacy 27/28 form; recovery must still work.
	sig := strings.TrimPrefix(doc.Signature, "0x")
	last := sig[len(sig)-2:]
	var legacy string
	switch last {
	case "00":
		legacy = sig[:len(sig)-2] + "1b"
	case "01":
		legacy = sig[:len(sig)-2] + "1c"
	default:
		t.Fatalf("unexpected recovery id %q", last)
	}

	assert.Equal(t, b.Address(), manifest.RecoverSigner(helloWorldHash, "0x"+legacy))
}

func TestNewBuilderFromHex(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := fmt.Sprintf("%x", crypto.FromECDSA(key))

	b, err := manifest.NewBuilderFromHex(hexKey, 1)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), b.Address())

	// The 0x prefix is tolerated.
	b2, err := manifest.NewBuilderFromHex("0x"+hexKey, 1)
	require.NoError(t, err)
	assert.Equal(t, b.Address(), b2.Address())

	_, err = manifest.NewBuilderFromHex("not a key", 1)
	assert.Error(t, err)
}
