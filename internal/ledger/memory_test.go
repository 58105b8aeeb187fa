package ledger_test

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originmark/provenance/internal/ledger"
	"github.com/originmark/provenance/internal/models"
)

const (
	creatorAddr  = "0x1111111111111111111111111111111111111111"
	strangerAddr = "0x2222222222222222222222222222222222222222"
)

func hashOf(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

func TestRegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	reg := ledger.NewMemoryRegistry(creatorAddr)
	h := hashOf("photo.jpg")

	tx, err := reg.Register(ctx, h, "ipfs://QmManifest")
	require.NoError(t, err)
	assert.NotEmpty(t, tx)

	entry, err := reg.Entries(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, ledger.HashHex(h), entry.ContentHash)
	assert.Equal(t, creatorAddr, entry.Creator)
	assert.Equal(t, "ipfs://QmManifest", entry.ManifestURI)
	assert.NotZero(t, entry.Timestamp)
	assert.True(t, entry.Registered())
}

func TestRegisterDuplicateFails(t *testing.T) {
	ctx := context.Background()
	reg := ledger.NewMemoryRegistry(creatorAddr)
	h := hashOf("dup")

	_, err := reg.Register(ctx, h, "https://example.com/m1.json")
	require.NoError(t, err)

	// A failed second registration must not disturb the first one's state,
	// even when attempted by the original creator with a new URI.
	_, err = reg.Register(ctx, h, "https://example.com/m2.json")
	assert.ErrorIs(t, err, models.ErrAlreadyRegistered)

	_, err = reg.AsCaller(strangerAddr).Register(ctx, h, "https://example.com/m3.json")
	assert.ErrorIs(t, err, models.ErrAlreadyRegistered)

	entry, err := reg.Entries(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/m1.json", entry.ManifestURI)
	assert.Equal(t, creatorAddr, entry.Creator)
}

func TestUnregisteredLookupIsZeroValued(t *testing.T) {
	ctx := context.Background()
	reg := ledger.NewMemoryRegistry(creatorAddr)

	entry, err := reg.Entries(ctx, hashOf("never registered"))
	require.NoError(t, err)
	assert.Equal(t, models.ZeroAddress, entry.Creator)
	assert.False(t, entry.Registered())
	assert.Zero(t, entry.Timestamp)
}

func TestAuthorizationChecks(t *testing.T) {
	ctx := context.Background()
	reg := ledger.NewMemoryRegistry(creatorAddr)
	h := hashOf("guarded")

	_, err := reg.Register(ctx, h, "https://example.com/m.json")
	require.NoError(t, err)

	stranger := reg.AsCaller(strangerAddr)

	testCases := []struct {
		name string
		call func() error
	}{
		{"update by non-creator", func() error {
			_, err := stranger.UpdateManifest(ctx, h, "https://evil.example.com/m.json")
			return err
		}},
		{"revoke by non-creator", func() error {
			_, err := stranger.Revoke(ctx, h)
			return err
		}},
		{"bind by non-creator", func() error {
			_, err := stranger.BindPlatform(ctx, h, "youtube", "vid123")
			return err
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.call(), models.ErrNotCreator)
		})
	}

	// Existence is checked before authorization.
	missing := hashOf("missing")
	_, err = stranger.UpdateManifest(ctx, missing, "https://example.com/m.json")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = stranger.Revoke(ctx, missing)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = stranger.BindPlatform(ctx, missing, "youtube", "vid123")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateManifestBumpsTimestamp(t *testing.T) {
	ctx := context.Background()
	reg := ledger.NewMemoryRegistry(creatorAddr)
	h := hashOf("updatable")

	clock := uint64(1000)
	reg.SetClock(func() uint64 { return clock })

	_, err := reg.Register(ctx, h, "https://example.com/v1.json")
	require.NoError(t, err)

	clock = 2000
	_, err = reg.UpdateManifest(ctx, h, "https://example.com/v2.json")
	require.NoError(t, err)

	entry, err := reg.Entries(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v2.json", entry.ManifestURI)
	assert.Equal(t, uint64(2000), entry.Timestamp)
}

func TestRevokeIsVisibleNotErasure(t *testing.T) {
	ctx := context.Background()
	reg := ledger.NewMemoryRegistry(creatorAddr)
	h := hashOf("revocable")

	_, err := reg.Register(ctx, h, "https://example.com/m.json")
	require.NoError(t, err)
	_, err = reg.Revoke(ctx, h)
	require.NoError(t, err)

	entry, err := reg.Entries(ctx, h)
	require.NoError(t, err)
	assert.Empty(t, entry.ManifestURI)
	assert.Equal(t, creatorAddr, entry.Creator)
	assert.NotZero(t, entry.Timestamp)
	assert.True(t, entry.Registered())
	assert.True(t, entry.Revoked())
}

func TestBindPlatform(t *testing.T) {
	ctx := context.Background()
	reg := ledger.NewMemoryRegistry(creatorAddr)
	h1 := hashOf("video one")
	h2 := hashOf("video two")

	_, err := reg.Register(ctx, h1, "https://example.com/m1.json")
	require.NoError(t, err)
	_, err = reg.Register(ctx, h2, "https://example.com/m2.json")
	require.NoError(t, err)

	_, err = reg.BindPlatform(ctx, h1, "youtube", "vid123")
	require.NoError(t, err)

	entry, err := reg.ResolveByPlatform(ctx, "youtube", "vid123")
	require.NoError(t, err)
	assert.Equal(t, ledger.HashHex(h1), entry.ContentHash)

	// A pair binds once, even when rebinding the same hash.
	_, err = reg.BindPlatform(ctx, h1, "youtube", "vid123")
	assert.ErrorIs(t, err, models.ErrAlreadyBound)
	_, err = reg.BindPlatform(ctx, h2, "youtube", "vid123")
	assert.ErrorIs(t, err, models.ErrAlreadyBound)

	// One hash may carry many bindings.
	_, err = reg.BindPlatform(ctx, h1, "tiktok", "tt9")
	require.NoError(t, err)

	// Platform strings are opaque; case variants are distinct pairs.
	_, err = reg.BindPlatform(ctx, h2, "YouTube", "vid123")
	require.NoError(t, err)
	entry, err = reg.ResolveByPlatform(ctx, "YouTube", "vid123")
	require.NoError(t, err)
	assert.Equal(t, ledger.HashHex(h2), entry.ContentHash)
}

func TestResolveUnboundPairIsZeroValued(t *testing.T) {
	ctx := context.Background()
	reg := ledger.NewMemoryRegistry(creatorAddr)

	entry, err := reg.ResolveByPlatform(ctx, "youtube", "nope")
	require.NoError(t, err)
	assert.Equal(t, models.ZeroAddress, entry.Creator)
	assert.False(t, entry.Registered())
}

func TestFilterRegistrations(t *testing.T) {
	ctx := context.Background()
	reg := ledger.NewMemoryRegistry(creatorAddr)
	h1 := hashOf("event one")
	h2 := hashOf("event two")

	_, err := reg.Register(ctx, h1, "https://example.com/m1.json")
	require.NoError(t, err)
	_, err = reg.Register(ctx, h2, "https://example.com/m2.json")
	require.NoError(t, err)

	head, err := reg.HeadBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), head)

	events, err := reg.FilterRegistrations(ctx, h1, 0, head)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ledger.HashHex(h1), events[0].ContentHash)
	assert.Equal(t, creatorAddr, events[0].Creator)
	assert.Equal(t, uint64(1), events[0].BlockNumber)

	// Range bounds are inclusive and exclude earlier blocks.
	events, err = reg.FilterRegistrations(ctx, h1, 2, head)
	require.NoError(t, err)
	assert.Empty(t, events)
}
