package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapkit/bapvault/internal/errs"
)

func TestResolveRootDeterministic(t *testing.T) {
	xprv, err := NewMasterKey()
	require.NoError(t, err)

	a, err := ResolveRoot(xprv)
	require.NoError(t, err)
	b, err := ResolveRoot(xprv)
	require.NoError(t, err)

	assert.Equal(t, a.Identity, b.Identity)
	assert.NotEmpty(t, a.Identity.BapID)
	assert.NotEmpty(t, a.Identity.Address)
}

func TestResolveMemberDistinctFromRoot(t *testing.T) {
	xprv, err := NewMasterKey()
	require.NoError(t, err)

	root, err := ResolveRoot(xprv)
	require.NoError(t, err)
	member, err := ResolveMember(xprv, 1)
	require.NoError(t, err)

	assert.NotEqual(t, root.Identity.BapID, member.Identity.BapID)
	assert.NotEqual(t, root.Identity.Address, member.Identity.Address)

	// Index 0 is the root by construction.
	zero, err := ResolveMember(xprv, RootIndex)
	require.NoError(t, err)
	assert.Equal(t, root.Identity, zero.Identity)
}

func TestResolveInvalidKeyMaterial(t *testing.T) {
	_, err := ResolveRoot("not an xprv")
	assert.ErrorIs(t, err, errs.ErrInvalidKeyMaterial)

	// A public extended key is not usable master material.
	_, err = ResolveRoot("xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8")
	assert.ErrorIs(t, err, errs.ErrInvalidKeyMaterial)
}

func TestFromPubKeyHexMatchesDerived(t *testing.T) {
	xprv, err := NewMasterKey()
	require.NoError(t, err)
	root, err := ResolveRoot(xprv)
	require.NoError(t, err)

	id, err := FromPubKeyHex(root.Identity.PubKey)
	require.NoError(t, err)
	assert.Equal(t, root.Identity, id)

	_, err = FromPubKeyHex("zz")
	assert.ErrorIs(t, err, errs.ErrInvalidKeyMaterial)
}

func TestMemberWIFRoundTrip(t *testing.T) {
	xprv, err := NewMasterKey()
	require.NoError(t, err)
	member, err := ResolveMember(xprv, 3)
	require.NoError(t, err)

	wif, err := MemberWIF(member.PrivKey)
	require.NoError(t, err)

	restored, err := FromWIF(wif)
	require.NoError(t, err)
	assert.Equal(t, member.Identity, restored.Identity)
}
