// Package identity derives stable Bitcoin identities from master key
// material. Derivation is pure: the same extended key always resolves to the
// same identity keys and addresses, which is what makes backups portable
// across devices.
package identity

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/model"
)

// purpose is the hardened BIP43 purpose value scoping all identity keys:
// m/424150'/<index>'. 424150 spells "BAP" in hex (0x424150). The root
// identity lives at index 0 by construction, so "which identity is primary"
// never depends on ordering inside the backup payload.
const purpose = 424150

// RootIndex is the member index of the primary identity.
const RootIndex uint32 = 0

// Resolved pairs a derived identity with its signing key. The private key
// stays in the caller's scope; nothing here persists it.
type Resolved struct {
	Identity model.BapIdentity
	PrivKey  *btcec.PrivateKey
}

// NewMasterKey generates fresh master key material and returns it in
// extended-private-key form. Used by clients and tests; the server never
// generates identities on a user's behalf.
func NewMasterKey() (string, error) {
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	if err != nil {
		return "", err
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return "", err
	}
	return master.String(), nil
}

// ResolveRoot derives the primary identity from master key material.
func ResolveRoot(xprv string) (Resolved, error) {
	return ResolveMember(xprv, RootIndex)
}

// ResolveMember derives the identity at the given member index.
// Returns errs.ErrInvalidKeyMaterial if xprv cannot be parsed or is not a
// private extended key.
func ResolveMember(xprv string, index uint32) (Resolved, error) {
	master, err := hdkeychain.NewKeyFromString(xprv)
	if err != nil || !master.IsPrivate() {
		return Resolved{}, errs.ErrInvalidKeyMaterial
	}
	scope, err := master.Derive(hdkeychain.HardenedKeyStart + purpose)
	if err != nil {
		return Resolved{}, errs.ErrInvalidKeyMaterial
	}
	child, err := scope.Derive(hdkeychain.HardenedKeyStart + index)
	if err != nil {
		return Resolved{}, errs.ErrInvalidKeyMaterial
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return Resolved{}, errs.ErrInvalidKeyMaterial
	}
	return FromPrivKey(priv), nil
}

// FromPrivKey computes the identity record for an already-derived signing key
// (member backups carry a bare WIF instead of an xprv).
func FromPrivKey(priv *btcec.PrivateKey) Resolved {
	return Resolved{Identity: fromPub(priv.PubKey()), PrivKey: priv}
}

func fromPub(pub *btcec.PublicKey) model.BapIdentity {
	ser := pub.SerializeCompressed()
	hash := btcutil.Hash160(ser)
	addr, _ := btcutil.NewAddressPubKeyHash(hash, &chaincfg.MainNetParams)
	return model.BapIdentity{
		BapID:   base58.Encode(hash),
		Address: addr.EncodeAddress(),
		PubKey:  hex.EncodeToString(ser),
	}
}

// FromPubKeyHex computes the identity record for a proven public key, e.g.
// one recovered from a signed auth token. No private key is involved.
func FromPubKeyHex(pubHex string) (model.BapIdentity, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return model.BapIdentity{}, errs.ErrInvalidKeyMaterial
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return model.BapIdentity{}, errs.ErrInvalidKeyMaterial
	}
	return fromPub(pub), nil
}

// MemberWIF serializes a member signing key for an exported sub-profile.
func MemberWIF(priv *btcec.PrivateKey) (string, error) {
	wif, err := btcutil.NewWIF(priv, &chaincfg.MainNetParams, true)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}

// FromWIF resolves the identity of an exported member key.
func FromWIF(wifStr string) (Resolved, error) {
	wif, err := btcutil.DecodeWIF(wifStr)
	if err != nil {
		return Resolved{}, errs.ErrInvalidKeyMaterial
	}
	return FromPrivKey(wif.PrivKey), nil
}
