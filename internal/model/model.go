// Package model defines domain entities used by services and the HTTP layer.
package model

import "time"

// BapIdentity is a derived Bitcoin identity: a stable identity key plus the
// current signing address. Derivation is deterministic from master key
// material, so the same backup restores the same identity on any device.
type BapIdentity struct {
	BapID   string // base58(hash160(identity pubkey)), stable across devices
	Address string // P2PKH address of the current signing key
	PubKey  string // compressed signing pubkey, hex
}

// EncryptedBlob is an opaque ciphertext produced on the client side.
// The server stores and returns it; it never holds the decryption key.
type EncryptedBlob string

// BackupMetadata describes the server's current blob for staleness checks.
// Clients compare Hash against their local copy; plaintext is never compared.
type BackupMetadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Hash        string    `json:"hash"` // hex sha256 of ciphertext
}

// BackupStatus is the client-facing answer to "is my cached backup current?".
type BackupStatus struct {
	HasBackup   bool      `json:"hasBackup"`
	LastUpdated time.Time `json:"lastUpdated,omitzero"`
	Hash        string    `json:"hash,omitempty"`
}

// OAuthLink maps one provider account to exactly one identity. A provider
// account points at a single bapId at a time; repointing requires either an
// empty slot or a password-verified transfer.
type OAuthLink struct {
	Provider          string
	ProviderAccountID string
	BapID             string
}

// UserRecord is the denormalized profile cache keyed by bapId. DisplayName
// and Avatar may be backfilled from OAuth profile data when empty.
type UserRecord struct {
	BapID       string    `json:"bapId"`
	Address     string    `json:"address"`
	IDKey       string    `json:"idKey"`
	DisplayName string    `json:"displayName,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LinkSession is the single-use state carried across the OAuth redirect
// round-trip. It must be cleared on every terminal outcome, success or not.
type LinkSession struct {
	BapID        string    `json:"bapId"`
	Provider     string    `json:"provider"`
	State        string    `json:"state"` // CSRF token, exact-match checked
	SessionToken string    `json:"sessionToken,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DeviceLinkPayload is stored under a one-time device-link token.
type DeviceLinkPayload struct {
	BapID     string    `json:"bapId"`
	Address   string    `json:"address"`
	IDKey     string    `json:"idKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExportPayload is stored under a one-time member-export token.
type ExportPayload struct {
	BapID     string    `json:"bapId"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// MemberID names a derived sub-profile inside a master backup.
type MemberID struct {
	Index uint32 `json:"index"`
	Name  string `json:"name,omitempty"`
}

// MasterBackup is the plaintext schema of a root backup. The server only ever
// sees it transiently, inside a single request, when proving ownership.
type MasterBackup struct {
	Xprv string     `json:"xprv"`
	IDs  []MemberID `json:"ids"`
}

// MemberBackup is the plaintext schema of an exported sub-profile backup.
// It carries no xprv, which is what marks it as non-root for the export check.
type MemberBackup struct {
	WIF   string `json:"wif"`
	BapID string `json:"bapId"`
	Name  string `json:"name,omitempty"`
}

// IsRoot reports whether decrypted backup plaintext is a master backup.
func (m MasterBackup) IsRoot() bool { return m.Xprv != "" }
