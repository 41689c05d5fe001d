// Package vault stores one encrypted backup blob per identity. Blobs are
// opaque: the server writes, hashes and returns ciphertext but never holds a
// key to it. Last write wins; there is no version history.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/model"
	"github.com/bapkit/bapvault/internal/registry"
	"github.com/bapkit/bapvault/internal/store"
)

// Vault defines backup blob operations.
type Vault interface {
	// Store overwrites the current blob and its hash/timestamp metadata.
	Store(ctx context.Context, bapID string, ciphertext model.EncryptedBlob) error
	// Fetch returns the blob, or errs.ErrNotFound.
	Fetch(ctx context.Context, bapID string) (model.EncryptedBlob, error)
	// FetchByOAuth resolves the owning identity via the link registry, then
	// fetches. Always consistent with the live mapping by construction.
	FetchByOAuth(ctx context.Context, provider, accountID string) (model.EncryptedBlob, error)
	// Status reports existence and staleness metadata without the blob itself.
	Status(ctx context.Context, bapID string) (model.BackupStatus, error)
}

type VaultImpl struct {
	store store.Store
	links registry.Registry
	now   func() time.Time
}

var _ Vault = (*VaultImpl)(nil)

// New constructs a Vault. now may be nil (defaults to time.Now).
func New(s store.Store, links registry.Registry, now func() time.Time) *VaultImpl {
	if now == nil {
		now = time.Now
	}
	return &VaultImpl{store: s, links: links, now: now}
}

func (v *VaultImpl) Store(ctx context.Context, bapID string, ciphertext model.EncryptedBlob) error {
	if bapID == "" || ciphertext == "" {
		return errors.New("validation: empty bapId/ciphertext")
	}
	if err := v.store.Set(ctx, store.BackupKey(bapID), string(ciphertext)); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	sum := sha256.Sum256([]byte(ciphertext))
	meta := model.BackupMetadata{
		LastUpdated: v.now().UTC(),
		Hash:        hex.EncodeToString(sum[:]),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := v.store.Set(ctx, store.BackupMetadataKey(bapID), string(raw)); err != nil {
		return fmt.Errorf("write backup metadata: %w", err)
	}
	return nil
}

func (v *VaultImpl) Fetch(ctx context.Context, bapID string) (model.EncryptedBlob, error) {
	raw, err := v.store.Get(ctx, store.BackupKey(bapID))
	if err != nil {
		return "", err
	}
	return model.EncryptedBlob(raw), nil
}

func (v *VaultImpl) FetchByOAuth(ctx context.Context, provider, accountID string) (model.EncryptedBlob, error) {
	bapID, err := v.links.Lookup(ctx, provider, accountID)
	if err != nil {
		return "", err
	}
	return v.Fetch(ctx, bapID)
}

func (v *VaultImpl) Status(ctx context.Context, bapID string) (model.BackupStatus, error) {
	raw, err := v.store.Get(ctx, store.BackupMetadataKey(bapID))
	if errors.Is(err, errs.ErrNotFound) {
		return model.BackupStatus{HasBackup: false}, nil
	}
	if err != nil {
		return model.BackupStatus{}, err
	}
	var meta model.BackupMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return model.BackupStatus{}, fmt.Errorf("decode backup metadata: %w", err)
	}
	return model.BackupStatus{
		HasBackup:   true,
		LastUpdated: meta.LastUpdated,
		Hash:        meta.Hash,
	}, nil
}
