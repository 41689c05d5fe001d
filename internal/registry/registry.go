// Package registry maintains the OAuth account to identity mapping: one
// (provider, account) slot points at exactly one bapId. Conflicts are a
// normal outcome here — a second device signing up fresh, or an OAuth account
// shared across identities — so Link reports them as values, not errors, and
// the caller decides the resolution path.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/store"
)

// LinkResult is the outcome of a Link call.
type LinkResult struct {
	// Linked is true when the mapping now points at the requested bapId.
	Linked bool
	// ExistingBapID carries the current owner when Linked is false.
	ExistingBapID string
}

// Registry defines the mapping operations.
type Registry interface {
	// Lookup returns the bapId owning (provider, accountID), or errs.ErrNotFound.
	Lookup(ctx context.Context, provider, accountID string) (string, error)
	// Link points the slot at bapID. Re-linking the same pair is idempotent.
	// A slot owned by a different identity yields a conflict result unless
	// force is set; force is reserved for the post-verification transfer path.
	Link(ctx context.Context, provider, accountID, bapID string, force bool) (LinkResult, error)
	// Transfer repoints the slot from one verified owner to another. The
	// caller must already hold cryptographic proof of fromBapID ownership.
	Transfer(ctx context.Context, provider, accountID, fromBapID, toBapID string) error
	// Unlink deletes the mapping; absent mappings are not an error.
	Unlink(ctx context.Context, provider, accountID string) error
	// FindAccount reverse-maps: which provider account points at bapID.
	// Transfer requests identify the source by identity, not account ID.
	FindAccount(ctx context.Context, provider, bapID string) (string, error)
}

type RegistryImpl struct {
	store store.Store
}

var _ Registry = (*RegistryImpl)(nil)

// New constructs a Registry over the shared store.
func New(s store.Store) *RegistryImpl {
	return &RegistryImpl{store: s}
}

func (r *RegistryImpl) Lookup(ctx context.Context, provider, accountID string) (string, error) {
	return r.store.Get(ctx, store.OAuthKey(provider, accountID))
}

// Link is deliberately lookup-then-set rather than an atomic conditional
// write; two interleaved Link calls for the same slot can race within a
// narrow window. See DESIGN.md before "fixing" this.
func (r *RegistryImpl) Link(ctx context.Context, provider, accountID, bapID string, force bool) (LinkResult, error) {
	existing, err := r.store.Get(ctx, store.OAuthKey(provider, accountID))
	switch {
	case err == nil:
		if existing == bapID {
			return LinkResult{Linked: true}, nil
		}
		if !force {
			return LinkResult{Linked: false, ExistingBapID: existing}, nil
		}
	case !errors.Is(err, errs.ErrNotFound):
		return LinkResult{}, fmt.Errorf("lookup oauth mapping: %w", err)
	}
	if err := r.store.Set(ctx, store.OAuthKey(provider, accountID), bapID); err != nil {
		return LinkResult{}, fmt.Errorf("write oauth mapping: %w", err)
	}
	return LinkResult{Linked: true}, nil
}

func (r *RegistryImpl) Transfer(ctx context.Context, provider, accountID, fromBapID, toBapID string) error {
	current, err := r.store.Get(ctx, store.OAuthKey(provider, accountID))
	if err != nil {
		return fmt.Errorf("transfer lookup: %w", err)
	}
	if current != fromBapID {
		return fmt.Errorf("transfer source changed: %w", errs.ErrAlreadyLinked)
	}
	if err := r.store.Set(ctx, store.OAuthKey(provider, accountID), toBapID); err != nil {
		return fmt.Errorf("transfer write: %w", err)
	}
	return nil
}

func (r *RegistryImpl) Unlink(ctx context.Context, provider, accountID string) error {
	return r.store.Del(ctx, store.OAuthKey(provider, accountID))
}

func (r *RegistryImpl) FindAccount(ctx context.Context, provider, bapID string) (string, error) {
	prefix := store.OAuthKey(provider, "")
	keys, err := r.store.Keys(ctx, prefix+"*")
	if err != nil {
		return "", fmt.Errorf("scan oauth mappings: %w", err)
	}
	for _, k := range keys {
		owner, err := r.store.Get(ctx, k)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if owner == bapID {
			return k[len(prefix):], nil
		}
	}
	return "", errs.ErrNotFound
}
