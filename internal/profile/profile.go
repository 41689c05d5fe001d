// Package profile maintains the denormalized user record cache and the
// address-to-identity mapping. Writes are best-effort sequential: a later
// failure logs and leaves earlier writes in place, since re-running the same
// creation is idempotent and self-healing.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/model"
	"github.com/bapkit/bapvault/internal/store"
)

// Service defines user record operations.
type Service interface {
	// Create writes the user record and address mapping for a new identity.
	Create(ctx context.Context, id model.BapIdentity) (model.UserRecord, error)
	// Get returns the record, or errs.ErrNotFound.
	Get(ctx context.Context, bapID string) (model.UserRecord, error)
	// Update sets display fields; empty arguments leave fields untouched.
	Update(ctx context.Context, bapID, displayName, avatar string) error
	// Backfill fills empty display fields from OAuth profile data.
	Backfill(ctx context.Context, bapID, displayName, avatar string) error
	// ResolveAddress maps a signing address to its identity key.
	ResolveAddress(ctx context.Context, address string) (string, error)
}

type ServiceImpl struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

var _ Service = (*ServiceImpl)(nil)

// New constructs the profile service. now may be nil (defaults to time.Now).
func New(s store.Store, log *zap.Logger, now func() time.Time) *ServiceImpl {
	if now == nil {
		now = time.Now
	}
	return &ServiceImpl{store: s, log: log, now: now}
}

func (p *ServiceImpl) Create(ctx context.Context, id model.BapIdentity) (model.UserRecord, error) {
	if id.BapID == "" || id.Address == "" {
		return model.UserRecord{}, errors.New("validation: empty bapId/address")
	}
	rec := model.UserRecord{
		BapID:     id.BapID,
		Address:   id.Address,
		IDKey:     id.BapID,
		CreatedAt: p.now().UTC(),
	}
	fields := map[string]string{
		"address":   rec.Address,
		"idKey":     rec.IDKey,
		"createdAt": rec.CreatedAt.Format(time.RFC3339),
	}
	if err := p.store.HSet(ctx, store.UserKey(id.BapID), fields); err != nil {
		return model.UserRecord{}, fmt.Errorf("write user record: %w", err)
	}
	// Later writes are best-effort: log and continue.
	addrFields := map[string]string{"id": id.BapID, "block": "0"}
	if err := p.store.HSet(ctx, store.Addr2BapKey(id.Address), addrFields); err != nil {
		p.log.Error("write addr2bap", zap.String("bapId", id.BapID), zap.Error(err))
	}
	return rec, nil
}

func (p *ServiceImpl) Get(ctx context.Context, bapID string) (model.UserRecord, error) {
	h, err := p.store.HGetAll(ctx, store.UserKey(bapID))
	if err != nil {
		return model.UserRecord{}, err
	}
	rec := model.UserRecord{
		BapID:       bapID,
		Address:     h["address"],
		IDKey:       h["idKey"],
		DisplayName: h["displayName"],
		Avatar:      h["avatar"],
	}
	if ts := h["createdAt"]; ts != "" {
		rec.CreatedAt, _ = time.Parse(time.RFC3339, ts)
	}
	return rec, nil
}

func (p *ServiceImpl) Update(ctx context.Context, bapID, displayName, avatar string) error {
	if _, err := p.store.HGetAll(ctx, store.UserKey(bapID)); err != nil {
		return err
	}
	fields := map[string]string{}
	if displayName != "" {
		fields["displayName"] = displayName
	}
	if avatar != "" {
		fields["avatar"] = avatar
	}
	if len(fields) == 0 {
		return nil
	}
	return p.store.HSet(ctx, store.UserKey(bapID), fields)
}

func (p *ServiceImpl) Backfill(ctx context.Context, bapID, displayName, avatar string) error {
	rec, err := p.Get(ctx, bapID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	fields := map[string]string{}
	if rec.DisplayName == "" && displayName != "" {
		fields["displayName"] = displayName
	}
	if rec.Avatar == "" && avatar != "" {
		fields["avatar"] = avatar
	}
	if len(fields) == 0 {
		return nil
	}
	return p.store.HSet(ctx, store.UserKey(bapID), fields)
}

func (p *ServiceImpl) ResolveAddress(ctx context.Context, address string) (string, error) {
	h, err := p.store.HGetAll(ctx, store.Addr2BapKey(address))
	if err != nil {
		return "", err
	}
	id := h["id"]
	if id == "" {
		return "", errs.ErrNotFound
	}
	return id, nil
}
