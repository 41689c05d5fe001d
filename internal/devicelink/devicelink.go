// Package devicelink issues the short-lived, single-use tokens that hand an
// encrypted backup to a second device, and the password-gated variant that
// exports a root backup for a sub-profile. Tokens live ~10 minutes and die on
// first successful use; missing and expired tokens are indistinguishable.
package devicelink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/bapkit/bapvault/internal/crypto/backupcrypto"
	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/identity"
	"github.com/bapkit/bapvault/internal/model"
	"github.com/bapkit/bapvault/internal/store"
	"github.com/bapkit/bapvault/internal/vault"
)

// TokenTTL is the validity window for both token kinds.
const TokenTTL = 600 * time.Second

// GenerateResult is returned to the initiating device.
type GenerateResult struct {
	Token     string `json:"token"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// Service defines the token operations.
type Service interface {
	// GenerateDeviceLink creates a one-time hand-off token for an identity.
	GenerateDeviceLink(ctx context.Context, id model.BapIdentity) (GenerateResult, error)
	// ValidateDeviceLink consumes a token and returns its payload plus the
	// owner's backup ciphertext.
	ValidateDeviceLink(ctx context.Context, token string) (model.DeviceLinkPayload, model.EncryptedBlob, error)

	// GenerateExport creates a one-time export token for a root backup.
	GenerateExport(ctx context.Context, bapID, createdBy string) (GenerateResult, error)
	// PeekExport checks a token without consuming it, so the second device
	// can show a confirmation step before asking for the password.
	PeekExport(ctx context.Context, token string) (model.ExportPayload, error)
	// DownloadExport verifies the password against the owner's backup,
	// requires the backup to be a root backup, consumes the token, and
	// returns the ciphertext.
	DownloadExport(ctx context.Context, token, password string) (model.EncryptedBlob, error)
}

type ServiceImpl struct {
	store   store.Store
	backups vault.Vault
	baseURL string
	now     func() time.Time
}

var _ Service = (*ServiceImpl)(nil)

// New constructs the token service. now may be nil (defaults to time.Now).
func New(s store.Store, backups vault.Vault, baseURL string, now func() time.Time) *ServiceImpl {
	if now == nil {
		now = time.Now
	}
	return &ServiceImpl{store: s, backups: backups, baseURL: baseURL, now: now}
}

func (d *ServiceImpl) GenerateDeviceLink(ctx context.Context, id model.BapIdentity) (GenerateResult, error) {
	if id.BapID == "" {
		return GenerateResult{}, errors.New("validation: empty bapId")
	}
	payload := model.DeviceLinkPayload{
		BapID:     id.BapID,
		Address:   id.Address,
		IDKey:     id.BapID,
		CreatedAt: d.now().UTC(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return GenerateResult{}, err
	}
	token, err := newToken()
	if err != nil {
		return GenerateResult{}, err
	}
	if err := d.store.SetTTL(ctx, store.DeviceLinkKey(token), string(raw), TokenTTL); err != nil {
		return GenerateResult{}, fmt.Errorf("store device link: %w", err)
	}
	return GenerateResult{
		Token:     token,
		URL:       d.baseURL + "/device-link?token=" + token,
		ExpiresIn: int(TokenTTL.Seconds()),
	}, nil
}

func (d *ServiceImpl) ValidateDeviceLink(ctx context.Context, token string) (model.DeviceLinkPayload, model.EncryptedBlob, error) {
	raw, err := d.store.GetDel(ctx, store.DeviceLinkKey(token))
	if err != nil {
		return model.DeviceLinkPayload{}, "", err
	}
	var payload model.DeviceLinkPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return model.DeviceLinkPayload{}, "", fmt.Errorf("decode device link: %w", err)
	}
	blob, err := d.backups.Fetch(ctx, payload.BapID)
	if err != nil {
		return model.DeviceLinkPayload{}, "", err
	}
	return payload, blob, nil
}

func (d *ServiceImpl) GenerateExport(ctx context.Context, bapID, createdBy string) (GenerateResult, error) {
	if bapID == "" {
		return GenerateResult{}, errors.New("validation: empty bapId")
	}
	payload := model.ExportPayload{
		BapID:     bapID,
		CreatedBy: createdBy,
		CreatedAt: d.now().UTC(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return GenerateResult{}, err
	}
	token, err := newToken()
	if err != nil {
		return GenerateResult{}, err
	}
	if err := d.store.SetTTL(ctx, store.MemberExportKey(token), string(raw), TokenTTL); err != nil {
		return GenerateResult{}, fmt.Errorf("store export token: %w", err)
	}
	return GenerateResult{
		Token:     token,
		URL:       d.baseURL + "/member-export?token=" + token,
		ExpiresIn: int(TokenTTL.Seconds()),
	}, nil
}

func (d *ServiceImpl) PeekExport(ctx context.Context, token string) (model.ExportPayload, error) {
	raw, err := d.store.Get(ctx, store.MemberExportKey(token))
	if err != nil {
		return model.ExportPayload{}, err
	}
	var payload model.ExportPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return model.ExportPayload{}, fmt.Errorf("decode export token: %w", err)
	}
	return payload, nil
}

func (d *ServiceImpl) DownloadExport(ctx context.Context, token, password string) (model.EncryptedBlob, error) {
	payload, err := d.PeekExport(ctx, token)
	if err != nil {
		return "", err
	}
	blob, err := d.backups.Fetch(ctx, payload.BapID)
	if err != nil {
		return "", err
	}
	// Transient decrypt: plaintext stays inside this call.
	plain, err := backupcrypto.Decrypt([]byte(password), string(blob))
	if err != nil {
		return "", errs.ErrIdentityMismatch
	}
	var master model.MasterBackup
	if err := json.Unmarshal(plain, &master); err != nil || !master.IsRoot() {
		return "", fmt.Errorf("not a root backup: %w", errs.ErrIdentityMismatch)
	}
	if _, err := identity.ResolveRoot(master.Xprv); err != nil {
		return "", fmt.Errorf("root key unusable: %w", errs.ErrIdentityMismatch)
	}
	// Consume only after the password proves out; the atomic GetDel makes
	// the first successful download the only one.
	if _, err := d.store.GetDel(ctx, store.MemberExportKey(token)); err != nil {
		return "", err
	}
	return blob, nil
}

func newToken() (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
