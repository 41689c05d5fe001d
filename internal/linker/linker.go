// Package linker drives the OAuth linking saga. The provider is only used to
// learn a provider account ID, but signing in with it would normally replace
// the caller's Bitcoin-credentials session; this orchestrator snapshots that
// session before the redirect and explicitly restores it afterwards, so a
// successful link leaves the active identity unchanged. Every terminal
// outcome consumes the pending link state.
package linker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/bapkit/bapvault/internal/crypto/backupcrypto"
	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/identity"
	"github.com/bapkit/bapvault/internal/limiter"
	"github.com/bapkit/bapvault/internal/model"
	"github.com/bapkit/bapvault/internal/oauth"
	"github.com/bapkit/bapvault/internal/profile"
	"github.com/bapkit/bapvault/internal/registry"
	"github.com/bapkit/bapvault/internal/session"
	"github.com/bapkit/bapvault/internal/store"
	"github.com/bapkit/bapvault/internal/vault"
)

// SessionTTL bounds the OAuth redirect round-trip.
const SessionTTL = 600 * time.Second

// CallbackResult is the outcome of the provider redirect.
type CallbackResult struct {
	// Linked: the mapping was written and the original session restored.
	Linked bool
	// Conflict: the account belongs to another identity. No mapping was
	// touched; the caller must choose transfer or switch.
	Conflict bool

	Provider      string
	AccountID     string
	CurrentBapID  string
	ExistingBapID string

	// SessionToken is the re-issued Bitcoin-credentials session on success.
	SessionToken string
	// RestoreFailed: the link was written but the original session could
	// not be restored; the client must be sent to a clean sign-in rather
	// than left half-authenticated via OAuth.
	RestoreFailed bool
}

// StagedSignin hands an existing account's backup to the sign-in flow when
// the user abandons the new identity after a conflict.
type StagedSignin struct {
	Nonce      string              `json:"nonce"`
	BapID      string              `json:"bapId"`
	Ciphertext model.EncryptedBlob `json:"ciphertext"`
}

// Orchestrator is the linking state machine.
type Orchestrator interface {
	// Begin persists the single-use link session and returns the provider
	// authorize URL carrying the CSRF state.
	Begin(ctx context.Context, sess session.Session, rawToken string, p oauth.Provider) (string, error)
	// Callback consumes the link session, enforces the CSRF state match,
	// exchanges the code and attempts the link.
	Callback(ctx context.Context, state, code, providerErr string) (CallbackResult, error)
	// Transfer resolves a conflict by proving ownership of the existing
	// identity with its backup password, then repointing the mapping.
	Transfer(ctx context.Context, p oauth.Provider, fromBapID, toBapID, password, ipHash string) error
	// Switch resolves a conflict by adopting the existing identity: stages
	// its backup for sign-in and discards the new identity's pending state.
	Switch(ctx context.Context, p oauth.Provider, accountID string) (StagedSignin, error)
	// Unlink disconnects a provider, refusing to cut the branch the current
	// session sits on.
	Unlink(ctx context.Context, sess session.Session, p oauth.Provider) error
}

// ProviderClient is the slice of the OAuth client the orchestrator needs.
type ProviderClient interface {
	AuthCodeURL(p oauth.Provider, state string) string
	Exchange(ctx context.Context, p oauth.Provider, code string) (oauth.Account, error)
}

type OrchestratorImpl struct {
	store    store.Store
	links    registry.Registry
	backups  vault.Vault
	profiles profile.Service
	sessions *session.Manager
	provider ProviderClient
	lim      limiter.Limiter
	log      *zap.Logger
}

var _ Orchestrator = (*OrchestratorImpl)(nil)

// New wires the orchestrator's collaborators.
func New(s store.Store, links registry.Registry, backups vault.Vault, profiles profile.Service,
	sessions *session.Manager, provider ProviderClient, lim limiter.Limiter, log *zap.Logger) *OrchestratorImpl {
	return &OrchestratorImpl{
		store: s, links: links, backups: backups, profiles: profiles,
		sessions: sessions, provider: provider, lim: lim, log: log,
	}
}

// Begin: Idle -> AwaitingOAuthRedirect.
func (o *OrchestratorImpl) Begin(ctx context.Context, sess session.Session, rawToken string, p oauth.Provider) (string, error) {
	nonce, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	// The state embeds the bapId so the callback can find the stored link
	// session; the nonce half is what actually gets exact-matched.
	state := sess.BapID + "." + nonce.String()
	ls := model.LinkSession{
		BapID:        sess.BapID,
		Provider:     p.String(),
		State:        state,
		SessionToken: rawToken,
		CreatedAt:    time.Now().UTC(),
	}
	raw, err := json.Marshal(ls)
	if err != nil {
		return "", err
	}
	// Overwrite any previous attempt: restarting the flow invalidates the
	// old state rather than locking the user out for the TTL.
	if err := o.store.SetTTL(ctx, store.LinkSessionKey(sess.BapID), string(raw), SessionTTL); err != nil {
		return "", fmt.Errorf("store link session: %w", err)
	}
	return o.provider.AuthCodeURL(p, state), nil
}

// Callback: AwaitingCallback -> {Linked | Conflict | Failed}.
func (o *OrchestratorImpl) Callback(ctx context.Context, state, code, providerErr string) (CallbackResult, error) {
	bapID, ok := bapIDFromState(state)
	if !ok {
		return CallbackResult{}, fmt.Errorf("callback state unparseable: %w", errs.ErrUnauthorized)
	}
	// Single-use: the session is consumed no matter how the callback ends.
	rawSession, err := o.store.GetDel(ctx, store.LinkSessionKey(bapID))
	if err != nil {
		return CallbackResult{}, fmt.Errorf("no pending link session: %w", errs.ErrUnauthorized)
	}
	var ls model.LinkSession
	if err := json.Unmarshal([]byte(rawSession), &ls); err != nil {
		return CallbackResult{}, fmt.Errorf("decode link session: %w", err)
	}
	if providerErr != "" {
		return CallbackResult{}, fmt.Errorf("provider returned %q: %w", providerErr, errs.ErrUnauthorized)
	}
	// Exact-match CSRF check, before any registry access.
	if state != ls.State {
		return CallbackResult{}, fmt.Errorf("state mismatch: %w", errs.ErrUnauthorized)
	}
	p, err := oauth.ParseProvider(ls.Provider)
	if err != nil {
		return CallbackResult{}, err
	}
	account, err := o.provider.Exchange(ctx, p, code)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("exchange: %w", err)
	}

	res, err := o.links.Link(ctx, ls.Provider, account.ID, ls.BapID, false)
	if err != nil {
		return CallbackResult{}, err
	}
	out := CallbackResult{
		Provider:     ls.Provider,
		AccountID:    account.ID,
		CurrentBapID: ls.BapID,
	}
	if !res.Linked {
		out.Conflict = true
		out.ExistingBapID = res.ExistingBapID
		return out, nil
	}
	out.Linked = true

	if err := o.profiles.Backfill(ctx, ls.BapID, account.DisplayName, account.Avatar); err != nil {
		o.log.Warn("profile backfill", zap.String("bapId", ls.BapID), zap.Error(err))
	}

	out.SessionToken, out.RestoreFailed = o.restore(ls)
	return out, nil
}

// restore re-issues the snapshotted Bitcoin-credentials session. Losing it
// silently is worse than a forced re-login, so any doubt fails the restore.
func (o *OrchestratorImpl) restore(ls model.LinkSession) (string, bool) {
	if ls.SessionToken == "" {
		return "", true
	}
	prev, err := o.sessions.Verify(ls.SessionToken)
	if err != nil || prev.Kind != session.KindBitcoin || prev.BapID != ls.BapID {
		return "", true
	}
	prev.Provider = ls.Provider
	fresh, err := o.sessions.Issue(prev)
	if err != nil {
		o.log.Error("session restore", zap.String("bapId", ls.BapID), zap.Error(err))
		return "", true
	}
	return fresh, false
}

// Transfer: Conflict -> TransferPending -> Linked.
func (o *OrchestratorImpl) Transfer(ctx context.Context, p oauth.Provider, fromBapID, toBapID, password, ipHash string) error {
	allowed, err := o.lim.Allow(ctx, fromBapID, ipHash)
	if err != nil {
		return err
	}
	if !allowed {
		return errs.ErrRateLimited
	}
	accountID, err := o.links.FindAccount(ctx, p.String(), fromBapID)
	if err != nil {
		return err
	}
	blob, err := o.backups.Fetch(ctx, fromBapID)
	if err != nil {
		return err
	}
	if err := o.proveOwnership(blob, password, fromBapID); err != nil {
		if blocked, ferr := o.lim.Failure(ctx, fromBapID, ipHash); ferr == nil && blocked {
			return errs.ErrRateLimited
		}
		return err
	}
	_ = o.lim.Success(ctx, fromBapID, ipHash)

	if err := o.links.Transfer(ctx, p.String(), accountID, fromBapID, toBapID); err != nil {
		return err
	}
	o.log.Info("oauth mapping transferred",
		zap.String("provider", p.String()),
		zap.String("from", fromBapID),
		zap.String("to", toBapID),
	)
	return nil
}

// proveOwnership decrypts the backup transiently and checks that it derives
// the claimed identity. The plaintext never leaves this call.
func (o *OrchestratorImpl) proveOwnership(blob model.EncryptedBlob, password, claimedBapID string) error {
	plain, err := backupcrypto.Decrypt([]byte(password), string(blob))
	if err != nil {
		return errs.ErrIdentityMismatch
	}
	var master model.MasterBackup
	if err := json.Unmarshal(plain, &master); err != nil || !master.IsRoot() {
		return errs.ErrIdentityMismatch
	}
	resolved, err := identity.ResolveRoot(master.Xprv)
	if err != nil {
		return errs.ErrIdentityMismatch
	}
	if resolved.Identity.BapID != claimedBapID {
		return errs.ErrIdentityMismatch
	}
	return nil
}

// Switch: Conflict -> SwitchAccount.
func (o *OrchestratorImpl) Switch(ctx context.Context, p oauth.Provider, accountID string) (StagedSignin, error) {
	bapID, err := o.links.Lookup(ctx, p.String(), accountID)
	if err != nil {
		return StagedSignin{}, err
	}
	blob, err := o.backups.Fetch(ctx, bapID)
	if err != nil {
		return StagedSignin{}, err
	}
	nonce, err := uuid.NewV4()
	if err != nil {
		return StagedSignin{}, err
	}
	if err := o.store.SetTTL(ctx, store.PendingBackupKey(nonce.String()), string(blob), SessionTTL); err != nil {
		return StagedSignin{}, fmt.Errorf("stage backup: %w", err)
	}
	return StagedSignin{Nonce: nonce.String(), BapID: bapID, Ciphertext: blob}, nil
}

// Unlink refuses to disconnect the provider the current session came from.
func (o *OrchestratorImpl) Unlink(ctx context.Context, sess session.Session, p oauth.Provider) error {
	if sess.Provider == p.String() {
		return fmt.Errorf("cannot disconnect active session provider: %w", errs.ErrForbidden)
	}
	accountID, err := o.links.FindAccount(ctx, p.String(), sess.BapID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil // idempotent
	}
	if err != nil {
		return err
	}
	return o.links.Unlink(ctx, p.String(), accountID)
}

func bapIDFromState(state string) (string, bool) {
	i := strings.LastIndexByte(state, '.')
	if i <= 0 || i == len(state)-1 {
		return "", false
	}
	return state[:i], true
}
