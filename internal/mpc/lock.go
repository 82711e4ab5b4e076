package mpc

import (
	"sync"

	"github.com/vultforge/core/internal/coreerr"
)

// vaultLocks enforces §5's "client must hold a local lock per vault_id
// for the duration of initiate→complete" — a second initiate against a
// locked vault fails with VaultBusy, and the lock is released on any
// terminal transition.
type vaultLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newVaultLocks() *vaultLocks {
	return &vaultLocks{held: make(map[string]struct{})}
}

// acquire returns VaultBusy if vaultID is already locked.
func (l *vaultLocks) acquire(vaultID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[vaultID]; busy {
		return coreerr.New(coreerr.VaultBusy, "a session is already active for vault %q", vaultID)
	}
	l.held[vaultID] = struct{}{}
	return nil
}

// release is idempotent — safe to call from any terminal-transition path.
func (l *vaultLocks) release(vaultID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, vaultID)
}
