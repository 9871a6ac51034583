package access

import (
	"errors"
	"fmt"
)

// storage abstracts the subset of state manager functionality required by the
// access control ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	rolesPrefix    = []byte("access/roles/")
	roleHoldersKey = []byte("access/holders")
	pausedKey      = []byte("access/paused")
)

func rolesKey(account [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", rolesPrefix, account))
}

// Ledger persists role bitmaps per account plus the global pause flag.
type Ledger struct {
	store storage
}

// NewLedger constructs an access control ledger bound to the provided storage
// backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

// Roles returns the role bitmap for an account. Accounts without any role
// return 0.
func (l *Ledger) Roles(account [20]byte) (uint32, error) {
	if l == nil || l.store == nil {
		return 0, errors.New("access: ledger not initialised")
	}
	var roles uint32
	ok, err := l.store.KVGet(rolesKey(account), &roles)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return roles, nil
}

// HasRole reports whether the account holds the given role bit.
func (l *Ledger) HasRole(account [20]byte, role uint32) (bool, error) {
	roles, err := l.Roles(account)
	if err != nil {
		return false, err
	}
	return roles&role != 0, nil
}

// Grant adds a role bit to an account. The caller must currently hold Admin.
func (l *Ledger) Grant(caller, account [20]byte, role uint32) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	return l.grant(account, role)
}

// Revoke clears a role bit from an account. The caller must currently hold
// Admin.
func (l *Ledger) Revoke(caller, account [20]byte, role uint32) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	current, err := l.Roles(account)
	if err != nil {
		return err
	}
	return l.setRoles(account, current&^role)
}

// Bootstrap grants Admin to the initial account without a caller check. Used
// exactly once from ledger initialisation, before any admin exists.
func (l *Ledger) Bootstrap(account [20]byte) error {
	return l.grant(account, RoleAdmin)
}

func (l *Ledger) grant(account [20]byte, role uint32) error {
	current, err := l.Roles(account)
	if err != nil {
		return err
	}
	return l.setRoles(account, current|role)
}

func (l *Ledger) setRoles(account [20]byte, roles uint32) error {
	if err := l.store.KVPut(rolesKey(account), roles); err != nil {
		return err
	}
	return l.updateHolders(account, roles != 0)
}

func (l *Ledger) updateHolders(account [20]byte, present bool) error {
	var holders [][20]byte
	if _, err := l.store.KVGet(roleHoldersKey, &holders); err != nil {
		return err
	}
	idx := -1
	for i, holder := range holders {
		if holder == account {
			idx = i
			break
		}
	}
	switch {
	case present && idx < 0:
		holders = append(holders, account)
	case !present && idx >= 0:
		holders = append(holders[:idx], holders[idx+1:]...)
	default:
		return nil
	}
	return l.store.KVPut(roleHoldersKey, holders)
}

// RoleHolders returns every account currently holding at least one role.
func (l *Ledger) RoleHolders() ([][20]byte, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("access: ledger not initialised")
	}
	var holders [][20]byte
	if _, err := l.store.KVGet(roleHoldersKey, &holders); err != nil {
		return nil, err
	}
	if holders == nil {
		holders = [][20]byte{}
	}
	return holders, nil
}

func (l *Ledger) requireAdmin(caller [20]byte) error {
	if l == nil || l.store == nil {
		return errors.New("access: ledger not initialised")
	}
	ok, err := l.HasRole(caller, RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: admin role required", ErrUnauthorized)
	}
	return nil
}

// Pause sets the global pause flag. Admin or Operator may pause.
func (l *Ledger) Pause(caller [20]byte) error {
	roles, err := l.Roles(caller)
	if err != nil {
		return err
	}
	if roles&(RoleAdmin|RoleOperator) == 0 {
		return fmt.Errorf("%w: admin or operator role required", ErrUnauthorized)
	}
	return l.store.KVPut(pausedKey, true)
}

// Unpause clears the global pause flag. Admin only.
func (l *Ledger) Unpause(caller [20]byte) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	return l.store.KVPut(pausedKey, false)
}

// IsPaused reports the current pause flag. Missing state means unpaused.
func (l *Ledger) IsPaused() (bool, error) {
	if l == nil || l.store == nil {
		return false, errors.New("access: ledger not initialised")
	}
	var paused bool
	ok, err := l.store.KVGet(pausedKey, &paused)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return paused, nil
}

// RequireNotPaused fails with ErrPaused while the pause flag is set.
func (l *Ledger) RequireNotPaused() error {
	paused, err := l.IsPaused()
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}
