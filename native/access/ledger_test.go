package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memoryStore) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestGrantRequiresAdmin(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	admin := addr(1)
	outsider := addr(2)
	target := addr(3)

	if err := ledger.Bootstrap(admin); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := ledger.Grant(outsider, target, RoleAttestor); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := ledger.Grant(admin, target, RoleAttestor); err != nil {
		t.Fatalf("grant: %v", err)
	}
	ok, err := ledger.HasRole(target, RoleAttestor)
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if !ok {
		t.Fatalf("expected attestor role")
	}
}

func TestRolesAreIndependentBits(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	admin := addr(1)
	if err := ledger.Bootstrap(admin); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if ok, _ := ledger.HasRole(admin, RoleAttestor); ok {
		t.Fatalf("admin must not imply attestor")
	}
	if err := ledger.Grant(admin, admin, RoleOperator); err != nil {
		t.Fatalf("grant operator: %v", err)
	}
	roles, err := ledger.Roles(admin)
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	if roles != RoleAdmin|RoleOperator {
		t.Fatalf("expected bitmap %b, got %b", RoleAdmin|RoleOperator, roles)
	}
}

func TestRevokeClearsRoleAndHolderIndex(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	admin := addr(1)
	target := addr(2)
	if err := ledger.Bootstrap(admin); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := ledger.Grant(admin, target, RoleBusiness); err != nil {
		t.Fatalf("grant: %v", err)
	}
	holders, err := ledger.RoleHolders()
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	if len(holders) != 2 {
		t.Fatalf("expected 2 holders, got %d", len(holders))
	}
	if err := ledger.Revoke(admin, target, RoleBusiness); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := ledger.HasRole(target, RoleBusiness); ok {
		t.Fatalf("role should be revoked")
	}
	holders, err = ledger.RoleHolders()
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	if len(holders) != 1 || holders[0] != admin {
		t.Fatalf("expected only admin in holder index, got %v", holders)
	}
}

func TestPausePermissions(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	admin := addr(1)
	operator := addr(2)
	outsider := addr(3)
	if err := ledger.Bootstrap(admin); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := ledger.Grant(admin, operator, RoleOperator); err != nil {
		t.Fatalf("grant operator: %v", err)
	}

	if err := ledger.Pause(outsider); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := ledger.Pause(operator); err != nil {
		t.Fatalf("operator pause: %v", err)
	}
	if paused, _ := ledger.IsPaused(); !paused {
		t.Fatalf("expected paused")
	}
	if err := ledger.RequireNotPaused(); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}

	// Operator may pause but only admin may unpause.
	if err := ledger.Unpause(operator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := ledger.Unpause(admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if paused, _ := ledger.IsPaused(); paused {
		t.Fatalf("expected unpaused")
	}
}
