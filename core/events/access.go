package events

import (
	"encoding/hex"

	"attestledger/core/types"
)

const (
	TypeRoleChanged = "access.roleChanged"
	TypePaused      = "access.paused"
	TypeUnpaused    = "access.unpaused"
)

// RoleChanged is emitted for both grants and revocations; Granted
// distinguishes the two.
type RoleChanged struct {
	Account [20]byte
	Role    uint32
	Granted bool
	Caller  [20]byte
}

func (RoleChanged) EventType() string { return TypeRoleChanged }

func (e RoleChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleChanged,
		Attributes: map[string]string{
			"account": hex.EncodeToString(e.Account[:]),
			"role":    uintToString(uint64(e.Role)),
			"granted": boolToString(e.Granted),
			"caller":  hex.EncodeToString(e.Caller[:]),
		},
	}
}

// Paused marks the moment every state-mutating entry point starts rejecting.
type Paused struct {
	Caller [20]byte
}

func (Paused) EventType() string { return TypePaused }

func (e Paused) Event() *types.Event {
	return &types.Event{
		Type:       TypePaused,
		Attributes: map[string]string{"caller": hex.EncodeToString(e.Caller[:])},
	}
}

// Unpaused is the admin-only counterpart of Paused.
type Unpaused struct {
	Caller [20]byte
}

func (Unpaused) EventType() string { return TypeUnpaused }

func (e Unpaused) Event() *types.Event {
	return &types.Event{
		Type:       TypeUnpaused,
		Attributes: map[string]string{"caller": hex.EncodeToString(e.Caller[:])},
	}
}
