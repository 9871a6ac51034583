package events

import (
	"encoding/hex"

	"attestledger/core/types"
)

const (
	TypeBusinessRegistered  = "registry.businessRegistered"
	TypeBusinessApproved    = "registry.businessApproved"
	TypeBusinessSuspended   = "registry.businessSuspended"
	TypeBusinessReactivated = "registry.businessReactivated"
)

// BusinessRegistered is emitted when a business files its registry record.
// The record starts in Pending state and cannot submit until approved.
type BusinessRegistered struct {
	Business     [20]byte
	NameHash     [32]byte
	Jurisdiction string
}

func (BusinessRegistered) EventType() string { return TypeBusinessRegistered }

func (e BusinessRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeBusinessRegistered,
		Attributes: map[string]string{
			"business":     hex.EncodeToString(e.Business[:]),
			"nameHash":     hex.EncodeToString(e.NameHash[:]),
			"jurisdiction": e.Jurisdiction,
		},
	}
}

// BusinessApproved marks a Pending business as Active.
type BusinessApproved struct {
	Business [20]byte
	Caller   [20]byte
}

func (BusinessApproved) EventType() string { return TypeBusinessApproved }

func (e BusinessApproved) Event() *types.Event {
	return &types.Event{
		Type: TypeBusinessApproved,
		Attributes: map[string]string{
			"business": hex.EncodeToString(e.Business[:]),
			"caller":   hex.EncodeToString(e.Caller[:]),
		},
	}
}

// BusinessSuspended carries the admin-provided reason for compliance trails.
type BusinessSuspended struct {
	Business [20]byte
	Caller   [20]byte
	Reason   string
}

func (BusinessSuspended) EventType() string { return TypeBusinessSuspended }

func (e BusinessSuspended) Event() *types.Event {
	return &types.Event{
		Type: TypeBusinessSuspended,
		Attributes: map[string]string{
			"business": hex.EncodeToString(e.Business[:]),
			"caller":   hex.EncodeToString(e.Caller[:]),
			"reason":   e.Reason,
		},
	}
}

// BusinessReactivated returns a Suspended business to Active.
type BusinessReactivated struct {
	Business [20]byte
	Caller   [20]byte
}

func (BusinessReactivated) EventType() string { return TypeBusinessReactivated }

func (e BusinessReactivated) Event() *types.Event {
	return &types.Event{
		Type: TypeBusinessReactivated,
		Attributes: map[string]string{
			"business": hex.EncodeToString(e.Business[:]),
			"caller":   hex.EncodeToString(e.Caller[:]),
		},
	}
}
