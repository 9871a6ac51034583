package events

import (
	"encoding/hex"
	"math/big"

	"attestledger/core/types"
)

const (
	TypeFeeConfigChanged       = "fees.configChanged"
	TypeRateLimitConfigChanged = "ratelimit.configChanged"
)

// FeeConfigChanged announces a new fee schedule. BaseFee is the undiscounted
// amount in the token's smallest unit.
type FeeConfigChanged struct {
	Token     [20]byte
	Collector [20]byte
	BaseFee   *big.Int
	Enabled   bool
	Caller    [20]byte
}

func (FeeConfigChanged) EventType() string { return TypeFeeConfigChanged }

func (e FeeConfigChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeConfigChanged,
		Attributes: map[string]string{
			"token":     hex.EncodeToString(e.Token[:]),
			"collector": hex.EncodeToString(e.Collector[:]),
			"baseFee":   formatAmount(e.BaseFee),
			"enabled":   boolToString(e.Enabled),
			"caller":    hex.EncodeToString(e.Caller[:]),
		},
	}
}

// RateLimitConfigChanged announces new sliding-window parameters.
type RateLimitConfigChanged struct {
	MaxSubmissions uint32
	WindowSeconds  uint64
	Enabled        bool
	Caller         [20]byte
}

func (RateLimitConfigChanged) EventType() string { return TypeRateLimitConfigChanged }

func (e RateLimitConfigChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeRateLimitConfigChanged,
		Attributes: map[string]string{
			"maxSubmissions": uintToString(uint64(e.MaxSubmissions)),
			"windowSeconds":  uintToString(e.WindowSeconds),
			"enabled":        boolToString(e.Enabled),
			"caller":         hex.EncodeToString(e.Caller[:]),
		},
	}
}
