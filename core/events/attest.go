package events

import (
	"encoding/hex"
	"math/big"

	"attestledger/core/types"
)

const (
	TypeAttestationSubmitted = "attest.submitted"
	TypeAttestationRevoked   = "attest.revoked"
	TypeAttestationMigrated  = "attest.migrated"
	TypeAnomalyFlagged       = "attest.anomalyFlagged"
)

// AttestationSubmitted is emitted once per successfully stored record,
// including each item of an accepted batch.
type AttestationSubmitted struct {
	Submitter  [20]byte
	Period     string
	Commitment [32]byte
	Timestamp  uint64
	Version    uint32
	FeePaid    *big.Int
}

func (AttestationSubmitted) EventType() string { return TypeAttestationSubmitted }

func (e AttestationSubmitted) Event() *types.Event {
	return &types.Event{
		Type: TypeAttestationSubmitted,
		Attributes: map[string]string{
			"submitter":  hex.EncodeToString(e.Submitter[:]),
			"period":     e.Period,
			"commitment": hex.EncodeToString(e.Commitment[:]),
			"timestamp":  uintToString(e.Timestamp),
			"version":    uintToString(uint64(e.Version)),
			"feePaid":    formatAmount(e.FeePaid),
		},
	}
}

// AttestationRevoked records the audit trail of a revocation. The original
// record fields are untouched; only the status flips.
type AttestationRevoked struct {
	Submitter [20]byte
	Period    string
	Revoker   [20]byte
	Reason    string
	RevokedAt uint64
}

func (AttestationRevoked) EventType() string { return TypeAttestationRevoked }

func (e AttestationRevoked) Event() *types.Event {
	return &types.Event{
		Type: TypeAttestationRevoked,
		Attributes: map[string]string{
			"submitter": hex.EncodeToString(e.Submitter[:]),
			"period":    e.Period,
			"revoker":   hex.EncodeToString(e.Revoker[:]),
			"reason":    e.Reason,
			"revokedAt": uintToString(e.RevokedAt),
		},
	}
}

// AttestationMigrated carries both the old and new commitment/version so
// downstream consumers can follow version continuity without extra reads.
type AttestationMigrated struct {
	Submitter     [20]byte
	Period        string
	OldCommitment [32]byte
	NewCommitment [32]byte
	OldVersion    uint32
	NewVersion    uint32
	Caller        [20]byte
}

func (AttestationMigrated) EventType() string { return TypeAttestationMigrated }

func (e AttestationMigrated) Event() *types.Event {
	return &types.Event{
		Type: TypeAttestationMigrated,
		Attributes: map[string]string{
			"submitter":     hex.EncodeToString(e.Submitter[:]),
			"period":        e.Period,
			"oldCommitment": hex.EncodeToString(e.OldCommitment[:]),
			"newCommitment": hex.EncodeToString(e.NewCommitment[:]),
			"oldVersion":    uintToString(uint64(e.OldVersion)),
			"newVersion":    uintToString(uint64(e.NewVersion)),
			"caller":        hex.EncodeToString(e.Caller[:]),
		},
	}
}

// AnomalyFlagged is emitted when an admin attaches anomaly flags and a risk
// score to an existing record.
type AnomalyFlagged struct {
	Submitter [20]byte
	Period    string
	Flags     uint32
	RiskScore uint32
	Caller    [20]byte
}

func (AnomalyFlagged) EventType() string { return TypeAnomalyFlagged }

func (e AnomalyFlagged) Event() *types.Event {
	return &types.Event{
		Type: TypeAnomalyFlagged,
		Attributes: map[string]string{
			"submitter": hex.EncodeToString(e.Submitter[:]),
			"period":    e.Period,
			"flags":     uintToString(uint64(e.Flags)),
			"riskScore": uintToString(uint64(e.RiskScore)),
			"caller":    hex.EncodeToString(e.Caller[:]),
		},
	}
}
