package attest

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// Status tracks whether a record is live or has been revoked. Revocation
// never deletes data; the flag flips and the audit trail lands in a separate
// side-table.
type Status uint8

const (
	// StatusActive marks a live record.
	StatusActive Status = iota
	// StatusRevoked marks a record invalidated for consumers while its
	// original fields stay intact for audit.
	StatusRevoked
)

// String renders the status for events and RPC payloads.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Record is the attestation stored per (submitter, period) pair. Commitment,
// Timestamp and Version are immutable after the initial write except through
// an explicit migration that strictly increases the version.
type Record struct {
	Commitment [32]byte
	Timestamp  uint64
	Version    uint32
	FeePaid    *big.Int
	Status     Status
}

// Revocation is the audit trail appended when a record is revoked.
type Revocation struct {
	Revoker   [20]byte
	RevokedAt uint64
	Reason    string
}

// Metadata carries the optional currency annotation for a record. Stored in
// a side-table keyed by the same (submitter, period) pair.
type Metadata struct {
	CurrencyCode string
	IsNet        bool
}

// Validate normalises and checks the currency code: alphabetic, at most
// three characters, stored upper-case.
func (m *Metadata) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: metadata nil", ErrInvalidArgument)
	}
	code := strings.ToUpper(strings.TrimSpace(m.CurrencyCode))
	if code == "" || len(code) > 3 {
		return fmt.Errorf("%w: currency code must be 1-3 characters", ErrInvalidArgument)
	}
	for _, r := range code {
		if !unicode.IsLetter(r) {
			return fmt.Errorf("%w: currency code must be alphabetic", ErrInvalidArgument)
		}
	}
	m.CurrencyCode = code
	return nil
}

// MaxRiskScore bounds the anomaly risk score.
const MaxRiskScore uint32 = 100

// Anomaly carries admin-assigned anomaly flags and a risk score for an
// existing record, consumed by downstream risk tooling.
type Anomaly struct {
	Flags     uint32
	RiskScore uint32
}

// Submission bundles the arguments of a single submit call. Expiry of 0
// means the record never goes stale; Metadata and ProofHash are optional
// side-table attachments.
type Submission struct {
	Submitter  [20]byte
	Period     string
	Commitment [32]byte
	Timestamp  uint64
	Version    uint32
	Nonce      uint64
	Expiry     uint64
	Metadata   *Metadata
	ProofHash  *[32]byte
}

// BatchItem is one attestation inside an atomic batch submission.
type BatchItem struct {
	Submitter  [20]byte
	Period     string
	Commitment [32]byte
	Timestamp  uint64
	Version    uint32
}

func normalizePeriod(period string) (string, error) {
	trimmed := strings.TrimSpace(period)
	if trimmed == "" {
		return "", fmt.Errorf("%w: period required", ErrInvalidArgument)
	}
	return trimmed, nil
}
