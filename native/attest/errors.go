package attest

import "errors"

var (
	// ErrAlreadyInitialized guards the one-shot ledger initialisation.
	ErrAlreadyInitialized = errors.New("attest: already initialized")
	// ErrNotInitialized marks calls against a ledger that was never
	// initialised.
	ErrNotInitialized = errors.New("attest: not initialized")
	// ErrDuplicateRecord marks a second submission for an occupied
	// (submitter, period) pair.
	ErrDuplicateRecord = errors.New("attest: record already exists")
	// ErrDuplicateInBatch marks a (submitter, period) pair repeated within
	// one batch.
	ErrDuplicateInBatch = errors.New("attest: duplicate record in batch")
	// ErrRecordNotFound marks reads or mutations against absent records.
	ErrRecordNotFound = errors.New("attest: record not found")
	// ErrAlreadyRevoked marks a second revocation of the same record.
	ErrAlreadyRevoked = errors.New("attest: record already revoked")
	// ErrVersionNotIncreasing marks migrations whose new schema version is
	// not strictly greater than the stored one.
	ErrVersionNotIncreasing = errors.New("attest: version not increasing")
	// ErrEmptyBatch marks batch submissions with no items.
	ErrEmptyBatch = errors.New("attest: empty batch")
	// ErrBusinessNotActive marks submissions from registered businesses
	// that are Pending or Suspended in the registry.
	ErrBusinessNotActive = errors.New("attest: business not active in registry")
	// ErrInvalidArgument marks malformed call arguments such as empty
	// periods or out-of-range anomaly scores.
	ErrInvalidArgument = errors.New("attest: invalid argument")
)
