package attest

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// storage abstracts the subset of state manager functionality required by the
// attestation record ledger and the sub-ledgers sharing its backend.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVGetList(key []byte, out interface{}) error
	KVPut(key []byte, value interface{}) error
}

// stagedStore buffers writes over a base store so a multi-step mutation can be
// discarded wholesale when a later step fails. Reads see buffered writes
// first, falling through to the base store.
type stagedStore struct {
	base    storage
	order   []string
	pending map[string]interface{}
}

func newStagedStore(base storage) *stagedStore {
	return &stagedStore{base: base, pending: make(map[string]interface{})}
}

func (s *stagedStore) KVGet(key []byte, out interface{}) (bool, error) {
	value, ok := s.pending[string(key)]
	if !ok {
		return s.base.KVGet(key, out)
	}
	if out == nil {
		return true, nil
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *stagedStore) KVGetList(key []byte, out interface{}) error {
	if _, ok := s.pending[string(key)]; ok {
		_, err := s.KVGet(key, out)
		return err
	}
	return s.base.KVGetList(key, out)
}

func (s *stagedStore) KVPut(key []byte, value interface{}) error {
	k := string(key)
	if _, ok := s.pending[k]; !ok {
		s.order = append(s.order, k)
	}
	s.pending[k] = value
	return nil
}

// flush applies the buffered writes to the base store in first-write order.
func (s *stagedStore) flush() error {
	for _, key := range s.order {
		if err := s.base.KVPut([]byte(key), s.pending[key]); err != nil {
			return err
		}
	}
	return nil
}

var (
	recordPrefix     = []byte("attest/record/")
	revocationPrefix = []byte("attest/revocation/")
	expiryPrefix     = []byte("attest/expiry/")
	metadataPrefix   = []byte("attest/metadata/")
	proofPrefix      = []byte("attest/proof/")
	anomalyPrefix    = []byte("attest/anomaly/")
)

func pairKey(prefix []byte, submitter [20]byte, period string) []byte {
	digest := ethcrypto.Keccak256([]byte(period))
	return []byte(fmt.Sprintf("%s%x/%x", prefix, submitter, digest))
}

// Ledger persists attestation records and their optional side-tables, all
// keyed by the (submitter, period) pair. Optional attributes live in
// independent side-tables joined at read time rather than widening the core
// record type.
type Ledger struct {
	store storage
}

// NewLedger constructs a record ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) ready() error {
	if l == nil || l.store == nil {
		return errors.New("attest: ledger not initialised")
	}
	return nil
}

// Has reports whether a record exists for the pair.
func (l *Ledger) Has(submitter [20]byte, period string) (bool, error) {
	if err := l.ready(); err != nil {
		return false, err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return false, err
	}
	return l.store.KVGet(pairKey(recordPrefix, submitter, period), nil)
}

// Insert writes a record for a previously unoccupied pair. The duplicate
// check is re-validated here, at write time, so speculative pre-validation by
// the host can never produce two records for one pair.
func (l *Ledger) Insert(submitter [20]byte, period string, record *Record) error {
	if err := l.ready(); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record nil", ErrInvalidArgument)
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return err
	}
	key := pairKey(recordPrefix, submitter, period)
	exists, err := l.store.KVGet(key, nil)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateRecord
	}
	return l.store.KVPut(key, record)
}

// Get returns the record for the pair, ok=false when absent.
func (l *Ledger) Get(submitter [20]byte, period string) (*Record, bool, error) {
	if err := l.ready(); err != nil {
		return nil, false, err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return nil, false, err
	}
	var record Record
	ok, err := l.store.KVGet(pairKey(recordPrefix, submitter, period), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

// Update overwrites an existing record in place. Used by migration and the
// revocation status flip; never creates a pair.
func (l *Ledger) Update(submitter [20]byte, period string, record *Record) error {
	if err := l.ready(); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record nil", ErrInvalidArgument)
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return err
	}
	key := pairKey(recordPrefix, submitter, period)
	exists, err := l.store.KVGet(key, nil)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRecordNotFound
	}
	return l.store.KVPut(key, record)
}

// SetRevocation appends the revocation audit trail for the pair.
func (l *Ledger) SetRevocation(submitter [20]byte, period string, note *Revocation) error {
	if err := l.ready(); err != nil {
		return err
	}
	if note == nil {
		return fmt.Errorf("%w: revocation nil", ErrInvalidArgument)
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return err
	}
	return l.store.KVPut(pairKey(revocationPrefix, submitter, period), note)
}

// Revocation returns the revocation audit trail, ok=false when the record
// was never revoked.
func (l *Ledger) Revocation(submitter [20]byte, period string) (*Revocation, bool, error) {
	if err := l.ready(); err != nil {
		return nil, false, err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return nil, false, err
	}
	var note Revocation
	ok, err := l.store.KVGet(pairKey(revocationPrefix, submitter, period), &note)
	if err != nil || !ok {
		return nil, false, err
	}
	return &note, true, nil
}

// SetExpiry stores the optional staleness timestamp for the pair.
func (l *Ledger) SetExpiry(submitter [20]byte, period string, expiry uint64) error {
	if err := l.ready(); err != nil {
		return err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return err
	}
	return l.store.KVPut(pairKey(expiryPrefix, submitter, period), expiry)
}

// Expiry returns the staleness timestamp, ok=false when none was set.
func (l *Ledger) Expiry(submitter [20]byte, period string) (uint64, bool, error) {
	if err := l.ready(); err != nil {
		return 0, false, err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return 0, false, err
	}
	var expiry uint64
	ok, err := l.store.KVGet(pairKey(expiryPrefix, submitter, period), &expiry)
	if err != nil || !ok {
		return 0, false, err
	}
	return expiry, true, nil
}

// SetMetadata stores the optional currency annotation for the pair.
func (l *Ledger) SetMetadata(submitter [20]byte, period string, meta *Metadata) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := meta.Validate(); err != nil {
		return err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return err
	}
	return l.store.KVPut(pairKey(metadataPrefix, submitter, period), meta)
}

// Metadata returns the currency annotation, ok=false for records submitted
// without one.
func (l *Ledger) Metadata(submitter [20]byte, period string) (*Metadata, bool, error) {
	if err := l.ready(); err != nil {
		return nil, false, err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return nil, false, err
	}
	var meta Metadata
	ok, err := l.store.KVGet(pairKey(metadataPrefix, submitter, period), &meta)
	if err != nil || !ok {
		return nil, false, err
	}
	return &meta, true, nil
}

// SetProofHash stores the optional proof hash for the pair.
func (l *Ledger) SetProofHash(submitter [20]byte, period string, proof [32]byte) error {
	if err := l.ready(); err != nil {
		return err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return err
	}
	return l.store.KVPut(pairKey(proofPrefix, submitter, period), proof)
}

// ProofHash returns the proof hash, ok=false when none was attached.
func (l *Ledger) ProofHash(submitter [20]byte, period string) ([32]byte, bool, error) {
	if err := l.ready(); err != nil {
		return [32]byte{}, false, err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return [32]byte{}, false, err
	}
	var proof [32]byte
	ok, err := l.store.KVGet(pairKey(proofPrefix, submitter, period), &proof)
	if err != nil || !ok {
		return [32]byte{}, false, err
	}
	return proof, true, nil
}

// SetAnomaly stores anomaly flags and risk score for the pair.
func (l *Ledger) SetAnomaly(submitter [20]byte, period string, anomaly *Anomaly) error {
	if err := l.ready(); err != nil {
		return err
	}
	if anomaly == nil {
		return fmt.Errorf("%w: anomaly nil", ErrInvalidArgument)
	}
	if anomaly.RiskScore > MaxRiskScore {
		return fmt.Errorf("%w: risk score above %d", ErrInvalidArgument, MaxRiskScore)
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return err
	}
	return l.store.KVPut(pairKey(anomalyPrefix, submitter, period), anomaly)
}

// Anomaly returns the anomaly annotation, ok=false when none was set.
func (l *Ledger) Anomaly(submitter [20]byte, period string) (*Anomaly, bool, error) {
	if err := l.ready(); err != nil {
		return nil, false, err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return nil, false, err
	}
	var anomaly Anomaly
	ok, err := l.store.KVGet(pairKey(anomalyPrefix, submitter, period), &anomaly)
	if err != nil || !ok {
		return nil, false, err
	}
	return &anomaly, true, nil
}
