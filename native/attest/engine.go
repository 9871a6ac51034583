package attest

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"attestledger/core/events"
	"attestledger/native/access"
	"attestledger/native/fees"
	"attestledger/native/ratelimit"
	"attestledger/native/registry"
	"attestledger/native/replay"
	"attestledger/observability/metrics"
)

// Authorizer is the host-side authentication hook: it verifies that the actor
// actually authorised the call (signature verification, session validation).
// The engine fails closed when no authorizer is configured.
type Authorizer interface {
	Authorize(actor [20]byte) error
}

var (
	initKey  = []byte("attest/init")
	adminKey = []byte("attest/admin")
)

// Engine is the attestation ledger entry point. It owns the record store and
// coordinates access control, replay protection, rate limiting, fee
// collection and the business registry around every mutation.
//
// Mutations are sequenced: all pure validation runs first, the replay nonce
// is consumed next, and storage writes happen last. The rate limit slot is
// recorded only after the record is committed, so rejected submissions never
// consume capacity.
type Engine struct {
	store    storage
	records  *Ledger
	access   *access.Ledger
	guard    *replay.Guard
	limiter  *ratelimit.Limiter
	fees     *fees.Ledger
	registry *registry.Ledger
	transfer fees.TokenTransferer
	auth     Authorizer
	emitter  events.Emitter
	nowFn    func() uint64
}

// NewEngine constructs an engine whose sub-ledgers all share the provided
// storage backend. The authorizer starts unset and must be configured before
// any submission can pass.
func NewEngine(store storage) *Engine {
	return &Engine{
		store:    store,
		records:  NewLedger(store),
		access:   access.NewLedger(store),
		guard:    replay.NewGuard(store),
		limiter:  ratelimit.NewLimiter(store),
		fees:     fees.NewLedger(store),
		registry: registry.NewLedger(store),
		emitter:  events.NoopEmitter{},
		nowFn:    func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetAuthorizer installs the host authentication hook.
func (e *Engine) SetAuthorizer(auth Authorizer) {
	if e == nil {
		return
	}
	e.auth = auth
}

// SetEmitter installs the event sink. Passing nil restores the discard sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetTransferer configures the token transfer capability used for fee
// collection.
func (e *Engine) SetTransferer(transfer fees.TokenTransferer) {
	if e == nil {
		return
	}
	e.transfer = transfer
	e.fees.SetTransferer(transfer)
}

// SetNowFunc overrides the wall clock across the engine and its time-aware
// sub-ledgers.
func (e *Engine) SetNowFunc(now func() uint64) {
	if e == nil {
		return
	}
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	e.nowFn = now
	e.limiter.SetNowFunc(now)
	e.registry.SetNowFunc(now)
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil {
		return errors.New("attest: engine not initialised")
	}
	return nil
}

func (e *Engine) emit(ev events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// Initialize performs the one-shot ledger bootstrap: it records the admin
// account and grants it the Admin role without a caller check. Every later
// mutation requires initialisation to have happened.
func (e *Engine) Initialize(admin [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	exists, err := e.store.KVGet(initKey, nil)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInitialized
	}
	if err := e.access.Bootstrap(admin); err != nil {
		return err
	}
	if err := e.store.KVPut(adminKey, admin); err != nil {
		return err
	}
	if err := e.store.KVPut(initKey, true); err != nil {
		return err
	}
	e.emit(events.RoleChanged{Account: admin, Role: access.RoleAdmin, Granted: true, Caller: admin})
	return nil
}

// Admin returns the bootstrap admin account, ok=false before initialisation.
func (e *Engine) Admin() ([20]byte, bool, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, false, err
	}
	var admin [20]byte
	ok, err := e.store.KVGet(adminKey, &admin)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	return admin, true, nil
}

func (e *Engine) requireInit() error {
	if err := e.ready(); err != nil {
		return err
	}
	exists, err := e.store.KVGet(initKey, nil)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotInitialized
	}
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	ok, err := e.access.HasRole(caller, access.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: admin role required", access.ErrUnauthorized)
	}
	return nil
}

func (e *Engine) authorize(actor [20]byte) error {
	if e.auth == nil {
		return fmt.Errorf("%w: no authorizer configured", access.ErrUnauthorized)
	}
	if err := e.auth.Authorize(actor); err != nil {
		if errors.Is(err, access.ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%w: %v", access.ErrUnauthorized, err)
	}
	return nil
}

// GrantRole adds a role bit to an account. Admin only.
func (e *Engine) GrantRole(caller, account [20]byte, role uint32) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.access.Grant(caller, account, role); err != nil {
		return err
	}
	e.emit(events.RoleChanged{Account: account, Role: role, Granted: true, Caller: caller})
	return nil
}

// RevokeRole clears a role bit from an account. Admin only.
func (e *Engine) RevokeRole(caller, account [20]byte, role uint32) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.access.Revoke(caller, account, role); err != nil {
		return err
	}
	e.emit(events.RoleChanged{Account: account, Role: role, Granted: false, Caller: caller})
	return nil
}

// Roles returns the role bitmap for an account.
func (e *Engine) Roles(account [20]byte) (uint32, error) {
	return e.access.Roles(account)
}

// HasRole reports whether an account holds the given role bit.
func (e *Engine) HasRole(account [20]byte, role uint32) (bool, error) {
	return e.access.HasRole(account, role)
}

// RoleHolders returns every account holding at least one role.
func (e *Engine) RoleHolders() ([][20]byte, error) {
	return e.access.RoleHolders()
}

// Pause halts submissions. Admin or Operator may pause; only Admin unpauses,
// so an operator key compromise cannot hold the ledger hostage.
func (e *Engine) Pause(caller [20]byte) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.access.Pause(caller); err != nil {
		return err
	}
	e.emit(events.Paused{Caller: caller})
	return nil
}

// Unpause resumes submissions. Admin only.
func (e *Engine) Unpause(caller [20]byte) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.access.Unpause(caller); err != nil {
		return err
	}
	e.emit(events.Unpaused{Caller: caller})
	return nil
}

// IsPaused reports the global pause flag.
func (e *Engine) IsPaused() (bool, error) {
	return e.access.IsPaused()
}

// ConfigureFees installs a new fee schedule. Admin only.
func (e *Engine) ConfigureFees(caller [20]byte, cfg fees.Config) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.fees.SetConfig(cfg); err != nil {
		return err
	}
	e.emit(events.FeeConfigChanged{
		Token:     cfg.Token,
		Collector: cfg.Collector,
		BaseFee:   cfg.BaseFee,
		Enabled:   cfg.Enabled,
		Caller:    caller,
	})
	return nil
}

// SetFeeEnabled toggles fee collection on an existing schedule. Admin only.
func (e *Engine) SetFeeEnabled(caller [20]byte, enabled bool) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.fees.SetEnabled(enabled); err != nil {
		return err
	}
	cfg, _, err := e.fees.Config()
	if err != nil {
		return err
	}
	e.emit(events.FeeConfigChanged{
		Token:     cfg.Token,
		Collector: cfg.Collector,
		BaseFee:   cfg.BaseFee,
		Enabled:   cfg.Enabled,
		Caller:    caller,
	})
	return nil
}

// SetTierDiscount stores the discount for a fee tier. Admin only.
func (e *Engine) SetTierDiscount(caller [20]byte, tier, discountBps uint32) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.fees.SetTierDiscount(tier, discountBps)
}

// SetBusinessTier assigns a business to a fee tier. Admin only.
func (e *Engine) SetBusinessTier(caller, business [20]byte, tier uint32) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.fees.SetBusinessTier(business, tier)
}

// SetVolumeBrackets stores the volume discount schedule. Admin only.
func (e *Engine) SetVolumeBrackets(caller [20]byte, thresholds []uint64, discounts []uint32) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.fees.SetVolumeBrackets(thresholds, discounts)
}

// FeeConfig returns the stored fee schedule.
func (e *Engine) FeeConfig() (fees.Config, bool, error) {
	return e.fees.Config()
}

// FeeQuote returns the fee the business would pay for its next submission.
func (e *Engine) FeeQuote(business [20]byte) (*big.Int, error) {
	return e.fees.Quote(business)
}

// BusinessCount returns the cumulative successful submission count.
func (e *Engine) BusinessCount(business [20]byte) (uint64, error) {
	return e.fees.BusinessCount(business)
}

// BusinessTier returns the fee tier assigned to a business.
func (e *Engine) BusinessTier(business [20]byte) (uint32, error) {
	return e.fees.BusinessTier(business)
}

// VolumeBrackets returns the volume discount schedule.
func (e *Engine) VolumeBrackets() ([]uint64, []uint32, error) {
	return e.fees.VolumeBrackets()
}

// ConfigureRateLimit installs new sliding-window parameters. Admin only.
func (e *Engine) ConfigureRateLimit(caller [20]byte, cfg ratelimit.Config) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.limiter.SetConfig(cfg); err != nil {
		return err
	}
	e.emit(events.RateLimitConfigChanged{
		MaxSubmissions: cfg.MaxSubmissions,
		WindowSeconds:  cfg.WindowSeconds,
		Enabled:        cfg.Enabled,
		Caller:         caller,
	})
	return nil
}

// RateLimitConfig returns the stored sliding-window parameters.
func (e *Engine) RateLimitConfig() (ratelimit.Config, bool, error) {
	return e.limiter.Config()
}

// SubmissionWindowCount reports how many submissions the submitter has inside
// the current window.
func (e *Engine) SubmissionWindowCount(submitter [20]byte) (uint32, error) {
	return e.limiter.WindowCount(submitter)
}

// PeekNonce returns the next expected replay nonce for (actor, channel).
func (e *Engine) PeekNonce(actor [20]byte, channel uint32) (uint64, error) {
	return e.guard.Peek(actor, channel)
}

// RegisterBusiness files a registry record for the business. The account must
// hold the Business role and the record starts Pending until approved.
func (e *Engine) RegisterBusiness(business [20]byte, nameHash [32]byte, jurisdiction string, tags []string) (*registry.Business, error) {
	if err := e.requireInit(); err != nil {
		return nil, err
	}
	if err := e.access.RequireNotPaused(); err != nil {
		return nil, err
	}
	if err := e.authorize(business); err != nil {
		return nil, err
	}
	ok, err := e.access.HasRole(business, access.RoleBusiness)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: business role required", access.ErrUnauthorized)
	}
	record, err := e.registry.Register(business, nameHash, jurisdiction, tags)
	if err != nil {
		return nil, err
	}
	e.emit(events.BusinessRegistered{
		Business:     business,
		NameHash:     nameHash,
		Jurisdiction: record.Jurisdiction,
	})
	return record, nil
}

// ApproveBusiness transitions a Pending business to Active. Admin only.
func (e *Engine) ApproveBusiness(caller, business [20]byte) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.registry.Approve(business); err != nil {
		return err
	}
	e.emit(events.BusinessApproved{Business: business, Caller: caller})
	return nil
}

// SuspendBusiness blocks an Active business from submitting. Admin only.
func (e *Engine) SuspendBusiness(caller, business [20]byte, reason string) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.registry.Suspend(business); err != nil {
		return err
	}
	e.emit(events.BusinessSuspended{Business: business, Caller: caller, Reason: strings.TrimSpace(reason)})
	return nil
}

// ReactivateBusiness returns a Suspended business to Active. Admin only.
func (e *Engine) ReactivateBusiness(caller, business [20]byte) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.registry.Reactivate(business); err != nil {
		return err
	}
	e.emit(events.BusinessReactivated{Business: business, Caller: caller})
	return nil
}

// UpdateBusinessTags replaces the tag set on a registry record. Admin only.
func (e *Engine) UpdateBusinessTags(caller, business [20]byte, tags []string) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.registry.UpdateTags(business, tags)
}

// Business returns the registry record for an account.
func (e *Engine) Business(business [20]byte) (*registry.Business, bool, error) {
	return e.registry.Get(business)
}

// checkRegistry is the submission gate: unregistered addresses pass for
// backward compatibility, but a registered business must be Active.
func (e *Engine) checkRegistry(submitter [20]byte) error {
	record, ok, err := e.registry.Get(submitter)
	if err != nil {
		return err
	}
	if ok && record.Status != registry.StatusActive {
		return fmt.Errorf("%w: status %s", ErrBusinessNotActive, record.Status)
	}
	return nil
}

// Submit validates and commits a single attestation record.
func (e *Engine) Submit(sub Submission) (*Record, error) {
	record, err := e.submit(sub)
	if err != nil {
		metrics.Attest().ObserveSubmissionRejected(rejectReason(err))
		return nil, err
	}
	metrics.Attest().ObserveSubmissionAccepted("single")
	metrics.Attest().ObserveFeeCollected(feeAsFloat(record.FeePaid))
	return record, nil
}

func (e *Engine) submit(sub Submission) (*Record, error) {
	if err := e.requireInit(); err != nil {
		return nil, err
	}
	period, err := normalizePeriod(sub.Period)
	if err != nil {
		return nil, err
	}
	if sub.Metadata != nil {
		if err := sub.Metadata.Validate(); err != nil {
			return nil, err
		}
	}
	if err := e.access.RequireNotPaused(); err != nil {
		return nil, err
	}
	if err := e.authorize(sub.Submitter); err != nil {
		return nil, err
	}
	if err := e.checkRegistry(sub.Submitter); err != nil {
		return nil, err
	}
	if err := e.limiter.Check(sub.Submitter); err != nil {
		return nil, err
	}
	exists, err := e.records.Has(sub.Submitter, period)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: period %q", ErrDuplicateRecord, period)
	}
	// The nonce is consumed after every pure check has passed so a rejected
	// submission does not burn the counter, but before fee collection so a
	// replayed call can never double-charge.
	if err := e.guard.Consume(sub.Submitter, replay.ChannelBusiness, sub.Nonce); err != nil {
		return nil, err
	}
	fee, err := e.fees.Collect(sub.Submitter)
	if err != nil {
		return nil, err
	}
	timestamp := sub.Timestamp
	if timestamp == 0 {
		timestamp = e.nowFn()
	}
	record := &Record{
		Commitment: sub.Commitment,
		Timestamp:  timestamp,
		Version:    sub.Version,
		FeePaid:    fee,
		Status:     StatusActive,
	}
	if err := e.records.Insert(sub.Submitter, period, record); err != nil {
		return nil, err
	}
	if sub.Expiry != 0 {
		if err := e.records.SetExpiry(sub.Submitter, period, sub.Expiry); err != nil {
			return nil, err
		}
	}
	if sub.Metadata != nil {
		if err := e.records.SetMetadata(sub.Submitter, period, sub.Metadata); err != nil {
			return nil, err
		}
	}
	if sub.ProofHash != nil {
		if err := e.records.SetProofHash(sub.Submitter, period, *sub.ProofHash); err != nil {
			return nil, err
		}
	}
	if _, err := e.fees.IncrementBusinessCount(sub.Submitter); err != nil {
		return nil, err
	}
	if err := e.limiter.Record(sub.Submitter); err != nil {
		return nil, err
	}
	e.emit(events.AttestationSubmitted{
		Submitter:  sub.Submitter,
		Period:     period,
		Commitment: record.Commitment,
		Timestamp:  record.Timestamp,
		Version:    record.Version,
		FeePaid:    record.FeePaid,
	})
	return record, nil
}

// SubmitBatch validates every item before committing any of them: a single
// bad item rejects the whole batch with no state change, and a commit-phase
// failure (a refused token transfer) likewise leaves the ledger untouched.
// Items do not carry replay nonces; the batch call itself is expected to be
// guarded by the host transaction layer.
func (e *Engine) SubmitBatch(items []BatchItem) ([]*Record, error) {
	records, err := e.submitBatch(items)
	if err != nil {
		metrics.Attest().ObserveSubmissionRejected(rejectReason(err))
		return nil, err
	}
	metrics.Attest().ObserveBatchSize(len(records))
	for _, record := range records {
		metrics.Attest().ObserveSubmissionAccepted("batch")
		metrics.Attest().ObserveFeeCollected(feeAsFloat(record.FeePaid))
	}
	return records, nil
}

func (e *Engine) submitBatch(items []BatchItem) ([]*Record, error) {
	if err := e.requireInit(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := e.access.RequireNotPaused(); err != nil {
		return nil, err
	}

	// Phase 1: validate everything without mutating state.
	periods := make([]string, len(items))
	seen := make(map[string]struct{}, len(items))
	perSubmitter := make(map[[20]byte]uint32)
	for i, item := range items {
		period, err := normalizePeriod(item.Period)
		if err != nil {
			return nil, err
		}
		periods[i] = period
		pair := fmt.Sprintf("%x/%s", item.Submitter, period)
		if _, dup := seen[pair]; dup {
			return nil, fmt.Errorf("%w: period %q", ErrDuplicateInBatch, period)
		}
		seen[pair] = struct{}{}
		perSubmitter[item.Submitter]++
	}
	for submitter, count := range perSubmitter {
		if err := e.authorize(submitter); err != nil {
			return nil, err
		}
		if err := e.checkRegistry(submitter); err != nil {
			return nil, err
		}
		if err := e.limiter.CheckN(submitter, count); err != nil {
			return nil, err
		}
	}
	for i, item := range items {
		exists, err := e.records.Has(item.Submitter, periods[i])
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: period %q", ErrDuplicateRecord, periods[i])
		}
	}

	// Phase 2: commit every item in input order against a staged store, so
	// a failure on any item discards all ledger writes at once. Fees are
	// collected per item so the volume discount advances with each one,
	// exactly as if the items had been submitted individually.
	staged := newStagedStore(e.store)
	stagedRecords := NewLedger(staged)
	stagedFees := fees.NewLedger(staged)
	stagedFees.SetTransferer(e.transfer)
	stagedLimiter := ratelimit.NewLimiter(staged)
	stagedLimiter.SetNowFunc(e.nowFn)

	out := make([]*Record, 0, len(items))
	emitted := make([]events.Event, 0, len(items))
	for i, item := range items {
		fee, err := stagedFees.Collect(item.Submitter)
		if err != nil {
			return nil, err
		}
		timestamp := item.Timestamp
		if timestamp == 0 {
			timestamp = e.nowFn()
		}
		record := &Record{
			Commitment: item.Commitment,
			Timestamp:  timestamp,
			Version:    item.Version,
			FeePaid:    fee,
			Status:     StatusActive,
		}
		if err := stagedRecords.Insert(item.Submitter, periods[i], record); err != nil {
			return nil, err
		}
		if _, err := stagedFees.IncrementBusinessCount(item.Submitter); err != nil {
			return nil, err
		}
		if err := stagedLimiter.Record(item.Submitter); err != nil {
			return nil, err
		}
		emitted = append(emitted, events.AttestationSubmitted{
			Submitter:  item.Submitter,
			Period:     periods[i],
			Commitment: record.Commitment,
			Timestamp:  record.Timestamp,
			Version:    record.Version,
			FeePaid:    record.FeePaid,
		})
		out = append(out, record)
	}
	if err := staged.flush(); err != nil {
		return nil, err
	}
	for _, ev := range emitted {
		e.emit(ev)
	}
	return out, nil
}

// Revoke flips a record to revoked status and appends the audit trail. The
// record's original fields stay intact. Admins may revoke any record; a
// submitter may revoke its own.
func (e *Engine) Revoke(caller, submitter [20]byte, period, reason string) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.access.RequireNotPaused(); err != nil {
		return err
	}
	if err := e.authorize(caller); err != nil {
		return err
	}
	if caller != submitter {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
	}
	record, ok, err := e.records.Get(submitter, period)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRecordNotFound
	}
	if record.Status == StatusRevoked {
		return ErrAlreadyRevoked
	}
	record.Status = StatusRevoked
	if err := e.records.Update(submitter, period, record); err != nil {
		return err
	}
	revokedAt := e.nowFn()
	note := &Revocation{Revoker: caller, RevokedAt: revokedAt, Reason: strings.TrimSpace(reason)}
	if err := e.records.SetRevocation(submitter, period, note); err != nil {
		return err
	}
	e.emit(events.AttestationRevoked{
		Submitter: submitter,
		Period:    period,
		Revoker:   caller,
		Reason:    note.Reason,
		RevokedAt: revokedAt,
	})
	metrics.Attest().ObserveRevocation()
	return nil
}

// Migrate rewrites a record's commitment under a strictly greater schema
// version. Timestamp, fee and revocation status are preserved; a revoked
// record stays revoked after migration. Admin only.
func (e *Engine) Migrate(caller, submitter [20]byte, period string, newCommitment [32]byte, newVersion uint32) (*Record, error) {
	if err := e.requireInit(); err != nil {
		return nil, err
	}
	if err := e.access.RequireNotPaused(); err != nil {
		return nil, err
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	record, ok, err := e.records.Get(submitter, period)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordNotFound
	}
	if newVersion <= record.Version {
		return nil, fmt.Errorf("%w: %d -> %d", ErrVersionNotIncreasing, record.Version, newVersion)
	}
	oldCommitment := record.Commitment
	oldVersion := record.Version
	record.Commitment = newCommitment
	record.Version = newVersion
	if err := e.records.Update(submitter, period, record); err != nil {
		return nil, err
	}
	e.emit(events.AttestationMigrated{
		Submitter:     submitter,
		Period:        period,
		OldCommitment: oldCommitment,
		NewCommitment: newCommitment,
		OldVersion:    oldVersion,
		NewVersion:    newVersion,
		Caller:        caller,
	})
	metrics.Attest().ObserveMigration()
	return record, nil
}

// FlagAnomaly attaches anomaly flags and a risk score to an existing record.
// Admin only.
func (e *Engine) FlagAnomaly(caller, submitter [20]byte, period string, flags, riskScore uint32) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := e.access.RequireNotPaused(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	exists, err := e.records.Has(submitter, period)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRecordNotFound
	}
	if err := e.records.SetAnomaly(submitter, period, &Anomaly{Flags: flags, RiskScore: riskScore}); err != nil {
		return err
	}
	e.emit(events.AnomalyFlagged{
		Submitter: submitter,
		Period:    period,
		Flags:     flags,
		RiskScore: riskScore,
		Caller:    caller,
	})
	metrics.Attest().ObserveAnomalyFlagged()
	return nil
}

// Verify reports whether an active record with the given commitment exists
// for the pair. Absence simply verifies false. Expiry is deliberately not
// consulted here; freshness is a separate caller-driven check via IsExpired.
func (e *Engine) Verify(submitter [20]byte, period string, commitment [32]byte) (bool, error) {
	record, ok, err := e.records.Get(submitter, period)
	if err != nil || !ok {
		return false, err
	}
	if record.Status != StatusActive {
		return false, nil
	}
	return record.Commitment == commitment, nil
}

// Get returns the record for the pair, ok=false when absent.
func (e *Engine) Get(submitter [20]byte, period string) (*Record, bool, error) {
	return e.records.Get(submitter, period)
}

// IsRevoked reports whether the pair holds a revoked record.
func (e *Engine) IsRevoked(submitter [20]byte, period string) (bool, error) {
	record, ok, err := e.records.Get(submitter, period)
	if err != nil || !ok {
		return false, err
	}
	return record.Status == StatusRevoked, nil
}

// RevocationInfo returns the revocation audit trail for the pair.
func (e *Engine) RevocationInfo(submitter [20]byte, period string) (*Revocation, bool, error) {
	return e.records.Revocation(submitter, period)
}

// Expiry returns the staleness timestamp for the pair, ok=false when the
// record never expires.
func (e *Engine) Expiry(submitter [20]byte, period string) (uint64, bool, error) {
	return e.records.Expiry(submitter, period)
}

// IsExpired reports whether the record's staleness timestamp has passed.
// Records without one never expire.
func (e *Engine) IsExpired(submitter [20]byte, period string) (bool, error) {
	expiry, ok, err := e.records.Expiry(submitter, period)
	if err != nil || !ok {
		return false, err
	}
	return e.nowFn() > expiry, nil
}

// Metadata returns the optional currency annotation for the pair.
func (e *Engine) Metadata(submitter [20]byte, period string) (*Metadata, bool, error) {
	return e.records.Metadata(submitter, period)
}

// ProofHash returns the optional proof hash for the pair.
func (e *Engine) ProofHash(submitter [20]byte, period string) ([32]byte, bool, error) {
	return e.records.ProofHash(submitter, period)
}

// AnomalyInfo returns the anomaly annotation for the pair.
func (e *Engine) AnomalyInfo(submitter [20]byte, period string) (*Anomaly, bool, error) {
	return e.records.Anomaly(submitter, period)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, access.ErrPaused):
		return "paused"
	case errors.Is(err, access.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, replay.ErrNonceMismatch), errors.Is(err, replay.ErrNonceOverflow):
		return "nonce"
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		return "rate_limit"
	case errors.Is(err, ErrDuplicateRecord), errors.Is(err, ErrDuplicateInBatch):
		return "duplicate"
	case errors.Is(err, ErrBusinessNotActive):
		return "registry"
	case errors.Is(err, fees.ErrTransferFailed):
		return "fee_transfer"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	default:
		return "other"
	}
}

func feeAsFloat(fee *big.Int) float64 {
	if fee == nil || fee.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(fee).Float64()
	return f
}
