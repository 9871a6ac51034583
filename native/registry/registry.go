package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BusinessStatus tracks the registry lifecycle of a business record.
type BusinessStatus uint8

const (
	// StatusPending marks a freshly registered business awaiting admin
	// approval.
	StatusPending BusinessStatus = iota
	// StatusActive marks an approved business allowed to submit.
	StatusActive
	// StatusSuspended marks a business blocked from submitting until
	// reactivated.
	StatusSuspended
)

// String renders the status for events and RPC payloads.
func (s BusinessStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyRegistered marks a duplicate registration attempt.
	ErrAlreadyRegistered = errors.New("registry: business already registered")
	// ErrNotRegistered marks lifecycle calls against unknown businesses.
	ErrNotRegistered = errors.New("registry: business not registered")
	// ErrInvalidTransition marks lifecycle calls from the wrong state,
	// e.g. approving a business that is not Pending.
	ErrInvalidTransition = errors.New("registry: invalid status transition")
)

// Business is the registry record for a submitting account. NameHash stands
// in for the legal name so no PII lands in ledger state.
type Business struct {
	Owner        [20]byte
	NameHash     [32]byte
	Jurisdiction string
	Tags         []string
	Status       BusinessStatus
	RegisteredAt uint64
}

// storage abstracts the subset of state manager functionality required by the
// business registry.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var businessPrefix = []byte("registry/business/")

func businessKey(business [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", businessPrefix, business))
}

// Ledger persists business registry records.
type Ledger struct {
	store storage
	nowFn func() uint64
}

// NewLedger constructs a registry ledger bound to the provided storage
// backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{
		store: store,
		nowFn: func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetNowFunc overrides the wall clock used for registration timestamps.
func (l *Ledger) SetNowFunc(now func() uint64) {
	if l == nil {
		return
	}
	if now == nil {
		l.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	l.nowFn = now
}

// Register files a new business record in Pending state. The account cannot
// submit attestations until an admin approves it.
func (l *Ledger) Register(business [20]byte, nameHash [32]byte, jurisdiction string, tags []string) (*Business, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("registry: ledger not initialised")
	}
	exists, err := l.store.KVGet(businessKey(business), nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}
	record := &Business{
		Owner:        business,
		NameHash:     nameHash,
		Jurisdiction: strings.TrimSpace(jurisdiction),
		Tags:         normalizeTags(tags),
		Status:       StatusPending,
		RegisteredAt: l.nowFn(),
	}
	if err := l.store.KVPut(businessKey(business), record); err != nil {
		return nil, err
	}
	return record, nil
}

// Get returns the registry record for a business, ok=false when never
// registered.
func (l *Ledger) Get(business [20]byte) (*Business, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, errors.New("registry: ledger not initialised")
	}
	var record Business
	ok, err := l.store.KVGet(businessKey(business), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

// IsActive reports whether the business is registered and Active. This is
// the submission gate: unregistered addresses pass (backward compatible),
// Pending and Suspended businesses do not.
func (l *Ledger) IsActive(business [20]byte) (bool, error) {
	record, ok, err := l.Get(business)
	if err != nil || !ok {
		return false, err
	}
	return record.Status == StatusActive, nil
}

// Approve transitions a Pending business to Active.
func (l *Ledger) Approve(business [20]byte) error {
	return l.transition(business, StatusPending, StatusActive)
}

// Suspend transitions an Active business to Suspended.
func (l *Ledger) Suspend(business [20]byte) error {
	return l.transition(business, StatusActive, StatusSuspended)
}

// Reactivate transitions a Suspended business back to Active.
func (l *Ledger) Reactivate(business [20]byte) error {
	return l.transition(business, StatusSuspended, StatusActive)
}

func (l *Ledger) transition(business [20]byte, from, to BusinessStatus) error {
	record, ok, err := l.Get(business)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotRegistered
	}
	if record.Status != from {
		return fmt.Errorf("%w: %s -> %s requires %s", ErrInvalidTransition, record.Status, to, from)
	}
	record.Status = to
	return l.store.KVPut(businessKey(business), record)
}

// UpdateTags replaces the tag set on a record in any lifecycle state. Tags
// are the KYB/KYC extension hook.
func (l *Ledger) UpdateTags(business [20]byte, tags []string) error {
	record, ok, err := l.Get(business)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotRegistered
	}
	record.Tags = normalizeTags(tags)
	return l.store.KVPut(businessKey(business), record)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
