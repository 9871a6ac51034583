package replay

import (
	"errors"
	"fmt"
	"math"
)

// Channels partition the nonce space by call class so unrelated call streams
// never block each other.
const (
	// ChannelAdmin guards admin-class call streams.
	ChannelAdmin uint32 = 0
	// ChannelBusiness guards submitter-class call streams, consumed on
	// every attestation submission.
	ChannelBusiness uint32 = 1
)

var (
	// ErrNonceMismatch marks a supplied nonce that does not exactly match
	// the next expected value for the (actor, channel) pair.
	ErrNonceMismatch = errors.New("replay: nonce mismatch")
	// ErrNonceOverflow is returned when the counter reaches the maximum
	// representable value; the pair fails closed from then on.
	ErrNonceOverflow = errors.New("replay: nonce overflow")
)

// storage abstracts the subset of state manager functionality required by the
// replay guard.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var noncePrefix = []byte("replay/nonce/")

func nonceKey(actor [20]byte, channel uint32) []byte {
	return []byte(fmt.Sprintf("%s%x/%d", noncePrefix, actor, channel))
}

// Guard tracks a monotonic call counter per (actor, channel) pair. The first
// valid nonce for an unseen pair is 0 and each successful call increments the
// expected value by exactly 1.
type Guard struct {
	store storage
}

// NewGuard constructs a replay guard bound to the provided storage backend.
func NewGuard(store storage) *Guard {
	return &Guard{store: store}
}

// Peek returns the next expected nonce for (actor, channel) without mutating
// state. This is the sanctioned way for callers to avoid blind retries.
func (g *Guard) Peek(actor [20]byte, channel uint32) (uint64, error) {
	if g == nil || g.store == nil {
		return 0, errors.New("replay: guard not initialised")
	}
	var nonce uint64
	ok, err := g.store.KVGet(nonceKey(actor, channel), &nonce)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return nonce, nil
}

// Consume verifies the supplied nonce and, on success, stores expected+1.
// Failure leaves the stored value untouched.
func (g *Guard) Consume(actor [20]byte, channel uint32, supplied uint64) error {
	expected, err := g.Peek(actor, channel)
	if err != nil {
		return err
	}
	if supplied != expected {
		return fmt.Errorf("%w: expected %d, got %d", ErrNonceMismatch, expected, supplied)
	}
	if expected == math.MaxUint64 {
		return ErrNonceOverflow
	}
	return g.store.KVPut(nonceKey(actor, channel), expected+1)
}
