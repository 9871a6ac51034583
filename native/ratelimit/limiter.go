package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimitExceeded marks a submitter that already reached the
	// maximum number of submissions inside the current window.
	ErrRateLimitExceeded = errors.New("ratelimit: rate limit exceeded")
	// ErrInvalidConfig marks non-positive window or submission bounds.
	ErrInvalidConfig = errors.New("ratelimit: invalid config")
)

// Config is the sliding-window rate limit configuration. Absent config, or
// Enabled=false, disables enforcement entirely.
type Config struct {
	MaxSubmissions uint32
	WindowSeconds  uint64
	Enabled        bool
}

// storage abstracts the subset of state manager functionality required by the
// rate limiter.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVGetList(key []byte, out interface{}) error
	KVPut(key []byte, value interface{}) error
}

var (
	configKey        = []byte("ratelimit/config")
	timestampsPrefix = []byte("ratelimit/times/")
)

func timestampsKey(submitter [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", timestampsPrefix, submitter))
}

// Limiter enforces a per-submitter sliding time window over submission
// timestamps. A rejected submission never consumes a slot: Record is only
// called after the submission is fully committed.
type Limiter struct {
	store storage
	nowFn func() uint64
}

// NewLimiter constructs a limiter bound to the provided storage backend.
func NewLimiter(store storage) *Limiter {
	return &Limiter{
		store: store,
		nowFn: func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetNowFunc overrides the wall clock. Primarily leveraged in tests to provide
// deterministic timestamps.
func (l *Limiter) SetNowFunc(now func() uint64) {
	if l == nil {
		return
	}
	if now == nil {
		l.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	l.nowFn = now
}

func (l *Limiter) now() uint64 {
	if l == nil || l.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return l.nowFn()
}

// SetConfig validates and stores the rate limit configuration.
func (l *Limiter) SetConfig(cfg Config) error {
	if l == nil || l.store == nil {
		return errors.New("ratelimit: limiter not initialised")
	}
	if cfg.MaxSubmissions == 0 {
		return fmt.Errorf("%w: max submissions must be at least 1", ErrInvalidConfig)
	}
	if cfg.WindowSeconds == 0 {
		return fmt.Errorf("%w: window must be at least 1 second", ErrInvalidConfig)
	}
	return l.store.KVPut(configKey, cfg)
}

// Config returns the stored configuration. The boolean reports whether one
// has ever been set.
func (l *Limiter) Config() (Config, bool, error) {
	if l == nil || l.store == nil {
		return Config{}, false, errors.New("ratelimit: limiter not initialised")
	}
	var cfg Config
	ok, err := l.store.KVGet(configKey, &cfg)
	if err != nil {
		return Config{}, false, err
	}
	return cfg, ok, nil
}

func (l *Limiter) enabledConfig() (Config, bool, error) {
	cfg, ok, err := l.Config()
	if err != nil || !ok || !cfg.Enabled {
		return Config{}, false, err
	}
	return cfg, true, nil
}

func (l *Limiter) timestamps(submitter [20]byte) ([]uint64, error) {
	var stored []uint64
	if err := l.store.KVGetList(timestampsKey(submitter), &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func prune(stored []uint64, cutoff uint64) []uint64 {
	active := stored[:0:len(stored)]
	for _, ts := range stored {
		if ts > cutoff {
			active = append(active, ts)
		}
	}
	return active
}

func (l *Limiter) cutoff(cfg Config) uint64 {
	now := l.now()
	if cfg.WindowSeconds > now {
		return 0
	}
	return now - cfg.WindowSeconds
}

// Check enforces the limit for a prospective submission. Pruned-but-unchanged
// timestamp state is not rewritten, avoiding redundant storage writes.
func (l *Limiter) Check(submitter [20]byte) error {
	return l.CheckN(submitter, 1)
}

// CheckN enforces the limit assuming n submissions are about to commit
// back-to-back; the batch path uses it to validate every item before any
// mutation.
func (l *Limiter) CheckN(submitter [20]byte, n uint32) error {
	cfg, enabled, err := l.enabledConfig()
	if err != nil || !enabled {
		return err
	}
	stored, err := l.timestamps(submitter)
	if err != nil {
		return err
	}
	active := prune(stored, l.cutoff(cfg))
	if len(active) != len(stored) {
		if err := l.store.KVPut(timestampsKey(submitter), active); err != nil {
			return err
		}
	}
	if uint64(len(active))+uint64(n) > uint64(cfg.MaxSubmissions) {
		return fmt.Errorf("%w: %d of %d slots used in window", ErrRateLimitExceeded, len(active), cfg.MaxSubmissions)
	}
	return nil
}

// Record appends the current timestamp for the submitter. It must be called
// only after the submission has been fully committed.
func (l *Limiter) Record(submitter [20]byte) error {
	cfg, enabled, err := l.enabledConfig()
	if err != nil || !enabled {
		return err
	}
	stored, err := l.timestamps(submitter)
	if err != nil {
		return err
	}
	updated := append(prune(stored, l.cutoff(cfg)), l.now())
	return l.store.KVPut(timestampsKey(submitter), updated)
}

// WindowCount reports how many submissions fall inside the current window
// without mutating state. Returns 0 when limiting is disabled.
func (l *Limiter) WindowCount(submitter [20]byte) (uint32, error) {
	cfg, enabled, err := l.enabledConfig()
	if err != nil || !enabled {
		return 0, err
	}
	stored, err := l.timestamps(submitter)
	if err != nil {
		return 0, err
	}
	cutoff := l.cutoff(cfg)
	var count uint32
	for _, ts := range stored {
		if ts > cutoff {
			count++
		}
	}
	return count, nil
}
