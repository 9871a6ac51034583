package ratelimit

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type memoryStore struct {
	data map[string][]byte
	puts int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	m.puts++
	return nil
}

func (m *memoryStore) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryStore) KVGetList(key []byte, out interface{}) error {
	_, err := m.KVGet(key, out)
	return err
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestLimiter(t *testing.T, store *memoryStore, max uint32, window uint64) (*Limiter, *uint64) {
	t.Helper()
	limiter := NewLimiter(store)
	now := uint64(1_700_000_000)
	limiter.SetNowFunc(func() uint64 { return now })
	if err := limiter.SetConfig(Config{MaxSubmissions: max, WindowSeconds: window, Enabled: true}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	return limiter, &now
}

func TestConfigValidation(t *testing.T) {
	limiter := NewLimiter(newMemoryStore())
	if err := limiter.SetConfig(Config{MaxSubmissions: 0, WindowSeconds: 60, Enabled: true}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for zero max, got %v", err)
	}
	if err := limiter.SetConfig(Config{MaxSubmissions: 5, WindowSeconds: 0, Enabled: true}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for zero window, got %v", err)
	}
}

func TestUnconfiguredLimiterAlwaysPasses(t *testing.T) {
	limiter := NewLimiter(newMemoryStore())
	submitter := addr(1)
	for i := 0; i < 100; i++ {
		if err := limiter.Check(submitter); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if err := limiter.Record(submitter); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	count, err := limiter.WindowCount(submitter)
	if err != nil {
		t.Fatalf("window count: %v", err)
	}
	if count != 0 {
		t.Fatalf("disabled limiter should report 0, got %d", count)
	}
}

func TestSlidingWindowBoundary(t *testing.T) {
	limiter, now := newTestLimiter(t, newMemoryStore(), 5, 3600)
	submitter := addr(1)

	for i := 0; i < 5; i++ {
		if err := limiter.Check(submitter); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if err := limiter.Record(submitter); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if err := limiter.Check(submitter); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded on 6th, got %v", err)
	}

	*now += 3601
	if err := limiter.Check(submitter); err != nil {
		t.Fatalf("check after window elapsed: %v", err)
	}
	count, err := limiter.WindowCount(submitter)
	if err != nil {
		t.Fatalf("window count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty window, got %d", count)
	}
}

func TestCheckDoesNotRewriteUnchangedState(t *testing.T) {
	store := newMemoryStore()
	limiter, _ := newTestLimiter(t, store, 5, 3600)
	submitter := addr(1)

	if err := limiter.Record(submitter); err != nil {
		t.Fatalf("record: %v", err)
	}
	before := store.puts
	if err := limiter.Check(submitter); err != nil {
		t.Fatalf("check: %v", err)
	}
	if store.puts != before {
		t.Fatalf("check rewrote unchanged state: %d puts before, %d after", before, store.puts)
	}
}

func TestCheckNAccountsForBatchSize(t *testing.T) {
	limiter, _ := newTestLimiter(t, newMemoryStore(), 5, 3600)
	submitter := addr(1)

	for i := 0; i < 3; i++ {
		if err := limiter.Record(submitter); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if err := limiter.CheckN(submitter, 2); err != nil {
		t.Fatalf("check for 2 more: %v", err)
	}
	if err := limiter.CheckN(submitter, 3); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded for 3 more, got %v", err)
	}
}
