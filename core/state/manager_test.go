package state

import (
	"testing"

	"attestledger/storage"
)

func TestManagerKVRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	type payload struct {
		Name  string
		Count uint64
	}
	in := payload{Name: "acme", Count: 7}
	if err := m.KVPut([]byte("test/payload"), in); err != nil {
		t.Fatalf("put: %v", err)
	}

	var out payload
	ok, err := m.KVGet([]byte("test/payload"), &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to exist")
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestManagerKVGetMissing(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	var out uint64
	ok, err := m.KVGet([]byte("test/missing"), &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key")
	}

	ok, err = m.KVGet([]byte("test/missing"), nil)
	if err != nil {
		t.Fatalf("existence check: %v", err)
	}
	if ok {
		t.Fatalf("existence check should report missing")
	}
}

func TestManagerKVGetListEmpty(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	var out []uint64
	if err := m.KVGetList([]byte("test/list"), &out); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if out == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(out) != 0 {
		t.Fatalf("expected empty slice, got %v", out)
	}
}

func TestManagerKVEmptyKey(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	if err := m.KVPut(nil, uint64(1)); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := m.KVGet(nil, nil); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
