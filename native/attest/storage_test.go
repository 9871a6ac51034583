package attest

import (
	"errors"
	"math/big"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	submitter := addr(1)
	record := &Record{
		Commitment: hash(0xCC),
		Timestamp:  1_700_000_000,
		Version:    3,
		FeePaid:    big.NewInt(720_000),
		Status:     StatusActive,
	}

	if err := ledger.Insert(submitter, "2024-Q1", record); err != nil {
		t.Fatalf("insert: %v", err)
	}
	stored, ok, err := ledger.Get(submitter, "2024-Q1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if stored.Commitment != record.Commitment || stored.Timestamp != record.Timestamp {
		t.Fatalf("unexpected stored record %+v", stored)
	}
	if stored.FeePaid.Cmp(record.FeePaid) != 0 {
		t.Fatalf("unexpected fee %v", stored.FeePaid)
	}

	if err := ledger.Insert(submitter, "2024-Q1", record); !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", err)
	}
}

func TestPeriodNormalization(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	submitter := addr(1)
	record := &Record{Commitment: hash(0xCC), Timestamp: 1, Version: 1, FeePaid: big.NewInt(0)}

	if err := ledger.Insert(submitter, "  2024-Q1  ", record); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// The trimmed form addresses the same pair.
	if ok, _ := ledger.Has(submitter, "2024-Q1"); !ok {
		t.Fatalf("trimmed period must resolve to the same record")
	}
	if err := ledger.Insert(submitter, "2024-Q1", record); !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord for trimmed duplicate, got %v", err)
	}
	if _, _, err := ledger.Get(submitter, "   "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for blank period, got %v", err)
	}
}

func TestUpdateRequiresExistingRecord(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	record := &Record{Commitment: hash(0xCC), Timestamp: 1, Version: 1, FeePaid: big.NewInt(0)}
	if err := ledger.Update(addr(1), "2024-Q1", record); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestSideTables(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	submitter := addr(1)

	// Side-tables report absence before anything is written.
	if _, ok, err := ledger.Revocation(submitter, "p"); err != nil || ok {
		t.Fatalf("expected no revocation, ok=%v err=%v", ok, err)
	}
	if _, ok, err := ledger.Expiry(submitter, "p"); err != nil || ok {
		t.Fatalf("expected no expiry, ok=%v err=%v", ok, err)
	}
	if _, ok, err := ledger.Metadata(submitter, "p"); err != nil || ok {
		t.Fatalf("expected no metadata, ok=%v err=%v", ok, err)
	}
	if _, ok, err := ledger.ProofHash(submitter, "p"); err != nil || ok {
		t.Fatalf("expected no proof hash, ok=%v err=%v", ok, err)
	}
	if _, ok, err := ledger.Anomaly(submitter, "p"); err != nil || ok {
		t.Fatalf("expected no anomaly, ok=%v err=%v", ok, err)
	}

	if err := ledger.SetRevocation(submitter, "p", &Revocation{Revoker: addr(2), RevokedAt: 10, Reason: "fraud"}); err != nil {
		t.Fatalf("set revocation: %v", err)
	}
	note, ok, err := ledger.Revocation(submitter, "p")
	if err != nil || !ok || note.Reason != "fraud" || note.RevokedAt != 10 {
		t.Fatalf("unexpected revocation %+v ok=%v err=%v", note, ok, err)
	}

	if err := ledger.SetExpiry(submitter, "p", 99); err != nil {
		t.Fatalf("set expiry: %v", err)
	}
	if expiry, ok, _ := ledger.Expiry(submitter, "p"); !ok || expiry != 99 {
		t.Fatalf("unexpected expiry %d ok=%v", expiry, ok)
	}

	if err := ledger.SetMetadata(submitter, "p", &Metadata{CurrencyCode: "eur"}); err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	if meta, ok, _ := ledger.Metadata(submitter, "p"); !ok || meta.CurrencyCode != "EUR" {
		t.Fatalf("unexpected metadata %+v ok=%v", meta, ok)
	}

	if err := ledger.SetProofHash(submitter, "p", hash(0x42)); err != nil {
		t.Fatalf("set proof hash: %v", err)
	}
	if proof, ok, _ := ledger.ProofHash(submitter, "p"); !ok || proof != hash(0x42) {
		t.Fatalf("unexpected proof %x ok=%v", proof, ok)
	}

	if err := ledger.SetAnomaly(submitter, "p", &Anomaly{Flags: 2, RiskScore: 101}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for score above bound, got %v", err)
	}
	if err := ledger.SetAnomaly(submitter, "p", &Anomaly{Flags: 2, RiskScore: 100}); err != nil {
		t.Fatalf("set anomaly: %v", err)
	}
	if anomaly, ok, _ := ledger.Anomaly(submitter, "p"); !ok || anomaly.Flags != 2 || anomaly.RiskScore != 100 {
		t.Fatalf("unexpected anomaly %+v ok=%v", anomaly, ok)
	}
}

func TestMetadataValidation(t *testing.T) {
	cases := []struct {
		code string
		ok   bool
	}{
		{"USD", true},
		{"usd", true},
		{" gbp ", true},
		{"E", true},
		{"", false},
		{"   ", false},
		{"EURO", false},
		{"U5D", false},
	}
	for _, tc := range cases {
		meta := &Metadata{CurrencyCode: tc.code}
		err := meta.Validate()
		if tc.ok && err != nil {
			t.Fatalf("code %q: unexpected error %v", tc.code, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("code %q: expected ErrInvalidArgument, got %v", tc.code, err)
		}
	}
}
