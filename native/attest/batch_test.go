package attest

import (
	"errors"
	"math/big"
	"testing"

	"attestledger/core/events"
	"attestledger/native/fees"
	"attestledger/native/ratelimit"
)

func batchItem(submitter [20]byte, period string, commitment byte) BatchItem {
	return BatchItem{
		Submitter:  submitter,
		Period:     period,
		Commitment: hash(commitment),
		Timestamp:  1_700_000_000,
		Version:    1,
	}
}

func TestBatchCommitsAll(t *testing.T) {
	engine, _ := newTestEngine(t)
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)
	a, b := addr(1), addr(2)

	records, err := engine.SubmitBatch([]BatchItem{
		batchItem(a, "2024-Q1", 0x11),
		batchItem(a, "2024-Q2", 0x12),
		batchItem(b, "2024-Q1", 0x21),
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for _, pair := range []struct {
		submitter [20]byte
		period    string
	}{{a, "2024-Q1"}, {a, "2024-Q2"}, {b, "2024-Q1"}} {
		if ok, _ := engine.records.Has(pair.submitter, pair.period); !ok {
			t.Fatalf("missing record for %x/%s", pair.submitter, pair.period)
		}
	}
	if count, _ := engine.BusinessCount(a); count != 2 {
		t.Fatalf("expected count 2 for first submitter, got %d", count)
	}
	if count, _ := engine.BusinessCount(b); count != 1 {
		t.Fatalf("expected count 1 for second submitter, got %d", count)
	}
	if got := emitter.countOf(events.TypeAttestationSubmitted); got != 3 {
		t.Fatalf("expected 3 submitted events, got %d", got)
	}
}

func TestBatchDuplicateInBatchIsAtomic(t *testing.T) {
	engine, _ := newTestEngine(t)
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)
	submitter := addr(1)

	_, err := engine.SubmitBatch([]BatchItem{
		batchItem(submitter, "2024-Q1", 0x11),
		batchItem(submitter, " 2024-Q1 ", 0x12), // same pair after trimming
		batchItem(submitter, "2024-Q2", 0x13),
	})
	if !errors.Is(err, ErrDuplicateInBatch) {
		t.Fatalf("expected ErrDuplicateInBatch, got %v", err)
	}

	// Nothing committed: no records, no usage count, no events.
	for _, period := range []string{"2024-Q1", "2024-Q2"} {
		if ok, _ := engine.records.Has(submitter, period); ok {
			t.Fatalf("rejected batch must not store %s", period)
		}
	}
	if count, _ := engine.BusinessCount(submitter); count != 0 {
		t.Fatalf("rejected batch must not bump the count, got %d", count)
	}
	if len(emitter.emitted) != 0 {
		t.Fatalf("rejected batch must not emit, got %d events", len(emitter.emitted))
	}
}

func TestBatchStorageDuplicateIsAtomic(t *testing.T) {
	engine, _ := newTestEngine(t)
	submitter := addr(1)

	if _, err := engine.Submit(submission(submitter, "2024-Q1", 0)); err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	_, err := engine.SubmitBatch([]BatchItem{
		batchItem(submitter, "2024-Q2", 0x11),
		batchItem(submitter, "2024-Q1", 0x12), // already on the ledger
	})
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", err)
	}
	if ok, _ := engine.records.Has(submitter, "2024-Q2"); ok {
		t.Fatalf("rejected batch must not store the clean item")
	}
	if count, _ := engine.BusinessCount(submitter); count != 1 {
		t.Fatalf("expected count 1 from the seed submit, got %d", count)
	}
}

func TestBatchRateLimitAggregates(t *testing.T) {
	engine, _ := newTestEngine(t)
	submitter := addr(1)
	if err := engine.ConfigureRateLimit(admin, ratelimit.Config{MaxSubmissions: 2, WindowSeconds: 3600, Enabled: true}); err != nil {
		t.Fatalf("configure rate limit: %v", err)
	}

	// Three items from one submitter against a two-slot window: the batch
	// must fail up front even though each item alone would pass.
	_, err := engine.SubmitBatch([]BatchItem{
		batchItem(submitter, "p1", 0x11),
		batchItem(submitter, "p2", 0x12),
		batchItem(submitter, "p3", 0x13),
	})
	if !errors.Is(err, ratelimit.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if count, _ := engine.SubmissionWindowCount(submitter); count != 0 {
		t.Fatalf("rejected batch must not consume window slots, got %d", count)
	}

	records, err := engine.SubmitBatch([]BatchItem{
		batchItem(submitter, "p1", 0x11),
		batchItem(submitter, "p2", 0x12),
	})
	if err != nil {
		t.Fatalf("batch within limit: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if count, _ := engine.SubmissionWindowCount(submitter); count != 2 {
		t.Fatalf("expected window count 2, got %d", count)
	}
}

func TestBatchFeesAdvanceVolumeDiscount(t *testing.T) {
	engine, _ := newTestEngine(t)
	business := addr(1)
	transfer := &capturingTransferer{}
	engine.SetTransferer(transfer)

	cfg := fees.Config{Token: addr(0x70), Collector: addr(0xFE), BaseFee: big.NewInt(1000), Enabled: true}
	if err := engine.ConfigureFees(admin, cfg); err != nil {
		t.Fatalf("configure fees: %v", err)
	}
	// Second submission onward gets a 50% volume discount.
	if err := engine.SetVolumeBrackets(admin, []uint64{1}, []uint32{5000}); err != nil {
		t.Fatalf("set volume brackets: %v", err)
	}

	records, err := engine.SubmitBatch([]BatchItem{
		batchItem(business, "p1", 0x11),
		batchItem(business, "p2", 0x12),
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if records[0].FeePaid.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected first fee 1000, got %v", records[0].FeePaid)
	}
	if records[1].FeePaid.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected discounted second fee 500, got %v", records[1].FeePaid)
	}
	if transfer.calls != 2 {
		t.Fatalf("expected 2 transfers, got %d", transfer.calls)
	}
}

type failingTransferer struct {
	failOn int
	calls  int
}

func (f *failingTransferer) Transfer(from, to [20]byte, amount *big.Int) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("token contract reverted")
	}
	return nil
}

func TestBatchTransferFailureIsAtomic(t *testing.T) {
	engine, _ := newTestEngine(t)
	business := addr(1)
	engine.SetTransferer(&failingTransferer{failOn: 2})
	cfg := fees.Config{Token: addr(0x70), Collector: addr(0xFE), BaseFee: big.NewInt(1000), Enabled: true}
	if err := engine.ConfigureFees(admin, cfg); err != nil {
		t.Fatalf("configure fees: %v", err)
	}
	if err := engine.ConfigureRateLimit(admin, ratelimit.Config{MaxSubmissions: 10, WindowSeconds: 3600, Enabled: true}); err != nil {
		t.Fatalf("configure rate limit: %v", err)
	}
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)

	_, err := engine.SubmitBatch([]BatchItem{
		batchItem(business, "p1", 0x11),
		batchItem(business, "p2", 0x12),
	})
	if !errors.Is(err, fees.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	// The first item's transfer went through before the failure, but no
	// ledger write survives: no records, no usage count, no window slots,
	// no events.
	for _, period := range []string{"p1", "p2"} {
		if ok, _ := engine.records.Has(business, period); ok {
			t.Fatalf("failed batch must not store %s", period)
		}
	}
	if count, _ := engine.BusinessCount(business); count != 0 {
		t.Fatalf("failed batch must not bump the count, got %d", count)
	}
	if count, _ := engine.SubmissionWindowCount(business); count != 0 {
		t.Fatalf("failed batch must not consume window slots, got %d", count)
	}
	if len(emitter.emitted) != 0 {
		t.Fatalf("failed batch must not emit, got %d events", len(emitter.emitted))
	}

	// The same batch commits once the transferer cooperates.
	engine.SetTransferer(&capturingTransferer{})
	records, err := engine.SubmitBatch([]BatchItem{
		batchItem(business, "p1", 0x11),
		batchItem(business, "p2", 0x12),
	})
	if err != nil {
		t.Fatalf("batch retry: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if count, _ := engine.BusinessCount(business); count != 2 {
		t.Fatalf("expected count 2 after retry, got %d", count)
	}
}

func TestEmptyBatch(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := engine.SubmitBatch(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}
