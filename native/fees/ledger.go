package fees

import (
	"errors"
	"fmt"
	"math/big"
)

// TokenTransferer is the external asset-transfer capability. The production
// binding routes to the host token contract; tests inject a fake. A transfer
// failure aborts the enclosing submission.
type TokenTransferer interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// Config is the core fee schedule. Absent config, or Enabled=false, makes
// every submission free and skips the transfer entirely (the backward
// compatible mode).
type Config struct {
	Token     [20]byte
	Collector [20]byte
	BaseFee   *big.Int
	Enabled   bool
}

// storage abstracts the subset of state manager functionality required by the
// fee ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	configKey           = []byte("fees/config")
	tierDiscountPrefix  = []byte("fees/tier/")
	businessTierPrefix  = []byte("fees/businessTier/")
	businessCountPrefix = []byte("fees/count/")
	volumeThresholdsKey = []byte("fees/volume/thresholds")
	volumeDiscountsKey  = []byte("fees/volume/discounts")
)

func tierDiscountKey(tier uint32) []byte {
	return []byte(fmt.Sprintf("%s%d", tierDiscountPrefix, tier))
}

func businessTierKey(business [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", businessTierPrefix, business))
}

func businessCountKey(business [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", businessCountPrefix, business))
}

// Ledger persists the fee schedule and per-business usage counters, and
// collects fees through the injected transfer capability.
type Ledger struct {
	store    storage
	transfer TokenTransferer
}

// NewLedger constructs a fee ledger bound to the provided storage backend.
// The transfer capability starts unset; Collect fails on a nonzero fee until
// SetTransferer is called.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

// SetTransferer configures the external asset-transfer capability.
func (l *Ledger) SetTransferer(transfer TokenTransferer) {
	if l == nil {
		return
	}
	l.transfer = transfer
}

// SetConfig validates and stores the fee schedule.
func (l *Ledger) SetConfig(cfg Config) error {
	if l == nil || l.store == nil {
		return errors.New("fees: ledger not initialised")
	}
	if cfg.BaseFee == nil || cfg.BaseFee.Sign() < 0 {
		return fmt.Errorf("%w: base fee must be non-negative", ErrInvalidConfig)
	}
	return l.store.KVPut(configKey, cfg)
}

// Config returns the stored fee schedule. The boolean reports whether one has
// ever been configured.
func (l *Ledger) Config() (Config, bool, error) {
	if l == nil || l.store == nil {
		return Config{}, false, errors.New("fees: ledger not initialised")
	}
	var cfg Config
	ok, err := l.store.KVGet(configKey, &cfg)
	if err != nil {
		return Config{}, false, err
	}
	return cfg, ok, nil
}

// SetEnabled toggles fee collection without touching the rest of the config.
func (l *Ledger) SetEnabled(enabled bool) error {
	cfg, ok, err := l.Config()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: fees not configured", ErrInvalidConfig)
	}
	cfg.Enabled = enabled
	return l.store.KVPut(configKey, cfg)
}

// SetTierDiscount stores the discount for a tier level. The scheme is
// open-ended: any uint32 tier may carry a discount.
func (l *Ledger) SetTierDiscount(tier, discountBps uint32) error {
	if l == nil || l.store == nil {
		return errors.New("fees: ledger not initialised")
	}
	if discountBps > BpsDenominator {
		return fmt.Errorf("%w: discount cannot exceed %d bps", ErrInvalidConfig, BpsDenominator)
	}
	return l.store.KVPut(tierDiscountKey(tier), discountBps)
}

// TierDiscount returns the discount for a tier level, 0 for unconfigured
// tiers.
func (l *Ledger) TierDiscount(tier uint32) (uint32, error) {
	var bps uint32
	ok, err := l.store.KVGet(tierDiscountKey(tier), &bps)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return bps, nil
}

// SetBusinessTier assigns a business to a fee tier.
func (l *Ledger) SetBusinessTier(business [20]byte, tier uint32) error {
	if l == nil || l.store == nil {
		return errors.New("fees: ledger not initialised")
	}
	return l.store.KVPut(businessTierKey(business), tier)
}

// BusinessTier returns the tier assigned to a business, defaulting to 0.
func (l *Ledger) BusinessTier(business [20]byte) (uint32, error) {
	var tier uint32
	ok, err := l.store.KVGet(businessTierKey(business), &tier)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return tier, nil
}

// BusinessCount returns the cumulative successful submission count for a
// business.
func (l *Ledger) BusinessCount(business [20]byte) (uint64, error) {
	var count uint64
	ok, err := l.store.KVGet(businessCountKey(business), &count)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return count, nil
}

// IncrementBusinessCount bumps the cumulative counter by exactly one and
// returns the new value. Called once per successful submission, including
// each item of a batch.
func (l *Ledger) IncrementBusinessCount(business [20]byte) (uint64, error) {
	count, err := l.BusinessCount(business)
	if err != nil {
		return 0, err
	}
	count++
	if err := l.store.KVPut(businessCountKey(business), count); err != nil {
		return 0, err
	}
	return count, nil
}

// SetVolumeBrackets stores the parallel threshold/discount sequences.
// Thresholds must be strictly ascending and every discount within bounds.
func (l *Ledger) SetVolumeBrackets(thresholds []uint64, discounts []uint32) error {
	if l == nil || l.store == nil {
		return errors.New("fees: ledger not initialised")
	}
	if len(thresholds) != len(discounts) {
		return fmt.Errorf("%w: thresholds and discounts must have equal length", ErrInvalidConfig)
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return fmt.Errorf("%w: thresholds must be strictly ascending", ErrInvalidConfig)
		}
	}
	for _, bps := range discounts {
		if bps > BpsDenominator {
			return fmt.Errorf("%w: discount cannot exceed %d bps", ErrInvalidConfig, BpsDenominator)
		}
	}
	if err := l.store.KVPut(volumeThresholdsKey, thresholds); err != nil {
		return err
	}
	return l.store.KVPut(volumeDiscountsKey, discounts)
}

// VolumeBrackets returns the stored threshold/discount sequences, empty when
// never configured.
func (l *Ledger) VolumeBrackets() ([]uint64, []uint32, error) {
	var thresholds []uint64
	if _, err := l.store.KVGet(volumeThresholdsKey, &thresholds); err != nil {
		return nil, nil, err
	}
	var discounts []uint32
	if _, err := l.store.KVGet(volumeDiscountsKey, &discounts); err != nil {
		return nil, nil, err
	}
	return thresholds, discounts, nil
}

// Quote calculates the fee the business would pay for its next submission
// without collecting it. Returns 0 when fees are disabled or unconfigured.
func (l *Ledger) Quote(business [20]byte) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("fees: ledger not initialised")
	}
	cfg, ok, err := l.Config()
	if err != nil {
		return nil, err
	}
	if !ok || !cfg.Enabled {
		return big.NewInt(0), nil
	}
	tier, err := l.BusinessTier(business)
	if err != nil {
		return nil, err
	}
	tierDisc, err := l.TierDiscount(tier)
	if err != nil {
		return nil, err
	}
	count, err := l.BusinessCount(business)
	if err != nil {
		return nil, err
	}
	thresholds, discounts, err := l.VolumeBrackets()
	if err != nil {
		return nil, err
	}
	volDisc := VolumeDiscountFor(thresholds, discounts, count)
	return ComputeFee(cfg.BaseFee, tierDisc, volDisc), nil
}

// Collect quotes the fee at the current usage count and, when nonzero, moves
// it from the business to the collector through the transfer capability. The
// collected amount is returned so the caller can persist it with the record.
func (l *Ledger) Collect(business [20]byte) (*big.Int, error) {
	fee, err := l.Quote(business)
	if err != nil {
		return nil, err
	}
	if fee.Sign() == 0 {
		return fee, nil
	}
	cfg, _, err := l.Config()
	if err != nil {
		return nil, err
	}
	if l.transfer == nil {
		return nil, fmt.Errorf("%w: transfer capability not configured", ErrTransferFailed)
	}
	if err := l.transfer.Transfer(business, cfg.Collector, fee); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return fee, nil
}
