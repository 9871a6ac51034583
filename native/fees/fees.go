package fees

import "math/big"

// BpsDenominator defines the scaling factor for basis point math. A discount
// of 10000 bps means 100% off.
const BpsDenominator = 10_000

var combinedDenominator = big.NewInt(BpsDenominator * BpsDenominator)

// ComputeFee applies two independent, multiplicatively combined discounts to
// the base fee:
//
//	effective = base × (10000 − tierBps) × (10000 − volumeBps) / 100000000
//
// Integer truncation throughout; no floating point. Inputs above 10000 bps
// are rejected by the configuration setters before they ever reach storage,
// so the factors here are never negative.
func ComputeFee(baseFee *big.Int, tierDiscountBps, volumeDiscountBps uint32) *big.Int {
	if baseFee == nil || baseFee.Sign() <= 0 {
		return big.NewInt(0)
	}
	tierFactor := big.NewInt(BpsDenominator - int64(tierDiscountBps))
	volFactor := big.NewInt(BpsDenominator - int64(volumeDiscountBps))
	fee := new(big.Int).Mul(baseFee, tierFactor)
	fee.Mul(fee, volFactor)
	return fee.Div(fee, combinedDenominator)
}

// VolumeDiscountFor resolves the volume discount for a cumulative submission
// count by scanning brackets from highest to lowest; the first threshold
// less than or equal to the count wins. No matching bracket means no
// discount. Thresholds and discounts are parallel slices validated at
// configuration time.
func VolumeDiscountFor(thresholds []uint64, discounts []uint32, count uint64) uint32 {
	for i := len(thresholds) - 1; i >= 0; i-- {
		if count >= thresholds[i] {
			return discounts[i]
		}
	}
	return 0
}
