package pricing

import (
	"errors"
	"math/big"
)

// ErrPriceFeedUnavailable is returned when no feed has been registered for a
// requested currency pair. Conversion is only possible once an administrator
// has explicitly registered a feed; the error is surfaced to the caller, not
// recovered locally.
var ErrPriceFeedUnavailable = errors.New("pricing: no feed registered for currency pair")

// Oracle resolves the exchange rate between two currencies. PriceFor returns
// how many units of pricingCurrency one unit of unitCurrency is worth,
// scaled by 10^decimals.
type Oracle interface {
	PriceFor(pricingCurrency, unitCurrency uint32, decimals uint8) (*big.Int, error)
}

type pairKey struct {
	pricing uint32
	unit    uint32
}

// FeedStore is the canonical in-process Oracle implementation: a registry of
// admin-registered pair rates. Rates are stored as rationals and rescaled to
// the precision the caller asks for. When only the inverse pair is
// registered the reciprocal rate is derived rather than failing.
type FeedStore struct {
	feeds map[pairKey]*big.Rat
}

// NewFeedStore constructs an empty feed registry.
func NewFeedStore() *FeedStore {
	return &FeedStore{feeds: make(map[pairKey]*big.Rat)}
}

// Register installs the rate for a currency pair, replacing any prior feed.
func (f *FeedStore) Register(pricingCurrency, unitCurrency uint32, rate *big.Rat) {
	if f == nil || rate == nil || rate.Sign() <= 0 {
		return
	}
	f.feeds[pairKey{pricing: pricingCurrency, unit: unitCurrency}] = new(big.Rat).Set(rate)
}

// PriceFor resolves the registered rate for the pair, falling back to the
// reciprocal of the inverse pair when only that is registered.
func (f *FeedStore) PriceFor(pricingCurrency, unitCurrency uint32, decimals uint8) (*big.Int, error) {
	if f == nil {
		return nil, ErrPriceFeedUnavailable
	}
	if rate, ok := f.feeds[pairKey{pricing: pricingCurrency, unit: unitCurrency}]; ok {
		return ratToScaled(rate, decimals), nil
	}
	if inverse, ok := f.feeds[pairKey{pricing: unitCurrency, unit: pricingCurrency}]; ok {
		return ratToScaled(new(big.Rat).Inv(inverse), decimals), nil
	}
	return nil, ErrPriceFeedUnavailable
}

func ratToScaled(rate *big.Rat, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Int).Mul(rate.Num(), scale)
	return scaled.Quo(scaled, rate.Denom())
}
