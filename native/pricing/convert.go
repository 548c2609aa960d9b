package pricing

import (
	"fmt"
	"math/big"

	"tresor/native/fixedmath"
)

// DefaultRateDecimals is the precision requested from the oracle when the
// converter is constructed without an explicit override.
const DefaultRateDecimals uint8 = 18

// Converter rescales amounts between currencies and decimal representations
// using a pluggable price oracle. Same-currency conversions never touch the
// oracle; they only normalise decimals.
type Converter struct {
	oracle       Oracle
	rateDecimals uint8
}

// NewConverter binds a converter to the supplied oracle. A zero rateDecimals
// falls back to DefaultRateDecimals.
func NewConverter(oracle Oracle, rateDecimals uint8) *Converter {
	if rateDecimals == 0 {
		rateDecimals = DefaultRateDecimals
	}
	return &Converter{oracle: oracle, rateDecimals: rateDecimals}
}

// Convert expresses amount (denominated in amountCurrency at amountDecimals)
// in targetCurrency at targetDecimals. The whole conversion is a single
// floor division so at most one unit of precision is lost, always in the
// protocol's favour.
func (c *Converter) Convert(amount *big.Int, amountCurrency uint32, amountDecimals uint8, targetCurrency uint32, targetDecimals uint8) (*big.Int, error) {
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if amountCurrency == targetCurrency {
		if amountDecimals == targetDecimals {
			return new(big.Int).Set(amount), nil
		}
		return fixedmath.MulDiv(amount, fixedmath.Pow10(targetDecimals), fixedmath.Pow10(amountDecimals))
	}
	if c == nil || c.oracle == nil {
		return nil, ErrPriceFeedUnavailable
	}
	rate, err := c.oracle.PriceFor(targetCurrency, amountCurrency, c.rateDecimals)
	if err != nil {
		return nil, err
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, fmt.Errorf("pricing: invalid oracle rate for pair %d/%d", targetCurrency, amountCurrency)
	}
	numerator := new(big.Int).Mul(rate, fixedmath.Pow10(targetDecimals))
	denominator := new(big.Int).Mul(fixedmath.Pow10(c.rateDecimals), fixedmath.Pow10(amountDecimals))
	return fixedmath.MulDiv(amount, numerator, denominator)
}
