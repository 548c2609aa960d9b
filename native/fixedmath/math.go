package fixedmath

import (
	"errors"
	"math/big"
)

// ErrDivisionByZero is returned when a MulDiv denominator is zero.
var ErrDivisionByZero = errors.New("fixedmath: division by zero")

var ten = big.NewInt(10)

// MulDiv computes floor(a*b/denominator) with a full-precision intermediate
// product. The intermediate never overflows regardless of operand size, and
// the division always truncates toward zero so that rounding direction is
// uniform across every monetary computation built on top of it.
func MulDiv(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if a == nil || b == nil {
		return big.NewInt(0), nil
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, denominator), nil
}

// Pow10 returns 10^exp as a fresh big integer. Used to rescale amounts
// between decimal fixed-point representations.
func Pow10(exp uint8) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(exp)), nil)
}

// Clone returns a defensive copy of v, treating nil as zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
