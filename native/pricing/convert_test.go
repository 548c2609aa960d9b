package pricing

import (
	"errors"
	"math/big"
	"testing"
)

const (
	currencyUSD = uint32(1)
	currencyEUR = uint32(2)
	currencyJPY = uint32(3)
)

func TestConvertSameCurrencyRescalesDecimals(t *testing.T) {
	c := NewConverter(nil, 0)
	got, err := c.Convert(big.NewInt(1_500_000), currencyUSD, 6, currencyUSD, 2)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected 150, got %s", got)
	}
}

func TestConvertSameCurrencySameDecimalsIsIdentity(t *testing.T) {
	c := NewConverter(nil, 0)
	got, err := c.Convert(big.NewInt(42), currencyUSD, 6, currencyUSD, 6)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected identity, got %s", got)
	}
}

func TestConvertCrossCurrencyAppliesRate(t *testing.T) {
	feeds := NewFeedStore()
	// 1 USD = 0.5 EUR.
	feeds.Register(currencyEUR, currencyUSD, big.NewRat(1, 2))
	c := NewConverter(feeds, 18)
	got, err := c.Convert(big.NewInt(100), currencyUSD, 2, currencyEUR, 2)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected 50, got %s", got)
	}
}

func TestConvertUsesInverseFeed(t *testing.T) {
	feeds := NewFeedStore()
	// Only EUR-per-USD registered; converting EUR to USD must invert it.
	feeds.Register(currencyEUR, currencyUSD, big.NewRat(1, 2))
	c := NewConverter(feeds, 18)
	got, err := c.Convert(big.NewInt(50), currencyEUR, 2, currencyUSD, 2)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100, got %s", got)
	}
}

func TestConvertMissingFeed(t *testing.T) {
	c := NewConverter(NewFeedStore(), 18)
	if _, err := c.Convert(big.NewInt(1), currencyUSD, 2, currencyJPY, 0); !errors.Is(err, ErrPriceFeedUnavailable) {
		t.Fatalf("expected ErrPriceFeedUnavailable, got %v", err)
	}
}

func TestConvertZeroAmountShortCircuits(t *testing.T) {
	c := NewConverter(NewFeedStore(), 18)
	got, err := c.Convert(big.NewInt(0), currencyUSD, 2, currencyJPY, 0)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestConvertCrossDecimalCrossCurrency(t *testing.T) {
	feeds := NewFeedStore()
	// 1 USD = 150 JPY; USD amounts carry 6 decimals, JPY carries 0.
	feeds.Register(currencyJPY, currencyUSD, big.NewRat(150, 1))
	c := NewConverter(feeds, 18)
	got, err := c.Convert(big.NewInt(2_000_000), currencyUSD, 6, currencyJPY, 0)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected 300, got %s", got)
	}
}
