package tokens

import (
	"errors"
	"math/big"
	"testing"

	"tresor/storage"
)

func newTestLedger(rate uint16) *Ledger {
	state := storage.NewState(storage.NewMemDB())
	return NewLedger(state, func(uint64) uint16 { return rate })
}

func TestMintWithoutReservedRate(t *testing.T) {
	ledger := newTestLedger(0)
	credited, err := ledger.MintTokensFor(1, big.NewInt(100), "alice", true)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if credited.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected full credit, got %s", credited)
	}
	supply, _ := ledger.TotalSupplyWithReserved(1)
	if supply.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected supply 100, got %s", supply)
	}
}

func TestMintWithholdsReservedPortion(t *testing.T) {
	// 25% reserved rate.
	ledger := newTestLedger(2_500)
	credited, err := ledger.MintTokensFor(1, big.NewInt(100), "alice", true)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if credited.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("expected 75 credited, got %s", credited)
	}
	balance, _ := ledger.BalanceOf(1, "alice")
	if balance.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("expected holder balance 75, got %s", balance)
	}
	reserve, _ := ledger.ReserveOf(1)
	if reserve.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("expected reserve 25, got %s", reserve)
	}
	// Supply counts reserved and distributed tokens alike.
	supply, _ := ledger.TotalSupplyWithReserved(1)
	if supply.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected supply 100, got %s", supply)
	}
}

func TestMintSkipsReservedRateWhenNotApplied(t *testing.T) {
	ledger := newTestLedger(2_500)
	credited, err := ledger.MintTokensFor(1, big.NewInt(100), "alice", false)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if credited.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected full credit, got %s", credited)
	}
	reserve, _ := ledger.ReserveOf(1)
	if reserve.Sign() != 0 {
		t.Fatalf("expected empty reserve, got %s", reserve)
	}
}

func TestMintReservedRoundsAgainstReserve(t *testing.T) {
	ledger := newTestLedger(2_500)
	credited, err := ledger.MintTokensFor(1, big.NewInt(3), "alice", true)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	// 3 * 2500 / 10000 truncates to 0 reserved.
	if credited.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("expected 3 credited, got %s", credited)
	}
}

func TestBurnFromReducesHolderAndSupply(t *testing.T) {
	ledger := newTestLedger(0)
	if _, err := ledger.MintTokensFor(1, big.NewInt(100), "alice", true); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.BurnFrom(1, "alice", big.NewInt(40)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	balance, _ := ledger.BalanceOf(1, "alice")
	if balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected balance 60, got %s", balance)
	}
	supply, _ := ledger.TotalSupplyWithReserved(1)
	if supply.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected supply 60, got %s", supply)
	}
}

func TestBurnFromRejectsOverdraw(t *testing.T) {
	ledger := newTestLedger(0)
	if _, err := ledger.MintTokensFor(1, big.NewInt(10), "alice", true); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.BurnFrom(1, "alice", big.NewInt(11)); !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens, got %v", err)
	}
	// Reserved tokens are not burnable through a holder account.
	if err := ledger.BurnFrom(1, "bob", big.NewInt(1)); !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens for stranger, got %v", err)
	}
}

func TestProjectsAreIsolated(t *testing.T) {
	ledger := newTestLedger(0)
	if _, err := ledger.MintTokensFor(1, big.NewInt(100), "alice", true); err != nil {
		t.Fatalf("mint: %v", err)
	}
	supply, _ := ledger.TotalSupplyWithReserved(2)
	if supply.Sign() != 0 {
		t.Fatalf("expected project 2 untouched, got %s", supply)
	}
	balance, _ := ledger.BalanceOf(2, "alice")
	if balance.Sign() != 0 {
		t.Fatalf("expected no cross-project balance, got %s", balance)
	}
}
