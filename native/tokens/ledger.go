package tokens

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// MaxReservedRate is the reserved rate denominator in basis points.
const MaxReservedRate = 10_000

var (
	errNilState = errors.New("tokens: state not configured")

	// ErrInsufficientTokens is returned when a burn exceeds the holder's
	// token balance.
	ErrInsufficientTokens = errors.New("tokens: insufficient token balance")
)

// Storage abstracts the host ledger state the token ledger persists to.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger tracks project token supply, per-holder balances, and the reserved
// portion withheld from beneficiaries at mint time. The reserved rate is
// resolved per project through the supplied callback so the ledger stays
// decoupled from ruleset plumbing.
type Ledger struct {
	state        Storage
	reservedRate func(project uint64) uint16
}

// NewLedger constructs a token ledger. A nil reservedRate treats every
// project as having no reserved portion.
func NewLedger(state Storage, reservedRate func(project uint64) uint16) *Ledger {
	if reservedRate == nil {
		reservedRate = func(uint64) uint16 { return 0 }
	}
	return &Ledger{state: state, reservedRate: reservedRate}
}

type storedCount struct {
	Amount *big.Int
}

func supplyKey(project uint64) []byte {
	return []byte(fmt.Sprintf("tokens/supply/%d", project))
}

func holderKey(project uint64, holder string) []byte {
	return []byte(fmt.Sprintf("tokens/holder/%d/%s", project, strings.TrimSpace(holder)))
}

func reserveKey(project uint64) []byte {
	return []byte(fmt.Sprintf("tokens/reserve/%d", project))
}

// MintTokensFor mints count project tokens. When applyReservedRate is set
// the project's reserved portion is withheld into the project reserve and
// only the remainder is credited to the beneficiary; the full count enters
// total supply either way. Returns the amount actually credited to the
// beneficiary.
func (l *Ledger) MintTokensFor(project uint64, count *big.Int, beneficiary string, applyReservedRate bool) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if count == nil || count.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	toBeneficiary := new(big.Int).Set(count)
	reserved := big.NewInt(0)
	if applyReservedRate {
		if rate := l.reservedRate(project); rate > 0 {
			reserved = new(big.Int).Mul(count, big.NewInt(int64(rate)))
			reserved.Quo(reserved, big.NewInt(MaxReservedRate))
			toBeneficiary.Sub(toBeneficiary, reserved)
		}
	}
	if err := l.add(supplyKey(project), count); err != nil {
		return nil, err
	}
	if reserved.Sign() > 0 {
		if err := l.add(reserveKey(project), reserved); err != nil {
			return nil, err
		}
	}
	if toBeneficiary.Sign() > 0 {
		if err := l.add(holderKey(project, beneficiary), toBeneficiary); err != nil {
			return nil, err
		}
	}
	return toBeneficiary, nil
}

// BurnFrom removes count tokens from the holder and total supply, as happens
// when tokens are redeemed against surplus.
func (l *Ledger) BurnFrom(project uint64, holder string, count *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if count == nil || count.Sign() <= 0 {
		return nil
	}
	held, err := l.read(holderKey(project, holder))
	if err != nil {
		return err
	}
	if count.Cmp(held) > 0 {
		return ErrInsufficientTokens
	}
	if err := l.state.KVPut(holderKey(project, holder), storedCount{Amount: new(big.Int).Sub(held, count)}); err != nil {
		return err
	}
	supply, err := l.read(supplyKey(project))
	if err != nil {
		return err
	}
	next := new(big.Int).Sub(supply, count)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	return l.state.KVPut(supplyKey(project), storedCount{Amount: next})
}

// TotalSupplyWithReserved reports the full circulating supply including the
// reserved portion not yet distributed.
func (l *Ledger) TotalSupplyWithReserved(project uint64) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.read(supplyKey(project))
}

// BalanceOf reports the holder's token balance.
func (l *Ledger) BalanceOf(project uint64, holder string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.read(holderKey(project, holder))
}

// ReserveOf reports the undistributed reserved balance of the project.
func (l *Ledger) ReserveOf(project uint64) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.read(reserveKey(project))
}

func (l *Ledger) read(key []byte) (*big.Int, error) {
	var stored storedCount
	ok, err := l.state.KVGet(key, &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(stored.Amount), nil
}

func (l *Ledger) add(key []byte, amount *big.Int) error {
	current, err := l.read(key)
	if err != nil {
		return err
	}
	return l.state.KVPut(key, storedCount{Amount: new(big.Int).Add(current, amount)})
}
