package treasury

import (
	"math/big"

	"tresor/native/fixedmath"
)

type storedBalance struct {
	Amount *big.Int
}

// BalanceOf reports the running balance a terminal holds for a project in
// the given token. Missing keys read as zero.
func (s *TerminalStore) BalanceOf(terminal string, project uint64, token string) (*big.Int, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	var stored storedBalance
	ok, err := s.state.KVGet(balanceKey(terminal, project, token), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(stored.Amount), nil
}

func (s *TerminalStore) increaseBalance(terminal string, project uint64, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	current, err := s.BalanceOf(terminal, project, token)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current, amount)
	return s.state.KVPut(balanceKey(terminal, project, token), storedBalance{Amount: next})
}

// decreaseBalance debits the running balance, refusing any debit that would
// take it below zero.
func (s *TerminalStore) decreaseBalance(terminal string, project uint64, token string, amount *big.Int) error {
	amount = fixedmath.Clone(amount)
	if amount.Sign() <= 0 {
		return nil
	}
	current, err := s.BalanceOf(terminal, project, token)
	if err != nil {
		return err
	}
	if amount.Cmp(current) > 0 {
		return ErrInsufficientBalance
	}
	next := new(big.Int).Sub(current, amount)
	return s.state.KVPut(balanceKey(terminal, project, token), storedBalance{Amount: next})
}
