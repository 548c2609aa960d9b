package treasury

import (
	"math/big"
	"strings"
)

type storedCurrencyAmount struct {
	Amount   *big.Int
	Currency uint32
}

type storedLimitGroup struct {
	PayoutLimits        []storedCurrencyAmount
	SurplusPayoutLimits []storedCurrencyAmount
}

type storedUsage struct {
	Amount *big.Int
}

// ConfigureFundAccess installs the fund access limit groups for a ruleset
// configuration. Groups are validated for strict currency ordering and are
// write-once per (project, configuration, terminal, token); usage trackers
// for a fresh configuration id start at zero by construction. Every group is
// validated and checked against prior configuration before any write, so a
// rejected batch installs nothing.
func (s *TerminalStore) ConfigureFundAccess(project, rulesetID uint64, groups []FundAccessLimitGroup) error {
	if s == nil || s.state == nil {
		return errNilState
	}
	keys := make([][]byte, len(groups))
	seen := make(map[string]struct{}, len(groups))
	for i := range groups {
		if err := groups[i].Validate(); err != nil {
			return err
		}
		terminal := strings.TrimSpace(groups[i].Terminal)
		token := strings.TrimSpace(groups[i].Token)
		if terminal == "" || token == "" {
			return errInvalidKey
		}
		key := limitGroupKey(project, rulesetID, terminal, token)
		if _, dup := seen[string(key)]; dup {
			return ErrFundAccessAlreadySet
		}
		seen[string(key)] = struct{}{}
		var existing storedLimitGroup
		ok, err := s.state.KVGet(key, &existing)
		if err != nil {
			return err
		}
		if ok {
			return ErrFundAccessAlreadySet
		}
		keys[i] = key
	}
	for i := range groups {
		stored := storedLimitGroup{
			PayoutLimits:        toStoredAmounts(groups[i].PayoutLimits),
			SurplusPayoutLimits: toStoredAmounts(groups[i].SurplusPayoutLimits),
		}
		if err := s.state.KVPut(keys[i], stored); err != nil {
			return err
		}
	}
	return nil
}

func toStoredAmounts(limits []CurrencyAmount) []storedCurrencyAmount {
	stored := make([]storedCurrencyAmount, 0, len(limits))
	for _, limit := range limits {
		amount := limit.Amount
		if amount == nil {
			amount = big.NewInt(0)
		}
		stored = append(stored, storedCurrencyAmount{Amount: new(big.Int).Set(amount), Currency: limit.Currency})
	}
	return stored
}

func (s *TerminalStore) limitGroupOf(project, rulesetID uint64, terminal, token string) (storedLimitGroup, bool, error) {
	var stored storedLimitGroup
	ok, err := s.state.KVGet(limitGroupKey(project, rulesetID, terminal, token), &stored)
	if err != nil {
		return storedLimitGroup{}, false, err
	}
	return stored, ok, nil
}

// PayoutLimitOf returns the configured payout limit for the currency, or
// zero when none is configured. Absence is a valid state: payouts in that
// currency are denied, not unlimited.
func (s *TerminalStore) PayoutLimitOf(project, rulesetID uint64, terminal, token string, currency uint32) (*big.Int, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	group, ok, err := s.limitGroupOf(project, rulesetID, terminal, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return findLimit(group.PayoutLimits, currency), nil
}

// SurplusPayoutLimitOf mirrors PayoutLimitOf for the surplus limit family.
func (s *TerminalStore) SurplusPayoutLimitOf(project, rulesetID uint64, terminal, token string, currency uint32) (*big.Int, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	group, ok, err := s.limitGroupOf(project, rulesetID, terminal, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return findLimit(group.SurplusPayoutLimits, currency), nil
}

func findLimit(limits []storedCurrencyAmount, currency uint32) *big.Int {
	for _, limit := range limits {
		if limit.Currency == currency {
			if limit.Amount == nil {
				return big.NewInt(0)
			}
			return new(big.Int).Set(limit.Amount)
		}
		if limit.Currency > currency {
			break
		}
	}
	return big.NewInt(0)
}

// UsedPayoutLimitOf reports the cumulative amount already paid out against
// the currency's payout limit within the ruleset configuration. Usage is
// keyed by configuration id, so it persists across cycles that reuse a
// configuration and resets only on reconfiguration.
func (s *TerminalStore) UsedPayoutLimitOf(project, rulesetID uint64, terminal, token string, currency uint32) (*big.Int, error) {
	return s.usedAmount(usedPayoutKey(project, rulesetID, terminal, token, currency))
}

// UsedSurplusPayoutLimitOf mirrors UsedPayoutLimitOf for surplus payouts.
func (s *TerminalStore) UsedSurplusPayoutLimitOf(project, rulesetID uint64, terminal, token string, currency uint32) (*big.Int, error) {
	return s.usedAmount(usedSurplusKey(project, rulesetID, terminal, token, currency))
}

func (s *TerminalStore) usedAmount(key []byte) (*big.Int, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	var stored storedUsage
	ok, err := s.state.KVGet(key, &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(stored.Amount), nil
}

// recordPayoutUsed increments the payout usage tracker. The caller checks
// used+requested against the configured limit before calling; usage is
// always recorded in the currency the limit was declared in.
func (s *TerminalStore) recordPayoutUsed(project, rulesetID uint64, terminal, token string, currency uint32, amount *big.Int) error {
	return s.addUsage(usedPayoutKey(project, rulesetID, terminal, token, currency), amount)
}

func (s *TerminalStore) recordSurplusPayoutUsed(project, rulesetID uint64, terminal, token string, currency uint32, amount *big.Int) error {
	return s.addUsage(usedSurplusKey(project, rulesetID, terminal, token, currency), amount)
}

func (s *TerminalStore) addUsage(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	current, err := s.usedAmount(key)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current, amount)
	return s.state.KVPut(key, storedUsage{Amount: next})
}
