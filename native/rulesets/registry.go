package rulesets

import (
	"errors"
	"fmt"
	"math/big"

	"tresor/native/treasury"
)

var errNilState = errors.New("rulesets: state not configured")

// Storage abstracts the host ledger state the registry persists to.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Registry is a minimal ruleset source: it stores the current configuration
// per project and serves it to the terminal store. Cycle scheduling and
// approval hooks live outside this module; the registry only answers "what
// configuration is active right now".
type Registry struct {
	state Storage
}

// NewRegistry constructs a registry over the supplied state backend.
func NewRegistry(state Storage) *Registry {
	return &Registry{state: state}
}

type storedRuleset struct {
	ID             uint64
	Weight         *big.Int
	WeightDecimals uint8
	ReservedRate   uint16
	RedemptionRate uint16
	BaseCurrency   uint32

	PausePay             bool
	PauseRedeem          bool
	UseDataHookForPay    bool
	UseDataHookForRedeem bool
	HoldFees             bool
	UseTotalSurplus      bool
}

func rulesetKey(project uint64) []byte {
	return []byte(fmt.Sprintf("rulesets/current/%d", project))
}

// SetCurrentRuleset installs the active configuration for a project,
// replacing any prior one. A changed ID starts fresh limit usage tracking
// in the terminal store; reusing the ID carries usage forward.
func (r *Registry) SetCurrentRuleset(project uint64, ruleset treasury.Ruleset, metadata treasury.RulesetMetadata) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	weight := ruleset.Weight
	if weight == nil {
		weight = big.NewInt(0)
	}
	stored := storedRuleset{
		ID:                   ruleset.ID,
		Weight:               new(big.Int).Set(weight),
		WeightDecimals:       ruleset.WeightDecimals,
		ReservedRate:         ruleset.ReservedRate,
		RedemptionRate:       ruleset.RedemptionRate,
		BaseCurrency:         ruleset.BaseCurrency,
		PausePay:             metadata.PausePay,
		PauseRedeem:          metadata.PauseRedeem,
		UseDataHookForPay:    metadata.UseDataHookForPay,
		UseDataHookForRedeem: metadata.UseDataHookForRedeem,
		HoldFees:             metadata.HoldFees,
		UseTotalSurplus:      metadata.UseTotalSurplus,
	}
	return r.state.KVPut(rulesetKey(project), stored)
}

// CurrentRulesetOf returns the active configuration, or a nil ruleset when
// the project has never been configured.
func (r *Registry) CurrentRulesetOf(project uint64) (*treasury.Ruleset, treasury.RulesetMetadata, error) {
	if r == nil || r.state == nil {
		return nil, treasury.RulesetMetadata{}, errNilState
	}
	var stored storedRuleset
	ok, err := r.state.KVGet(rulesetKey(project), &stored)
	if err != nil {
		return nil, treasury.RulesetMetadata{}, err
	}
	if !ok {
		return nil, treasury.RulesetMetadata{}, nil
	}
	ruleset := &treasury.Ruleset{
		ID:             stored.ID,
		Weight:         new(big.Int).Set(stored.Weight),
		WeightDecimals: stored.WeightDecimals,
		ReservedRate:   stored.ReservedRate,
		RedemptionRate: stored.RedemptionRate,
		BaseCurrency:   stored.BaseCurrency,
	}
	metadata := treasury.RulesetMetadata{
		PausePay:             stored.PausePay,
		PauseRedeem:          stored.PauseRedeem,
		UseDataHookForPay:    stored.UseDataHookForPay,
		UseDataHookForRedeem: stored.UseDataHookForRedeem,
		HoldFees:             stored.HoldFees,
		UseTotalSurplus:      stored.UseTotalSurplus,
	}
	return ruleset, metadata, nil
}

// ReservedRateOf resolves the project's reserved rate, defaulting to zero
// when no ruleset is configured. Used by the token ledger at mint time.
func (r *Registry) ReservedRateOf(project uint64) uint16 {
	ruleset, _, err := r.CurrentRulesetOf(project)
	if err != nil || ruleset == nil {
		return 0
	}
	return ruleset.ReservedRate
}
