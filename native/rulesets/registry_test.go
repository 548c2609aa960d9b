package rulesets

import (
	"math/big"
	"testing"

	"tresor/native/treasury"
	"tresor/storage"
)

func newTestRegistry() *Registry {
	return NewRegistry(storage.NewState(storage.NewMemDB()))
}

func TestCurrentRulesetOfUnconfiguredProject(t *testing.T) {
	registry := newTestRegistry()
	ruleset, metadata, err := registry.CurrentRulesetOf(1)
	if err != nil {
		t.Fatalf("current ruleset: %v", err)
	}
	if ruleset != nil {
		t.Fatalf("expected nil ruleset, got %+v", ruleset)
	}
	if metadata != (treasury.RulesetMetadata{}) {
		t.Fatalf("expected zero metadata, got %+v", metadata)
	}
}

func TestSetCurrentRulesetRoundTrips(t *testing.T) {
	registry := newTestRegistry()
	in := treasury.Ruleset{
		ID:             3,
		Weight:         big.NewInt(1_000_000),
		WeightDecimals: 6,
		ReservedRate:   2_500,
		RedemptionRate: 7_000,
		BaseCurrency:   1,
	}
	meta := treasury.RulesetMetadata{PauseRedeem: true, HoldFees: true, UseTotalSurplus: true}
	if err := registry.SetCurrentRuleset(1, in, meta); err != nil {
		t.Fatalf("set ruleset: %v", err)
	}

	out, outMeta, err := registry.CurrentRulesetOf(1)
	if err != nil {
		t.Fatalf("current ruleset: %v", err)
	}
	if out.ID != in.ID || out.Weight.Cmp(in.Weight) != 0 || out.WeightDecimals != in.WeightDecimals {
		t.Fatalf("ruleset mismatch: %+v", out)
	}
	if out.ReservedRate != in.ReservedRate || out.RedemptionRate != in.RedemptionRate || out.BaseCurrency != in.BaseCurrency {
		t.Fatalf("rate mismatch: %+v", out)
	}
	if outMeta != meta {
		t.Fatalf("metadata mismatch: %+v", outMeta)
	}
}

func TestSetCurrentRulesetReplacesPrior(t *testing.T) {
	registry := newTestRegistry()
	if err := registry.SetCurrentRuleset(1, treasury.Ruleset{ID: 1, Weight: big.NewInt(1)}, treasury.RulesetMetadata{}); err != nil {
		t.Fatalf("set first: %v", err)
	}
	if err := registry.SetCurrentRuleset(1, treasury.Ruleset{ID: 2, Weight: big.NewInt(5)}, treasury.RulesetMetadata{PausePay: true}); err != nil {
		t.Fatalf("set second: %v", err)
	}
	out, meta, err := registry.CurrentRulesetOf(1)
	if err != nil {
		t.Fatalf("current ruleset: %v", err)
	}
	if out.ID != 2 || !meta.PausePay {
		t.Fatalf("expected replacement to win, got %+v %+v", out, meta)
	}
}

func TestReservedRateOfDefaultsToZero(t *testing.T) {
	registry := newTestRegistry()
	if rate := registry.ReservedRateOf(9); rate != 0 {
		t.Fatalf("expected zero rate, got %d", rate)
	}
	if err := registry.SetCurrentRuleset(9, treasury.Ruleset{ID: 1, Weight: big.NewInt(1), ReservedRate: 1_234}, treasury.RulesetMetadata{}); err != nil {
		t.Fatalf("set ruleset: %v", err)
	}
	if rate := registry.ReservedRateOf(9); rate != 1_234 {
		t.Fatalf("expected 1234, got %d", rate)
	}
}
