package treasury

import (
	"math/big"

	"tresor/native/fixedmath"
	"tresor/native/pricing"
)

// TerminalStore is the accounting engine shared by every payment terminal:
// it owns the balance ledger and the limit usage trackers, and is the only
// writer of either. Each record operation follows checks-effects-
// interactions: every precondition is verified first, all state writes are
// committed next, and only then are hooks or fee routing invoked, so a
// re-entrant payment observes fully committed state.
type TerminalStore struct {
	state      Storage
	rulesets   RulesetProvider
	tokens     TokenLedger
	converter  *pricing.Converter
	payHook    PayHook
	redeemHook RedeemHook
	emitter    Emitter
}

// NewTerminalStore creates a store with a no-op emitter. Collaborators are
// attached through the setters below.
func NewTerminalStore() *TerminalStore {
	return &TerminalStore{emitter: NoopEmitter{}}
}

// SetState configures the host ledger state backend.
func (s *TerminalStore) SetState(state Storage) { s.state = state }

// SetRulesetProvider configures the ruleset capability.
func (s *TerminalStore) SetRulesetProvider(provider RulesetProvider) { s.rulesets = provider }

// SetTokenLedger configures the project token mint/supply capability.
func (s *TerminalStore) SetTokenLedger(ledger TokenLedger) { s.tokens = ledger }

// SetConverter configures the currency conversion adapter.
func (s *TerminalStore) SetConverter(converter *pricing.Converter) { s.converter = converter }

// SetPayHook configures the pay data hook dispatched when a ruleset opts in.
func (s *TerminalStore) SetPayHook(hook PayHook) { s.payHook = hook }

// SetRedeemHook configures the redeem data hook.
func (s *TerminalStore) SetRedeemHook(hook RedeemHook) { s.redeemHook = hook }

// SetEmitter configures the event emitter. Passing nil restores the no-op
// emitter.
func (s *TerminalStore) SetEmitter(emitter Emitter) {
	if emitter == nil {
		s.emitter = NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *TerminalStore) emit(event Event) {
	if s == nil || s.emitter == nil {
		return
	}
	s.emitter.Emit(event)
}

func (s *TerminalStore) currentRuleset(project uint64) (*Ruleset, RulesetMetadata, error) {
	if s.rulesets == nil {
		return nil, RulesetMetadata{}, nil
	}
	return s.rulesets.CurrentRulesetOf(project)
}

// convertToContext expresses amount (denominated in fromCurrency at the
// context's decimal scale) in the context's native currency.
func (s *TerminalStore) convertToContext(amount *big.Int, fromCurrency uint32, ctx AccountingContext) (*big.Int, error) {
	if fromCurrency == ctx.Currency {
		return fixedmath.Clone(amount), nil
	}
	if s.converter == nil {
		return nil, pricing.ErrPriceFeedUnavailable
	}
	return s.converter.Convert(amount, fromCurrency, ctx.Decimals, ctx.Currency, ctx.Decimals)
}

// RecordPaymentFrom credits an inbound payment and computes the full
// pre-reserved token issuance for it. The balance credit is committed before
// the pay hook runs; if the hook fails the credit is unwound and the whole
// operation reports failure. No fee is ever charged on inbound payments.
func (s *TerminalStore) RecordPaymentFrom(terminal, payer string, amount TokenAmount, project uint64, beneficiary, memo string, metadata []byte) (*PaymentReceipt, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	if _, err := s.ContextFor(terminal, project, amount.Token); err != nil {
		return nil, err
	}
	ruleset, rulesetMeta, err := s.currentRuleset(project)
	if err != nil {
		return nil, err
	}
	if ruleset != nil && rulesetMeta.PausePay {
		return nil, ErrPayPaused
	}

	value := fixedmath.Clone(amount.Value)
	if err := s.increaseBalance(terminal, project, amount.Token, value); err != nil {
		return nil, err
	}

	// Before any ruleset exists the issuance weight defaults to zero:
	// balance is credited but no tokens are owed.
	weight := big.NewInt(0)
	if ruleset != nil {
		weight = fixedmath.Clone(ruleset.Weight)
	}
	var allocations []HookAllocation
	if ruleset != nil && rulesetMeta.UseDataHookForPay && s.payHook != nil {
		adjustment, hookErr := s.payHook.PayParams(PayContext{
			Payer:       payer,
			Project:     project,
			Beneficiary: beneficiary,
			Amount:      amount,
			Weight:      new(big.Int).Set(weight),
			Memo:        memo,
			Metadata:    metadata,
		})
		if hookErr != nil {
			if unwindErr := s.decreaseBalance(terminal, project, amount.Token, value); unwindErr != nil {
				return nil, unwindErr
			}
			return nil, hookErr
		}
		if adjustment.Weight != nil {
			weight = new(big.Int).Set(adjustment.Weight)
		}
		if adjustment.Memo != "" {
			memo = adjustment.Memo
		}
		allocations = adjustment.Allocations
	}

	issued := big.NewInt(0)
	if weight.Sign() > 0 && value.Sign() > 0 {
		issued, err = fixedmath.MulDiv(value, weight, fixedmath.Pow10(amount.Decimals))
		if err != nil {
			return nil, err
		}
	}

	s.emit(Event{Type: EventTypePayment, Attributes: map[string]string{
		"terminal": terminal,
		"token":    amount.Token,
		"value":    value.String(),
		"issued":   issued.String(),
	}})
	return &PaymentReceipt{
		Ruleset:          ruleset.Clone(),
		IssuedTokenCount: issued,
		Allocations:      allocations,
		Memo:             memo,
	}, nil
}

// RecordPayoutFor debits a payout against the currency's payout limit. The
// precondition order is fixed: a zero configured limit denies the payout, an
// exhausted limit denies it, and only then is the converted amount checked
// against balance. Usage is recorded in the limit's currency; the balance is
// debited in the ledger's native currency.
func (s *TerminalStore) RecordPayoutFor(terminal string, project uint64, ctx AccountingContext, amount CurrencyAmount) (*PayoutReceipt, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	ruleset, _, err := s.currentRuleset(project)
	if err != nil {
		return nil, err
	}
	var rulesetID uint64
	if ruleset != nil {
		rulesetID = ruleset.ID
	}
	requested := fixedmath.Clone(amount.Amount)

	limit, err := s.PayoutLimitOf(project, rulesetID, terminal, ctx.Token, amount.Currency)
	if err != nil {
		return nil, err
	}
	if limit.Sign() == 0 {
		return nil, ErrPayoutLimitExceeded
	}
	used, err := s.UsedPayoutLimitOf(project, rulesetID, terminal, ctx.Token, amount.Currency)
	if err != nil {
		return nil, err
	}
	if new(big.Int).Add(used, requested).Cmp(limit) > 0 {
		return nil, ErrPayoutLimitExceeded
	}

	converted, err := s.convertToContext(requested, amount.Currency, ctx)
	if err != nil {
		return nil, err
	}
	balance, err := s.BalanceOf(terminal, project, ctx.Token)
	if err != nil {
		return nil, err
	}
	if converted.Cmp(balance) > 0 {
		return nil, ErrInsufficientBalanceInStore
	}

	if err := s.recordPayoutUsed(project, rulesetID, terminal, ctx.Token, amount.Currency, requested); err != nil {
		return nil, err
	}
	if err := s.decreaseBalance(terminal, project, ctx.Token, converted); err != nil {
		return nil, err
	}

	s.emit(Event{Type: EventTypePayout, Attributes: map[string]string{
		"terminal": terminal,
		"token":    ctx.Token,
		"amount":   converted.String(),
	}})
	return &PayoutReceipt{Ruleset: ruleset.Clone(), NetLeavingAmount: converted}, nil
}

// RecordUsedAllowanceOf debits a surplus payout against the currency's
// surplus limit. The check order mirrors payouts, except the final balance
// check runs against surplus rather than raw balance: a withdrawal fails
// when too much of the balance is earmarked for payout limits even if the
// raw balance would cover it.
func (s *TerminalStore) RecordUsedAllowanceOf(terminal string, project uint64, ctx AccountingContext, amount CurrencyAmount) (*PayoutReceipt, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	ruleset, _, err := s.currentRuleset(project)
	if err != nil {
		return nil, err
	}
	var rulesetID uint64
	if ruleset != nil {
		rulesetID = ruleset.ID
	}
	requested := fixedmath.Clone(amount.Amount)

	limit, err := s.SurplusPayoutLimitOf(project, rulesetID, terminal, ctx.Token, amount.Currency)
	if err != nil {
		return nil, err
	}
	if limit.Sign() == 0 {
		return nil, ErrInadequateSurplusPayoutLimit
	}
	used, err := s.UsedSurplusPayoutLimitOf(project, rulesetID, terminal, ctx.Token, amount.Currency)
	if err != nil {
		return nil, err
	}
	if new(big.Int).Add(used, requested).Cmp(limit) > 0 {
		return nil, ErrInadequateSurplusPayoutLimit
	}

	converted, err := s.convertToContext(requested, amount.Currency, ctx)
	if err != nil {
		return nil, err
	}
	surplus, err := s.surplusOf(terminal, project, ctx, ruleset)
	if err != nil {
		return nil, err
	}
	if converted.Cmp(surplus) > 0 {
		return nil, ErrInsufficientBalanceInStore
	}

	if err := s.recordSurplusPayoutUsed(project, rulesetID, terminal, ctx.Token, amount.Currency, requested); err != nil {
		return nil, err
	}
	if err := s.decreaseBalance(terminal, project, ctx.Token, converted); err != nil {
		return nil, err
	}

	s.emit(Event{Type: EventTypeSurplusPayout, Attributes: map[string]string{
		"terminal": terminal,
		"token":    ctx.Token,
		"amount":   converted.String(),
	}})
	return &PayoutReceipt{Ruleset: ruleset.Clone(), NetLeavingAmount: converted}, nil
}

// RecordRedemptionFor burns a holder's claim against surplus. The reclaim
// amount comes from the redeem hook when the ruleset opts in, otherwise
// from the bonding curve: at the maximum redemption rate it is exact
// pro-rata, at rate zero it is zero regardless of surplus.
func (s *TerminalStore) RecordRedemptionFor(terminal, holder string, project uint64, redeemCount *big.Int, ctx AccountingContext, metadata []byte) (*RedemptionReceipt, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	ruleset, rulesetMeta, err := s.currentRuleset(project)
	if err != nil {
		return nil, err
	}
	if ruleset != nil && rulesetMeta.PauseRedeem {
		return nil, ErrRedeemPaused
	}

	var surplus *big.Int
	if rulesetMeta.UseTotalSurplus {
		surplus, err = s.totalSurplusOf(project, ctx, ruleset)
	} else {
		surplus, err = s.surplusOf(terminal, project, ctx, ruleset)
	}
	if err != nil {
		return nil, err
	}

	supply := big.NewInt(0)
	if s.tokens != nil {
		supply, err = s.tokens.TotalSupplyWithReserved(project)
		if err != nil {
			return nil, err
		}
		supply = fixedmath.Clone(supply)
	}
	count := fixedmath.Clone(redeemCount)

	var reclaimed *big.Int
	var allocations []HookAllocation
	if ruleset != nil && rulesetMeta.UseDataHookForRedeem && s.redeemHook != nil {
		adjustment, hookErr := s.redeemHook.RedeemParams(RedeemContext{
			Holder:      holder,
			Project:     project,
			RedeemCount: new(big.Int).Set(count),
			Surplus:     new(big.Int).Set(surplus),
			TotalSupply: new(big.Int).Set(supply),
			Metadata:    metadata,
		})
		if hookErr != nil {
			return nil, hookErr
		}
		reclaimed = fixedmath.Clone(adjustment.ReclaimAmount)
		allocations = adjustment.Allocations
	} else {
		reclaimed, err = reclaimableSurplus(surplus, count, supply, redemptionRateOf(ruleset))
		if err != nil {
			return nil, err
		}
	}

	// The curve is bounded by surplus by construction; checked anyway so a
	// misbehaving hook cannot drain earmarked funds.
	if reclaimed.Cmp(surplus) > 0 {
		return nil, ErrInsufficientBalanceInStore
	}
	balance, err := s.BalanceOf(terminal, project, ctx.Token)
	if err != nil {
		return nil, err
	}
	if reclaimed.Cmp(balance) > 0 {
		return nil, ErrInsufficientBalanceInStore
	}
	if err := s.decreaseBalance(terminal, project, ctx.Token, reclaimed); err != nil {
		return nil, err
	}

	s.emit(Event{Type: EventTypeRedemption, Attributes: map[string]string{
		"terminal":  terminal,
		"token":     ctx.Token,
		"reclaimed": reclaimed.String(),
	}})
	return &RedemptionReceipt{Ruleset: ruleset.Clone(), ReclaimedAmount: reclaimed, Allocations: allocations}, nil
}

func redemptionRateOf(ruleset *Ruleset) uint16 {
	if ruleset == nil {
		return 0
	}
	return ruleset.RedemptionRate
}

// reclaimableSurplus evaluates the concave bonding curve
//
//	reclaim = (surplus*count/supply) * (rate + count*(MAX-rate)/supply) / MAX
//
// which degenerates to exact pro-rata at rate == MaxRedemptionRate and to
// zero at rate == 0.
func reclaimableSurplus(surplus, redeemCount, totalSupply *big.Int, redemptionRate uint16) (*big.Int, error) {
	if surplus.Sign() == 0 || redeemCount.Sign() == 0 || totalSupply.Sign() == 0 || redemptionRate == 0 {
		return big.NewInt(0), nil
	}
	if redeemCount.Cmp(totalSupply) > 0 {
		redeemCount = totalSupply
	}
	base, err := fixedmath.MulDiv(surplus, redeemCount, totalSupply)
	if err != nil {
		return nil, err
	}
	if redemptionRate == MaxRedemptionRate {
		return base, nil
	}
	boost, err := fixedmath.MulDiv(redeemCount, big.NewInt(MaxRedemptionRate-int64(redemptionRate)), totalSupply)
	if err != nil {
		return nil, err
	}
	factor := new(big.Int).Add(big.NewInt(int64(redemptionRate)), boost)
	return fixedmath.MulDiv(base, factor, big.NewInt(MaxRedemptionRate))
}

// CurrentSurplusOf reports the terminal's balance in excess of the active
// ruleset's remaining payout limits, floored at zero.
func (s *TerminalStore) CurrentSurplusOf(terminal string, project uint64, token string) (*big.Int, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	ctx, err := s.ContextFor(terminal, project, token)
	if err != nil {
		return nil, err
	}
	ruleset, _, err := s.currentRuleset(project)
	if err != nil {
		return nil, err
	}
	return s.surplusOf(terminal, project, ctx, ruleset)
}

// CurrentTotalSurplusOf aggregates surplus across every terminal accounting
// for the token. Each terminal's own limits are subtracted from its own
// balance before summing; limits are never shared across terminals.
func (s *TerminalStore) CurrentTotalSurplusOf(project uint64, token string) (*big.Int, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	ruleset, _, err := s.currentRuleset(project)
	if err != nil {
		return nil, err
	}
	terminals, err := s.terminalsAccountingFor(project, token)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, terminal := range terminals {
		ctx, err := s.ContextFor(terminal, project, token)
		if err != nil {
			return nil, err
		}
		surplus, err := s.surplusOf(terminal, project, ctx, ruleset)
		if err != nil {
			return nil, err
		}
		total.Add(total, surplus)
	}
	return total, nil
}

func (s *TerminalStore) totalSurplusOf(project uint64, ctx AccountingContext, ruleset *Ruleset) (*big.Int, error) {
	terminals, err := s.terminalsAccountingFor(project, ctx.Token)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, terminal := range terminals {
		surplus, err := s.surplusOf(terminal, project, ctx, ruleset)
		if err != nil {
			return nil, err
		}
		total.Add(total, surplus)
	}
	return total, nil
}

func (s *TerminalStore) surplusOf(terminal string, project uint64, ctx AccountingContext, ruleset *Ruleset) (*big.Int, error) {
	balance, err := s.BalanceOf(terminal, project, ctx.Token)
	if err != nil {
		return nil, err
	}
	if ruleset == nil || balance.Sign() == 0 {
		return balance, nil
	}
	group, ok, err := s.limitGroupOf(project, ruleset.ID, terminal, ctx.Token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return balance, nil
	}
	earmarked := big.NewInt(0)
	for _, limit := range group.PayoutLimits {
		used, err := s.UsedPayoutLimitOf(project, ruleset.ID, terminal, ctx.Token, limit.Currency)
		if err != nil {
			return nil, err
		}
		remaining := new(big.Int).Sub(limit.Amount, used)
		if remaining.Sign() <= 0 {
			continue
		}
		converted, err := s.convertToContext(remaining, limit.Currency, ctx)
		if err != nil {
			return nil, err
		}
		earmarked.Add(earmarked, converted)
	}
	if earmarked.Cmp(balance) >= 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).Sub(balance, earmarked), nil
}
