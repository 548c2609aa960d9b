package rpc

import (
	"math/big"
	"net/http"

	"tresor/native/tokens"
	"tresor/native/treasury"
)

type accountingContextParams struct {
	Terminal string `json:"terminal"`
	Project  uint64 `json:"project"`
	Token    string `json:"token"`
	Decimals uint8  `json:"decimals"`
	Currency uint32 `json:"currency"`
	Standard uint8  `json:"standard"`
}

func (s *Server) handleSetAccountingContext(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountingContextParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ctx := treasury.AccountingContext{
		Token:    params.Token,
		Decimals: params.Decimals,
		Currency: params.Currency,
		Standard: treasury.TokenStandard(params.Standard),
	}
	if err := s.store.SetAccountingContext(params.Terminal, params.Project, ctx); err != nil {
		s.metrics.RecordOperation("set_context", "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	s.metrics.RecordOperation("set_context", "ok")
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type currencyAmountParam struct {
	Amount   string `json:"amount"`
	Currency uint32 `json:"currency"`
}

type fundAccessGroupParam struct {
	Terminal            string                `json:"terminal"`
	Token               string                `json:"token"`
	PayoutLimits        []currencyAmountParam `json:"payoutLimits"`
	SurplusPayoutLimits []currencyAmountParam `json:"surplusPayoutLimits"`
}

type configureFundAccessParams struct {
	Project   uint64                 `json:"project"`
	RulesetID uint64                 `json:"rulesetId"`
	Groups    []fundAccessGroupParam `json:"groups"`
}

func (s *Server) handleConfigureFundAccess(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params configureFundAccessParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	groups := make([]treasury.FundAccessLimitGroup, 0, len(params.Groups))
	for _, group := range params.Groups {
		payout, err := toCurrencyAmounts(group.PayoutLimits)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		surplus, err := toCurrencyAmounts(group.SurplusPayoutLimits)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		groups = append(groups, treasury.FundAccessLimitGroup{
			Terminal:            group.Terminal,
			Token:               group.Token,
			PayoutLimits:        payout,
			SurplusPayoutLimits: surplus,
		})
	}
	if err := s.store.ConfigureFundAccess(params.Project, params.RulesetID, groups); err != nil {
		s.metrics.RecordOperation("configure_fund_access", "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	s.metrics.RecordOperation("configure_fund_access", "ok")
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func toCurrencyAmounts(params []currencyAmountParam) ([]treasury.CurrencyAmount, error) {
	amounts := make([]treasury.CurrencyAmount, 0, len(params))
	for _, param := range params {
		amount, err := parseAmount(param.Amount)
		if err != nil {
			return nil, err
		}
		amounts = append(amounts, treasury.CurrencyAmount{Amount: amount, Currency: param.Currency})
	}
	return amounts, nil
}

type setRulesetParams struct {
	Project              uint64 `json:"project"`
	ID                   uint64 `json:"id"`
	Weight               string `json:"weight"`
	WeightDecimals       uint8  `json:"weightDecimals"`
	ReservedRate         uint16 `json:"reservedRate"`
	RedemptionRate       uint16 `json:"redemptionRate"`
	BaseCurrency         uint32 `json:"baseCurrency"`
	PausePay             bool   `json:"pausePay"`
	PauseRedeem          bool   `json:"pauseRedeem"`
	UseDataHookForPay    bool   `json:"useDataHookForPay"`
	UseDataHookForRedeem bool   `json:"useDataHookForRedeem"`
	HoldFees             bool   `json:"holdFees"`
	UseTotalSurplus      bool   `json:"useTotalSurplus"`
}

func (s *Server) handleSetRuleset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setRulesetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	weight, err := parseAmount(params.Weight)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ruleset := treasury.Ruleset{
		ID:             params.ID,
		Weight:         weight,
		WeightDecimals: params.WeightDecimals,
		ReservedRate:   params.ReservedRate,
		RedemptionRate: params.RedemptionRate,
		BaseCurrency:   params.BaseCurrency,
	}
	metadata := treasury.RulesetMetadata{
		PausePay:             params.PausePay,
		PauseRedeem:          params.PauseRedeem,
		UseDataHookForPay:    params.UseDataHookForPay,
		UseDataHookForRedeem: params.UseDataHookForRedeem,
		HoldFees:             params.HoldFees,
		UseTotalSurplus:      params.UseTotalSurplus,
	}
	if err := s.rulesets.SetCurrentRuleset(params.Project, ruleset, metadata); err != nil {
		s.metrics.RecordOperation("set_ruleset", "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	s.metrics.RecordOperation("set_ruleset", "ok")
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type recordPaymentParams struct {
	Terminal    string `json:"terminal"`
	Payer       string `json:"payer"`
	Project     uint64 `json:"project"`
	Token       string `json:"token"`
	Value       string `json:"value"`
	Decimals    uint8  `json:"decimals"`
	Currency    uint32 `json:"currency"`
	Beneficiary string `json:"beneficiary"`
	Memo        string `json:"memo"`
	Metadata    []byte `json:"metadata,omitempty"`
}

type recordPaymentResult struct {
	IssuedTokenCount    string `json:"issuedTokenCount"`
	MintedToBeneficiary string `json:"mintedToBeneficiary"`
	Memo                string `json:"memo"`
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params recordPaymentParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	value, err := parseAmount(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount := treasury.TokenAmount{
		Token:    params.Token,
		Value:    value,
		Decimals: params.Decimals,
		Currency: params.Currency,
	}
	receipt, err := s.store.RecordPaymentFrom(params.Terminal, params.Payer, amount, params.Project, params.Beneficiary, params.Memo, params.Metadata)
	if err != nil {
		s.metrics.RecordOperation("record_payment", "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	minted := "0"
	if s.tokens != nil && receipt.IssuedTokenCount.Sign() > 0 {
		mintedAmount, mintErr := s.tokens.MintTokensFor(params.Project, receipt.IssuedTokenCount, params.Beneficiary, true)
		if mintErr != nil {
			s.metrics.RecordOperation("record_payment", "error")
			s.writeDomainError(w, req.ID, mintErr)
			return
		}
		minted = formatAmount(mintedAmount)
	}
	s.metrics.RecordOperation("record_payment", "ok")
	writeResult(w, req.ID, recordPaymentResult{
		IssuedTokenCount:    formatAmount(receipt.IssuedTokenCount),
		MintedToBeneficiary: minted,
		Memo:                receipt.Memo,
	})
}

type recordPayoutParams struct {
	Terminal    string `json:"terminal"`
	Project     uint64 `json:"project"`
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	Currency    uint32 `json:"currency"`
	Beneficiary string `json:"beneficiary"`
}

type recordPayoutResult struct {
	NetLeavingAmount string `json:"netLeavingAmount"`
	NetToBeneficiary string `json:"netToBeneficiary"`
	FeeAmount        string `json:"feeAmount"`
	FeeHeld          bool   `json:"feeHeld"`
	FeeRouted        bool   `json:"feeRouted"`
}

func (s *Server) handleRecordPayout(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleOutbound(w, req, "record_payout", func(terminal string, project uint64, ctx treasury.AccountingContext, amount treasury.CurrencyAmount) (*treasury.PayoutReceipt, error) {
		return s.store.RecordPayoutFor(terminal, project, ctx, amount)
	})
}

func (s *Server) handleRecordUsedAllowance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleOutbound(w, req, "record_used_allowance", func(terminal string, project uint64, ctx treasury.AccountingContext, amount treasury.CurrencyAmount) (*treasury.PayoutReceipt, error) {
		return s.store.RecordUsedAllowanceOf(terminal, project, ctx, amount)
	})
}

// handleOutbound is the shared terminal-layer flow for payouts and surplus
// allowances: record against the store, then apply the fee policy to the
// amount leaving the system.
func (s *Server) handleOutbound(w http.ResponseWriter, req *RPCRequest, operation string, record func(string, uint64, treasury.AccountingContext, treasury.CurrencyAmount) (*treasury.PayoutReceipt, error)) {
	var params recordPayoutParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	requested, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ctx, err := s.store.ContextFor(params.Terminal, params.Project, params.Token)
	if err != nil {
		s.metrics.RecordOperation(operation, "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	receipt, err := record(params.Terminal, params.Project, ctx, treasury.CurrencyAmount{Amount: requested, Currency: params.Currency})
	if err != nil {
		s.metrics.RecordOperation(operation, "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	outcome, err := s.applyFee(params.Terminal, params.Beneficiary, ctx, receipt.NetLeavingAmount, params.Project)
	if err != nil {
		s.metrics.RecordOperation(operation, "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	s.metrics.RecordOperation(operation, "ok")
	writeResult(w, req.ID, recordPayoutResult{
		NetLeavingAmount: formatAmount(receipt.NetLeavingAmount),
		NetToBeneficiary: formatAmount(outcome.Net),
		FeeAmount:        formatAmount(outcome.Fee),
		FeeHeld:          outcome.Held,
		FeeRouted:        outcome.Routed,
	})
}

func (s *Server) applyFee(terminal, beneficiary string, ctx treasury.AccountingContext, gross *big.Int, project uint64) (treasury.FeeOutcome, error) {
	amount := treasury.TokenAmount{
		Token:    ctx.Token,
		Value:    gross,
		Decimals: ctx.Decimals,
		Currency: ctx.Currency,
	}
	holdFees := false
	if s.rulesets != nil {
		// A failing ruleset backend must not silently change fee
		// disposition.
		_, metadata, rErr := s.rulesets.CurrentRulesetOf(project)
		if rErr != nil {
			return treasury.FeeOutcome{}, rErr
		}
		holdFees = metadata.HoldFees
	}
	outcome, err := s.fees.ProcessFee(terminal, terminal, beneficiary, amount, holdFees)
	if err != nil {
		return treasury.FeeOutcome{}, err
	}
	switch {
	case outcome.Held:
		s.metrics.RecordFee("held")
	case outcome.Routed:
		s.metrics.RecordFee("routed")
	case outcome.Skipped:
		s.metrics.RecordFee("skipped")
	default:
		s.metrics.RecordFee("exempt")
	}
	return outcome, nil
}

type recordRedemptionParams struct {
	Terminal    string `json:"terminal"`
	Holder      string `json:"holder"`
	Project     uint64 `json:"project"`
	Token       string `json:"token"`
	RedeemCount string `json:"redeemCount"`
	Metadata    []byte `json:"metadata,omitempty"`
}

type recordRedemptionResult struct {
	ReclaimedAmount string `json:"reclaimedAmount"`
	NetToHolder     string `json:"netToHolder"`
	FeeAmount       string `json:"feeAmount"`
	FeeHeld         bool   `json:"feeHeld"`
}

func (s *Server) handleRecordRedemption(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params recordRedemptionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	redeemCount, err := parseAmount(params.RedeemCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ctx, err := s.store.ContextFor(params.Terminal, params.Project, params.Token)
	if err != nil {
		s.metrics.RecordOperation("record_redemption", "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	if s.tokens != nil {
		held, balErr := s.tokens.BalanceOf(params.Project, params.Holder)
		if balErr != nil {
			s.metrics.RecordOperation("record_redemption", "error")
			s.writeDomainError(w, req.ID, balErr)
			return
		}
		if redeemCount.Cmp(held) > 0 {
			s.metrics.RecordOperation("record_redemption", "error")
			s.writeDomainError(w, req.ID, tokens.ErrInsufficientTokens)
			return
		}
	}
	receipt, err := s.store.RecordRedemptionFor(params.Terminal, params.Holder, params.Project, redeemCount, ctx, params.Metadata)
	if err != nil {
		s.metrics.RecordOperation("record_redemption", "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	if s.tokens != nil {
		if err := s.tokens.BurnFrom(params.Project, params.Holder, redeemCount); err != nil {
			s.metrics.RecordOperation("record_redemption", "error")
			s.writeDomainError(w, req.ID, err)
			return
		}
	}
	outcome, err := s.applyFee(params.Terminal, params.Holder, ctx, receipt.ReclaimedAmount, params.Project)
	if err != nil {
		s.metrics.RecordOperation("record_redemption", "error")
		s.writeDomainError(w, req.ID, err)
		return
	}
	s.metrics.RecordOperation("record_redemption", "ok")
	writeResult(w, req.ID, recordRedemptionResult{
		ReclaimedAmount: formatAmount(receipt.ReclaimedAmount),
		NetToHolder:     formatAmount(outcome.Net),
		FeeAmount:       formatAmount(outcome.Fee),
		FeeHeld:         outcome.Held,
	})
}

type balanceQueryParams struct {
	Terminal string `json:"terminal"`
	Project  uint64 `json:"project"`
	Token    string `json:"token"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

func (s *Server) handleBalanceOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.store.BalanceOf(params.Terminal, params.Project, params.Token)
	if err != nil {
		s.writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatAmount(balance)})
}

func (s *Server) handleSurplusOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	surplus, err := s.store.CurrentSurplusOf(params.Terminal, params.Project, params.Token)
	if err != nil {
		s.writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatAmount(surplus)})
}

type totalSurplusParams struct {
	Project uint64 `json:"project"`
	Token   string `json:"token"`
}

func (s *Server) handleTotalSurplusOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params totalSurplusParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	surplus, err := s.store.CurrentTotalSurplusOf(params.Project, params.Token)
	if err != nil {
		s.writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatAmount(surplus)})
}

type usedLimitParams struct {
	Terminal  string `json:"terminal"`
	Project   uint64 `json:"project"`
	RulesetID uint64 `json:"rulesetId"`
	Token     string `json:"token"`
	Currency  uint32 `json:"currency"`
}

func (s *Server) handleUsedPayoutLimitOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params usedLimitParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	used, err := s.store.UsedPayoutLimitOf(params.Project, params.RulesetID, params.Terminal, params.Token, params.Currency)
	if err != nil {
		s.writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatAmount(used)})
}

func (s *Server) handleUsedSurplusPayoutLimitOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params usedLimitParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	used, err := s.store.UsedSurplusPayoutLimitOf(params.Project, params.RulesetID, params.Terminal, params.Token, params.Currency)
	if err != nil {
		s.writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: formatAmount(used)})
}
