package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"tresor/native/rulesets"
	"tresor/native/tokens"
	"tresor/native/treasury"
	"tresor/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	state := storage.NewState(storage.NewMemDB())
	registry := rulesets.NewRegistry(state)
	ledger := tokens.NewLedger(state, registry.ReservedRateOf)
	store := treasury.NewTerminalStore()
	store.SetState(state)
	store.SetRulesetProvider(registry)
	store.SetTokenLedger(ledger)
	fees := treasury.NewFeeProcessor(store, treasury.FeePolicy{Rate: 0})
	return NewServer(store, fees, ledger, registry, nil)
}

func call(t *testing.T, handler http.Handler, method string, params interface{}) RPCResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	body, err := json.Marshal(RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  []json.RawMessage{raw},
		ID:      1,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, recorder.Body.String())
	}
	return resp
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected RPC error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-encode result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestUnknownMethod(t *testing.T) {
	server := newTestServer(t)
	resp := call(t, server.Handler(), "treasury_noSuchMethod", map[string]string{})
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestRejectsNonPost(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := parseAmount("-5"); err == nil {
		t.Fatalf("expected negative amount rejection")
	}
	if _, err := parseAmount("not-a-number"); err == nil {
		t.Fatalf("expected malformed amount rejection")
	}
	// One past 2^256-1 must overflow.
	overflow := "115792089237316195423570985008687907853269984665640564039457584007913129639936"
	if _, err := parseAmount(overflow); err == nil {
		t.Fatalf("expected overflow rejection")
	}
	amount, err := parseAmount(" 42 ")
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	if amount.Int64() != 42 {
		t.Fatalf("expected 42, got %s", amount)
	}
}

func TestLifecycleOverRPC(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	resp := call(t, handler, "treasury_setAccountingContext", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "token": "native", "decimals": 0, "currency": 1,
	})
	var ok map[string]bool
	decodeResult(t, resp, &ok)

	resp = call(t, handler, "treasury_setRuleset", map[string]interface{}{
		"project": 1, "id": 1, "weight": "1", "redemptionRate": 10000, "baseCurrency": 1,
	})
	decodeResult(t, resp, &ok)

	resp = call(t, handler, "treasury_configureFundAccess", map[string]interface{}{
		"project": 1, "rulesetId": 1,
		"groups": []map[string]interface{}{{
			"terminal":     "terminal-1",
			"token":        "native",
			"payoutLimits": []map[string]interface{}{{"amount": "10", "currency": 1}},
		}},
	})
	decodeResult(t, resp, &ok)

	resp = call(t, handler, "treasury_recordPayment", map[string]interface{}{
		"terminal": "terminal-1", "payer": "alice", "project": 1,
		"token": "native", "value": "20", "decimals": 0, "currency": 1,
		"beneficiary": "alice",
	})
	var payment recordPaymentResult
	decodeResult(t, resp, &payment)
	if payment.IssuedTokenCount != "20" || payment.MintedToBeneficiary != "20" {
		t.Fatalf("unexpected payment result %+v", payment)
	}

	resp = call(t, handler, "treasury_balanceOf", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "token": "native",
	})
	var balance amountResult
	decodeResult(t, resp, &balance)
	if balance.Amount != "20" {
		t.Fatalf("expected balance 20, got %s", balance.Amount)
	}

	resp = call(t, handler, "treasury_surplusOf", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "token": "native",
	})
	var surplus amountResult
	decodeResult(t, resp, &surplus)
	if surplus.Amount != "10" {
		t.Fatalf("expected surplus 10, got %s", surplus.Amount)
	}

	resp = call(t, handler, "treasury_recordPayout", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "token": "native",
		"amount": "10", "currency": 1, "beneficiary": "bob",
	})
	var payout recordPayoutResult
	decodeResult(t, resp, &payout)
	if payout.NetLeavingAmount != "10" || payout.NetToBeneficiary != "10" {
		t.Fatalf("unexpected payout result %+v", payout)
	}

	resp = call(t, handler, "treasury_usedPayoutLimitOf", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "rulesetId": 1, "token": "native", "currency": 1,
	})
	var used amountResult
	decodeResult(t, resp, &used)
	if used.Amount != "10" {
		t.Fatalf("expected used limit 10, got %s", used.Amount)
	}

	resp = call(t, handler, "treasury_recordRedemption", map[string]interface{}{
		"terminal": "terminal-1", "holder": "alice", "project": 1,
		"token": "native", "redeemCount": "20",
	})
	var redemption recordRedemptionResult
	decodeResult(t, resp, &redemption)
	if redemption.ReclaimedAmount != "10" {
		t.Fatalf("expected reclaim 10, got %+v", redemption)
	}

	resp = call(t, handler, "treasury_balanceOf", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "token": "native",
	})
	decodeResult(t, resp, &balance)
	if balance.Amount != "0" {
		t.Fatalf("expected drained balance, got %s", balance.Amount)
	}
}

func TestPayoutFailsWhenRulesetBackendErrors(t *testing.T) {
	state := storage.NewState(storage.NewMemDB())
	registry := rulesets.NewRegistry(state)
	ledger := tokens.NewLedger(state, registry.ReservedRateOf)
	store := treasury.NewTerminalStore()
	store.SetState(state)
	store.SetRulesetProvider(registry)
	store.SetTokenLedger(ledger)
	fees := treasury.NewFeeProcessor(store, treasury.FeePolicy{Rate: 0})
	// The server's own registry handle is broken; the store keeps working.
	broken := rulesets.NewRegistry(nil)
	server := NewServer(store, fees, ledger, broken, nil)

	ctx := treasury.AccountingContext{Token: "native", Decimals: 0, Currency: 1}
	if err := store.SetAccountingContext("terminal-1", 1, ctx); err != nil {
		t.Fatalf("set context: %v", err)
	}
	if err := store.ConfigureFundAccess(1, 0, []treasury.FundAccessLimitGroup{{
		Terminal:     "terminal-1",
		Token:        "native",
		PayoutLimits: []treasury.CurrencyAmount{{Amount: bigAmount(t, "10"), Currency: 1}},
	}}); err != nil {
		t.Fatalf("configure fund access: %v", err)
	}
	if _, err := store.RecordPaymentFrom("terminal-1", "alice", treasury.TokenAmount{
		Token: "native", Value: bigAmount(t, "20"), Decimals: 0, Currency: 1,
	}, 1, "alice", "", nil); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	resp := call(t, server.Handler(), "treasury_recordPayout", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "token": "native",
		"amount": "5", "currency": 1, "beneficiary": "bob",
	})
	if resp.Error == nil || resp.Error.Code != codeServerError {
		t.Fatalf("expected server error from broken ruleset backend, got %+v", resp.Error)
	}
}

func bigAmount(t *testing.T, value string) *big.Int {
	t.Helper()
	amount, err := parseAmount(value)
	if err != nil {
		t.Fatalf("parse amount %q: %v", value, err)
	}
	return amount
}

func TestDomainErrorCodes(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	resp := call(t, handler, "treasury_setAccountingContext", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "token": "native", "decimals": 0, "currency": 1,
	})
	var ok map[string]bool
	decodeResult(t, resp, &ok)

	// Payment before fund access is configured, then a payout with no limit.
	resp = call(t, handler, "treasury_recordPayment", map[string]interface{}{
		"terminal": "terminal-1", "payer": "alice", "project": 1,
		"token": "native", "value": "20", "decimals": 0, "currency": 1,
		"beneficiary": "alice",
	})
	var payment recordPaymentResult
	decodeResult(t, resp, &payment)

	resp = call(t, handler, "treasury_recordPayout", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "token": "native",
		"amount": "5", "currency": 1, "beneficiary": "bob",
	})
	if resp.Error == nil || resp.Error.Code != codeLimitExceeded {
		t.Fatalf("expected limit exceeded code, got %+v", resp.Error)
	}

	// Duplicate context registration.
	resp = call(t, handler, "treasury_setAccountingContext", map[string]interface{}{
		"terminal": "terminal-1", "project": 1, "token": "native", "decimals": 0, "currency": 1,
	})
	if resp.Error == nil || resp.Error.Code != codeMisconfigured {
		t.Fatalf("expected misconfigured code, got %+v", resp.Error)
	}

	// Payment into a project with no context at all.
	resp = call(t, handler, "treasury_recordPayment", map[string]interface{}{
		"terminal": "terminal-1", "payer": "alice", "project": 99,
		"token": "native", "value": "1", "decimals": 0, "currency": 1,
		"beneficiary": "alice",
	})
	if resp.Error == nil || resp.Error.Code != codeMisconfigured {
		t.Fatalf("expected misconfigured code for missing context, got %+v", resp.Error)
	}

	// Redeeming more tokens than held.
	resp = call(t, handler, "treasury_recordRedemption", map[string]interface{}{
		"terminal": "terminal-1", "holder": "stranger", "project": 1,
		"token": "native", "redeemCount": "5",
	})
	if resp.Error == nil || resp.Error.Code != codeBalanceTooLow {
		t.Fatalf("expected balance too low code, got %+v", resp.Error)
	}
}
