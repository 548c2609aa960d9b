package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"tresor/native/pricing"
	"tresor/native/rulesets"
	"tresor/native/tokens"
	"tresor/native/treasury"
	"tresor/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError      = -32700
	codeInvalidRequest  = -32600
	codeMethodNotFound  = -32601
	codeInvalidParams   = -32602
	codeServerError     = -32000
	codeLimitExceeded   = -32030
	codeBalanceTooLow   = -32031
	codePaused          = -32040
	codeMisconfigured   = -32041
	codeFeedUnavailable = -32042
)

// Server exposes the terminal store over JSON-RPC 2.0. It is the terminal
// layer of the system: it owns fee deduction, token minting and burning
// around the store's record operations.
type Server struct {
	store    *treasury.TerminalStore
	fees     *treasury.FeeProcessor
	tokens   *tokens.Ledger
	rulesets *rulesets.Registry
	logger   *slog.Logger
	metrics  *observability.TreasuryMetrics
}

// NewServer wires a server around the accounting collaborators.
func NewServer(store *treasury.TerminalStore, fees *treasury.FeeProcessor, tokenLedger *tokens.Ledger, registry *rulesets.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    store,
		fees:     fees,
		tokens:   tokenLedger,
		rulesets: registry,
		logger:   logger,
		metrics:  observability.Treasury(),
	}
}

// Handler returns the HTTP handler serving the JSON-RPC endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
		return
	}
	handler(w, r, &req)
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"treasury_setAccountingContext":     s.handleSetAccountingContext,
		"treasury_configureFundAccess":      s.handleConfigureFundAccess,
		"treasury_setRuleset":               s.handleSetRuleset,
		"treasury_recordPayment":            s.handleRecordPayment,
		"treasury_recordPayout":             s.handleRecordPayout,
		"treasury_recordUsedAllowance":      s.handleRecordUsedAllowance,
		"treasury_recordRedemption":         s.handleRecordRedemption,
		"treasury_balanceOf":                s.handleBalanceOf,
		"treasury_surplusOf":                s.handleSurplusOf,
		"treasury_totalSurplusOf":           s.handleTotalSurplusOf,
		"treasury_usedPayoutLimitOf":        s.handleUsedPayoutLimitOf,
		"treasury_usedSurplusPayoutLimitOf": s.handleUsedSurplusPayoutLimitOf,
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

// writeDomainError maps the accounting error taxonomy onto stable RPC codes
// so callers can distinguish policy denials from misconfiguration.
func (s *Server) writeDomainError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, treasury.ErrPayoutLimitExceeded),
		errors.Is(err, treasury.ErrInadequateSurplusPayoutLimit):
		writeError(w, http.StatusOK, id, codeLimitExceeded, err.Error(), nil)
	case errors.Is(err, treasury.ErrInsufficientBalance),
		errors.Is(err, treasury.ErrInsufficientBalanceInStore),
		errors.Is(err, tokens.ErrInsufficientTokens):
		writeError(w, http.StatusOK, id, codeBalanceTooLow, err.Error(), nil)
	case errors.Is(err, treasury.ErrPayPaused), errors.Is(err, treasury.ErrRedeemPaused):
		writeError(w, http.StatusOK, id, codePaused, err.Error(), nil)
	case errors.Is(err, treasury.ErrContextAlreadySet),
		errors.Is(err, treasury.ErrContextNotSet),
		errors.Is(err, treasury.ErrInvalidLimitOrdering),
		errors.Is(err, treasury.ErrFundAccessAlreadySet):
		writeError(w, http.StatusOK, id, codeMisconfigured, err.Error(), nil)
	case errors.Is(err, pricing.ErrPriceFeedUnavailable):
		writeError(w, http.StatusOK, id, codeFeedUnavailable, err.Error(), nil)
	default:
		s.logger.Error("treasury operation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}
