package treasury

import "errors"

// Configuration errors: detected at setup time, fatal to the attempted
// operation, never retried.
var (
	ErrContextAlreadySet    = errors.New("treasury: accounting context already set")
	ErrContextNotSet        = errors.New("treasury: accounting context not set")
	ErrInvalidLimitOrdering = errors.New("treasury: fund access limit currencies must be strictly increasing")
	ErrFundAccessAlreadySet = errors.New("treasury: fund access limits already configured for ruleset")
)

// Limit errors: a caller-supplied amount exceeds policy. Callers may retry
// with a smaller amount; the store never retries internally.
var (
	ErrPayoutLimitExceeded          = errors.New("treasury: payout limit exceeded")
	ErrInadequateSurplusPayoutLimit = errors.New("treasury: inadequate surplus payout limit")
)

// Balance errors: the ledger cannot cover the requested debit.
var (
	ErrInsufficientBalance        = errors.New("treasury: insufficient balance")
	ErrInsufficientBalanceInStore = errors.New("treasury: insufficient balance in terminal store")
)

// State errors: a ruleset feature gate is closed; callers must wait for a
// ruleset transition.
var (
	ErrPayPaused    = errors.New("treasury: payments paused by ruleset")
	ErrRedeemPaused = errors.New("treasury: redemptions paused by ruleset")
)

var (
	errNilState   = errors.New("treasury: state not configured")
	errInvalidKey = errors.New("treasury: terminal and token identifiers required")
)
