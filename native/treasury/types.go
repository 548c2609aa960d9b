package treasury

import (
	"math/big"

	"tresor/native/fixedmath"
)

// MaxRedemptionRate is the redemption rate denominator in basis points. A
// ruleset redeeming at this rate pays out exact pro-rata surplus.
const MaxRedemptionRate = 10_000

// TokenStandard classifies how a token held by a terminal is transferred.
type TokenStandard uint8

const (
	// TokenStandardNative is the host chain's base asset.
	TokenStandardNative TokenStandard = iota
	// TokenStandardFungible is a fungible contract-managed token.
	TokenStandardFungible
	// TokenStandardOther covers non-standard assets a terminal may custody.
	TokenStandardOther
)

// AccountingContext records, per terminal and project, how a token is
// accounted for: its decimal scale, the currency its value is quoted in, and
// its transfer standard. Contexts are write-once; accepting value for a
// token with no registered context is a terminal misconfiguration.
type AccountingContext struct {
	Token    string
	Decimals uint8
	Currency uint32
	Standard TokenStandard
}

// CurrencyAmount pairs an amount with the currency it is denominated in.
// Amounts are expressed at the accounting context's decimal scale.
type CurrencyAmount struct {
	Amount   *big.Int
	Currency uint32
}

// TokenAmount describes an inbound token transfer: the token, its raw value,
// and the decimal/currency metadata the paying terminal resolved for it.
type TokenAmount struct {
	Token    string
	Value    *big.Int
	Decimals uint8
	Currency uint32
}

// FundAccessLimitGroup fixes, for one terminal and token under one ruleset
// configuration, the ordered payout and surplus payout limits. Currency ids
// within each list must be strictly increasing; the ordering doubles as
// deduplication and keeps lookups a single forward scan.
type FundAccessLimitGroup struct {
	Terminal            string
	Token               string
	PayoutLimits        []CurrencyAmount
	SurplusPayoutLimits []CurrencyAmount
}

// Validate rejects groups whose currency ordering is not strictly
// increasing in either limit list.
func (g *FundAccessLimitGroup) Validate() error {
	if g == nil {
		return ErrInvalidLimitOrdering
	}
	if !strictlyIncreasing(g.PayoutLimits) || !strictlyIncreasing(g.SurplusPayoutLimits) {
		return ErrInvalidLimitOrdering
	}
	return nil
}

func strictlyIncreasing(limits []CurrencyAmount) bool {
	for i := 1; i < len(limits); i++ {
		if limits[i].Currency <= limits[i-1].Currency {
			return false
		}
	}
	return true
}

// Ruleset is the read-only view of the active configuration epoch supplied
// by the ruleset provider. ID identifies the configuration, not the cycle:
// a recurring ruleset that rolls over carries the same ID forward.
type Ruleset struct {
	ID             uint64
	Weight         *big.Int
	WeightDecimals uint8
	ReservedRate   uint16
	RedemptionRate uint16
	BaseCurrency   uint32
}

// Clone returns a deep copy of the ruleset.
func (r *Ruleset) Clone() *Ruleset {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Weight = fixedmath.Clone(r.Weight)
	return &clone
}

// RulesetMetadata carries the feature flags the store enforces or forwards.
type RulesetMetadata struct {
	PausePay             bool
	PauseRedeem          bool
	UseDataHookForPay    bool
	UseDataHookForRedeem bool
	HoldFees             bool
	UseTotalSurplus      bool
}

// RulesetProvider resolves the current ruleset of a project. A nil ruleset
// with nil error means no ruleset has ever been configured; the store then
// credits balance but issues no tokens and leaves every gate open.
type RulesetProvider interface {
	CurrentRulesetOf(project uint64) (*Ruleset, RulesetMetadata, error)
}

// TokenLedger is the external mint/burn ledger for project tokens.
type TokenLedger interface {
	MintTokensFor(project uint64, count *big.Int, beneficiary string, applyReservedRate bool) (*big.Int, error)
	TotalSupplyWithReserved(project uint64) (*big.Int, error)
}

// HookAllocation routes a slice of an operation's value to a delegate hook.
type HookAllocation struct {
	Hook     string
	Amount   *big.Int
	Metadata []byte
}

// PayContext is the input handed to a pay data hook.
type PayContext struct {
	Payer       string
	Project     uint64
	Beneficiary string
	Amount      TokenAmount
	Weight      *big.Int
	Memo        string
	Metadata    []byte
}

// PayAdjustment is a pay hook's override of the ruleset defaults.
type PayAdjustment struct {
	Weight      *big.Int
	Memo        string
	Allocations []HookAllocation
}

// PayHook lets a project adjust issuance weight, memo, and delegate
// allocations on payments. Absent hooks fall back to ruleset defaults.
type PayHook interface {
	PayParams(ctx PayContext) (PayAdjustment, error)
}

// RedeemContext is the input handed to a redeem data hook.
type RedeemContext struct {
	Holder      string
	Project     uint64
	RedeemCount *big.Int
	Surplus     *big.Int
	TotalSupply *big.Int
	Metadata    []byte
}

// RedeemAdjustment is a redeem hook's override of the bonding curve result.
type RedeemAdjustment struct {
	ReclaimAmount *big.Int
	Allocations   []HookAllocation
}

// RedeemHook lets a project substitute its own reclaim computation.
type RedeemHook interface {
	RedeemParams(ctx RedeemContext) (RedeemAdjustment, error)
}

// PaymentReceipt is returned by RecordPaymentFrom. IssuedTokenCount is the
// full pre-reserved-rate count; the token ledger performs the reserved
// split when minting.
type PaymentReceipt struct {
	Ruleset          *Ruleset
	IssuedTokenCount *big.Int
	Allocations      []HookAllocation
	Memo             string
}

// PayoutReceipt is returned by payout and surplus allowance recordings.
// NetLeavingAmount is the gross amount leaving the store in the ledger's
// native currency; fee deduction happens in the calling terminal layer.
type PayoutReceipt struct {
	Ruleset          *Ruleset
	NetLeavingAmount *big.Int
}

// RedemptionReceipt is returned by RecordRedemptionFor.
type RedemptionReceipt struct {
	Ruleset         *Ruleset
	ReclaimedAmount *big.Int
	Allocations     []HookAllocation
}
