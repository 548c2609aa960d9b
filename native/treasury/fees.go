package treasury

import (
	"math/big"
	"strings"

	"tresor/native/fixedmath"
)

// MaxFee is the fee rate denominator in basis points.
const MaxFee = 10_000

// SplitFee partitions a gross amount into the net owed to the recipient and
// the fee owed to the protocol. The two always sum back to gross exactly;
// the floor division shorts the recipient, never the protocol.
func SplitFee(gross *big.Int, feeRate uint16) (net, fee *big.Int) {
	gross = fixedmath.Clone(gross)
	if gross.Sign() <= 0 || feeRate == 0 {
		return gross, big.NewInt(0)
	}
	// Denominator MaxFee+feeRate is never zero, so the error is unreachable.
	net, _ = fixedmath.MulDiv(gross, big.NewInt(MaxFee), big.NewInt(MaxFee+int64(feeRate)))
	fee = new(big.Int).Sub(gross, net)
	return net, fee
}

// FeePolicy is the terminal layer's fee configuration: the protocol rate,
// the project fees accrue to, and the addresses exempt from fees.
type FeePolicy struct {
	Rate     uint16
	Project  uint64
	Feeless  map[string]struct{}
	Metadata []byte
}

// Exempt reports whether the beneficiary belongs to the feeless set.
func (p FeePolicy) Exempt(beneficiary string) bool {
	if len(p.Feeless) == 0 {
		return false
	}
	_, ok := p.Feeless[strings.TrimSpace(beneficiary)]
	return ok
}

// FeeOutcome describes what happened to the fee portion of an outbound
// amount.
type FeeOutcome struct {
	Net     *big.Int
	Fee     *big.Int
	Held    bool
	Routed  bool
	Skipped bool
}

// FeeProcessor applies the fee policy to value leaving the accounting
// system and routes collected fees back into the fee project as re-entrant
// payments.
type FeeProcessor struct {
	store  *TerminalStore
	policy FeePolicy
}

// NewFeeProcessor binds a processor to the store it routes fees through.
func NewFeeProcessor(store *TerminalStore, policy FeePolicy) *FeeProcessor {
	return &FeeProcessor{store: store, policy: policy}
}

// Policy returns the processor's fee configuration.
func (p *FeeProcessor) Policy() FeePolicy {
	if p == nil {
		return FeePolicy{}
	}
	return p.policy
}

// ProcessFee splits gross and disposes of the fee portion. Feeless
// beneficiaries keep the full gross. When holdFees is set the fee is
// reported with Held=true and left for the held-fee ledger to replay. If
// the fee project has no accounting context for the token on this terminal,
// fee collection is skipped entirely and the amount stays with the
// recipient; the operation never reverts on a fee routing miss.
func (p *FeeProcessor) ProcessFee(terminal, payer, beneficiary string, amount TokenAmount, holdFees bool) (FeeOutcome, error) {
	gross := fixedmath.Clone(amount.Value)
	if p == nil || p.store == nil {
		return FeeOutcome{Net: gross, Fee: big.NewInt(0)}, nil
	}
	if p.policy.Rate == 0 || p.policy.Exempt(beneficiary) {
		return FeeOutcome{Net: gross, Fee: big.NewInt(0)}, nil
	}
	net, fee := SplitFee(gross, p.policy.Rate)
	if fee.Sign() == 0 {
		return FeeOutcome{Net: gross, Fee: big.NewInt(0)}, nil
	}
	if holdFees {
		p.store.emit(Event{Type: EventTypeFeeHeld, Attributes: map[string]string{
			"terminal": terminal,
			"token":    amount.Token,
			"fee":      fee.String(),
		}})
		return FeeOutcome{Net: net, Fee: fee, Held: true}, nil
	}
	if _, err := p.store.ContextFor(terminal, p.policy.Project, amount.Token); err != nil {
		// Fail open: the fee project does not accept this token, so the
		// recipient keeps the full amount.
		p.store.emit(Event{Type: EventTypeFeeSkipped, Attributes: map[string]string{
			"terminal": terminal,
			"token":    amount.Token,
		}})
		return FeeOutcome{Net: gross, Fee: big.NewInt(0), Skipped: true}, nil
	}
	feeAmount := TokenAmount{Token: amount.Token, Value: fee, Decimals: amount.Decimals, Currency: amount.Currency}
	if _, err := p.store.RecordPaymentFrom(terminal, payer, feeAmount, p.policy.Project, beneficiary, "fee", p.policy.Metadata); err != nil {
		return FeeOutcome{}, err
	}
	p.store.emit(Event{Type: EventTypeFeeRouted, Attributes: map[string]string{
		"terminal": terminal,
		"token":    amount.Token,
		"fee":      fee.String(),
	}})
	return FeeOutcome{Net: net, Fee: fee, Routed: true}, nil
}
