package treasury

// Event types emitted after each committed mutation.
const (
	EventTypePayment       = "treasury.payment"
	EventTypePayout        = "treasury.payout"
	EventTypeSurplusPayout = "treasury.surplus_payout"
	EventTypeRedemption    = "treasury.redemption"
	EventTypeFeeHeld       = "treasury.fee_held"
	EventTypeFeeRouted     = "treasury.fee_routed"
	EventTypeFeeSkipped    = "treasury.fee_skipped"
)

// Event is a committed-state notification. Attributes are stringly typed so
// emitters can forward them to any sink without a schema dependency.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Emitter receives events after the mutations they describe have been
// committed. Emission happens strictly after state writes, never between a
// check and its effect.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter drops all events.
type NoopEmitter struct{}

// Emit satisfies Emitter.
func (NoopEmitter) Emit(Event) {}
