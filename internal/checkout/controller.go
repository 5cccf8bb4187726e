package checkout

import "fmt"

// State is the step of the wizard a session is on.
type State int

const (
	Browsing State = iota
	AwaitingPayment
	CapturingIdentity
	Confirmed
)

var stateNames = [...]string{
	Browsing:          "browsing",
	AwaitingPayment:   "awaiting_payment",
	CapturingIdentity: "capturing_identity",
	Confirmed:         "confirmed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Hint tells the catalog which tab to open on its next render.
type Hint string

const (
	HintDonate    Hint = "donate"
	HintDonations Hint = "donations"
)

// Payload is the data carried by the current state. Its concrete type is fixed by the
// state: EmptyPayload while browsing, PendingPayload while awaiting payment or capturing
// identity, ConfirmedPayload once confirmed.
type Payload interface {
	payload()
}

// EmptyPayload is carried while browsing.
type EmptyPayload struct{}

// PendingPayload carries the intent before an identity exists.
type PendingPayload struct {
	Intent Intent
}

// ConfirmedPayload carries both the intent and the captured identity.
type ConfirmedPayload struct {
	Intent   Intent
	Identity Identity
}

func (EmptyPayload) payload()     {}
func (PendingPayload) payload()   {}
func (ConfirmedPayload) payload() {}

// Snapshot is a read-only view of a controller.
type Snapshot struct {
	State   State
	Payload Payload
	Hint    Hint
	Attempt uint64
}

// Intent returns the intent carried by the snapshot, if any.
func (s Snapshot) Intent() (Intent, bool) {
	switch p := s.Payload.(type) {
	case PendingPayload:
		return p.Intent, true
	case ConfirmedPayload:
		return p.Intent, true
	}
	return Intent{}, false
}

// PreconditionError is the panic value raised when a transition is invoked from the wrong
// state or with an invalid argument. It signals a programming defect in the caller.
type PreconditionError struct {
	Op    string
	State State
	Err   error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout: %s in state %s: %v", e.Op, e.State, e.Err)
	}
	return fmt.Sprintf("checkout: %s not allowed in state %s", e.Op, e.State)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Controller sequences one donation attempt at a time.
//
// A Controller is not safe for concurrent use; the owner serialises transitions.
type Controller struct {
	state   State
	intent  Intent
	ident   Identity
	hint    Hint
	attempt uint64
}

// NewController returns a controller in the Browsing state with an empty payload.
func NewController() *Controller {
	return &Controller{state: Browsing, hint: HintDonate}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Attempt returns the generation of the current donation attempt. It changes on every
// StartDonation.
func (c *Controller) Attempt() uint64 {
	return c.attempt
}

// StartDonation attaches intent and moves Browsing -> AwaitingPayment.
func (c *Controller) StartDonation(intent Intent) {
	c.require("StartDonation", Browsing)
	if err := intent.Validate(); err != nil {
		panic(&PreconditionError{Op: "StartDonation", State: c.state, Err: err})
	}
	c.intent = intent
	c.ident = Identity{}
	c.attempt++
	c.state = AwaitingPayment
}

// ConfirmPayment records the visitor's claim that the transfer was sent and moves
// AwaitingPayment -> CapturingIdentity. The claim is not verified.
func (c *Controller) ConfirmPayment() {
	c.require("ConfirmPayment", AwaitingPayment)
	c.state = CapturingIdentity
}

// Abandon steps back once. From AwaitingPayment the intent is dropped and the flow returns
// to Browsing; from CapturingIdentity it returns to AwaitingPayment with the intent kept.
func (c *Controller) Abandon() {
	switch c.state {
	case AwaitingPayment:
		c.reset()
	case CapturingIdentity:
		c.ident = Identity{}
		c.state = AwaitingPayment
	default:
		panic(&PreconditionError{Op: "Abandon", State: c.state})
	}
}

// CompleteIdentity merges identity into the payload and moves CapturingIdentity ->
// Confirmed. The identity must already be persisted by the caller.
func (c *Controller) CompleteIdentity(identity Identity) {
	c.require("CompleteIdentity", CapturingIdentity)
	if err := identity.Validate(); err != nil {
		panic(&PreconditionError{Op: "CompleteIdentity", State: c.state, Err: err})
	}
	c.ident = identity
	c.state = Confirmed
}

// Finish closes a confirmed donation, returns to Browsing and asks the catalog to open the
// recent donations tab next.
func (c *Controller) Finish() {
	c.require("Finish", Confirmed)
	c.reset()
	c.hint = HintDonations
}

// ConsumeHint returns the pending catalog hint and resets it to HintDonate.
func (c *Controller) ConsumeHint() Hint {
	h := c.hint
	c.hint = HintDonate
	return h
}

// Snapshot returns the current state and payload without changing anything.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{State: c.state, Hint: c.hint, Attempt: c.attempt}
	switch c.state {
	case AwaitingPayment, CapturingIdentity:
		s.Payload = PendingPayload{Intent: c.intent}
	case Confirmed:
		s.Payload = ConfirmedPayload{Intent: c.intent, Identity: c.ident}
	default:
		s.Payload = EmptyPayload{}
	}
	return s
}

func (c *Controller) require(op string, want State) {
	if c.state != want {
		panic(&PreconditionError{Op: op, State: c.state})
	}
}

func (c *Controller) reset() {
	c.intent = Intent{}
	c.ident = Identity{}
	c.state = Browsing
}
