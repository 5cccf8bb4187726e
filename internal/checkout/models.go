// Package checkout implements the donation wizard: the state machine that carries a donation
// from the catalog through bank transfer instructions and donor identity capture to the
// thank-you card.
package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxJerseyQuantity is the largest number of jerseys a single donation may carry.
const MaxJerseyQuantity = 10

var (
	// ErrInvalidIntent is returned by Intent.Validate.
	ErrInvalidIntent = errors.New("invalid donation intent")
	// ErrInvalidIdentity is returned by Identity.Validate.
	ErrInvalidIdentity = errors.New("invalid donor identity")
)

// Kind distinguishes a per-jersey donation from a cash pool donation.
type Kind string

const (
	// KindJersey buys a number of jerseys of one product.
	KindJersey Kind = "jersey"
	// KindPool is an unrestricted cash contribution to a team's fund.
	KindPool Kind = "pool"
)

// Amount is a money value in minor currency units (kuruş).
type Amount int64

// ParseAmount parses a decimal string such as "900", "49.9" or "1.234,50" into an Amount.
// At most two fraction digits are accepted.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	// Turkish formatting uses '.' for thousands and ',' for the fraction.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("amount %q: expected at most two fraction digits", s)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, fmt.Errorf("amount %q: unexpected character", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	if units > (math.MaxInt64-cents)/100 {
		return 0, fmt.Errorf("amount %q: out of range", s)
	}
	a := Amount(units*100 + cents)
	if neg {
		a = -a
	}
	return a, nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// AmountFromFloat converts a floating point lira value, rounding to the nearest kuruş.
func AmountFromFloat(f float64) Amount {
	if f < 0 {
		return -AmountFromFloat(-f)
	}
	return Amount(f*100 + 0.5)
}

// Float returns the value in lira.
func (a Amount) Float() float64 {
	return float64(a) / 100
}

// String formats the amount with two fraction digits, e.g. "900.00".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a JSON number in lira.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Intent is the donation a visitor picked in the catalog, before any identity is attached.
// An Intent is never modified after it has been handed to the controller.
type Intent struct {
	Kind           Kind   `json:"kind"`
	TargetID       int64  `json:"target_id"`
	TargetLabel    string `json:"target_label"`
	Quantity       int    `json:"quantity,omitempty"`
	TotalAmount    Amount `json:"total_amount"`
	ImageRef       string `json:"image_ref,omitempty"`
	TeamLogoRef    string `json:"team_logo_ref,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
}

// Validate reports whether the intent may start a checkout.
func (i Intent) Validate() error {
	switch i.Kind {
	case KindJersey:
		if i.Quantity < 1 || i.Quantity > MaxJerseyQuantity {
			return fmt.Errorf("%w: jersey quantity %d outside [1, %d]", ErrInvalidIntent, i.Quantity, MaxJerseyQuantity)
		}
	case KindPool:
		if i.Quantity != 0 {
			return fmt.Errorf("%w: pool donations carry no quantity", ErrInvalidIntent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, i.Kind)
	}
	if i.TargetID <= 0 {
		return fmt.Errorf("%w: missing target", ErrInvalidIntent)
	}
	if i.TotalAmount <= 0 {
		return fmt.Errorf("%w: total amount must be positive", ErrInvalidIntent)
	}
	return nil
}

// IdentityKind selects how a donor is credited in public listings.
type IdentityKind string

const (
	IdentityName      IdentityKind = "name"
	IdentityInstagram IdentityKind = "instagram"
	IdentityTwitter   IdentityKind = "twitter"
)

// Valid reports whether k is one of the known identity kinds.
func (k IdentityKind) Valid() bool {
	switch k {
	case IdentityName, IdentityInstagram, IdentityTwitter:
		return true
	}
	return false
}

// Identity is the public attribution captured for a donation.
type Identity struct {
	Kind        IdentityKind `json:"identity_type"`
	DisplayName string       `json:"display_name"`
	Email       string       `json:"email,omitempty"`
}

// Validate reports whether the identity may complete a checkout.
func (d Identity) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: unknown identity type %q", ErrInvalidIdentity, d.Kind)
	}
	if strings.TrimSpace(d.DisplayName) == "" {
		return fmt.Errorf("%w: display name is empty", ErrInvalidIdentity)
	}
	if d.Kind != IdentityName && !strings.HasPrefix(d.DisplayName, "@") {
		return fmt.Errorf("%w: handle %q must start with @", ErrInvalidIdentity, d.DisplayName)
	}
	return nil
}
