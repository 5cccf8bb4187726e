package checkout

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func jerseyIntent() Intent {
	return Intent{
		Kind:         KindJersey,
		TargetID:     7,
		TargetLabel:  "Beşiktaş",
		Quantity:     3,
		TotalAmount:  90000,
		ImageRef:     "https://cdn.example.com/images/bjk.png",
		TeamLogoRef:  "https://cdn.example.com/logos/bjk.svg",
		PrimaryColor: "#000000",
	}
}

func mustPanic(t *testing.T, op string, fn func()) *PreconditionError {
	t.Helper()
	var got *PreconditionError
	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatalf("%s: expected precondition panic", op)
			}
			err, ok := r.(*PreconditionError)
			if !ok {
				t.Fatalf("%s: panic value %T, want *PreconditionError", op, r)
			}
			got = err
		}()
		fn()
	}()
	return got
}

func TestCheckoutScenarios(t *testing.T) {
	c := NewController()

	// Scenario A
	c.StartDonation(jerseyIntent())
	snap := c.Snapshot()
	if snap.State != AwaitingPayment {
		t.Fatalf("state = %s, want awaiting_payment", snap.State)
	}
	intent, ok := snap.Intent()
	if !ok || intent.TotalAmount.String() != "900.00" {
		t.Fatalf("total = %v, want 900.00", intent.TotalAmount)
	}

	// Scenario B
	c.ConfirmPayment()
	snap = c.Snapshot()
	if snap.State != CapturingIdentity {
		t.Fatalf("state = %s, want capturing_identity", snap.State)
	}
	if intent, _ := snap.Intent(); intent.Quantity != 3 {
		t.Fatalf("quantity = %d, want 3", intent.Quantity)
	}

	// Scenario C
	c.CompleteIdentity(Identity{Kind: IdentityInstagram, DisplayName: "@ornek"})
	snap = c.Snapshot()
	if snap.State != Confirmed {
		t.Fatalf("state = %s, want confirmed", snap.State)
	}
	confirmed, ok := snap.Payload.(ConfirmedPayload)
	if !ok {
		t.Fatalf("payload %T, want ConfirmedPayload", snap.Payload)
	}
	if confirmed.Identity.DisplayName != "@ornek" || confirmed.Intent.TargetID != 7 {
		t.Fatalf("unexpected confirmed payload: %+v", confirmed)
	}
	if !reflect.DeepEqual(confirmed.Intent, jerseyIntent()) {
		t.Fatalf("merge dropped intent fields: %+v", confirmed.Intent)
	}

	// Scenario D
	c.Finish()
	snap = c.Snapshot()
	if snap.State != Browsing {
		t.Fatalf("state = %s, want browsing", snap.State)
	}
	if _, ok := snap.Payload.(EmptyPayload); !ok {
		t.Fatalf("payload %T, want EmptyPayload", snap.Payload)
	}
	if snap.Hint != HintDonations {
		t.Fatalf("hint = %s, want donations", snap.Hint)
	}
}

func TestAbandonFromAwaitingPaymentClearsPayload(t *testing.T) {
	// Scenario E
	c := NewController()
	c.StartDonation(Intent{Kind: KindPool, TargetID: 2, TotalAmount: 5000})
	c.Abandon()

	snap := c.Snapshot()
	if snap.State != Browsing {
		t.Fatalf("state = %s, want browsing", snap.State)
	}
	if _, ok := snap.Payload.(EmptyPayload); !ok {
		t.Fatalf("payload %T, want EmptyPayload", snap.Payload)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(decoded["payload"]) != "{}" {
		t.Fatalf("payload json = %s, want {}", decoded["payload"])
	}
}

func TestAbandonFromCapturingIdentityKeepsIntent(t *testing.T) {
	c := NewController()
	c.StartDonation(jerseyIntent())
	c.ConfirmPayment()
	c.Abandon()

	snap := c.Snapshot()
	if snap.State != AwaitingPayment {
		t.Fatalf("state = %s, want awaiting_payment", snap.State)
	}
	pending, ok := snap.Payload.(PendingPayload)
	if !ok {
		t.Fatalf("payload %T, want PendingPayload", snap.Payload)
	}
	if !reflect.DeepEqual(pending.Intent, jerseyIntent()) {
		t.Fatalf("intent changed: %+v", pending.Intent)
	}
}

func TestSnapshotIsIdempotent(t *testing.T) {
	c := NewController()
	c.StartDonation(jerseyIntent())
	c.ConfirmPayment()
	first := c.Snapshot()
	for i := 0; i < 3; i++ {
		if again := c.Snapshot(); !reflect.DeepEqual(first, again) {
			t.Fatalf("snapshot %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestConsumeHintIsOneShot(t *testing.T) {
	c := NewController()
	c.StartDonation(jerseyIntent())
	c.ConfirmPayment()
	c.CompleteIdentity(Identity{Kind: IdentityName, DisplayName: "Ayşe Yılmaz"})
	c.Finish()

	if h := c.ConsumeHint(); h != HintDonations {
		t.Fatalf("first hint = %s, want donations", h)
	}
	if h := c.ConsumeHint(); h != HintDonate {
		t.Fatalf("second hint = %s, want donate", h)
	}
}

func TestAttemptChangesPerDonation(t *testing.T) {
	c := NewController()
	c.StartDonation(jerseyIntent())
	first := c.Attempt()
	c.Abandon()
	c.StartDonation(jerseyIntent())
	if c.Attempt() == first {
		t.Fatalf("attempt did not change: %d", first)
	}
}

func TestPreconditionViolations(t *testing.T) {
	t.Run("quantityAboveLimit", func(t *testing.T) {
		c := NewController()
		in := jerseyIntent()
		in.Quantity = 11
		if err := in.Validate(); !errors.Is(err, ErrInvalidIntent) {
			t.Fatalf("Validate() = %v, want ErrInvalidIntent", err)
		}
		perr := mustPanic(t, "StartDonation", func() { c.StartDonation(in) })
		if !errors.Is(perr, ErrInvalidIntent) {
			t.Fatalf("panic error = %v, want ErrInvalidIntent", perr)
		}
		if c.State() != Browsing {
			t.Fatalf("state changed to %s", c.State())
		}
	})

	t.Run("nonPositiveAmount", func(t *testing.T) {
		c := NewController()
		mustPanic(t, "StartDonation", func() {
			c.StartDonation(Intent{Kind: KindPool, TargetID: 2, TotalAmount: 0})
		})
	})

	t.Run("poolWithQuantity", func(t *testing.T) {
		in := Intent{Kind: KindPool, TargetID: 2, Quantity: 1, TotalAmount: 100}
		if err := in.Validate(); !errors.Is(err, ErrInvalidIntent) {
			t.Fatalf("Validate() = %v, want ErrInvalidIntent", err)
		}
	})

	t.Run("confirmWhileBrowsing", func(t *testing.T) {
		c := NewController()
		mustPanic(t, "ConfirmPayment", c.ConfirmPayment)
	})

	t.Run("abandonWhileBrowsing", func(t *testing.T) {
		c := NewController()
		mustPanic(t, "Abandon", c.Abandon)
	})

	t.Run("abandonWhenConfirmed", func(t *testing.T) {
		c := NewController()
		c.StartDonation(jerseyIntent())
		c.ConfirmPayment()
		c.CompleteIdentity(Identity{Kind: IdentityTwitter, DisplayName: "@ornek"})
		mustPanic(t, "Abandon", c.Abandon)
	})

	t.Run("completeWithEmptyIdentity", func(t *testing.T) {
		c := NewController()
		c.StartDonation(jerseyIntent())
		c.ConfirmPayment()
		perr := mustPanic(t, "CompleteIdentity", func() { c.CompleteIdentity(Identity{Kind: IdentityName}) })
		if !errors.Is(perr, ErrInvalidIdentity) {
			t.Fatalf("panic error = %v, want ErrInvalidIdentity", perr)
		}
		if c.State() != CapturingIdentity {
			t.Fatalf("state = %s, want capturing_identity", c.State())
		}
	})

	t.Run("finishBeforeConfirmed", func(t *testing.T) {
		c := NewController()
		c.StartDonation(jerseyIntent())
		mustPanic(t, "Finish", c.Finish)
	})

	t.Run("startTwice", func(t *testing.T) {
		c := NewController()
		c.StartDonation(jerseyIntent())
		mustPanic(t, "StartDonation", func() { c.StartDonation(jerseyIntent()) })
	})
}

func TestConfirmedSnapshotJSONMergesFields(t *testing.T) {
	c := NewController()
	c.StartDonation(jerseyIntent())
	c.ConfirmPayment()
	c.CompleteIdentity(Identity{Kind: IdentityInstagram, DisplayName: "@ornek", Email: "a@example.com"})

	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		State   string         `json:"state"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.State != "confirmed" {
		t.Fatalf("state = %q", decoded.State)
	}
	for key, want := range map[string]any{
		"display_name":  "@ornek",
		"identity_type": "instagram",
		"target_id":     float64(7),
		"quantity":      float64(3),
		"total_amount":  float64(900),
		"target_label":  "Beşiktaş",
	} {
		if got := decoded.Payload[key]; got != want {
			t.Fatalf("payload[%s] = %v, want %v", key, got, want)
		}
	}
}

func TestPoolSnapshotRendersNullQuantity(t *testing.T) {
	c := NewController()
	c.StartDonation(Intent{Kind: KindPool, TargetID: 7, TargetLabel: "Beşiktaş", TotalAmount: 25000})

	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Payload map[string]json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	raw, ok := decoded.Payload["quantity"]
	if !ok {
		t.Fatalf("payload has no quantity: %s", data)
	}
	if string(raw) != "null" {
		t.Fatalf("quantity = %s, want null", raw)
	}
}
