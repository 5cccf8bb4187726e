package checkout

import (
	"encoding/json"
	"strconv"
)

// merged is the flat JSON form of a payload: intent fields followed by identity fields.
// Quantity shadows the intent's field so a pool intent renders "quantity": null.
type merged struct {
	*Intent
	*Identity
	Quantity json.RawMessage `json:"quantity,omitempty"`
}

func quantityJSON(i Intent) json.RawMessage {
	if i.Kind != KindJersey {
		return json.RawMessage("null")
	}
	return json.RawMessage(strconv.Itoa(i.Quantity))
}

// MarshalJSON renders the snapshot for the browser. The payload is flattened so a confirmed
// payload shows intent and identity fields side by side; an empty payload renders as {}.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var m merged
	switch p := s.Payload.(type) {
	case PendingPayload:
		m.Intent = &p.Intent
		m.Quantity = quantityJSON(p.Intent)
	case ConfirmedPayload:
		m.Intent = &p.Intent
		m.Identity = &p.Identity
		m.Quantity = quantityJSON(p.Intent)
	}
	return json.Marshal(struct {
		State   State  `json:"state"`
		Hint    Hint   `json:"hint"`
		Attempt uint64 `json:"attempt"`
		Payload merged `json:"payload"`
	}{s.State, s.Hint, s.Attempt, m})
}
