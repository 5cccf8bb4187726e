package donation

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/askidaforma/askida-forma/internal/checkout"
	"github.com/askidaforma/askida-forma/internal/store"
)

const (
	defaultGivenName = "İsimsiz"
	defaultHandle    = "kullanici"
)

// IdentityForm is what the visitor submits on the identity step.
type IdentityForm struct {
	IdentityType checkout.IdentityKind `json:"identity_type"`
	Name         string                `json:"name"`
	Surname      string                `json:"surname"`
	Handle       string                `json:"handle"`
	Email        string                `json:"email"`
}

// ResolveIdentity derives the public identity and the donor record from a form. The display
// name is "name surname" for the name kind and "@handle" for the handle kinds; blank inputs
// fall back to placeholder values.
func ResolveIdentity(form IdentityForm) (checkout.Identity, store.Donor, error) {
	if !form.IdentityType.Valid() {
		return checkout.Identity{}, store.Donor{}, fmt.Errorf("%w: identity type %q", checkout.ErrInvalidIdentity, form.IdentityType)
	}
	email := strings.TrimSpace(form.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return checkout.Identity{}, store.Donor{}, fmt.Errorf("%w: email %q", checkout.ErrInvalidIdentity, email)
		}
	}

	donor := store.Donor{
		Name:         strings.TrimSpace(form.Name),
		Surname:      strings.TrimSpace(form.Surname),
		Email:        email,
		IdentityType: form.IdentityType,
	}
	switch form.IdentityType {
	case checkout.IdentityName:
		if donor.Name == "" {
			donor.Name = defaultGivenName
		}
		donor.DisplayName = strings.TrimSpace(donor.Name + " " + donor.Surname)
	case checkout.IdentityInstagram, checkout.IdentityTwitter:
		handle := strings.TrimLeft(strings.TrimSpace(form.Handle), "@")
		if handle == "" {
			handle = defaultHandle
		}
		if form.IdentityType == checkout.IdentityInstagram {
			donor.InstagramHandle = handle
		} else {
			donor.TwitterHandle = handle
		}
		donor.DisplayName = "@" + handle
	}

	identity := checkout.Identity{
		Kind:        form.IdentityType,
		DisplayName: donor.DisplayName,
		Email:       email,
	}
	if err := identity.Validate(); err != nil {
		return checkout.Identity{}, store.Donor{}, err
	}
	return identity, donor, nil
}

// IdentityService persists the donor and the donation of a completed identity step.
type IdentityService struct {
	store   store.Store
	timeout time.Duration
}

// NewIdentityService creates the service. timeout bounds each Capture.
func NewIdentityService(s store.Store, timeout time.Duration) *IdentityService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &IdentityService{store: s, timeout: timeout}
}

// Capture upserts the donor and inserts the donation for intent. The write is detached from
// ctx cancellation so a closed browser tab does not abort it halfway; it is still bounded
// by the service timeout. Errors are returned unchanged and never retried.
func (s *IdentityService) Capture(ctx context.Context, intent checkout.Intent, form IdentityForm) (checkout.Identity, store.RecentDonation, error) {
	identity, donor, err := ResolveIdentity(form)
	if err != nil {
		return checkout.Identity{}, store.RecentDonation{}, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	saved, err := s.store.UpsertDonor(ctx, donor)
	if err != nil {
		return checkout.Identity{}, store.RecentDonation{}, fmt.Errorf("upsert donor: %w", err)
	}

	donation := store.Donation{
		DonorID:  saved.ID,
		TeamID:   intent.TargetID,
		Type:     intent.Kind,
		AmountTL: intent.TotalAmount,
	}
	if intent.Kind == checkout.KindJersey {
		q := intent.Quantity
		donation.Quantity = &q
	}
	recorded, err := s.store.InsertDonation(ctx, donation)
	if err != nil {
		return checkout.Identity{}, store.RecentDonation{}, fmt.Errorf("insert donation: %w", err)
	}

	recent := store.RecentDonation{
		CreatedAt: recorded.CreatedAt,
		Type:      recorded.Type,
		Quantity:  recorded.Quantity,
		Amount:    recorded.AmountTL,
		Team:      store.TeamRef{Name: intent.TargetLabel, LogoURL: intent.TeamLogoRef},
		Donor:     &store.DonorRef{DisplayName: saved.DisplayName, IdentityType: saved.IdentityType},
	}
	return identity, recent, nil
}
