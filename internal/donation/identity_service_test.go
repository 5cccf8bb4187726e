package donation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/askidaforma/askida-forma/internal/checkout"
	"github.com/askidaforma/askida-forma/internal/store"
)

func TestResolveIdentity(t *testing.T) {
	cases := []struct {
		name        string
		form        IdentityForm
		display     string
		instagram   string
		twitter     string
		wantInvalid bool
	}{
		{name: "full name", form: IdentityForm{IdentityType: checkout.IdentityName, Name: " Ayşe ", Surname: "Yılmaz"}, display: "Ayşe Yılmaz"},
		{name: "name only", form: IdentityForm{IdentityType: checkout.IdentityName, Name: "Ali"}, display: "Ali"},
		{name: "blank name", form: IdentityForm{IdentityType: checkout.IdentityName}, display: "İsimsiz"},
		{name: "instagram strips at", form: IdentityForm{IdentityType: checkout.IdentityInstagram, Handle: "@@forma_fan"}, display: "@forma_fan", instagram: "forma_fan"},
		{name: "blank twitter", form: IdentityForm{IdentityType: checkout.IdentityTwitter, Handle: " "}, display: "@kullanici", twitter: "kullanici"},
		{name: "unknown type", form: IdentityForm{IdentityType: "facebook"}, wantInvalid: true},
		{name: "bad email", form: IdentityForm{IdentityType: checkout.IdentityName, Email: "nope"}, wantInvalid: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity, donor, err := ResolveIdentity(tc.form)
			if tc.wantInvalid {
				if !errors.Is(err, checkout.ErrInvalidIdentity) {
					t.Fatalf("err = %v, want ErrInvalidIdentity", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveIdentity: %v", err)
			}
			if identity.DisplayName != tc.display || donor.DisplayName != tc.display {
				t.Fatalf("display = %q/%q, want %q", identity.DisplayName, donor.DisplayName, tc.display)
			}
			if donor.InstagramHandle != tc.instagram || donor.TwitterHandle != tc.twitter {
				t.Fatalf("handles = %q/%q", donor.InstagramHandle, donor.TwitterHandle)
			}
			if donor.IdentityType != tc.form.IdentityType {
				t.Fatalf("identity type = %q", donor.IdentityType)
			}
		})
	}
}

func TestCaptureWritesDonorThenDonation(t *testing.T) {
	var order []string
	var donation store.Donation
	ms := &mockStore{
		upsertDonor: func(_ context.Context, d store.Donor) (store.Donor, error) {
			order = append(order, "donor")
			if d.Email != "ayse@example.com" {
				t.Errorf("email = %q", d.Email)
			}
			d.ID = 21
			return d, nil
		},
		insertDonation: func(_ context.Context, d store.Donation) (store.Donation, error) {
			order = append(order, "donation")
			donation = d
			return d, nil
		},
	}
	svc := NewIdentityService(ms, time.Second)
	intent := checkout.Intent{Kind: checkout.KindPool, TargetID: 3, TargetLabel: "Fenerbahçe", TotalAmount: 10000, TeamLogoRef: "logo.png"}

	identity, recent, err := svc.Capture(context.Background(), intent, IdentityForm{IdentityType: checkout.IdentityName, Name: "Ayşe", Email: "ayse@example.com"})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(order) != 2 || order[0] != "donor" || order[1] != "donation" {
		t.Fatalf("write order = %v", order)
	}
	if donation.DonorID != 21 || donation.TeamID != 3 || donation.Type != checkout.KindPool || donation.Quantity != nil || donation.AmountTL != 10000 {
		t.Fatalf("donation = %+v", donation)
	}
	if identity.DisplayName != "Ayşe" || identity.Email != "ayse@example.com" {
		t.Fatalf("identity = %+v", identity)
	}
	if recent.Team.Name != "Fenerbahçe" || recent.Donor == nil || recent.Donor.DisplayName != "Ayşe" {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestCaptureSurvivesRequestCancellation(t *testing.T) {
	ms := &mockStore{
		upsertDonor: func(ctx context.Context, d store.Donor) (store.Donor, error) {
			if err := ctx.Err(); err != nil {
				return store.Donor{}, err
			}
			d.ID = 1
			return d, nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewIdentityService(ms, time.Second)
	intent := checkout.Intent{Kind: checkout.KindJersey, TargetID: 3, Quantity: 1, TotalAmount: 90000}
	if _, _, err := svc.Capture(ctx, intent, IdentityForm{IdentityType: checkout.IdentityTwitter, Handle: "x"}); err != nil {
		t.Fatalf("Capture on a cancelled request: %v", err)
	}
}

func TestCaptureReturnsStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	ms := &mockStore{upsertDonor: func(context.Context, store.Donor) (store.Donor, error) {
		return store.Donor{}, boom
	}}
	svc := NewIdentityService(ms, time.Second)
	intent := checkout.Intent{Kind: checkout.KindJersey, TargetID: 3, Quantity: 1, TotalAmount: 90000}
	_, _, err := svc.Capture(context.Background(), intent, IdentityForm{IdentityType: checkout.IdentityName, Name: "Ali"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
	if n := ms.count("InsertDonation"); n != 0 {
		t.Fatalf("InsertDonation called %d times after donor failure", n)
	}
}
