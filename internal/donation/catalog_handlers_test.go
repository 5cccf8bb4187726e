package donation

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/askidaforma/askida-forma/internal/checkout"
	"github.com/askidaforma/askida-forma/internal/store"
)

func TestCatalogEndpoints(t *testing.T) {
	var gotLimit, gotOffset int
	ms := catalogStore()
	ms.listDonations = func(_ context.Context, limit, offset int) ([]store.RecentDonation, error) {
		gotLimit, gotOffset = limit, offset
		q := 2
		return []store.RecentDonation{{
			Type:     checkout.KindJersey,
			Quantity: &q,
			Amount:   180000,
			Team:     store.TeamRef{Name: "Galatasaray"},
			Donor:    &store.DonorRef{DisplayName: "@forma_fan", IdentityType: checkout.IdentityInstagram},
		}}, nil
	}
	ms.donationTotals = func(context.Context) ([]store.Total, error) {
		return []store.Total{{Name: "Galatasaray", TotalJerseys: 12}}, nil
	}
	env := newTestEnv(t, ms, nil)
	c := env.client(t)

	t.Run("teams", func(t *testing.T) {
		rec := c.do(http.MethodGet, "/api/teams", nil)
		expectStatus(t, rec, http.StatusOK)
		if got := gjson.Get(rec.Body.String(), "teams.0.name").String(); got != testTeam.Name {
			t.Fatalf("team = %q", got)
		}
	})

	t.Run("products", func(t *testing.T) {
		rec := c.do(http.MethodGet, "/api/products", nil)
		expectStatus(t, rec, http.StatusOK)
		if got := gjson.Get(rec.Body.String(), "products.0.price").Float(); got != 900 {
			t.Fatalf("price = %v", got)
		}
	})

	t.Run("donations default page", func(t *testing.T) {
		rec := c.do(http.MethodGet, "/api/donations", nil)
		expectStatus(t, rec, http.StatusOK)
		if gotLimit != 50 || gotOffset != 0 {
			t.Fatalf("paging = %d/%d, want 50/0", gotLimit, gotOffset)
		}
		if got := gjson.Get(rec.Body.String(), "donations.0.donor.display_name").String(); got != "@forma_fan" {
			t.Fatalf("donor = %q", got)
		}
	})

	t.Run("donations paging", func(t *testing.T) {
		expectStatus(t, c.do(http.MethodGet, "/api/donations?limit=1000&offset=20", nil), http.StatusOK)
		if gotLimit != maxRecentLimit || gotOffset != 20 {
			t.Fatalf("paging = %d/%d", gotLimit, gotOffset)
		}
		expectStatus(t, c.do(http.MethodGet, "/api/donations?limit=abc", nil), http.StatusBadRequest)
		expectStatus(t, c.do(http.MethodGet, "/api/donations?offset=-1", nil), http.StatusBadRequest)
	})

	t.Run("totals", func(t *testing.T) {
		rec := c.do(http.MethodGet, "/api/totals", nil)
		expectStatus(t, rec, http.StatusOK)
		if got := gjson.Get(rec.Body.String(), "totals.0.total_jerseys").Int(); got != 12 {
			t.Fatalf("total = %d", got)
		}
	})

	t.Run("faq", func(t *testing.T) {
		rec := c.do(http.MethodGet, "/api/faq", nil)
		expectStatus(t, rec, http.StatusOK)
		if n := len(gjson.Get(rec.Body.String(), "faq").Array()); n != 3 {
			t.Fatalf("faq entries = %d", n)
		}
	})

	t.Run("catalog", func(t *testing.T) {
		rec := c.do(http.MethodGet, "/api/catalog", nil)
		expectStatus(t, rec, http.StatusOK)
		body := rec.Body.String()
		if got := gjson.Get(body, "hint").String(); got != "donate" {
			t.Fatalf("hint = %q", got)
		}
		if got := gjson.Get(body, "products.0.text_color").String(); got != "#A90432" {
			t.Fatalf("text color = %q", got)
		}
		if got := gjson.Get(body, "pool_quick_amounts").Raw; got != "[50.00,100.00,250.00]" {
			t.Fatalf("quick amounts = %s", got)
		}
		if got := gjson.Get(body, "max_quantity").Int(); got != 10 {
			t.Fatalf("max quantity = %d", got)
		}
	})
}

func TestCatalogReadFailureKeepsHint(t *testing.T) {
	ms := catalogStore()
	failing := true
	ms.donationTotals = func(context.Context) ([]store.Total, error) {
		if failing {
			return nil, errors.New("timeout")
		}
		return nil, nil
	}
	env := newTestEnv(t, ms, nil)

	s, err := env.module.GetSessionStore().Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.Lock()
	flow := s.Flow()
	flow.StartDonation(checkout.Intent{Kind: checkout.KindPool, TargetID: 3, TotalAmount: 5000})
	flow.ConfirmPayment()
	flow.CompleteIdentity(checkout.Identity{Kind: checkout.IdentityName, DisplayName: "Ali"})
	flow.Finish()
	s.Unlock()

	c := env.client(t)
	c.cookie = &http.Cookie{Name: SessionCookieName, Value: s.ID}

	rec := c.do(http.MethodGet, "/api/catalog", nil)
	expectStatus(t, rec, http.StatusBadGateway)
	if got := gjson.Get(rec.Body.String(), "error").String(); got != "store_read_failed" {
		t.Fatalf("error = %q", got)
	}
	expectStatus(t, c.do(http.MethodGet, "/api/totals", nil), http.StatusBadGateway)

	failing = false
	rec = c.do(http.MethodGet, "/api/catalog", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := gjson.Get(rec.Body.String(), "hint").String(); got != "donations" {
		t.Fatalf("hint = %q, want donations", got)
	}
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	c := env.client(t)

	rec := c.do(http.MethodGet, "/", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
	expectStatus(t, c.do(http.MethodGet, "/healthz", nil), http.StatusOK)
}
