package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/askidaforma/askida-forma/internal/checkout"
	"github.com/askidaforma/askida-forma/internal/config"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "store.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	clock := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s, path
}

func intPtr(v int) *int { return &v }

func TestFileStoreCatalog(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestFileStore(t)

	gs, err := s.InsertTeam(ctx, Team{Name: "Galatasaray", PrimaryColor: "#A90432"})
	if err != nil {
		t.Fatalf("InsertTeam: %v", err)
	}
	if _, err := s.InsertTeam(ctx, Team{Name: "Beşiktaş"}); err != nil {
		t.Fatalf("InsertTeam: %v", err)
	}
	if _, err := s.InsertTeam(ctx, Team{Name: "  "}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("blank team name error = %v, want ErrInvalid", err)
	}

	teams, err := s.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 2 || teams[0].Name != "Beşiktaş" {
		t.Fatalf("teams = %+v, want ordered by name", teams)
	}

	p, err := s.InsertProduct(ctx, Product{TeamID: gs.ID, Price: 90000, AgeRange: "8-10"})
	if err != nil {
		t.Fatalf("InsertProduct: %v", err)
	}
	if _, err := s.InsertProduct(ctx, Product{TeamID: 999, Price: 100}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown team error = %v, want ErrNotFound", err)
	}

	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 1 || products[0].Team.Name != "Galatasaray" {
		t.Fatalf("products = %+v", products)
	}

	removed, err := s.DeleteProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if removed.ID != p.ID {
		t.Fatalf("removed = %+v, want id %d", removed, p.ID)
	}
	if _, err := s.DeleteProduct(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreUpsertDonorByEmail(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestFileStore(t)

	first, err := s.UpsertDonor(ctx, Donor{Name: "Ayşe", DisplayName: "Ayşe Y", Email: "ayse@example.com", IdentityType: checkout.IdentityName})
	if err != nil {
		t.Fatalf("UpsertDonor: %v", err)
	}
	second, err := s.UpsertDonor(ctx, Donor{DisplayName: "@ayse", InstagramHandle: "ayse", Email: "AYSE@example.com ", IdentityType: checkout.IdentityInstagram})
	if err != nil {
		t.Fatalf("UpsertDonor: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a new donor: %d != %d", second.ID, first.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("upsert changed created_at")
	}

	anon1, err := s.UpsertDonor(ctx, Donor{DisplayName: "İsimsiz", IdentityType: checkout.IdentityName})
	if err != nil {
		t.Fatalf("UpsertDonor: %v", err)
	}
	anon2, err := s.UpsertDonor(ctx, Donor{DisplayName: "İsimsiz", IdentityType: checkout.IdentityName})
	if err != nil {
		t.Fatalf("UpsertDonor: %v", err)
	}
	if anon1.ID == anon2.ID {
		t.Fatalf("donors without email must not be merged")
	}

	donors, err := s.ListDonors(ctx)
	if err != nil {
		t.Fatalf("ListDonors: %v", err)
	}
	if len(donors) != 3 {
		t.Fatalf("len(donors) = %d, want 3", len(donors))
	}
	if donors[0].ID != anon2.ID {
		t.Fatalf("donors not newest first: %+v", donors)
	}
	for _, d := range donors {
		if d.ID == first.ID && d.IdentityType != checkout.IdentityInstagram {
			t.Fatalf("merged donor = %+v, want instagram identity", d)
		}
	}

	if _, err := s.UpsertDonor(ctx, Donor{DisplayName: "x", IdentityType: "fax"}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("invalid identity error = %v, want ErrInvalid", err)
	}
}

func TestFileStoreDonationsAndTotals(t *testing.T) {
	ctx := context.Background()
	s, path := newTestFileStore(t)

	gs, _ := s.InsertTeam(ctx, Team{Name: "Galatasaray"})
	fb, _ := s.InsertTeam(ctx, Team{Name: "Fenerbahçe"})
	bjk, _ := s.InsertTeam(ctx, Team{Name: "Beşiktaş"})
	donor, err := s.UpsertDonor(ctx, Donor{DisplayName: "@kemal", TwitterHandle: "kemal", IdentityType: checkout.IdentityTwitter})
	if err != nil {
		t.Fatalf("UpsertDonor: %v", err)
	}

	inserts := []Donation{
		{DonorID: donor.ID, TeamID: gs.ID, Type: checkout.KindJersey, Quantity: intPtr(2), AmountTL: 180000},
		{DonorID: donor.ID, TeamID: fb.ID, Type: checkout.KindJersey, Quantity: intPtr(3), AmountTL: 270000},
		{TeamID: gs.ID, Type: checkout.KindJersey, Quantity: intPtr(1), AmountTL: 90000},
		{TeamID: bjk.ID, Type: checkout.KindPool, AmountTL: 5000},
	}
	for _, d := range inserts {
		if _, err := s.InsertDonation(ctx, d); err != nil {
			t.Fatalf("InsertDonation(%+v): %v", d, err)
		}
	}
	if _, err := s.InsertDonation(ctx, Donation{TeamID: gs.ID, Type: checkout.KindJersey, AmountTL: 100}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("jersey without quantity error = %v, want ErrInvalid", err)
	}
	if _, err := s.InsertDonation(ctx, Donation{DonorID: 999, TeamID: gs.ID, Type: checkout.KindPool, AmountTL: 100}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown donor error = %v, want ErrNotFound", err)
	}

	recent, err := s.ListDonations(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListDonations: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[0].Type != checkout.KindPool || recent[0].Team.Name != "Beşiktaş" || recent[0].Donor != nil {
		t.Fatalf("newest donation = %+v", recent[0])
	}
	page, err := s.ListDonations(ctx, 10, 3)
	if err != nil {
		t.Fatalf("ListDonations: %v", err)
	}
	if len(page) != 1 || page[0].Donor == nil || page[0].Donor.DisplayName != "@kemal" {
		t.Fatalf("oldest donation = %+v", page)
	}

	totals, err := s.DonationTotals(ctx)
	if err != nil {
		t.Fatalf("DonationTotals: %v", err)
	}
	want := []Total{{Name: "Fenerbahçe", TotalJerseys: 3}, {Name: "Galatasaray", TotalJerseys: 3}, {Name: "Beşiktaş"}}
	if len(totals) != len(want) {
		t.Fatalf("totals = %+v", totals)
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Fatalf("totals[%d] = %+v, want %+v", i, totals[i], want[i])
		}
	}

	if err := s.DeleteDonor(ctx, donor.ID); err != nil {
		t.Fatalf("DeleteDonor: %v", err)
	}
	if err := s.DeleteDonor(ctx, donor.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	all, err := reopened.ListDonations(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListDonations: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("donations after donor delete = %d, want 4", len(all))
	}
	for _, d := range all {
		if d.Donor != nil {
			t.Fatalf("donation still references deleted donor: %+v", d)
		}
	}
}

func TestFileStoreUpdateDonor(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestFileStore(t)

	d, _ := s.UpsertDonor(ctx, Donor{Name: "Ali", DisplayName: "Ali", IdentityType: checkout.IdentityName})
	d.DisplayName = "Ali Veli"
	d.Surname = "Veli"
	if err := s.UpdateDonor(ctx, d); err != nil {
		t.Fatalf("UpdateDonor: %v", err)
	}
	donors, _ := s.ListDonors(ctx)
	if donors[0].DisplayName != "Ali Veli" {
		t.Fatalf("donor = %+v", donors[0])
	}
	if err := s.UpdateDonor(ctx, Donor{ID: 42, DisplayName: "x", IdentityType: checkout.IdentityName}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreUpdateProduct(t *testing.T) {
	ctx := context.Background()
	s, path := newTestFileStore(t)

	gs, _ := s.InsertTeam(ctx, Team{Name: "Galatasaray"})
	p, err := s.InsertProduct(ctx, Product{TeamID: gs.ID, ImageURL: "https://cdn.example.com/gs.png", Price: 90000, Description: "İç saha", AgeRange: "8-10"})
	if err != nil {
		t.Fatalf("InsertProduct: %v", err)
	}

	if err := s.UpdateProduct(ctx, Product{ID: p.ID, Price: 95050, Description: " Dış saha ", AgeRange: "10-12"}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	products, _ := reopened.ListProducts(ctx)
	if len(products) != 1 {
		t.Fatalf("products = %+v", products)
	}
	got := products[0].Product
	if got.Price != 95050 || got.Description != "Dış saha" || got.AgeRange != "10-12" {
		t.Fatalf("product = %+v", got)
	}
	if got.TeamID != gs.ID || got.ImageURL != p.ImageURL || !got.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("update touched fields it does not own: %+v", got)
	}

	invalid := []Product{
		{ID: p.ID, Price: 0, Description: "a", AgeRange: "b"},
		{ID: p.ID, Price: 100, Description: " ", AgeRange: "b"},
		{ID: p.ID, Price: 100, Description: "a", AgeRange: ""},
	}
	for _, edit := range invalid {
		if err := s.UpdateProduct(ctx, edit); !errors.Is(err, ErrInvalid) {
			t.Fatalf("UpdateProduct(%+v) error = %v, want ErrInvalid", edit, err)
		}
	}
	if err := s.UpdateProduct(ctx, Product{ID: 42, Price: 100, Description: "a", AgeRange: "b"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreFailedSaveRollsBack(t *testing.T) {
	ctx := context.Background()
	s, path := newTestFileStore(t)

	team, err := s.InsertTeam(ctx, Team{Name: "Galatasaray"})
	if err != nil {
		t.Fatalf("InsertTeam: %v", err)
	}

	// A directory in place of the data file makes the final rename fail.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	donor := Donor{Name: "Ali", Email: "ali@example.com", DisplayName: "Ali", IdentityType: checkout.IdentityName}
	if _, err := s.UpsertDonor(ctx, donor); err == nil {
		t.Fatalf("UpsertDonor succeeded with an unwritable data file")
	}
	if _, err := s.InsertDonation(ctx, Donation{TeamID: team.ID, Type: checkout.KindPool, AmountTL: 5000}); err == nil {
		t.Fatalf("InsertDonation succeeded with an unwritable data file")
	}
	if donors, _ := s.ListDonors(ctx); len(donors) != 0 {
		t.Fatalf("failed upsert left donors in memory: %+v", donors)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove dir: %v", err)
	}
	saved, err := s.UpsertDonor(ctx, donor)
	if err != nil {
		t.Fatalf("retry UpsertDonor: %v", err)
	}
	if saved.ID != team.ID+1 {
		t.Fatalf("donor id = %d, want %d (failed writes must not consume ids)", saved.ID, team.ID+1)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	donors, _ := reopened.ListDonors(ctx)
	if len(donors) != 1 {
		t.Fatalf("donors on disk = %+v, want exactly one", donors)
	}
	recent, _ := reopened.ListDonations(ctx, 10, 0)
	if len(recent) != 0 {
		t.Fatalf("failed donation reached disk: %+v", recent)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
