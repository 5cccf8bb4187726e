package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/askidaforma/askida-forma/internal/checkout"
	"github.com/askidaforma/askida-forma/internal/config"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalid is returned for records that fail basic validation.
	ErrInvalid = errors.New("store: invalid record")
)

// Store is the contract the donation flow and the admin console depend on.
type Store interface {
	ListTeams(ctx context.Context) ([]Team, error)
	ListProducts(ctx context.Context) ([]ProductWithTeam, error)
	ListDonations(ctx context.Context, limit, offset int) ([]RecentDonation, error)
	DonationTotals(ctx context.Context) ([]Total, error)

	// UpsertDonor inserts d, or updates the donor holding the same email. An empty email
	// always inserts.
	UpsertDonor(ctx context.Context, d Donor) (Donor, error)
	InsertDonation(ctx context.Context, d Donation) (Donation, error)

	InsertTeam(ctx context.Context, t Team) (Team, error)
	InsertProduct(ctx context.Context, p Product) (Product, error)
	// DeleteProduct removes the product and returns the removed row.
	DeleteProduct(ctx context.Context, id int64) (Product, error)
	// UpdateProduct replaces the price, description and age range of the product p.ID.
	UpdateProduct(ctx context.Context, p Product) error
	ListDonors(ctx context.Context) ([]Donor, error)
	UpdateDonor(ctx context.Context, d Donor) error
	DeleteDonor(ctx context.Context, id int64) error

	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreDriverFile, "":
		return NewFileStore(cfg.FilePath)
	case config.StoreDriverPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.StoreDriverSupabase:
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func validateTeam(t Team) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: team name is required", ErrInvalid)
	}
	return nil
}

func validateProduct(p Product) error {
	if p.TeamID <= 0 {
		return fmt.Errorf("%w: product team is required", ErrInvalid)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: product price must be positive", ErrInvalid)
	}
	return nil
}

// validateProductEdit checks the fields an admin may change on an existing product.
func validateProductEdit(p Product) error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: product id is required", ErrInvalid)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: product price must be positive", ErrInvalid)
	}
	if strings.TrimSpace(p.Description) == "" || strings.TrimSpace(p.AgeRange) == "" {
		return fmt.Errorf("%w: description and age range are required", ErrInvalid)
	}
	return nil
}

func validateDonor(d Donor) error {
	if strings.TrimSpace(d.DisplayName) == "" {
		return fmt.Errorf("%w: donor display name is required", ErrInvalid)
	}
	if !d.IdentityType.Valid() {
		return fmt.Errorf("%w: donor identity type %q", ErrInvalid, d.IdentityType)
	}
	return nil
}

func validateDonation(d Donation) error {
	if d.TeamID <= 0 {
		return fmt.Errorf("%w: donation team is required", ErrInvalid)
	}
	if d.AmountTL <= 0 {
		return fmt.Errorf("%w: donation amount must be positive", ErrInvalid)
	}
	switch d.Type {
	case checkout.KindJersey:
		if d.Quantity == nil || *d.Quantity <= 0 {
			return fmt.Errorf("%w: jersey donation needs a quantity", ErrInvalid)
		}
	case checkout.KindPool:
	default:
		return fmt.Errorf("%w: donation type %q", ErrInvalid, d.Type)
	}
	return nil
}

// sortTotals orders the leaderboard by jersey count, then name.
func sortTotals(totals []Total) {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].TotalJerseys != totals[j].TotalJerseys {
			return totals[i].TotalJerseys > totals[j].TotalJerseys
		}
		return totals[i].Name < totals[j].Name
	})
}
