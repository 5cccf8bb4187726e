// Package store holds the catalog, donor and donation records and the drivers that persist
// them.
package store

import (
	"time"

	"github.com/askidaforma/askida-forma/internal/checkout"
)

// Team is a club whose jerseys can be donated.
type Team struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	LogoURL        string    `json:"logo_url,omitempty"`
	PrimaryColor   string    `json:"primary_color,omitempty"`
	SecondaryColor string    `json:"secondary_color,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Product is one jersey offered for donation.
type Product struct {
	ID          int64           `json:"id"`
	TeamID      int64           `json:"team_id"`
	ImageURL    string          `json:"image_url,omitempty"`
	Price       checkout.Amount `json:"price"`
	Description string          `json:"description,omitempty"`
	AgeRange    string          `json:"age_range,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProductWithTeam is a product joined with its team.
type ProductWithTeam struct {
	Product
	Team Team `json:"teams"`
}

// Donor is the persisted identity of a person who donated.
type Donor struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	Surname         string                `json:"surname"`
	Email           string                `json:"email,omitempty"`
	InstagramHandle string                `json:"instagram_handle,omitempty"`
	TwitterHandle   string                `json:"twitter_handle,omitempty"`
	DisplayName     string                `json:"display_name"`
	IdentityType    checkout.IdentityKind `json:"identity_type"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Donation is one recorded donation. DonorID is zero once the donor has been deleted.
type Donation struct {
	ID        int64           `json:"id"`
	DonorID   int64           `json:"donor_id,omitempty"`
	TeamID    int64           `json:"team_id"`
	Type      checkout.Kind   `json:"type"`
	Quantity  *int            `json:"quantity"`
	AmountTL  checkout.Amount `json:"amount_tl"`
	CreatedAt time.Time       `json:"created_at"`
}

// TeamRef is the team part of a recent donation.
type TeamRef struct {
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

// DonorRef is the public donor part of a recent donation.
type DonorRef struct {
	DisplayName  string                `json:"display_name"`
	IdentityType checkout.IdentityKind `json:"identity_type"`
}

// RecentDonation is a donation as shown in the public list.
type RecentDonation struct {
	CreatedAt time.Time       `json:"created_at"`
	Type      checkout.Kind   `json:"type"`
	Quantity  *int            `json:"quantity"`
	Amount    checkout.Amount `json:"amount_tl"`
	Team      TeamRef         `json:"team"`
	Donor     *DonorRef       `json:"donor"`
}

// Total is the leaderboard row of a team.
type Total struct {
	Name         string `json:"name"`
	LogoURL      string `json:"logo_url,omitempty"`
	TotalJerseys int    `json:"total_jerseys"`
}
