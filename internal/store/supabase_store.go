package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/askidaforma/askida-forma/internal/checkout"
)

// SupabaseStore talks to the PostgREST interface of a Supabase project using the project's
// anon or service key.
type SupabaseStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseStore creates a store for the project at projectURL.
func NewSupabaseStore(projectURL, apiKey string) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    strings.TrimRight(projectURL, "/") + "/rest/v1",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing or proxy support).
func (s *SupabaseStore) SetHTTPClient(client *http.Client) {
	if client != nil {
		s.httpClient = client
	}
}

func (s *SupabaseStore) do(ctx context.Context, method, path string, query url.Values, body []byte, prefer string) ([]byte, error) {
	endpoint := s.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "message").String()
		if msg == "" {
			msg = string(data)
		}
		return nil, fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, msg)
	}
	return data, nil
}

// single returns the first element when v is an array and v itself otherwise. Embedded
// relations come back as an object or a one element array depending on how PostgREST
// infers the foreign key.
func single(v gjson.Result) gjson.Result {
	if v.IsArray() {
		return v.Get("0")
	}
	return v
}

func parseTime(v gjson.Result) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v.String())
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseQuantity(v gjson.Result) *int {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	q := int(v.Int())
	return &q
}

func parseTeam(v gjson.Result) Team {
	return Team{
		ID:             v.Get("id").Int(),
		Name:           v.Get("name").String(),
		LogoURL:        v.Get("logo_url").String(),
		PrimaryColor:   v.Get("primary_color").String(),
		SecondaryColor: v.Get("secondary_color").String(),
		CreatedAt:      parseTime(v.Get("created_at")),
	}
}

func parseProduct(v gjson.Result) Product {
	return Product{
		ID:          v.Get("id").Int(),
		TeamID:      v.Get("team_id").Int(),
		ImageURL:    v.Get("image_url").String(),
		Price:       checkout.AmountFromFloat(v.Get("price").Float()),
		Description: v.Get("description").String(),
		AgeRange:    v.Get("age_range").String(),
		CreatedAt:   parseTime(v.Get("created_at")),
	}
}

func parseDonor(v gjson.Result) Donor {
	return Donor{
		ID:              v.Get("id").Int(),
		Name:            v.Get("name").String(),
		Surname:         v.Get("surname").String(),
		Email:           v.Get("email").String(),
		InstagramHandle: v.Get("instagram_handle").String(),
		TwitterHandle:   v.Get("twitter_handle").String(),
		DisplayName:     v.Get("display_name").String(),
		IdentityType:    checkout.IdentityKind(v.Get("identity_type").String()),
		CreatedAt:       parseTime(v.Get("created_at")),
	}
}

// ListTeams returns all teams ordered by name.
func (s *SupabaseStore) ListTeams(ctx context.Context) ([]Team, error) {
	data, err := s.do(ctx, http.MethodGet, "teams", url.Values{"select": {"*"}, "order": {"name"}}, nil, "")
	if err != nil {
		return nil, fmt.Errorf("store: list teams: %w", err)
	}
	var teams []Team
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		teams = append(teams, parseTeam(v))
		return true
	})
	return teams, nil
}

// ListProducts returns all products with their team, ordered by id.
func (s *SupabaseStore) ListProducts(ctx context.Context) ([]ProductWithTeam, error) {
	data, err := s.do(ctx, http.MethodGet, "products", url.Values{"select": {"*,teams(*)"}, "order": {"id"}}, nil, "")
	if err != nil {
		return nil, fmt.Errorf("store: list products: %w", err)
	}
	var products []ProductWithTeam
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		products = append(products, ProductWithTeam{Product: parseProduct(v), Team: parseTeam(single(v.Get("teams")))})
		return true
	})
	return products, nil
}

// ListDonations returns donations newest first.
func (s *SupabaseStore) ListDonations(ctx context.Context, limit, offset int) ([]RecentDonation, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := url.Values{
		"select": {"*,teams(*),donors(*)"},
		"order":  {"created_at.desc"},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	data, err := s.do(ctx, http.MethodGet, "donations", query, nil, "")
	if err != nil {
		return nil, fmt.Errorf("store: list donations: %w", err)
	}
	var donations []RecentDonation
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		rd := RecentDonation{
			CreatedAt: parseTime(v.Get("created_at")),
			Type:      checkout.Kind(v.Get("type").String()),
			Quantity:  parseQuantity(v.Get("quantity")),
			Amount:    checkout.AmountFromFloat(v.Get("amount_tl").Float()),
		}
		team := single(v.Get("teams"))
		rd.Team = TeamRef{Name: team.Get("name").String(), LogoURL: team.Get("logo_url").String()}
		if donor := single(v.Get("donors")); donor.Exists() && donor.Type != gjson.Null {
			rd.Donor = &DonorRef{
				DisplayName:  donor.Get("display_name").String(),
				IdentityType: checkout.IdentityKind(donor.Get("identity_type").String()),
			}
		}
		donations = append(donations, rd)
		return true
	})
	return donations, nil
}

// DonationTotals calls the get_team_donation_totals database function.
func (s *SupabaseStore) DonationTotals(ctx context.Context) ([]Total, error) {
	data, err := s.do(ctx, http.MethodPost, "rpc/get_team_donation_totals", nil, []byte("{}"), "")
	if err != nil {
		return nil, fmt.Errorf("store: donation totals: %w", err)
	}
	var totals []Total
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		totals = append(totals, Total{
			Name:         v.Get("name").String(),
			LogoURL:      v.Get("logo_url").String(),
			TotalJerseys: int(v.Get("total_jerseys").Int()),
		})
		return true
	})
	sortTotals(totals)
	return totals, nil
}

// setFields builds a JSON object from ordered key/value pairs; empty strings become null.
func setFields(pairs ...any) ([]byte, error) {
	body := []byte("{}")
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		value := pairs[i+1]
		if str, ok := value.(string); ok && str == "" {
			value = nil
		}
		var err error
		body, err = sjson.SetBytes(body, key, value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
	}
	return body, nil
}

func donorBody(d Donor) ([]byte, error) {
	return setFields(
		"name", d.Name,
		"surname", d.Surname,
		"email", strings.TrimSpace(d.Email),
		"instagram_handle", d.InstagramHandle,
		"twitter_handle", d.TwitterHandle,
		"display_name", d.DisplayName,
		"identity_type", string(d.IdentityType),
	)
}

// UpsertDonor inserts d or merges it into the donor holding the same email.
func (s *SupabaseStore) UpsertDonor(ctx context.Context, d Donor) (Donor, error) {
	if err := validateDonor(d); err != nil {
		return Donor{}, err
	}
	body, err := donorBody(d)
	if err != nil {
		return Donor{}, fmt.Errorf("store: upsert donor: %w", err)
	}
	query := url.Values{}
	prefer := "return=representation"
	if strings.TrimSpace(d.Email) != "" {
		query.Set("on_conflict", "email")
		prefer = "resolution=merge-duplicates,return=representation"
	}
	data, err := s.do(ctx, http.MethodPost, "donors", query, body, prefer)
	if err != nil {
		return Donor{}, fmt.Errorf("store: upsert donor: %w", err)
	}
	return parseDonor(single(gjson.ParseBytes(data))), nil
}

// InsertDonation records a donation.
func (s *SupabaseStore) InsertDonation(ctx context.Context, d Donation) (Donation, error) {
	if err := validateDonation(d); err != nil {
		return Donation{}, err
	}
	body, err := setFields("team_id", d.TeamID, "type", string(d.Type), "quantity", d.Quantity)
	if err == nil && d.DonorID != 0 {
		body, err = sjson.SetBytes(body, "donor_id", d.DonorID)
	}
	if err == nil {
		body, err = sjson.SetRawBytes(body, "amount_tl", []byte(d.AmountTL.String()))
	}
	if err != nil {
		return Donation{}, fmt.Errorf("store: insert donation: %w", err)
	}
	data, err := s.do(ctx, http.MethodPost, "donations", nil, body, "return=representation")
	if err != nil {
		return Donation{}, fmt.Errorf("store: insert donation: %w", err)
	}
	row := single(gjson.ParseBytes(data))
	d.ID = row.Get("id").Int()
	d.CreatedAt = parseTime(row.Get("created_at"))
	return d, nil
}

// InsertTeam adds a team.
func (s *SupabaseStore) InsertTeam(ctx context.Context, t Team) (Team, error) {
	if err := validateTeam(t); err != nil {
		return Team{}, err
	}
	body, err := setFields("name", t.Name, "logo_url", t.LogoURL, "primary_color", t.PrimaryColor, "secondary_color", t.SecondaryColor)
	if err != nil {
		return Team{}, fmt.Errorf("store: insert team: %w", err)
	}
	data, err := s.do(ctx, http.MethodPost, "teams", nil, body, "return=representation")
	if err != nil {
		return Team{}, fmt.Errorf("store: insert team: %w", err)
	}
	return parseTeam(single(gjson.ParseBytes(data))), nil
}

// InsertProduct adds a product.
func (s *SupabaseStore) InsertProduct(ctx context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	body, err := setFields("team_id", p.TeamID, "image_url", p.ImageURL, "description", p.Description, "age_range", p.AgeRange)
	if err == nil {
		body, err = sjson.SetRawBytes(body, "price", []byte(p.Price.String()))
	}
	if err != nil {
		return Product{}, fmt.Errorf("store: insert product: %w", err)
	}
	data, err := s.do(ctx, http.MethodPost, "products", nil, body, "return=representation")
	if err != nil {
		return Product{}, fmt.Errorf("store: insert product: %w", err)
	}
	return parseProduct(single(gjson.ParseBytes(data))), nil
}

func idFilter(id int64) url.Values {
	return url.Values{"id": {"eq." + strconv.FormatInt(id, 10)}}
}

// DeleteProduct removes a product and returns it.
func (s *SupabaseStore) DeleteProduct(ctx context.Context, id int64) (Product, error) {
	data, err := s.do(ctx, http.MethodDelete, "products", idFilter(id), nil, "return=representation")
	if err != nil {
		return Product{}, fmt.Errorf("store: delete product: %w", err)
	}
	row := single(gjson.ParseBytes(data))
	if !row.Exists() {
		return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return parseProduct(row), nil
}

// UpdateProduct replaces the price, description and age range of a product.
func (s *SupabaseStore) UpdateProduct(ctx context.Context, p Product) error {
	if err := validateProductEdit(p); err != nil {
		return err
	}
	body, err := setFields("description", strings.TrimSpace(p.Description), "age_range", strings.TrimSpace(p.AgeRange))
	if err == nil {
		body, err = sjson.SetRawBytes(body, "price", []byte(p.Price.String()))
	}
	if err != nil {
		return fmt.Errorf("store: update product: %w", err)
	}
	data, err := s.do(ctx, http.MethodPatch, "products", idFilter(p.ID), body, "return=representation")
	if err != nil {
		return fmt.Errorf("store: update product: %w", err)
	}
	if !single(gjson.ParseBytes(data)).Exists() {
		return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	return nil
}

// ListDonors returns donors newest first.
func (s *SupabaseStore) ListDonors(ctx context.Context) ([]Donor, error) {
	data, err := s.do(ctx, http.MethodGet, "donors", url.Values{"select": {"*"}, "order": {"created_at.desc"}}, nil, "")
	if err != nil {
		return nil, fmt.Errorf("store: list donors: %w", err)
	}
	var donors []Donor
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		donors = append(donors, parseDonor(v))
		return true
	})
	return donors, nil
}

// UpdateDonor replaces the editable fields of a donor.
func (s *SupabaseStore) UpdateDonor(ctx context.Context, d Donor) error {
	if err := validateDonor(d); err != nil {
		return err
	}
	body, err := donorBody(d)
	if err != nil {
		return fmt.Errorf("store: update donor: %w", err)
	}
	data, err := s.do(ctx, http.MethodPatch, "donors", idFilter(d.ID), body, "return=representation")
	if err != nil {
		return fmt.Errorf("store: update donor: %w", err)
	}
	if !single(gjson.ParseBytes(data)).Exists() {
		return fmt.Errorf("donor %d: %w", d.ID, ErrNotFound)
	}
	return nil
}

// DeleteDonor removes a donor.
func (s *SupabaseStore) DeleteDonor(ctx context.Context, id int64) error {
	data, err := s.do(ctx, http.MethodDelete, "donors", idFilter(id), nil, "return=representation")
	if err != nil {
		return fmt.Errorf("store: delete donor: %w", err)
	}
	if !single(gjson.ParseBytes(data)).Exists() {
		return fmt.Errorf("donor %d: %w", id, ErrNotFound)
	}
	return nil
}

// Close is a no-op.
func (s *SupabaseStore) Close() error {
	return nil
}
