package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore keeps all records in memory and persists them to a single JSON file after every
// write. It suits local development and small deployments.
type FileStore struct {
	mu       sync.RWMutex
	filePath string
	data     fileData
	now      func() time.Time
}

// fileData represents the JSON file structure.
type fileData struct {
	NextID    int64      `json:"next_id"`
	Teams     []Team     `json:"teams"`
	Products  []Product  `json:"products"`
	Donors    []Donor    `json:"donors"`
	Donations []Donation `json:"donations"`
}

// NewFileStore opens the store at filePath, loading existing data if the file exists.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("store: file path is empty")
	}
	s := &FileStore{filePath: filePath, now: time.Now}
	if err := s.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("store: load %s: %w", filePath, err)
	}
	return s, nil
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	s.data = data
	return nil
}

// save writes the data to the JSON file. The caller holds the write lock.
func (s *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

// commit persists the current data. On failure the in-memory state is rolled back to prev so
// a later successful save cannot write a record the caller was told had failed.
func (s *FileStore) commit(prev fileData) error {
	if err := s.save(); err != nil {
		s.data = prev
		return err
	}
	return nil
}

// clone copies every slice so in-place edits do not reach the snapshot.
func (d fileData) clone() fileData {
	d.Teams = append([]Team(nil), d.Teams...)
	d.Products = append([]Product(nil), d.Products...)
	d.Donors = append([]Donor(nil), d.Donors...)
	d.Donations = append([]Donation(nil), d.Donations...)
	return d
}

func (s *FileStore) nextID() int64 {
	s.data.NextID++
	return s.data.NextID
}

func (s *FileStore) team(id int64) (Team, bool) {
	for _, t := range s.data.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

func (s *FileStore) donor(id int64) (Donor, bool) {
	for _, d := range s.data.Donors {
		if d.ID == id {
			return d, true
		}
	}
	return Donor{}, false
}

// ListTeams returns all teams ordered by name.
func (s *FileStore) ListTeams(_ context.Context) ([]Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := append([]Team(nil), s.data.Teams...)
	sort.SliceStable(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

// ListProducts returns all products with their team, ordered by id.
func (s *FileStore) ListProducts(_ context.Context) ([]ProductWithTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProductWithTeam, 0, len(s.data.Products))
	for _, p := range s.data.Products {
		team, _ := s.team(p.TeamID)
		out = append(out, ProductWithTeam{Product: p, Team: team})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListDonations returns donations newest first.
func (s *FileStore) ListDonations(_ context.Context, limit, offset int) ([]RecentDonation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	donations := append([]Donation(nil), s.data.Donations...)
	sort.SliceStable(donations, func(i, j int) bool {
		if !donations[i].CreatedAt.Equal(donations[j].CreatedAt) {
			return donations[i].CreatedAt.After(donations[j].CreatedAt)
		}
		return donations[i].ID > donations[j].ID
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(donations) {
		return []RecentDonation{}, nil
	}
	donations = donations[offset:]
	if limit > 0 && limit < len(donations) {
		donations = donations[:limit]
	}

	out := make([]RecentDonation, 0, len(donations))
	for _, d := range donations {
		out = append(out, s.recent(d))
	}
	return out, nil
}

func (s *FileStore) recent(d Donation) RecentDonation {
	rd := RecentDonation{
		CreatedAt: d.CreatedAt,
		Type:      d.Type,
		Quantity:  d.Quantity,
		Amount:    d.AmountTL,
	}
	if team, ok := s.team(d.TeamID); ok {
		rd.Team = TeamRef{Name: team.Name, LogoURL: team.LogoURL}
	}
	if donor, ok := s.donor(d.DonorID); ok {
		rd.Donor = &DonorRef{DisplayName: donor.DisplayName, IdentityType: donor.IdentityType}
	}
	return rd
}

// DonationTotals sums jersey donations per team.
func (s *FileStore) DonationTotals(_ context.Context) ([]Total, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[int64]int, len(s.data.Teams))
	for _, d := range s.data.Donations {
		if d.Quantity != nil {
			sums[d.TeamID] += *d.Quantity
		}
	}
	totals := make([]Total, 0, len(s.data.Teams))
	for _, t := range s.data.Teams {
		totals = append(totals, Total{Name: t.Name, LogoURL: t.LogoURL, TotalJerseys: sums[t.ID]})
	}
	sortTotals(totals)
	return totals, nil
}

// UpsertDonor inserts d or merges it into the donor with the same email.
func (s *FileStore) UpsertDonor(_ context.Context, d Donor) (Donor, error) {
	if err := validateDonor(d); err != nil {
		return Donor{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.clone()
	d.Email = strings.TrimSpace(d.Email)
	if d.Email != "" {
		for i, existing := range s.data.Donors {
			if strings.EqualFold(existing.Email, d.Email) {
				d.ID = existing.ID
				d.CreatedAt = existing.CreatedAt
				s.data.Donors[i] = d
				if err := s.commit(prev); err != nil {
					return Donor{}, err
				}
				return d, nil
			}
		}
	}
	d.ID = s.nextID()
	d.CreatedAt = s.now().UTC()
	s.data.Donors = append(s.data.Donors, d)
	if err := s.commit(prev); err != nil {
		return Donor{}, err
	}
	return d, nil
}

// InsertDonation records a donation.
func (s *FileStore) InsertDonation(_ context.Context, d Donation) (Donation, error) {
	if err := validateDonation(d); err != nil {
		return Donation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.team(d.TeamID); !ok {
		return Donation{}, fmt.Errorf("team %d: %w", d.TeamID, ErrNotFound)
	}
	if d.DonorID != 0 {
		if _, ok := s.donor(d.DonorID); !ok {
			return Donation{}, fmt.Errorf("donor %d: %w", d.DonorID, ErrNotFound)
		}
	}
	prev := s.data.clone()
	d.ID = s.nextID()
	d.CreatedAt = s.now().UTC()
	s.data.Donations = append(s.data.Donations, d)
	if err := s.commit(prev); err != nil {
		return Donation{}, err
	}
	return d, nil
}

// InsertTeam adds a team.
func (s *FileStore) InsertTeam(_ context.Context, t Team) (Team, error) {
	if err := validateTeam(t); err != nil {
		return Team{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.clone()
	t.ID = s.nextID()
	t.CreatedAt = s.now().UTC()
	s.data.Teams = append(s.data.Teams, t)
	if err := s.commit(prev); err != nil {
		return Team{}, err
	}
	return t, nil
}

// InsertProduct adds a product to an existing team.
func (s *FileStore) InsertProduct(_ context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.team(p.TeamID); !ok {
		return Product{}, fmt.Errorf("team %d: %w", p.TeamID, ErrNotFound)
	}
	prev := s.data.clone()
	p.ID = s.nextID()
	p.CreatedAt = s.now().UTC()
	s.data.Products = append(s.data.Products, p)
	if err := s.commit(prev); err != nil {
		return Product{}, err
	}
	return p, nil
}

// DeleteProduct removes a product.
func (s *FileStore) DeleteProduct(_ context.Context, id int64) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.clone()
	for i, p := range s.data.Products {
		if p.ID == id {
			s.data.Products = append(s.data.Products[:i], s.data.Products[i+1:]...)
			if err := s.commit(prev); err != nil {
				return Product{}, err
			}
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
}

// UpdateProduct replaces the price, description and age range of an existing product.
func (s *FileStore) UpdateProduct(_ context.Context, p Product) error {
	if err := validateProductEdit(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.clone()
	for i, existing := range s.data.Products {
		if existing.ID == p.ID {
			s.data.Products[i].Price = p.Price
			s.data.Products[i].Description = strings.TrimSpace(p.Description)
			s.data.Products[i].AgeRange = strings.TrimSpace(p.AgeRange)
			return s.commit(prev)
		}
	}
	return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
}

// ListDonors returns donors newest first.
func (s *FileStore) ListDonors(_ context.Context) ([]Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	donors := append([]Donor(nil), s.data.Donors...)
	sort.SliceStable(donors, func(i, j int) bool {
		if !donors[i].CreatedAt.Equal(donors[j].CreatedAt) {
			return donors[i].CreatedAt.After(donors[j].CreatedAt)
		}
		return donors[i].ID > donors[j].ID
	})
	return donors, nil
}

// UpdateDonor replaces the editable fields of an existing donor.
func (s *FileStore) UpdateDonor(_ context.Context, d Donor) error {
	if err := validateDonor(d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.clone()
	for i, existing := range s.data.Donors {
		if existing.ID == d.ID {
			d.CreatedAt = existing.CreatedAt
			s.data.Donors[i] = d
			return s.commit(prev)
		}
	}
	return fmt.Errorf("donor %d: %w", d.ID, ErrNotFound)
}

// DeleteDonor removes a donor. Their donations stay, detached from any donor.
func (s *FileStore) DeleteDonor(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.clone()
	for i, existing := range s.data.Donors {
		if existing.ID != id {
			continue
		}
		s.data.Donors = append(s.data.Donors[:i], s.data.Donors[i+1:]...)
		for j := range s.data.Donations {
			if s.data.Donations[j].DonorID == id {
				s.data.Donations[j].DonorID = 0
			}
		}
		return s.commit(prev)
	}
	return fmt.Errorf("donor %d: %w", id, ErrNotFound)
}

// Close is a no-op; every write is already on disk.
func (s *FileStore) Close() error {
	return nil
}
