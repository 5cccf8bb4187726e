package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/askidaforma/askida-forma/internal/checkout"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS teams (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL,
	logo_url        TEXT,
	primary_color   TEXT,
	secondary_color TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS products (
	id          BIGSERIAL PRIMARY KEY,
	team_id     BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	image_url   TEXT,
	price       NUMERIC(12,2) NOT NULL,
	description TEXT,
	age_range   TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS donors (
	id               BIGSERIAL PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	surname          TEXT NOT NULL DEFAULT '',
	email            TEXT UNIQUE,
	instagram_handle TEXT,
	twitter_handle   TEXT,
	display_name     TEXT NOT NULL,
	identity_type    TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS donations (
	id         BIGSERIAL PRIMARY KEY,
	donor_id   BIGINT REFERENCES donors(id) ON DELETE SET NULL,
	team_id    BIGINT NOT NULL REFERENCES teams(id),
	type       TEXT NOT NULL CHECK (type IN ('jersey', 'pool')),
	quantity   INT,
	amount_tl  NUMERIC(12,2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS donations_created_at_idx ON donations (created_at DESC);
`

const donorColumns = `id, name, surname, COALESCE(email, ''), COALESCE(instagram_handle, ''),
	COALESCE(twitter_handle, ''), display_name, identity_type, created_at`

// PostgresStore persists records in PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the schema if needed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate postgres: %w", err)
	}
	log.Info("postgres store ready")
	return &PostgresStore{pool: pool}, nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// ListTeams returns all teams ordered by name.
func (s *PostgresStore) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, COALESCE(logo_url, ''), COALESCE(primary_color, ''),
		COALESCE(secondary_color, ''), created_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list teams: %w", err)
	}
	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Team, error) {
		var t Team
		err := row.Scan(&t.ID, &t.Name, &t.LogoURL, &t.PrimaryColor, &t.SecondaryColor, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: list teams: %w", err)
	}
	return teams, nil
}

// ListProducts returns all products with their team, ordered by id.
func (s *PostgresStore) ListProducts(ctx context.Context) ([]ProductWithTeam, error) {
	rows, err := s.pool.Query(ctx, `SELECT p.id, p.team_id, COALESCE(p.image_url, ''), p.price::float8,
		COALESCE(p.description, ''), COALESCE(p.age_range, ''), p.created_at,
		t.id, t.name, COALESCE(t.logo_url, ''), COALESCE(t.primary_color, ''), COALESCE(t.secondary_color, ''), t.created_at
		FROM products p JOIN teams t ON t.id = p.team_id ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("store: list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ProductWithTeam, error) {
		var p ProductWithTeam
		var price float64
		err := row.Scan(&p.ID, &p.TeamID, &p.ImageURL, &price, &p.Description, &p.AgeRange, &p.CreatedAt,
			&p.Team.ID, &p.Team.Name, &p.Team.LogoURL, &p.Team.PrimaryColor, &p.Team.SecondaryColor, &p.Team.CreatedAt)
		p.Price = checkout.AmountFromFloat(price)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: list products: %w", err)
	}
	return products, nil
}

// ListDonations returns donations newest first.
func (s *PostgresStore) ListDonations(ctx context.Context, limit, offset int) ([]RecentDonation, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `SELECT d.created_at, d.type, d.quantity, d.amount_tl::float8,
		t.name, COALESCE(t.logo_url, ''), dn.display_name, dn.identity_type
		FROM donations d
		JOIN teams t ON t.id = d.team_id
		LEFT JOIN donors dn ON dn.id = d.donor_id
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list donations: %w", err)
	}
	donations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RecentDonation, error) {
		var (
			rd           RecentDonation
			amount       float64
			displayName  *string
			identityType *string
		)
		err := row.Scan(&rd.CreatedAt, &rd.Type, &rd.Quantity, &amount, &rd.Team.Name, &rd.Team.LogoURL,
			&displayName, &identityType)
		rd.Amount = checkout.AmountFromFloat(amount)
		if displayName != nil && identityType != nil {
			rd.Donor = &DonorRef{DisplayName: *displayName, IdentityType: checkout.IdentityKind(*identityType)}
		}
		return rd, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: list donations: %w", err)
	}
	return donations, nil
}

// DonationTotals sums jersey donations per team.
func (s *PostgresStore) DonationTotals(ctx context.Context) ([]Total, error) {
	rows, err := s.pool.Query(ctx, `SELECT t.name, COALESCE(t.logo_url, ''), COALESCE(SUM(d.quantity), 0)::int
		FROM teams t LEFT JOIN donations d ON d.team_id = t.id AND d.type = 'jersey'
		GROUP BY t.id, t.name, t.logo_url`)
	if err != nil {
		return nil, fmt.Errorf("store: donation totals: %w", err)
	}
	totals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Total, error) {
		var t Total
		err := row.Scan(&t.Name, &t.LogoURL, &t.TotalJerseys)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: donation totals: %w", err)
	}
	sortTotals(totals)
	return totals, nil
}

func scanDonor(row pgx.Row) (Donor, error) {
	var d Donor
	err := row.Scan(&d.ID, &d.Name, &d.Surname, &d.Email, &d.InstagramHandle, &d.TwitterHandle,
		&d.DisplayName, &d.IdentityType, &d.CreatedAt)
	return d, err
}

// UpsertDonor inserts d or updates the donor holding the same email.
func (s *PostgresStore) UpsertDonor(ctx context.Context, d Donor) (Donor, error) {
	if err := validateDonor(d); err != nil {
		return Donor{}, err
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO donors
		(name, surname, email, instagram_handle, twitter_handle, display_name, identity_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			surname = EXCLUDED.surname,
			instagram_handle = EXCLUDED.instagram_handle,
			twitter_handle = EXCLUDED.twitter_handle,
			display_name = EXCLUDED.display_name,
			identity_type = EXCLUDED.identity_type
		RETURNING `+donorColumns,
		d.Name, d.Surname, nullable(d.Email), nullable(d.InstagramHandle), nullable(d.TwitterHandle),
		d.DisplayName, string(d.IdentityType))
	saved, err := scanDonor(row)
	if err != nil {
		return Donor{}, fmt.Errorf("store: upsert donor: %w", err)
	}
	return saved, nil
}

// InsertDonation records a donation.
func (s *PostgresStore) InsertDonation(ctx context.Context, d Donation) (Donation, error) {
	if err := validateDonation(d); err != nil {
		return Donation{}, err
	}
	var donorID any
	if d.DonorID != 0 {
		donorID = d.DonorID
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO donations (donor_id, team_id, type, quantity, amount_tl)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		donorID, d.TeamID, string(d.Type), d.Quantity, d.AmountTL.Float()).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return Donation{}, fmt.Errorf("store: insert donation: %w", err)
	}
	return d, nil
}

// InsertTeam adds a team.
func (s *PostgresStore) InsertTeam(ctx context.Context, t Team) (Team, error) {
	if err := validateTeam(t); err != nil {
		return Team{}, err
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO teams (name, logo_url, primary_color, secondary_color)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		t.Name, nullable(t.LogoURL), nullable(t.PrimaryColor), nullable(t.SecondaryColor)).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return Team{}, fmt.Errorf("store: insert team: %w", err)
	}
	return t, nil
}

// InsertProduct adds a product.
func (s *PostgresStore) InsertProduct(ctx context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO products (team_id, image_url, price, description, age_range)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		p.TeamID, nullable(p.ImageURL), p.Price.Float(), nullable(p.Description), nullable(p.AgeRange)).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("store: insert product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes a product and returns it.
func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	var price float64
	err := s.pool.QueryRow(ctx, `DELETE FROM products WHERE id = $1
		RETURNING id, team_id, COALESCE(image_url, ''), price::float8, COALESCE(description, ''),
		COALESCE(age_range, ''), created_at`, id).
		Scan(&p.ID, &p.TeamID, &p.ImageURL, &price, &p.Description, &p.AgeRange, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("store: delete product: %w", err)
	}
	p.Price = checkout.AmountFromFloat(price)
	return p, nil
}

// UpdateProduct replaces the price, description and age range of a product.
func (s *PostgresStore) UpdateProduct(ctx context.Context, p Product) error {
	if err := validateProductEdit(p); err != nil {
		return err
	}
	var id int64
	err := s.pool.QueryRow(ctx, `UPDATE products SET price = $2, description = $3, age_range = $4
		WHERE id = $1 RETURNING id`,
		p.ID, p.Price.Float(), strings.TrimSpace(p.Description), strings.TrimSpace(p.AgeRange)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: update product: %w", err)
	}
	return nil
}

// ListDonors returns donors newest first.
func (s *PostgresStore) ListDonors(ctx context.Context) ([]Donor, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+donorColumns+` FROM donors ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list donors: %w", err)
	}
	donors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Donor, error) {
		return scanDonor(row)
	})
	if err != nil {
		return nil, fmt.Errorf("store: list donors: %w", err)
	}
	return donors, nil
}

// UpdateDonor replaces the editable fields of a donor.
func (s *PostgresStore) UpdateDonor(ctx context.Context, d Donor) error {
	if err := validateDonor(d); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE donors SET name = $2, surname = $3, email = $4,
		instagram_handle = $5, twitter_handle = $6, display_name = $7, identity_type = $8
		WHERE id = $1`,
		d.ID, d.Name, d.Surname, nullable(d.Email), nullable(d.InstagramHandle), nullable(d.TwitterHandle),
		d.DisplayName, string(d.IdentityType))
	if err != nil {
		return fmt.Errorf("store: update donor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("donor %d: %w", d.ID, ErrNotFound)
	}
	return nil
}

// DeleteDonor removes a donor; their donations are kept without a donor.
func (s *PostgresStore) DeleteDonor(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM donors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete donor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("donor %d: %w", id, ErrNotFound)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
