package donation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/askidaforma/askida-forma/internal/card"
	"github.com/askidaforma/askida-forma/internal/config"
	"github.com/askidaforma/askida-forma/internal/store"
	sdkaccess "github.com/askidaforma/askida-forma/sdk/access"
)

// mockStore is a func-field store. Unset reads return empty results; unset writes echo
// their input with an id.
type mockStore struct {
	listTeams      func(ctx context.Context) ([]store.Team, error)
	listProducts   func(ctx context.Context) ([]store.ProductWithTeam, error)
	listDonations  func(ctx context.Context, limit, offset int) ([]store.RecentDonation, error)
	donationTotals func(ctx context.Context) ([]store.Total, error)
	upsertDonor    func(ctx context.Context, d store.Donor) (store.Donor, error)
	insertDonation func(ctx context.Context, d store.Donation) (store.Donation, error)
	insertTeam     func(ctx context.Context, t store.Team) (store.Team, error)
	insertProduct  func(ctx context.Context, p store.Product) (store.Product, error)
	deleteProduct  func(ctx context.Context, id int64) (store.Product, error)
	updateProduct  func(ctx context.Context, p store.Product) error
	listDonors     func(ctx context.Context) ([]store.Donor, error)
	updateDonor    func(ctx context.Context, d store.Donor) error
	deleteDonor    func(ctx context.Context, id int64) error

	mu    sync.Mutex
	calls []string
}

func (m *mockStore) record(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
}

func (m *mockStore) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockStore) ListTeams(ctx context.Context) ([]store.Team, error) {
	m.record("ListTeams")
	if m.listTeams != nil {
		return m.listTeams(ctx)
	}
	return nil, nil
}

func (m *mockStore) ListProducts(ctx context.Context) ([]store.ProductWithTeam, error) {
	m.record("ListProducts")
	if m.listProducts != nil {
		return m.listProducts(ctx)
	}
	return nil, nil
}

func (m *mockStore) ListDonations(ctx context.Context, limit, offset int) ([]store.RecentDonation, error) {
	m.record("ListDonations")
	if m.listDonations != nil {
		return m.listDonations(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockStore) DonationTotals(ctx context.Context) ([]store.Total, error) {
	m.record("DonationTotals")
	if m.donationTotals != nil {
		return m.donationTotals(ctx)
	}
	return nil, nil
}

func (m *mockStore) UpsertDonor(ctx context.Context, d store.Donor) (store.Donor, error) {
	m.record("UpsertDonor")
	if m.upsertDonor != nil {
		return m.upsertDonor(ctx, d)
	}
	d.ID = 7
	return d, nil
}

func (m *mockStore) InsertDonation(ctx context.Context, d store.Donation) (store.Donation, error) {
	m.record("InsertDonation")
	if m.insertDonation != nil {
		return m.insertDonation(ctx, d)
	}
	d.ID = 11
	d.CreatedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return d, nil
}

func (m *mockStore) InsertTeam(ctx context.Context, t store.Team) (store.Team, error) {
	m.record("InsertTeam")
	if m.insertTeam != nil {
		return m.insertTeam(ctx, t)
	}
	t.ID = 5
	return t, nil
}

func (m *mockStore) InsertProduct(ctx context.Context, p store.Product) (store.Product, error) {
	m.record("InsertProduct")
	if m.insertProduct != nil {
		return m.insertProduct(ctx, p)
	}
	p.ID = 9
	return p, nil
}

func (m *mockStore) DeleteProduct(ctx context.Context, id int64) (store.Product, error) {
	m.record("DeleteProduct")
	if m.deleteProduct != nil {
		return m.deleteProduct(ctx, id)
	}
	return store.Product{ID: id}, nil
}

func (m *mockStore) UpdateProduct(ctx context.Context, p store.Product) error {
	m.record("UpdateProduct")
	if m.updateProduct != nil {
		return m.updateProduct(ctx, p)
	}
	return nil
}

func (m *mockStore) ListDonors(ctx context.Context) ([]store.Donor, error) {
	m.record("ListDonors")
	if m.listDonors != nil {
		return m.listDonors(ctx)
	}
	return nil, nil
}

func (m *mockStore) UpdateDonor(ctx context.Context, d store.Donor) error {
	m.record("UpdateDonor")
	if m.updateDonor != nil {
		return m.updateDonor(ctx, d)
	}
	return nil
}

func (m *mockStore) DeleteDonor(ctx context.Context, id int64) error {
	m.record("DeleteDonor")
	if m.deleteDonor != nil {
		return m.deleteDonor(ctx, id)
	}
	return nil
}

func (m *mockStore) Close() error { return nil }

// mockMedia records uploads and removals.
type mockMedia struct {
	upload func(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error)

	mu      sync.Mutex
	uploads []string
	removed []string
}

func (m *mockMedia) Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	m.uploads = append(m.uploads, bucket+"/"+objectPath)
	m.mu.Unlock()
	if m.upload != nil {
		return m.upload(ctx, bucket, objectPath, data, contentType)
	}
	return "http://media.test/" + bucket + "/" + objectPath, nil
}

func (m *mockMedia) Remove(_ context.Context, bucket, objectPath string) error {
	m.mu.Lock()
	m.removed = append(m.removed, bucket+"/"+objectPath)
	m.mu.Unlock()
	return nil
}

func (m *mockMedia) ObjectPath(bucket, publicURL string) (string, bool) {
	prefix := "http://media.test/" + bucket + "/"
	if len(publicURL) <= len(prefix) || publicURL[:len(prefix)] != prefix {
		return "", false
	}
	return publicURL[len(prefix):], true
}

type mockRenderer struct {
	render func(ctx context.Context, c card.Card) ([]byte, error)
}

func (m *mockRenderer) Render(ctx context.Context, c card.Card) ([]byte, error) {
	if m.render != nil {
		return m.render(ctx, c)
	}
	return []byte("png:" + c.Serial), nil
}

type recordingFeed struct {
	mu        sync.Mutex
	published []store.RecentDonation
}

func (f *recordingFeed) Publish(d store.RecentDonation) {
	f.mu.Lock()
	f.published = append(f.published, d)
	f.mu.Unlock()
}

func (f *recordingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// testEnv bundles a module wired to mocks.
type testEnv struct {
	engine *gin.Engine
	module *DonationModule
	store  *mockStore
	media  *mockMedia
	feed   *recordingFeed
	access *sdkaccess.Manager
}

func newTestEnv(t *testing.T, ms *mockStore, configure func(*Options)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if ms == nil {
		ms = &mockStore{}
	}
	env := &testEnv{
		store:  ms,
		media:  &mockMedia{},
		feed:   &recordingFeed{},
		access: sdkaccess.NewManager(),
	}
	cfg := config.Default()
	opts := Options{
		Store:    ms,
		Access:   env.access,
		Media:    env.media,
		Renderer: &mockRenderer{},
		Feed:     env.feed,
		Settings: func() *config.Config { return cfg },
		Now:      func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	if configure != nil {
		configure(&opts)
	}
	env.module = NewDonationModule(opts, nil)
	env.engine = gin.New()
	env.module.RegisterRoutes(env.engine)
	return env
}

// testClient replays the session cookie across requests like a browser.
type testClient struct {
	t      *testing.T
	env    *testEnv
	cookie *http.Cookie
	header http.Header
}

func (e *testEnv) client(t *testing.T) *testClient {
	return &testClient{t: t, env: e, header: http.Header{}}
}

func (c *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *testClient) send(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for k, v := range c.header {
		req.Header[k] = v
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.env.engine.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookieName {
			c.cookie = ck
		}
	}
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, want, rec.Body.String())
	}
}
