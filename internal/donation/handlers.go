package donation

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/askidaforma/askida-forma/internal/card"
	"github.com/askidaforma/askida-forma/internal/config"
	"github.com/askidaforma/askida-forma/internal/media"
	"github.com/askidaforma/askida-forma/internal/store"
	sdkaccess "github.com/askidaforma/askida-forma/sdk/access"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// CardRenderer draws the thank-you card of a confirmed donation.
type CardRenderer interface {
	Render(ctx context.Context, c card.Card) ([]byte, error)
}

// Publisher receives every donation recorded through the checkout.
type Publisher interface {
	Publish(d store.RecentDonation)
}

// Options are the collaborators of the donation handlers. Media, Renderer and Feed may be
// nil; the routes that need them answer 503.
type Options struct {
	Store    store.Store
	Access   *sdkaccess.Manager
	Media    media.Storage
	Renderer CardRenderer
	Feed     Publisher
	// Settings returns the live configuration; bank details and the site URL follow reloads.
	Settings func() *config.Config
	Sessions *SessionStore
	Logger   *DonationLogger
	Now      func() time.Time
}

// DonationHandler handles HTTP requests for the donation site.
type DonationHandler struct {
	store    store.Store
	identity *IdentityService
	sessions *SessionStore
	access   *sdkaccess.Manager
	media    media.Storage
	renderer CardRenderer
	feed     Publisher
	settings func() *config.Config
	logger   *DonationLogger
	now      func() time.Time
}

// NewDonationHandler creates a new donation handler with all dependencies.
func NewDonationHandler(opts Options) *DonationHandler {
	settings := opts.Settings
	if settings == nil {
		def := config.Default()
		settings = func() *config.Config { return def }
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = NewSessionStoreWithTTL(settings().Session.TTL)
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewDonationLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	manager := opts.Access
	if manager == nil {
		manager = sdkaccess.NewManager()
	}
	return &DonationHandler{
		store:    opts.Store,
		identity: NewIdentityService(opts.Store, settings().Checkout.WriteTimeout),
		sessions: sessions,
		access:   manager,
		media:    opts.Media,
		renderer: opts.Renderer,
		feed:     opts.Feed,
		settings: settings,
		logger:   logger,
		now:      now,
	}
}

// HandleIndexPage handles GET / - serves the single page donation site.
func (h *DonationHandler) HandleIndexPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, indexPageHTML)
}

// HandleHealth handles GET /healthz.
func (h *DonationHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}

func respondInvalid(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "invalid_request", message)
}

func respondState(c *gin.Context, message string) {
	respondError(c, http.StatusConflict, "invalid_state", message)
}

func respondReadFailed(c *gin.Context, err error) {
	log.WithError(err).Warn("store read failed")
	respondError(c, http.StatusBadGateway, "store_read_failed", "bağış verileri şu anda alınamıyor")
}

// respondStoreError maps admin write errors onto status codes.
func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, store.ErrInvalid):
		respondInvalid(c, err.Error())
	default:
		log.WithError(err).Error("store write failed")
		respondError(c, http.StatusBadGateway, "store_write_failed", "kayıt sırasında bir hata oluştu")
	}
}

// requireSession returns the session attached by SessionMiddleware.
func requireSession(c *gin.Context) *Session {
	session := GetSessionFromContext(c)
	if session == nil {
		respondError(c, http.StatusUnauthorized, "no_session", "session required")
	}
	return session
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondInvalid(c, "invalid id")
		return 0, false
	}
	return id, true
}
