package donation

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// sessionSweepInterval is how often expired sessions are removed.
const sessionSweepInterval = 10 * time.Minute

// DonationModule holds all donation-related services and handlers.
type DonationModule struct {
	handler      *DonationHandler
	sessionStore *SessionStore
	logger       *DonationLogger
	live         gin.HandlerFunc
}

// NewDonationModule creates a new donation module with all dependencies. live serves the
// websocket feed of new donations and may be nil.
func NewDonationModule(opts Options, live gin.HandlerFunc) *DonationModule {
	handler := NewDonationHandler(opts)
	return &DonationModule{
		handler:      handler,
		sessionStore: handler.sessions,
		logger:       handler.logger,
		live:         live,
	}
}

// RegisterRoutes registers all donation-related routes on the given engine.
func (m *DonationModule) RegisterRoutes(engine *gin.Engine) {
	h := m.handler
	session := SessionMiddleware(m.sessionStore)

	engine.GET("/", h.HandleIndexPage)
	engine.GET("/healthz", h.HandleHealth)

	// Public catalog (no session required)
	api := engine.Group("/api")
	{
		api.GET("/teams", h.HandleTeams)
		api.GET("/products", h.HandleProducts)
		api.GET("/donations", h.HandleDonations)
		api.GET("/totals", h.HandleTotals)
		api.GET("/faq", h.HandleFAQ)
		api.GET("/catalog", session, h.HandleCatalog)
		if m.live != nil {
			api.GET("/donations/live", m.live)
		}
	}

	// Checkout wizard, one flow per session
	flow := engine.Group("/api/checkout")
	flow.Use(session)
	{
		flow.GET("", h.HandleCheckout)
		flow.POST("/start", h.HandleStart)
		flow.POST("/confirm-payment", h.HandleConfirmPayment)
		flow.POST("/back", h.HandleBack)
		flow.POST("/identity", h.HandleIdentity)
		flow.GET("/card", h.HandleCard)
		flow.POST("/finish", h.HandleFinish)
	}

	// Admin gate
	engine.POST("/admin/login", session, h.HandleAdminLogin)
	engine.POST("/admin/logout", OptionalSessionMiddleware(m.sessionStore), h.HandleAdminLogout)
	engine.GET("/admin/status", OptionalSessionMiddleware(m.sessionStore), h.HandleAdminStatus)

	// Admin console (session admin or password header)
	admin := engine.Group("/admin")
	admin.Use(OptionalSessionMiddleware(m.sessionStore), AdminMiddleware(h.access, m.logger))
	{
		admin.POST("/teams", h.HandleCreateTeam)
		admin.GET("/products", h.HandleAdminProducts)
		admin.POST("/products", h.HandleCreateProduct)
		admin.PUT("/products/:id", h.HandleUpdateProduct)
		admin.DELETE("/products/:id", h.HandleDeleteProduct)
		admin.GET("/donors", h.HandleDonors)
		admin.PUT("/donors/:id", h.HandleUpdateDonor)
		admin.DELETE("/donors/:id", h.HandleDeleteDonor)
		admin.POST("/gallery", h.HandleGalleryUpload)
	}

	log.Info("Donation routes registered")
}

// RunSessionCleanup sweeps expired sessions until ctx is done.
func (m *DonationModule) RunSessionCleanup(ctx context.Context) {
	m.sessionStore.RunCleanup(ctx, sessionSweepInterval)
}

// GetSessionStore returns the session store for use in other middleware.
func (m *DonationModule) GetSessionStore() *SessionStore {
	return m.sessionStore
}
