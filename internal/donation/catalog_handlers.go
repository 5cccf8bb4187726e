package donation

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/askidaforma/askida-forma/internal/card"
	"github.com/askidaforma/askida-forma/internal/checkout"
	"github.com/askidaforma/askida-forma/internal/store"
)

// poolQuickAmounts are the preset buttons of the pool donation card: 50, 100 and 250 TL.
var poolQuickAmounts = []checkout.Amount{5000, 10000, 25000}

// HandleTeams handles GET /api/teams.
func (h *DonationHandler) HandleTeams(c *gin.Context) {
	teams, err := h.store.ListTeams(c.Request.Context())
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

// HandleProducts handles GET /api/products.
func (h *DonationHandler) HandleProducts(c *gin.Context) {
	products, err := h.store.ListProducts(c.Request.Context())
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// HandleDonations handles GET /api/donations?limit=&offset= - newest first.
func (h *DonationHandler) HandleDonations(c *gin.Context) {
	limit, offset, ok := h.paging(c)
	if !ok {
		return
	}
	donations, err := h.store.ListDonations(c.Request.Context(), limit, offset)
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"donations": donations,
		"limit":     limit,
		"offset":    offset,
	})
}

// HandleTotals handles GET /api/totals - the team leaderboard.
func (h *DonationHandler) HandleTotals(c *gin.Context) {
	totals, err := h.store.DonationTotals(c.Request.Context())
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totals": totals})
}

// HandleFAQ handles GET /api/faq.
func (h *DonationHandler) HandleFAQ(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"faq": FAQ()})
}

// HandleCatalog handles GET /api/catalog - everything the landing page renders plus the
// tab hint of the session. The hint is consumed only after every read succeeded.
func (h *DonationHandler) HandleCatalog(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	ctx := c.Request.Context()

	teams, err := h.store.ListTeams(ctx)
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	products, err := h.store.ListProducts(ctx)
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	donations, err := h.store.ListDonations(ctx, h.recentLimit(), 0)
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	totals, err := h.store.DonationTotals(ctx)
	if err != nil {
		respondReadFailed(c, err)
		return
	}

	session.Lock()
	hint := session.Flow().ConsumeHint()
	session.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"hint":               hint,
		"teams":              teams,
		"products":           withContrast(products),
		"donations":          donations,
		"totals":             totals,
		"faq":                FAQ(),
		"pool_quick_amounts": poolQuickAmounts,
		"max_quantity":       checkout.MaxJerseyQuantity,
	})
}

// catalogProduct is a product with a text colour that stays readable on a white card.
type catalogProduct struct {
	store.ProductWithTeam
	TextColor string `json:"text_color"`
}

func withContrast(products []store.ProductWithTeam) []catalogProduct {
	out := make([]catalogProduct, 0, len(products))
	for _, p := range products {
		out = append(out, catalogProduct{
			ProductWithTeam: p,
			TextColor:       card.EnsureContrast(p.Team.PrimaryColor),
		})
	}
	return out
}

func (h *DonationHandler) recentLimit() int {
	if n := h.settings().Checkout.RecentLimit; n > 0 {
		return n
	}
	return defaultRecentLimit
}

func (h *DonationHandler) paging(c *gin.Context) (limit, offset int, ok bool) {
	limit = h.recentLimit()
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondInvalid(c, "limit must be a positive integer")
			return 0, 0, false
		}
		limit = min(n, maxRecentLimit)
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondInvalid(c, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
