package donation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/askidaforma/askida-forma/internal/card"
	"github.com/askidaforma/askida-forma/internal/checkout"
	"github.com/askidaforma/askida-forma/internal/store"
)

// startRequest is the body of POST /api/checkout/start. Jersey donations name a product and
// a quantity; pool donations name a team and an amount.
type startRequest struct {
	Kind      checkout.Kind   `json:"kind"`
	ProductID int64           `json:"product_id"`
	TeamID    int64           `json:"team_id"`
	Quantity  int             `json:"quantity"`
	Amount    checkout.Amount `json:"amount"`
}

// HandleCheckout handles GET /api/checkout - the current step of the session.
func (h *DonationHandler) HandleCheckout(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	session.Lock()
	defer session.Unlock()
	c.JSON(http.StatusOK, h.checkoutView(session))
}

// HandleStart handles POST /api/checkout/start.
func (h *DonationHandler) HandleStart(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "geçersiz bağış isteği")
		return
	}
	if req.Kind == checkout.KindJersey && (req.Quantity < 1 || req.Quantity > checkout.MaxJerseyQuantity) {
		respondInvalid(c, fmt.Sprintf("forma adedi 1 ile %d arasında olmalıdır", checkout.MaxJerseyQuantity))
		return
	}

	intent, err := h.buildIntent(c, req)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrInvalidIntent), errors.Is(err, store.ErrNotFound):
			respondInvalid(c, err.Error())
		default:
			respondReadFailed(c, err)
		}
		return
	}

	session.Lock()
	defer session.Unlock()
	flow := session.Flow()
	if flow.State() != checkout.Browsing {
		respondState(c, "bir bağış zaten devam ediyor")
		return
	}
	flow.StartDonation(intent)
	session.receipt = nil
	h.logger.LogDonationStarted(session.ID, intent, flow.Attempt())
	c.JSON(http.StatusOK, h.checkoutView(session))
}

// buildIntent prices the request against the catalog. Jersey totals come from the product
// price; pool totals are whatever the visitor typed.
func (h *DonationHandler) buildIntent(c *gin.Context, req startRequest) (checkout.Intent, error) {
	ctx := c.Request.Context()
	var intent checkout.Intent
	switch req.Kind {
	case checkout.KindJersey:
		products, err := h.store.ListProducts(ctx)
		if err != nil {
			return intent, err
		}
		product, ok := findProduct(products, req.ProductID)
		if !ok {
			return intent, fmt.Errorf("product %d: %w", req.ProductID, store.ErrNotFound)
		}
		intent = checkout.Intent{
			Kind:           checkout.KindJersey,
			TargetID:       product.Team.ID,
			TargetLabel:    product.Team.Name,
			Quantity:       req.Quantity,
			TotalAmount:    product.Price * checkout.Amount(req.Quantity),
			ImageRef:       product.ImageURL,
			TeamLogoRef:    product.Team.LogoURL,
			PrimaryColor:   product.Team.PrimaryColor,
			SecondaryColor: product.Team.SecondaryColor,
		}
	case checkout.KindPool:
		if req.Amount <= 0 {
			return intent, fmt.Errorf("%w: bağış tutarı sıfırdan büyük olmalıdır", checkout.ErrInvalidIntent)
		}
		teams, err := h.store.ListTeams(ctx)
		if err != nil {
			return intent, err
		}
		team, ok := findTeam(teams, req.TeamID)
		if !ok {
			return intent, fmt.Errorf("team %d: %w", req.TeamID, store.ErrNotFound)
		}
		intent = checkout.Intent{
			Kind:           checkout.KindPool,
			TargetID:       team.ID,
			TargetLabel:    team.Name,
			TotalAmount:    req.Amount,
			ImageRef:       team.LogoURL,
			TeamLogoRef:    team.LogoURL,
			PrimaryColor:   team.PrimaryColor,
			SecondaryColor: team.SecondaryColor,
		}
	default:
		return intent, fmt.Errorf("%w: unknown kind %q", checkout.ErrInvalidIntent, req.Kind)
	}
	return intent, intent.Validate()
}

// HandleConfirmPayment handles POST /api/checkout/confirm-payment. The transfer is not
// verified; the claim is only logged.
func (h *DonationHandler) HandleConfirmPayment(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	session.Lock()
	defer session.Unlock()
	flow := session.Flow()
	if flow.State() != checkout.AwaitingPayment {
		respondState(c, "ödeme adımında değilsiniz")
		return
	}
	intent, _ := flow.Snapshot().Intent()
	flow.ConfirmPayment()
	session.captures++
	h.logger.LogPaymentAsserted(session.ID, intent)
	c.JSON(http.StatusOK, h.checkoutView(session))
}

// HandleBack handles POST /api/checkout/back - one step back.
func (h *DonationHandler) HandleBack(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	session.Lock()
	defer session.Unlock()
	flow := session.Flow()
	from := flow.State()
	if from != checkout.AwaitingPayment && from != checkout.CapturingIdentity {
		respondState(c, "geri dönülecek bir adım yok")
		return
	}
	flow.Abandon()
	h.logger.LogAbandoned(session.ID, from, flow.State())
	c.JSON(http.StatusOK, h.checkoutView(session))
}

// HandleIdentity handles POST /api/checkout/identity. The donor and donation are written
// with the session unlocked; the flow is completed only when the session is still on the
// same identity step once the write returns.
func (h *DonationHandler) HandleIdentity(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	var form IdentityForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondInvalid(c, "geçersiz kimlik bilgisi")
		return
	}
	if _, _, err := ResolveIdentity(form); err != nil {
		respondInvalid(c, err.Error())
		return
	}

	session.Lock()
	flow := session.Flow()
	if flow.State() != checkout.CapturingIdentity {
		session.Unlock()
		respondState(c, "kimlik adımında değilsiniz")
		return
	}
	if !session.beginWrite() {
		session.Unlock()
		respondError(c, http.StatusConflict, "write_in_flight", "bağışınız kaydediliyor, lütfen bekleyin")
		return
	}
	intent, _ := flow.Snapshot().Intent()
	attempt := flow.Attempt()
	seq := session.captures
	session.Unlock()

	identity, recent, err := h.identity.Capture(c.Request.Context(), intent, form)

	session.Lock()
	defer session.Unlock()
	session.endWrite()
	stale := flow.State() != checkout.CapturingIdentity || flow.Attempt() != attempt || session.captures != seq

	if err != nil {
		if stale {
			h.logger.LogStaleWrite(session.ID, attempt, err)
		} else {
			h.logger.LogDonationFailed(session.ID, intent, err)
		}
		if errors.Is(err, checkout.ErrInvalidIdentity) {
			respondInvalid(c, err.Error())
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    "store_write_failed",
			"message":  "bağışınız kaydedilemedi, lütfen tekrar deneyin",
			"checkout": flow.Snapshot(),
		})
		return
	}

	h.publish(recent)
	if stale {
		h.logger.LogStaleWrite(session.ID, attempt, nil)
		respondState(c, "bağış adımı değişti")
		return
	}

	flow.CompleteIdentity(identity)
	receipt := card.New(intent, identity, h.now())
	session.receipt = &receipt
	h.logger.LogDonationCompleted(session.ID, intent, identity)
	c.JSON(http.StatusOK, h.checkoutView(session))
}

// HandleCard handles GET /api/checkout/card - the thank-you card as a PNG download.
func (h *DonationHandler) HandleCard(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	if h.renderer == nil {
		respondError(c, http.StatusServiceUnavailable, "card_unavailable", "kart oluşturucu yapılandırılmamış")
		return
	}

	session.Lock()
	if session.Flow().State() != checkout.Confirmed || session.receipt == nil {
		session.Unlock()
		respondState(c, "kart yalnızca onaylanan bağışlar için oluşturulur")
		return
	}
	receipt := *session.receipt
	session.Unlock()

	png, err := h.renderer.Render(c.Request.Context(), receipt)
	if err != nil {
		h.logger.LogError("render_card", err, map[string]interface{}{"serial": receipt.Serial})
		respondError(c, http.StatusInternalServerError, "render_failed", "kart oluşturulamadı")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, card.FileName(receipt.Date)))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// HandleFinish handles POST /api/checkout/finish.
func (h *DonationHandler) HandleFinish(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	session.Lock()
	defer session.Unlock()
	flow := session.Flow()
	if flow.State() != checkout.Confirmed {
		respondState(c, "tamamlanan bir bağış yok")
		return
	}
	flow.Finish()
	session.receipt = nil
	h.logger.LogFinished(session.ID)
	c.JSON(http.StatusOK, h.checkoutView(session))
}

// checkoutView renders the session's flow. The caller holds the session lock.
func (h *DonationHandler) checkoutView(session *Session) gin.H {
	snap := session.Flow().Snapshot()
	view := gin.H{
		"checkout": snap,
		"writing":  session.writing,
	}
	switch snap.State {
	case checkout.AwaitingPayment:
		bank := h.settings().Bank
		view["bank"] = gin.H{
			"recipient": bank.Recipient,
			"iban":      bank.IBAN,
			"note":      bank.Note,
		}
	case checkout.Confirmed:
		if session.receipt != nil {
			view["card"] = h.receiptView(*session.receipt)
		}
	}
	return view
}

func (h *DonationHandler) receiptView(receipt card.Card) gin.H {
	return gin.H{
		"serial":      receipt.Serial,
		"date":        card.FormatDate(receipt.Date),
		"team_name":   receipt.Normalize().TeamName,
		"file_name":   card.FileName(receipt.Date),
		"share_text":  card.ShareText(receipt),
		"share_links": card.Links(receipt, h.settings().SiteURL),
		"image_url":   "/api/checkout/card",
	}
}

func (h *DonationHandler) publish(d store.RecentDonation) {
	if h.feed == nil {
		return
	}
	h.feed.Publish(d)
	log.WithField("type", d.Type).Debug("donation published to live feed")
}

func findProduct(products []store.ProductWithTeam, id int64) (store.ProductWithTeam, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return store.ProductWithTeam{}, false
}

func findTeam(teams []store.Team, id int64) (store.Team, bool) {
	for _, t := range teams {
		if t.ID == id {
			return t, true
		}
	}
	return store.Team{}, false
}
