package donation

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/askidaforma/askida-forma/internal/checkout"
	"github.com/askidaforma/askida-forma/internal/media"
	"github.com/askidaforma/askida-forma/internal/store"
	sdkaccess "github.com/askidaforma/askida-forma/sdk/access"
)

const (
	productImagePrefix = "public/img_"
	teamLogoPrefix     = "public/logo_"
	galleryPrefix      = "mutluluk-"
)

// HandleAdminLogin handles POST /admin/login - checks the shared password and marks the
// session admin.
func (h *DonationHandler) HandleAdminLogin(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "password is required")
		return
	}

	result, err := h.access.Verify(c.Request.Context(), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, sdkaccess.ErrNoProviders):
			respondError(c, http.StatusForbidden, "admin_disabled", "yönetim paneli kapalı")
		case errors.Is(err, sdkaccess.ErrInvalidCredential), errors.Is(err, sdkaccess.ErrNoCredentials):
			h.logger.LogAdminLoginFailed(c.ClientIP())
			respondError(c, http.StatusUnauthorized, "invalid_password", "hatalı şifre")
		default:
			h.logger.LogError("admin_login", err, nil)
			respondError(c, http.StatusInternalServerError, "internal_error", "login failed")
		}
		return
	}

	session.SetRole(RoleAdmin)
	h.logger.LogAdminLogin(c.ClientIP(), result.Provider)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "role": RoleAdmin})
}

// HandleAdminLogout handles POST /admin/logout.
func (h *DonationHandler) HandleAdminLogout(c *gin.Context) {
	if session := GetSessionFromContext(c); session != nil {
		session.SetRole(RoleVisitor)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "logged out successfully",
	})
}

// HandleAdminStatus handles GET /admin/status.
func (h *DonationHandler) HandleAdminStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"admin":   IsAdmin(c),
		"enabled": len(h.access.Providers()) > 0,
		"storage": h.media != nil,
	})
}

// HandleCreateTeam handles POST /admin/teams (multipart: name, primary_color,
// secondary_color, logo).
func (h *DonationHandler) HandleCreateTeam(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		respondInvalid(c, "takım adı zorunludur")
		return
	}
	logoURL, objectPath, ok := h.uploadFormFile(c, "logo", media.BucketLogos, teamLogoPrefix, media.KindImage, media.MaxImageSize, false)
	if !ok {
		return
	}

	team, err := h.store.InsertTeam(c.Request.Context(), store.Team{
		Name:           name,
		LogoURL:        logoURL,
		PrimaryColor:   strings.TrimSpace(c.PostForm("primary_color")),
		SecondaryColor: strings.TrimSpace(c.PostForm("secondary_color")),
	})
	if err != nil {
		h.removeObject(c, media.BucketLogos, objectPath)
		respondStoreError(c, err)
		return
	}
	h.logger.LogAdminAction("create_team", map[string]interface{}{"team_id": team.ID, "name": team.Name})
	c.JSON(http.StatusCreated, gin.H{"team": team})
}

// HandleAdminProducts handles GET /admin/products.
func (h *DonationHandler) HandleAdminProducts(c *gin.Context) {
	products, err := h.store.ListProducts(c.Request.Context())
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// HandleCreateProduct handles POST /admin/products (multipart: team_id, price, description,
// age_range and an image file or image_url).
func (h *DonationHandler) HandleCreateProduct(c *gin.Context) {
	teamID, err := strconv.ParseInt(c.PostForm("team_id"), 10, 64)
	if err != nil || teamID <= 0 {
		respondInvalid(c, "takım seçilmelidir")
		return
	}
	price, err := checkout.ParseAmount(c.PostForm("price"))
	if err != nil || price <= 0 {
		respondInvalid(c, "geçerli bir fiyat girilmelidir")
		return
	}

	imageURL := strings.TrimSpace(c.PostForm("image_url"))
	uploaded, objectPath, ok := h.uploadFormFile(c, "image", media.BucketImages, productImagePrefix, media.KindImage, media.MaxImageSize, imageURL == "")
	if !ok {
		return
	}
	if uploaded != "" {
		imageURL = uploaded
	}

	product, err := h.store.InsertProduct(c.Request.Context(), store.Product{
		TeamID:      teamID,
		ImageURL:    imageURL,
		Price:       price,
		Description: strings.TrimSpace(c.PostForm("description")),
		AgeRange:    strings.TrimSpace(c.PostForm("age_range")),
	})
	if err != nil {
		h.removeObject(c, media.BucketImages, objectPath)
		respondStoreError(c, err)
		return
	}
	h.logger.LogAdminAction("create_product", map[string]interface{}{"product_id": product.ID, "team_id": teamID})
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

type productEdit struct {
	Price       checkout.Amount `json:"price"`
	Description string          `json:"description"`
	AgeRange    string          `json:"age_range"`
}

// HandleUpdateProduct changes the price, description and age range of a product.
func (h *DonationHandler) HandleUpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req productEdit
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "geçerli bir fiyat girilmelidir")
		return
	}
	if req.Price <= 0 {
		respondInvalid(c, "geçerli bir fiyat girilmelidir")
		return
	}
	description := strings.TrimSpace(req.Description)
	ageRange := strings.TrimSpace(req.AgeRange)
	if description == "" || ageRange == "" {
		respondInvalid(c, "tüm alanlar doldurulmalıdır")
		return
	}
	product := store.Product{ID: id, Price: req.Price, Description: description, AgeRange: ageRange}
	if err := h.store.UpdateProduct(c.Request.Context(), product); err != nil {
		respondStoreError(c, err)
		return
	}
	h.logger.LogAdminAction("update_product", map[string]interface{}{"product_id": id, "price": req.Price.String()})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "product": product})
}

// HandleDeleteProduct handles DELETE /admin/products/:id. The image object is removed
// best-effort before the row.
func (h *DonationHandler) HandleDeleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	products, err := h.store.ListProducts(c.Request.Context())
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	product, found := findProduct(products, id)
	if !found {
		respondError(c, http.StatusNotFound, "not_found", "ürün bulunamadı")
		return
	}

	if product.ImageURL != "" && h.media != nil {
		if objectPath, ok := h.media.ObjectPath(media.BucketImages, product.ImageURL); ok {
			h.removeObject(c, media.BucketImages, objectPath)
		}
	}

	if _, err := h.store.DeleteProduct(c.Request.Context(), id); err != nil {
		respondStoreError(c, err)
		return
	}
	h.logger.LogAdminAction("delete_product", map[string]interface{}{"product_id": id})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "deleted": id})
}

// HandleDonors handles GET /admin/donors?q= - newest first, filtered by a case-insensitive
// substring of any name, handle or email.
func (h *DonationHandler) HandleDonors(c *gin.Context) {
	donors, err := h.store.ListDonors(c.Request.Context())
	if err != nil {
		respondReadFailed(c, err)
		return
	}
	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		filtered := donors[:0]
		for _, d := range donors {
			if donorMatches(d, q) {
				filtered = append(filtered, d)
			}
		}
		donors = filtered
	}
	c.JSON(http.StatusOK, gin.H{"donors": donors})
}

func donorMatches(d store.Donor, q string) bool {
	for _, field := range []string{d.Name, d.Surname, d.DisplayName, d.Email, d.InstagramHandle, d.TwitterHandle} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// HandleUpdateDonor handles PUT /admin/donors/:id - replaces every editable column.
func (h *DonationHandler) HandleUpdateDonor(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var donor store.Donor
	if err := c.ShouldBindJSON(&donor); err != nil {
		respondInvalid(c, "geçersiz bağışçı bilgisi")
		return
	}
	donor.ID = id
	if err := h.store.UpdateDonor(c.Request.Context(), donor); err != nil {
		respondStoreError(c, err)
		return
	}
	h.logger.LogAdminAction("update_donor", map[string]interface{}{"donor_id": id, "email": donor.Email})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "donor": donor})
}

// HandleDeleteDonor handles DELETE /admin/donors/:id. Donations of the donor stay, without
// a donor.
func (h *DonationHandler) HandleDeleteDonor(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteDonor(c.Request.Context(), id); err != nil {
		respondStoreError(c, err)
		return
	}
	h.logger.LogAdminAction("delete_donor", map[string]interface{}{"donor_id": id})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "deleted": id})
}

// HandleGalleryUpload handles POST /admin/gallery - one image or video of at most 10 MB.
func (h *DonationHandler) HandleGalleryUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, media.MaxGallerySize+1<<20)
	publicURL, objectPath, ok := h.uploadFormFile(c, "file", media.BucketGallery, galleryPrefix, media.KindImageOrVideo, media.MaxGallerySize, true)
	if !ok {
		return
	}
	h.logger.LogAdminAction("gallery_upload", map[string]interface{}{"path": objectPath})
	c.JSON(http.StatusCreated, gin.H{"url": publicURL, "path": objectPath})
}

// uploadFormFile validates and uploads the multipart file in field. A missing optional file
// yields empty results and ok. On failure the response is already written.
func (h *DonationHandler) uploadFormFile(c *gin.Context, field, bucket, prefix string, kind media.Kind, limit int, required bool) (publicURL, objectPath string, ok bool) {
	header, err := c.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			respondError(c, http.StatusRequestEntityTooLarge, "file_too_large", "dosya boyutu sınırı aşıldı")
			return "", "", false
		case !required && (errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart)):
			return "", "", true
		}
		respondInvalid(c, field+" dosyası zorunludur")
		return "", "", false
	}
	if h.media == nil {
		respondError(c, http.StatusServiceUnavailable, "storage_unavailable", "dosya depolama yapılandırılmamış")
		return "", "", false
	}
	if header.Size > int64(limit) {
		respondError(c, http.StatusRequestEntityTooLarge, "file_too_large", "dosya boyutu sınırı aşıldı")
		return "", "", false
	}

	f, err := header.Open()
	if err != nil {
		respondInvalid(c, "dosya okunamadı")
		return "", "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		respondInvalid(c, "dosya okunamadı")
		return "", "", false
	}

	file, err := media.Prepare(prefix, header.Filename, data, kind, limit)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, "file_too_large", "dosya boyutu sınırı aşıldı")
		return "", "", false
	case errors.Is(err, media.ErrUnsupportedType):
		respondError(c, http.StatusUnsupportedMediaType, "unsupported_type", err.Error())
		return "", "", false
	case err != nil:
		respondInvalid(c, err.Error())
		return "", "", false
	}

	publicURL, err = h.media.Upload(c.Request.Context(), bucket, file.ObjectPath, file.Data, file.ContentType)
	if err != nil {
		h.logger.LogError("upload", err, map[string]interface{}{"bucket": bucket, "path": file.ObjectPath})
		respondError(c, http.StatusBadGateway, "upload_failed", "dosya yüklenemedi")
		return "", "", false
	}
	return publicURL, file.ObjectPath, true
}

// removeObject deletes an uploaded object, logging failures.
func (h *DonationHandler) removeObject(c *gin.Context, bucket, objectPath string) {
	if objectPath == "" || h.media == nil {
		return
	}
	if err := h.media.Remove(c.Request.Context(), bucket, objectPath); err != nil {
		log.WithError(err).WithField("path", objectPath).Warn("failed to remove uploaded object")
	}
}
