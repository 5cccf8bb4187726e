// Package card builds the shareable thank-you card shown after a confirmed donation.
package card

import (
	"fmt"
	"image/color"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/askidaforma/askida-forma/internal/checkout"
)

const (
	DefaultTeamName    = "Bir Takım"
	DefaultDisplayName = "İsimsiz Kahraman"
	DefaultPrimary     = "#1A1A1A"
	DefaultAccent      = "#e2e8f0"
	ContrastFallback   = "#1f2937"
	DefaultSiteURL     = "https://askidaforma.com"
)

// Card holds everything drawn on the thank-you card.
type Card struct {
	TeamName       string
	DisplayName    string
	Kind           checkout.Kind
	Quantity       int
	Amount         checkout.Amount
	PrimaryColor   string
	AccentColor    string
	Serial         string
	Date           time.Time
	JerseyImageURL string
	TeamLogoURL    string
}

// New builds a card for a confirmed donation.
func New(intent checkout.Intent, identity checkout.Identity, now time.Time) Card {
	return Card{
		TeamName:       intent.TargetLabel,
		DisplayName:    identity.DisplayName,
		Kind:           intent.Kind,
		Quantity:       intent.Quantity,
		Amount:         intent.TotalAmount,
		PrimaryColor:   intent.PrimaryColor,
		AccentColor:    intent.SecondaryColor,
		Serial:         Serial(now),
		Date:           now,
		JerseyImageURL: intent.ImageRef,
		TeamLogoURL:    intent.TeamLogoRef,
	}
}

// Normalize fills defaults. The team name loses any parenthesised suffix such as
// "(çocuk forması)".
func (c Card) Normalize() Card {
	name := c.TeamName
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	c.TeamName = strings.TrimSpace(name)
	if c.TeamName == "" {
		c.TeamName = DefaultTeamName
	}
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	if c.DisplayName == "" {
		c.DisplayName = DefaultDisplayName
	}
	if c.Kind == "" {
		c.Kind = checkout.KindJersey
	}
	if c.Quantity <= 0 {
		c.Quantity = 1
	}
	if _, ok := parseHex(c.PrimaryColor); !ok {
		c.PrimaryColor = DefaultPrimary
	}
	if _, ok := parseHex(c.AccentColor); !ok {
		c.AccentColor = DefaultAccent
	}
	if c.Date.IsZero() {
		c.Date = time.Now()
	}
	if c.Serial == "" {
		c.Serial = Serial(c.Date)
	}
	return c
}

// Serial returns a donation number of the form AF-<year>-<five digits>.
func Serial(t time.Time) string {
	return fmt.Sprintf("AF-%d-%d", t.Year(), rand.IntN(90000)+10000)
}

// FileName is the download name of a rendered card.
func FileName(t time.Time) string {
	return "AskidaForma-Kart-" + strconv.FormatInt(t.UnixMilli(), 10) + ".png"
}

// ShareText is the message prefilled on social networks.
func ShareText(c Card) string {
	c = c.Normalize()
	if c.Kind == checkout.KindPool {
		return fmt.Sprintf("Ben de Askıda Forma ile %s için bağış havuzuna destek oldum!", c.TeamName)
	}
	return fmt.Sprintf("Ben de Askıda Forma ile %s için %d forma bağışladım!", c.TeamName, c.Quantity)
}

// ShareLinks are the per-network share URLs.
type ShareLinks struct {
	Twitter  string `json:"twitter"`
	WhatsApp string `json:"whatsapp"`
}

// Links builds share URLs for c pointing at siteURL.
func Links(c Card, siteURL string) ShareLinks {
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}
	text := ShareText(c)
	return ShareLinks{
		Twitter:  "https://twitter.com/intent/tweet?text=" + url.QueryEscape(text) + "&url=" + url.QueryEscape(siteURL),
		WhatsApp: "https://wa.me/?text=" + url.QueryEscape(text+" "+siteURL),
	}
}

var trMonths = [...]string{"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran", "Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık"}

// FormatDate renders t the way Turkish readers expect, e.g. "5 Kasım 2024".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), trMonths[t.Month()-1], t.Year())
}

// EnsureContrast replaces colours too light to carry white text with a dark grey.
func EnsureContrast(hex string) string {
	c, ok := parseHex(hex)
	if !ok {
		return ContrastFallback
	}
	if luminance(c) > 0.8 {
		return ContrastFallback
	}
	return hex
}

func luminance(c color.RGBA) float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}

// parseHex accepts #rgb and #rrggbb.
func parseHex(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}
