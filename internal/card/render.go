package card

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/askidaforma/askida-forma/internal/checkout"
)

const (
	cardWidth    = 720
	cardHeight   = 1000
	headerHeight = 380
	padding      = 40

	maxRemoteImageBytes = 8 << 20
	maxRemoteImageSide  = 4096
	fetchTimeout        = 10 * time.Second
)

var (
	white     = color.RGBA{255, 255, 255, 255}
	slate50   = color.RGBA{0xf8, 0xfa, 0xfc, 0xff}
	slate200  = color.RGBA{0xe2, 0xe8, 0xf0, 0xff}
	slate500  = color.RGBA{0x64, 0x74, 0x8b, 0xff}
	slate800  = color.RGBA{0x1e, 0x29, 0x3b, 0xff}
	green600  = color.RGBA{0x16, 0xa3, 0x4a, 0xff}
	shadowCol = color.RGBA{0, 0, 0, 40}
)

// Renderer rasterises cards to PNG.
type Renderer struct {
	client  *http.Client
	regular *truetype.Font
	bold    *truetype.Font
}

// NewRenderer parses the embedded Go fonts. A nil client gets a default one with a fetch
// timeout.
func NewRenderer(client *http.Client) (*Renderer, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	regular, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("card: parse regular font: %w", err)
	}
	bold, err := freetype.ParseFont(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("card: parse bold font: %w", err)
	}
	return &Renderer{client: client, regular: regular, bold: bold}, nil
}

// Render draws c and returns PNG bytes. Remote images that cannot be fetched or decoded
// are left out.
func (r *Renderer) Render(ctx context.Context, c Card) ([]byte, error) {
	c = c.Normalize()
	primary, _ := parseHex(EnsureContrast(c.PrimaryColor))
	accent, _ := parseHex(c.AccentColor)

	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(slate50), image.Point{}, draw.Src)
	drawHeader(img, primary)

	if logo := r.fetch(ctx, c.TeamLogoURL); logo != nil {
		placeImage(img, logo, image.Rect(padding, padding, padding+96, padding+96))
	}
	r.text(img, "Bağış No", r.regular, 18, white, alignRight(cardWidth-padding), padding+20)
	r.text(img, c.Serial, r.bold, 22, white, alignRight(cardWidth-padding), padding+50)

	r.text(img, "BAĞIŞÇI", r.bold, 16, accent, alignLeft(padding), 220)
	r.text(img, r.fit(c.DisplayName, r.bold, 44, cardWidth-2*padding), r.bold, 44, white, alignLeft(padding), 280)

	// Jersey thumbnail overlapping the header edge.
	box := image.Rect(cardWidth-padding-220, headerHeight-110, cardWidth-padding, headerHeight+110)
	fillRect(img, box.Add(image.Pt(0, 8)), shadowCol)
	fillRect(img, box, white)
	fillRect(img, image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+6), accent)
	if jersey := r.fetch(ctx, c.JerseyImageURL); jersey != nil {
		placeImage(img, jersey, box.Inset(16))
	}

	y := headerHeight + 170
	r.text(img, r.fit(c.TeamName, r.bold, 34, cardWidth-2*padding), r.bold, 34, slate800, alignLeft(padding), y)
	subtitle := "Çocuk Forması Bağışı"
	if c.Kind == checkout.KindPool {
		subtitle = "Bağış Havuzu Desteği"
	}
	r.text(img, subtitle, r.regular, 22, slate500, alignLeft(padding), y+40)

	y += 80
	fillRect(img, image.Rect(padding, y, cardWidth-padding, y+2), slate200)

	y += 60
	if c.Kind == checkout.KindPool {
		r.text(img, c.Amount.String()+" TL", r.bold, 30, slate800, alignLeft(padding), y)
	} else {
		r.text(img, strconv.Itoa(c.Quantity)+" Adet", r.bold, 30, slate800, alignLeft(padding), y)
	}
	r.text(img, "Onaylandı", r.bold, 24, green600, alignRight(cardWidth-padding), y)

	y += 60
	r.text(img, FormatDate(c.Date), r.regular, 20, slate500, alignLeft(padding), y)

	fillRect(img, image.Rect(0, cardHeight-90, cardWidth, cardHeight), primary)
	r.text(img, "askidaforma.com", r.bold, 24, white, alignLeft(padding), cardHeight-36)
	r.text(img, "Askıda Forma", r.regular, 20, white, alignRight(cardWidth-padding), cardHeight-36)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("card: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawHeader fills the header with primary darkening towards the bottom.
func drawHeader(img *image.RGBA, primary color.RGBA) {
	for y := 0; y < headerHeight; y++ {
		ratio := 1 - 0.25*float64(y)/float64(headerHeight)
		c := color.RGBA{
			R: uint8(float64(primary.R) * ratio),
			G: uint8(float64(primary.G) * ratio),
			B: uint8(float64(primary.B) * ratio),
			A: 255,
		}
		for x := 0; x < cardWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// placeImage scales src to fit inside dst keeping its aspect ratio and centres it.
func placeImage(img *image.RGBA, src image.Image, dst image.Rectangle) {
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	scale := min(float64(dst.Dx())/float64(b.Dx()), float64(dst.Dy())/float64(b.Dy()))
	w, h := int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)
	x := dst.Min.X + (dst.Dx()-w)/2
	y := dst.Min.Y + (dst.Dy()-h)/2
	draw.CatmullRom.Scale(img, image.Rect(x, y, x+w, y+h), src, b, draw.Over, nil)
}

type anchor func(width int) int

func alignLeft(x int) anchor  { return func(int) int { return x } }
func alignRight(x int) anchor { return func(w int) int { return x - w } }

func (r *Renderer) face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// text draws s with its baseline at y.
func (r *Renderer) text(img *image.RGBA, s string, f *truetype.Font, size float64, c color.Color, at anchor, y int) {
	face := r.face(f, size)
	defer face.Close()
	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	width := d.MeasureString(s).Ceil()
	d.Dot = fixed.P(at(width), y)
	d.DrawString(s)
}

// fit shortens s with an ellipsis until it is at most maxWidth pixels wide.
func (r *Renderer) fit(s string, f *truetype.Font, size float64, maxWidth int) string {
	face := r.face(f, size)
	defer face.Close()
	if font.MeasureString(face, s).Ceil() <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "…"
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			return candidate
		}
	}
	return "…"
}

func (r *Renderer) fetch(ctx context.Context, imageURL string) image.Image {
	if imageURL == "" {
		return nil
	}
	img, err := r.download(ctx, imageURL)
	if err != nil {
		log.WithError(err).WithField("url", imageURL).Warn("card: image skipped")
		return nil
	}
	return img
}

func (r *Renderer) download(ctx context.Context, imageURL string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return decodeImage(data)
}

// decodeImage reads the header first so an image declaring huge dimensions is rejected
// before any pixel buffer is allocated.
func decodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxRemoteImageSide || cfg.Height > maxRemoteImageSide {
		return nil, fmt.Errorf("image is %dx%d, limit is %dx%d", cfg.Width, cfg.Height, maxRemoteImageSide, maxRemoteImageSide)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
