package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// compressibleTypes lists the content type prefixes worth compressing. Images and video
// are already compressed.
var compressibleTypes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"image/svg+xml",
}

// Compression encodes text responses with brotli or gzip, whichever the client prefers
// from Accept-Encoding (brotli wins ties). Websocket upgrades and HEAD requests pass
// through.
func Compression() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead || isUpgrade(c.Request) {
			c.Next()
			return
		}
		encoding := negotiateEncoding(c.GetHeader("Accept-Encoding"))
		if encoding == "" {
			c.Next()
			return
		}

		cw := &compressWriter{ResponseWriter: c.Writer, encoding: encoding}
		c.Writer = cw
		c.Header("Vary", "Accept-Encoding")
		defer func() {
			if err := cw.Close(); err != nil {
				log.WithError(err).Debug("compression: close encoder")
			}
		}()
		c.Next()
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// negotiateEncoding picks br or gzip from an Accept-Encoding header. Entries with q=0 are
// refused.
func negotiateEncoding(header string) string {
	var br, gz bool
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case encodingBrotli:
			br = true
		case encodingGzip:
			gz = true
		}
	}
	switch {
	case br:
		return encodingBrotli
	case gz:
		return encodingGzip
	}
	return ""
}

// compressWriter wraps a gin.ResponseWriter and decides on the first write whether the
// body gets encoded.
type compressWriter struct {
	gin.ResponseWriter
	encoding string
	encoder  io.WriteCloser
	decided  bool
}

func (w *compressWriter) decide() {
	w.decided = true
	h := w.Header()
	if h.Get("Content-Encoding") != "" || !compressible(h.Get("Content-Type")) {
		return
	}
	h.Set("Content-Encoding", w.encoding)
	h.Del("Content-Length")
	switch w.encoding {
	case encodingBrotli:
		w.encoder = brotli.NewWriterLevel(w.ResponseWriter, brotli.DefaultCompression)
	case encodingGzip:
		gw, err := gzip.NewWriterLevel(w.ResponseWriter, gzip.DefaultCompression)
		if err != nil {
			h.Del("Content-Encoding")
			return
		}
		w.encoder = gw
	}
}

// Write encodes data when the response qualified for compression.
func (w *compressWriter) Write(data []byte) (int, error) {
	if !w.decided {
		w.decide()
	}
	if w.encoder == nil {
		return w.ResponseWriter.Write(data)
	}
	return w.encoder.Write(data)
}

// WriteString routes through Write so string renders are encoded too.
func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush pushes buffered encoder output to the client.
func (w *compressWriter) Flush() {
	if f, ok := w.encoder.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			log.WithError(err).Debug("compression: flush encoder")
		}
	}
	w.ResponseWriter.Flush()
}

// Close finishes the encoded stream.
func (w *compressWriter) Close() error {
	if w.encoder == nil {
		return nil
	}
	return w.encoder.Close()
}

func compressible(contentType string) bool {
	contentType = strings.ToLower(contentType)
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
