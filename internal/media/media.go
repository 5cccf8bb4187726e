// Package media stores uploaded team logos, jersey images and gallery files in an S3
// compatible object store.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/askidaforma/askida-forma/internal/config"
)

const (
	BucketImages  = "images"
	BucketLogos   = "logos"
	BucketGallery = "mutluluk-anlari"

	// MaxGallerySize is the largest file accepted into the gallery bucket.
	MaxGallerySize = 10 << 20
	// MaxImageSize bounds logo and jersey image uploads.
	MaxImageSize = 5 << 20
)

var (
	ErrDisabled        = errors.New("media: object storage is not configured")
	ErrTooLarge        = errors.New("media: file too large")
	ErrUnsupportedType = errors.New("media: unsupported file type")
	ErrEmpty           = errors.New("media: empty file")
)

// Storage is the object store contract used by the admin console.
type Storage interface {
	Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, bucket, objectPath string) error
	// ObjectPath maps a public URL returned by Upload back to its object path.
	ObjectPath(bucket, publicURL string) (string, bool)
}

// MinioStorage implements Storage on top of a MinIO or S3 endpoint.
type MinioStorage struct {
	client        *minio.Client
	publicBaseURL string
	region        string
}

// NewMinioStorage connects to the endpoint in cfg.
func NewMinioStorage(cfg config.StorageConfig) (*MinioStorage, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("media: create client: %w", err)
	}
	base := cfg.PublicBaseURL
	if base == "" {
		base = client.EndpointURL().String()
	}
	return &MinioStorage{client: client, publicBaseURL: strings.TrimRight(base, "/"), region: cfg.Region}, nil
}

// Upload stores data under bucket/objectPath and returns its public URL. Missing buckets
// are created on first use.
func (s *MinioStorage) Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf("media: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return "", fmt.Errorf("media: create bucket %s: %w", bucket, err)
		}
		log.WithField("bucket", bucket).Info("media: created bucket")
	}

	_, err = s.client.PutObject(ctx, bucket, objectPath, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "max-age=3600",
	})
	if err != nil {
		return "", fmt.Errorf("media: put %s/%s: %w", bucket, objectPath, err)
	}
	return PublicURL(s.publicBaseURL, bucket, objectPath), nil
}

// Remove deletes bucket/objectPath.
func (s *MinioStorage) Remove(ctx context.Context, bucket, objectPath string) error {
	if err := s.client.RemoveObject(ctx, bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("media: remove %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

// ObjectPath maps publicURL back to its object path within bucket.
func (s *MinioStorage) ObjectPath(bucket, publicURL string) (string, bool) {
	return ObjectPath(s.publicBaseURL, bucket, publicURL)
}

// PublicURL joins the public base URL, bucket and object path.
func PublicURL(base, bucket, objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.Join(segments, "/")
}

// ObjectPath recovers the object path from a URL built by PublicURL. It reports false for
// URLs outside base/bucket.
func ObjectPath(base, bucket, publicURL string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/" + bucket + "/"
	if base == "" || !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	p, err := url.PathUnescape(strings.TrimPrefix(publicURL, prefix))
	if err != nil || p == "" {
		return "", false
	}
	return p, true
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)
	dashRuns    = regexp.MustCompile(`-{2,}`)
)

// SanitizeFilename replaces everything except ASCII letters, digits, dot, dash and
// underscore with a dash, collapses dash runs and lower-cases the result.
func SanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "-")
	name = dashRuns.ReplaceAllString(name, "-")
	name = strings.Trim(strings.ToLower(name), "-")
	if name == "" {
		return "file"
	}
	return name
}

// File is an upload that passed validation.
type File struct {
	ObjectPath  string
	ContentType string
	Data        []byte
}

// Kind selects which content types a bucket accepts.
type Kind int

const (
	KindImage Kind = iota
	KindImageOrVideo
)

// Prepare sniffs data, checks it against kind and limit, and derives a unique object path
// from prefix and the original filename.
func Prepare(prefix, filename string, data []byte, kind Kind, limit int) (File, error) {
	if len(data) == 0 {
		return File{}, ErrEmpty
	}
	if limit > 0 && len(data) > limit {
		return File{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), limit)
	}
	mt := mimetype.Detect(data)
	top := strings.SplitN(mt.String(), "/", 2)[0]
	switch {
	case top == "image":
	case top == "video" && kind == KindImageOrVideo:
	default:
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}

	name := SanitizeFilename(filename)
	if !strings.Contains(name, ".") {
		name += mt.Extension()
	}
	id := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return File{
		ObjectPath:  prefix + id + "-" + name,
		ContentType: mt.String(),
		Data:        data,
	}, nil
}
