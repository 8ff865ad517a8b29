// Package assets stores uploaded images in S3, serves them through the CDN
// and keeps the CloudFront cache in step with replaced logos.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/apperr"
	"github.com/lapublica/platform/internal/pkg/logger"
)

var (
	ErrTooLarge    = apperr.Invalid("image exceeds the maximum upload size")
	ErrUnsupported = apperr.Invalid("unsupported image type")
	ErrEmpty       = apperr.Invalid("image is empty")
)

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// S3API is the subset of the S3 client used by the store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// CloudFrontAPI is the subset of the CloudFront client used by the store.
type CloudFrontAPI interface {
	CreateInvalidation(ctx context.Context, in *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// Config configures a Store.
type Config struct {
	Bucket         string
	Region         string
	CDNDomain      string
	DistributionID string
	MaxBytes       int64
	ResizeWidth    int
}

// Store uploads originals plus a resized PNG variant.
type Store struct {
	s3  S3API
	cf  CloudFrontAPI
	cfg Config
	now func() time.Time
}

// NewStore creates a store. cf may be nil when no distribution is configured.
func NewStore(s3c S3API, cf CloudFrontAPI, cfg Config) *Store {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	if cfg.ResizeWidth <= 0 {
		cfg.ResizeWidth = 256
	}
	return &Store{s3: s3c, cf: cf, cfg: cfg, now: time.Now}
}

// Upload validates data as an image and stores the original and a resized
// variant under prefix.
func (s *Store) Upload(ctx context.Context, prefix string, data []byte) (domain.StoredImage, error) {
	if len(data) == 0 {
		return domain.StoredImage{}, ErrEmpty
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return domain.StoredImage{}, ErrTooLarge
	}
	contentType := DetectContentType(data)
	if !supportedTypes[contentType] {
		return domain.StoredImage{}, ErrUnsupported
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.StoredImage{}, ErrUnsupported
	}

	thumb, err := Resize(img, s.cfg.ResizeWidth)
	if err != nil {
		return domain.StoredImage{}, fmt.Errorf("resize image: %w", err)
	}

	base := fmt.Sprintf("%s/%s", strings.Trim(prefix, "/"), uuid.NewString())
	key := base + "_original" + extension(contentType)
	thumbKey := fmt.Sprintf("%s_%dw.png", base, s.cfg.ResizeWidth)

	if err := s.put(ctx, key, data, contentType); err != nil {
		return domain.StoredImage{}, err
	}
	if err := s.put(ctx, thumbKey, thumb, "image/png"); err != nil {
		return domain.StoredImage{}, err
	}
	logger.Debug("assets: uploaded image", "key", key, "bytes", len(data))

	return domain.StoredImage{
		URL:      s.URL(key),
		Key:      key,
		ThumbURL: s.URL(thumbKey),
		ThumbKey: thumbKey,
	}, nil
}

// Invalidate drops keys from the CDN cache. It is a no-op without a
// configured distribution.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if s.cf == nil || s.cfg.DistributionID == "" || len(keys) == 0 {
		return nil
	}
	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		paths = append(paths, "/"+strings.TrimPrefix(k, "/"))
	}
	_, err := s.cf.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(s.cfg.DistributionID),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(fmt.Sprintf("lp-%d", s.now().UnixNano())),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("cloudfront invalidation: %w", err)
	}
	return nil
}

// URL returns the public URL of key, via the CDN when one is configured.
func (s *Store) URL(key string) string {
	if s.cfg.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cfg.CDNDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

func (s *Store) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.cfg.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

// Resize scales img to width keeping the aspect ratio and encodes it as PNG.
// Images narrower than width are re-encoded at their own size.
func Resize(img image.Image, width int) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > width {
		h = max(1, h*width/w)
		w = width
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DetectContentType sniffs the image type from magic bytes.
func DetectContentType(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case len(data) >= 6 && (bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))):
		return "image/gif"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "image/webp"
	}
	return "application/octet-stream"
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}
