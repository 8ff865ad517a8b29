package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapublica/platform/internal/pkg/apperr"
)

type fakeS3 struct {
	puts map[string]*s3.PutObjectInput
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.puts == nil {
		f.puts = make(map[string]*s3.PutObjectInput)
	}
	f.puts[aws.ToString(in.Key)] = in
	return &s3.PutObjectOutput{}, nil
}

type fakeCF struct {
	calls []*cloudfront.CreateInvalidationInput
}

func (f *fakeCF) CreateInvalidation(_ context.Context, in *cloudfront.CreateInvalidationInput, _ ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error) {
	f.calls = append(f.calls, in)
	return &cloudfront.CreateInvalidationOutput{}, nil
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadStoresOriginalAndThumb(t *testing.T) {
	s3c := &fakeS3{}
	store := NewStore(s3c, nil, Config{Bucket: "lp-assets", CDNDomain: "cdn.lapublica.cat", ResizeWidth: 256})

	img, err := store.Upload(context.Background(), "logos/c1", testPNG(t, 1024, 512))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(img.Key, "logos/c1/"))
	assert.True(t, strings.HasSuffix(img.Key, "_original.png"))
	assert.True(t, strings.HasSuffix(img.ThumbKey, "_256w.png"))
	assert.Equal(t, "https://cdn.lapublica.cat/"+img.ThumbKey, img.ThumbURL)
	require.Len(t, s3c.puts, 2)

	thumb := s3c.puts[img.ThumbKey]
	require.NotNil(t, thumb)
	assert.Equal(t, "image/png", aws.ToString(thumb.ContentType))
	decoded, err := png.Decode(thumb.Body)
	require.NoError(t, err)
	assert.Equal(t, 256, decoded.Bounds().Dx())
	assert.Equal(t, 128, decoded.Bounds().Dy())
}

func TestUploadRejects(t *testing.T) {
	store := NewStore(&fakeS3{}, nil, Config{Bucket: "b", MaxBytes: 1 << 10})

	_, err := store.Upload(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = store.Upload(context.Background(), "x", []byte("%PDF-1.4 not an image"))
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	_, err = store.Upload(context.Background(), "x", bytes.Repeat([]byte{0xFF}, 2<<10))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestResizeKeepsSmallImages(t *testing.T) {
	src, err := png.Decode(bytes.NewReader(testPNG(t, 100, 50)))
	require.NoError(t, err)

	out, err := Resize(src, 256)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())
}

func TestInvalidate(t *testing.T) {
	cf := &fakeCF{}
	store := NewStore(&fakeS3{}, cf, Config{Bucket: "b", DistributionID: "E123"})

	require.NoError(t, store.Invalidate(context.Background(), "logos/c1/a_256w.png"))
	require.Len(t, cf.calls, 1)
	assert.Equal(t, "E123", aws.ToString(cf.calls[0].DistributionId))
	assert.Equal(t, []string{"/logos/c1/a_256w.png"}, cf.calls[0].InvalidationBatch.Paths.Items)
	assert.Equal(t, int32(1), aws.ToInt32(cf.calls[0].InvalidationBatch.Paths.Quantity))
}

func TestInvalidateWithoutDistribution(t *testing.T) {
	cf := &fakeCF{}
	store := NewStore(&fakeS3{}, cf, Config{Bucket: "b"})
	require.NoError(t, store.Invalidate(context.Background(), "k"))
	assert.Empty(t, cf.calls)
}

func TestURLFallsBackToS3(t *testing.T) {
	store := NewStore(&fakeS3{}, nil, Config{Bucket: "lp-assets", Region: "eu-west-1"})
	assert.Equal(t, "https://lp-assets.s3.eu-west-1.amazonaws.com/a.png", store.URL("a.png"))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectContentType([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.Equal(t, "image/png", DetectContentType(testPNG(t, 1, 1)))
	assert.Equal(t, "image/gif", DetectContentType([]byte("GIF89a......")))
	assert.Equal(t, "image/webp", DetectContentType([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	assert.Equal(t, "application/octet-stream", DetectContentType([]byte("hello")))
}
