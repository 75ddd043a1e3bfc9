// Package images persists scraped cover images: TikTok CDN URLs expire,
// so covers are downloaded and re-hosted in blob storage, and the product
// row is pointed at the stored copy.
package images

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/vyralhq/vyral-backend/internal/models"
)

const (
	fetchTimeout = 5 * time.Second
	batchWorkers = 5

	// TikTok CDN rejects requests without browser-looking headers
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	tiktokReferer    = "https://www.tiktok.com/"
)

// Service downloads cover images and re-uploads them to blob storage
type Service struct {
	store  Catalog
	blob   BlobUploader
	client *resty.Client
}

// Catalog is the subset of the store the migration needs
type Catalog interface {
	ListImageMigrationCandidates(ctx context.Context, limit int) ([]models.ViralProduct, error)
	UpdateProductImage(ctx context.Context, productID, imageURL string) error
}

// BlobUploader is the subset of the blob store the service needs
type BlobUploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// NewService creates a new image persistence service
func NewService(st Catalog, blob BlobUploader) *Service {
	return &Service{
		store:  st,
		blob:   blob,
		client: resty.New().SetTimeout(fetchTimeout),
	}
}

// Enabled reports whether a blob backend is configured
func (s *Service) Enabled() bool {
	return s.blob != nil
}

// Fetch downloads an image with the headers the TikTok CDN expects and
// returns the bytes plus content type. Used by the image proxy endpoint.
func (s *Service) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", browserUserAgent).
		SetHeader("Referer", tiktokReferer).
		SetHeader("Accept", "image/*,*/*;q=0.8").
		Get(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, "", fmt.Errorf("image fetch returned status %d", resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return resp.Body(), contentType, nil
}

// Persist downloads one cover image and re-uploads it to blob storage,
// returning the stored public URL. Any failure returns "" so callers can
// keep the original CDN URL.
func (s *Service) Persist(ctx context.Context, imageURL, productID string) string {
	if imageURL == "" || !s.Enabled() {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	data, contentType, err := s.Fetch(ctx, imageURL)
	if err != nil {
		logrus.Debugf("Skipping image for product %s: %v", productID, err)
		return ""
	}

	path := fmt.Sprintf("products/%s.%s", productID, extensionFor(contentType))
	storedURL, err := s.blob.Upload(ctx, path, data, contentType)
	if err != nil {
		logrus.Debugf("Failed to upload image for product %s: %v", productID, err)
		return ""
	}
	return storedURL
}

// MigratePending finds products still pointing at the TikTok CDN and moves
// their images into storage, processing in bounded parallel batches.
// Returns how many images were migrated; failures are skipped silently.
func (s *Service) MigratePending(ctx context.Context, limit int) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}

	candidates, err := s.store.ListImageMigrationCandidates(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	logrus.Infof("Migrating %d product images to storage", len(candidates))

	pool := pond.NewResultPool[bool](batchWorkers)
	group := pool.NewGroup()

	for _, product := range candidates {
		p := product
		group.SubmitErr(func() (bool, error) {
			storedURL := s.Persist(ctx, p.ProductImage, p.ID)
			if storedURL == "" {
				return false, nil
			}
			if err := s.store.UpdateProductImage(ctx, p.ID, storedURL); err != nil {
				logrus.Errorf("Failed to update image URL for product %s: %v", p.ID, err)
				return false, nil
			}
			return true, nil
		})
	}

	results, err := group.Wait()
	pool.StopAndWait()
	if err != nil {
		return 0, err
	}

	migrated := 0
	for _, ok := range results {
		if ok {
			migrated++
		}
	}
	return migrated, nil
}

// FallbackProxyURL builds a public weserv.nl proxy URL for an image the
// direct CDN fetch could not serve.
func FallbackProxyURL(imageURL string) string {
	stripped := strings.TrimPrefix(strings.TrimPrefix(imageURL, "https://"), "http://")
	return "https://images.weserv.nl/?url=" + url.QueryEscape(stripped)
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "webp"):
		return "webp"
	case strings.Contains(contentType, "png"):
		return "png"
	default:
		return "jpg"
	}
}
