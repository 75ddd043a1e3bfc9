// Package pipeline orchestrates the scrape-normalize-persist flow: pull
// items from the RapidAPI vendors, collapse near-duplicates, derive the
// dashboard metrics and write the surviving rows.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/vyralhq/vyral-backend/internal/category"
	"github.com/vyralhq/vyral-backend/internal/models"
	"github.com/vyralhq/vyral-backend/internal/providers"
	"github.com/vyralhq/vyral-backend/internal/scoring"
)

const (
	// Descriptions shorter than this are junk (emoji-only posts etc.)
	minDescriptionLength = 3

	// Scraped descriptions double as product names, truncated for display
	maxProductNameLength = 100

	// In-batch dedup key is the lowercased prefix of the description
	dedupKeyLength = 60

	// Queries tried per run when the caller does not supply one
	queriesPerRun = 3

	priceFloor  = 20
	priceJitter = 150
)

// Sink is the subset of the store the pipeline writes to.
type Sink interface {
	UpsertProduct(ctx context.Context, product *models.ViralProduct) (bool, error)
	UpsertVideo(ctx context.Context, video *models.ViralVideo) (bool, error)
	UpdateProductImage(ctx context.Context, productID, imageURL string) error
}

// ImagePersister re-hosts cover images in blob storage. May be nil.
type ImagePersister interface {
	Enabled() bool
	Persist(ctx context.Context, imageURL, productID string) string
}

// Result summarizes one scrape run.
type Result struct {
	Count   int    `json:"count"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

// Service runs scrape jobs against the configured providers
type Service struct {
	primary  providers.Provider
	fallback providers.Provider
	sink     Sink
	images   ImagePersister

	productQueries []string
	videoQueries   []string
	country        string
}

// NewService creates a new scrape pipeline
func NewService(primary, fallback providers.Provider, sink Sink, images ImagePersister, productQueries, videoQueries []string, country string) *Service {
	return &Service{
		primary:        primary,
		fallback:       fallback,
		sink:           sink,
		images:         images,
		productQueries: productQueries,
		videoQueries:   videoQueries,
		country:        country,
	}
}

// ScrapeProducts pulls product candidates for the given query (or a random
// rotation of the default queries) and upserts them as viral products.
func (s *Service) ScrapeProducts(ctx context.Context, query, categoryOverride string) (*Result, error) {
	items, source := s.search(ctx, s.pickQueries(query, s.productQueries))
	if len(items) == 0 {
		return &Result{Count: 0, Source: source, Message: "Nenhum produto encontrado. Ambas APIs com cota esgotada ou sem resultados."}, nil
	}

	logrus.Infof("Processing %d product candidates from %s", len(items), source)

	inserted := 0
	for _, item := range dedupe(items) {
		product := s.buildProduct(item, categoryOverride, source)

		ok, err := s.sink.UpsertProduct(ctx, product)
		if err != nil {
			logrus.Errorf("Failed to upsert product %q: %v", product.ProductName, err)
			continue
		}
		if !ok {
			continue
		}
		inserted++

		if s.images != nil && s.images.Enabled() && product.ProductImage != "" {
			if stored := s.images.Persist(ctx, product.ProductImage, product.ID); stored != "" {
				if err := s.sink.UpdateProductImage(ctx, product.ID, stored); err != nil {
					logrus.Errorf("Failed to store image URL for product %q: %v", product.ProductName, err)
				}
			}
		}
	}

	return &Result{
		Count:   inserted,
		Source:  source,
		Message: fmt.Sprintf("%d novos produtos adicionados via %s!", inserted, source),
	}, nil
}

// ScrapeVideos pulls trending video candidates and upserts them as viral
// videos keyed on (title, creator).
func (s *Service) ScrapeVideos(ctx context.Context, query string) (*Result, error) {
	items, source := s.search(ctx, s.pickQueries(query, s.videoQueries))
	if len(items) == 0 {
		return &Result{Count: 0, Source: source, Message: "Nenhum novo vídeo encontrado."}, nil
	}

	logrus.Infof("Processing %d video candidates from %s", len(items), source)

	inserted := 0
	for _, item := range dedupe(items) {
		ok, err := s.sink.UpsertVideo(ctx, s.buildVideo(item, source))
		if err != nil {
			logrus.Errorf("Failed to upsert video %q: %v", item.Description, err)
			continue
		}
		if ok {
			inserted++
		}
	}

	return &Result{
		Count:   inserted,
		Source:  source,
		Message: fmt.Sprintf("%d novos vídeos adicionados via %s!", inserted, source),
	}, nil
}

// search walks the query rotation against the primary provider, switching
// to the fallback when the primary is exhausted or finds nothing. Provider
// failures never surface as errors here: an empty result is a valid
// outcome and the caller reports zero rows.
func (s *Service) search(ctx context.Context, queries []string) ([]providers.Item, string) {
	for _, query := range queries {
		items, err := s.primary.Search(ctx, query)
		if err != nil {
			if errors.Is(err, providers.ErrExhausted) {
				logrus.Warnf("Provider %s exhausted, switching to fallback", s.primary.Name())
				break
			}
			logrus.Errorf("Provider %s failed for query %q: %v", s.primary.Name(), query, err)
			continue
		}
		if len(items) > 0 {
			return items, s.primary.Name()
		}
	}

	if s.fallback == nil || !s.fallback.Enabled() {
		return nil, s.primary.Name()
	}

	for _, query := range queries {
		items, err := s.fallback.Search(ctx, query)
		if err != nil {
			if errors.Is(err, providers.ErrExhausted) {
				logrus.Warnf("Provider %s exhausted, giving up", s.fallback.Name())
				break
			}
			logrus.Errorf("Provider %s failed for query %q: %v", s.fallback.Name(), query, err)
			continue
		}
		if len(items) > 0 {
			return items, s.fallback.Name()
		}
	}

	return nil, s.fallback.Name()
}

// pickQueries returns the caller's query when given, otherwise a random
// sample of the configured defaults so repeated runs cover the catalog.
func (s *Service) pickQueries(query string, defaults []string) []string {
	if query != "" {
		return []string{query}
	}

	shuffled := make([]string, len(defaults))
	copy(shuffled, defaults)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if len(shuffled) > queriesPerRun {
		shuffled = shuffled[:queriesPerRun]
	}
	return shuffled
}

func (s *Service) buildProduct(item providers.Item, categoryOverride, source string) *models.ViralProduct {
	cat := categoryOverride
	if cat == "" {
		cat = category.Detect(item.Description)
	}

	shopName := item.AuthorName
	if shopName == "" {
		shopName = item.AuthorHandle
	}
	if shopName == "" {
		shopName = "TikTok Shop"
	}

	rate := scoring.EngagementRate(item.Likes, item.Shares, item.Comments, item.Views)

	return &models.ViralProduct{
		ProductName:   truncate(item.Description, maxProductNameLength),
		Category:      cat,
		Price:         float64(rand.Intn(priceJitter+1) + priceFloor),
		Revenue:       scoring.RevenueEstimate(item.Views),
		SalesCount:    scoring.SalesEstimate(item.Views),
		VideoViews:    item.Views,
		VideoLikes:    item.Likes,
		VideoShares:   item.Shares,
		TrendingScore: scoring.TrendingScore(item.Likes, item.Shares, rate),
		ShopName:      shopName,
		Country:       s.country,
		Source:        fmt.Sprintf("TikTok API (%s)", source),
		ProductImage:  item.CoverURL,
		TikTokURL:     videoURL(item),
	}
}

func (s *Service) buildVideo(item providers.Item, source string) *models.ViralVideo {
	creator := item.AuthorHandle
	if creator != "" && !strings.HasPrefix(creator, "@") {
		creator = "@" + creator
	}
	if creator == "" {
		creator = item.AuthorName
	}

	rate := scoring.EngagementRate(item.Likes, item.Shares, item.Comments, item.Views)

	return &models.ViralVideo{
		Title:           truncate(item.Description, maxProductNameLength),
		CreatorName:     creator,
		ProductName:     truncate(item.Description, maxProductNameLength),
		Views:           item.Views,
		Likes:           item.Likes,
		Shares:          item.Shares,
		Comments:        item.Comments,
		EngagementRate:  rate,
		TrendingScore:   scoring.TrendingScore(item.Likes, item.Shares, rate),
		DurationSeconds: item.Duration,
		Source:          fmt.Sprintf("TikTok API (%s)", source),
		Hashtags:        hashtagsJSON(item.Description),
		RevenueEstimate: scoring.RevenueEstimate(item.Views),
		VideoURL:        videoURL(item),
		ThumbnailURL:    item.CoverURL,
	}
}

// dedupe collapses items sharing a lowercased description prefix to the
// first occurrence and drops descriptions too short to name a product.
func dedupe(items []providers.Item) []providers.Item {
	seen := make(map[string]bool, len(items))
	out := make([]providers.Item, 0, len(items))

	for _, item := range items {
		if utf8.RuneCountInString(item.Description) < minDescriptionLength {
			continue
		}
		key := strings.ToLower(truncate(item.Description, dedupKeyLength))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// hashtagsJSON extracts #tags from a description in order of appearance.
func hashtagsJSON(description string) datatypes.JSON {
	matches := hashtagPattern.FindAllStringSubmatch(description, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

func videoURL(item providers.Item) string {
	if item.VideoID == "" {
		return ""
	}
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", item.AuthorHandle, item.VideoID)
}
