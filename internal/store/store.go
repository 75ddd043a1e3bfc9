package store

import (
	"context"
	"time"

	"github.com/vyralhq/vyral-backend/internal/models"
)

// ProductFilter narrows dashboard product listings.
type ProductFilter struct {
	Category string
	Search   string
	OrderBy  string // "trending_score", "revenue", "video_views", "created_at"
	Limit    int
	Offset   int
}

// VideoFilter narrows dashboard video listings.
type VideoFilter struct {
	Search  string
	OrderBy string
	Limit   int
	Offset  int
}

// RankedProduct is a product with its current rank and the day-over-day
// movement (nil when yesterday has no snapshot for it).
type RankedProduct struct {
	Product    models.ViralProduct `json:"product"`
	Rank       int                 `json:"rank"`
	RankChange *int                `json:"rank_change"`
}

// Store is the persistence contract for the dashboard and the scrape
// pipeline. Upserts are insert-or-ignore on natural keys: cross-run
// duplicates are silently dropped, not merged.
type Store interface {
	// Scrape pipeline
	UpsertProduct(ctx context.Context, product *models.ViralProduct) (bool, error)
	UpsertVideo(ctx context.Context, video *models.ViralVideo) (bool, error)

	// Dashboard listings
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.ViralProduct, int64, error)
	ListVideos(ctx context.Context, filter VideoFilter) ([]models.ViralVideo, int64, error)

	// Profiles / plans
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	EnsureProfile(ctx context.Context, userID, email string) (*models.Profile, error)
	UpdatePlan(ctx context.Context, userID, plan string) error
	IsAdmin(ctx context.Context, userID string) (bool, error)

	// Saved items
	ToggleSavedItem(ctx context.Context, userID string, productID, videoID *string) (bool, error)
	ListSavedItems(ctx context.Context, userID string) ([]models.SavedItem, error)

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	HasNotificationForProduct(ctx context.Context, productID string, since time.Time) (bool, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error

	// Ranking history
	TopProducts(ctx context.Context, limit int) ([]models.ViralProduct, error)
	HasSnapshotForDate(ctx context.Context, date string) (bool, error)
	InsertRankingSnapshots(ctx context.Context, snapshots []models.ProductRankingHistory) error
	RankPositionsForDate(ctx context.Context, date string) (map[string]int, error)

	// Image migration
	ListImageMigrationCandidates(ctx context.Context, limit int) ([]models.ViralProduct, error)
	UpdateProductImage(ctx context.Context, productID, imageURL string) error

	// Transcriptions
	ListVideosWithoutTranscription(ctx context.Context, limit int) ([]models.ViralVideo, error)
	GetVideo(ctx context.Context, videoID string) (*models.ViralVideo, error)
	SetTranscription(ctx context.Context, videoID, transcription string) error
}
