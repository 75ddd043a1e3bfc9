package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vyralhq/vyral-backend/internal/models"
)

// PostgresStore implements Store on gorm/Postgres
type PostgresStore struct {
	db *gorm.DB
}

// Ensure PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens the database and migrates the schema
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.ViralProduct{},
		&models.ViralVideo{},
		&models.Profile{},
		&models.SavedItem{},
		&models.ProductRankingHistory{},
		&models.Notification{},
		&models.UserRole{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewStoreWithDB wraps an existing gorm handle (used by tests)
func NewStoreWithDB(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertProduct inserts a product, ignoring conflicts on the
// (product_name, shop_name) natural key. Returns true when a new row was
// actually inserted.
func (s *PostgresStore) UpsertProduct(ctx context.Context, product *models.ViralProduct) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_name"}, {Name: "shop_name"}},
		DoNothing: true,
	}).Create(product)
	if result.Error != nil {
		return false, fmt.Errorf("failed to upsert product: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpsertVideo inserts a video, ignoring conflicts on (title, creator_name).
func (s *PostgresStore) UpsertVideo(ctx context.Context, video *models.ViralVideo) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}, {Name: "creator_name"}},
		DoNothing: true,
	}).Create(video)
	if result.Error != nil {
		return false, fmt.Errorf("failed to upsert video: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

var productOrderColumns = map[string]string{
	"trending_score": "trending_score DESC",
	"revenue":        "revenue DESC",
	"video_views":    "video_views DESC",
	"created_at":     "created_at DESC",
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter ProductFilter) ([]models.ViralProduct, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ViralProduct{})

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(product_name) LIKE ? OR LOWER(shop_name) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	order, ok := productOrderColumns[filter.OrderBy]
	if !ok {
		order = "trending_score DESC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var products []models.ViralProduct
	if err := query.Order(order).Limit(limit).Offset(filter.Offset).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

func (s *PostgresStore) ListVideos(ctx context.Context, filter VideoFilter) ([]models.ViralVideo, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ViralVideo{})

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(creator_name) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}

	order := "trending_score DESC"
	if filter.OrderBy == "views" {
		order = "views DESC"
	} else if filter.OrderBy == "created_at" {
		order = "created_at DESC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var videos []models.ViralVideo
	if err := query.Order(order).Limit(limit).Offset(filter.Offset).Find(&videos).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list videos: %w", err)
	}
	return videos, total, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (s *PostgresStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return &profile, nil
}

// EnsureProfile returns the user's profile, creating a free-plan row on
// first sight of the user.
func (s *PostgresStore) EnsureProfile(ctx context.Context, userID, email string) (*models.Profile, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	created := &models.Profile{UserID: userID, Email: email, Plan: "free"}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(created).Error; err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	// Re-read in case a concurrent request won the insert
	return s.GetProfile(ctx, userID)
}

func (s *PostgresStore) UpdatePlan(ctx context.Context, userID, plan string) error {
	err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("plan", plan).Error
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UserRole{}).
		Where("user_id = ? AND role = ?", userID, "admin").
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	return count > 0, nil
}

// ToggleSavedItem creates the bookmark if absent, removes it if present.
// Returns true when the item ends up saved.
func (s *PostgresStore) ToggleSavedItem(ctx context.Context, userID string, productID, videoID *string) (bool, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if productID != nil {
		query = query.Where("product_id = ?", *productID)
	}
	if videoID != nil {
		query = query.Where("video_id = ?", *videoID)
	}

	var existing models.SavedItem
	err := query.First(&existing).Error
	if err == nil {
		if err := s.db.WithContext(ctx).Delete(&existing).Error; err != nil {
			return true, fmt.Errorf("failed to remove saved item: %w", err)
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to look up saved item: %w", err)
	}

	item := models.SavedItem{UserID: userID, ProductID: productID, VideoID: videoID}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return false, fmt.Errorf("failed to save item: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListSavedItems(ctx context.Context, userID string) ([]models.SavedItem, error) {
	var items []models.SavedItem
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list saved items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasNotificationForProduct(ctx context.Context, productID string, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("product_id = ? AND created_at >= ?", productID, since).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check notifications for product: %w", err)
	}
	return count > 0, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ? OR user_id IS NULL", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND (user_id = ? OR user_id IS NULL)", notificationID, userID).
		Update("is_read", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *PostgresStore) TopProducts(ctx context.Context, limit int) ([]models.ViralProduct, error) {
	if limit <= 0 {
		limit = 50
	}
	var products []models.ViralProduct
	err := s.db.WithContext(ctx).
		Order("trending_score DESC, video_views DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load top products: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) HasSnapshotForDate(ctx context.Context, date string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ProductRankingHistory{}).
		Where("snapshot_date = ?", date).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot: %w", err)
	}
	return count > 0, nil
}

// InsertRankingSnapshots writes a day's snapshot, ignoring rows already
// present for (product_id, snapshot_date).
func (s *PostgresStore) InsertRankingSnapshots(ctx context.Context, snapshots []models.ProductRankingHistory) error {
	if len(snapshots) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "snapshot_date"}},
		DoNothing: true,
	}).Create(&snapshots).Error
	if err != nil {
		return fmt.Errorf("failed to insert ranking snapshots: %w", err)
	}
	return nil
}

func (s *PostgresStore) RankPositionsForDate(ctx context.Context, date string) (map[string]int, error) {
	var rows []models.ProductRankingHistory
	err := s.db.WithContext(ctx).
		Where("snapshot_date = ?", date).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking snapshot: %w", err)
	}

	positions := make(map[string]int, len(rows))
	for _, row := range rows {
		positions[row.ProductID] = row.RankPosition
	}
	return positions, nil
}

// ListImageMigrationCandidates finds products whose image still points at
// the TikTok CDN, highest trending first.
func (s *PostgresStore) ListImageMigrationCandidates(ctx context.Context, limit int) ([]models.ViralProduct, error) {
	if limit <= 0 {
		limit = 20
	}
	var products []models.ViralProduct
	err := s.db.WithContext(ctx).
		Where("product_image LIKE ?", "%tiktokcdn%").
		Order("trending_score DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list migration candidates: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) UpdateProductImage(ctx context.Context, productID, imageURL string) error {
	err := s.db.WithContext(ctx).Model(&models.ViralProduct{}).
		Where("id = ?", productID).
		Update("product_image", imageURL).Error
	if err != nil {
		return fmt.Errorf("failed to update product image: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVideosWithoutTranscription(ctx context.Context, limit int) ([]models.ViralVideo, error) {
	if limit <= 0 {
		limit = 10
	}
	var videos []models.ViralVideo
	err := s.db.WithContext(ctx).
		Where("transcription IS NULL").
		Limit(limit).
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list videos without transcription: %w", err)
	}
	return videos, nil
}

func (s *PostgresStore) GetVideo(ctx context.Context, videoID string) (*models.ViralVideo, error) {
	var video models.ViralVideo
	err := s.db.WithContext(ctx).Where("id = ?", videoID).First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return &video, nil
}

func (s *PostgresStore) SetTranscription(ctx context.Context, videoID, transcription string) error {
	err := s.db.WithContext(ctx).Model(&models.ViralVideo{}).
		Where("id = ?", videoID).
		Update("transcription", transcription).Error
	if err != nil {
		return fmt.Errorf("failed to set transcription: %w", err)
	}
	logrus.Debugf("Stored transcription for video %s", videoID)
	return nil
}
