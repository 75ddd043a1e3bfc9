package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ViralProduct represents a scraped TikTok Shop product.
// (product_name, shop_name) is the natural key used for upsert dedup.
type ViralProduct struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	ProductName   string    `gorm:"not null;uniqueIndex:idx_products_name_shop" json:"product_name"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	Revenue       float64   `json:"revenue"`
	SalesCount    int64     `json:"sales_count"`
	VideoViews    int64     `json:"video_views"`
	VideoLikes    int64     `json:"video_likes"`
	VideoShares   int64     `json:"video_shares"`
	TrendingScore int       `json:"trending_score"`
	ShopName      string    `gorm:"uniqueIndex:idx_products_name_shop" json:"shop_name"`
	ShopURL       string    `json:"shop_url"`
	Country       string    `json:"country"`
	Source        string    `json:"source"`
	ProductImage  string    `json:"product_image"`
	TikTokURL     string    `json:"tiktok_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *ViralProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ViralVideo represents a scraped or generated viral video.
// (title, creator_name) is the natural key used for upsert dedup.
type ViralVideo struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string         `gorm:"not null;uniqueIndex:idx_videos_title_creator" json:"title"`
	CreatorName     string         `gorm:"uniqueIndex:idx_videos_title_creator" json:"creator_name"`
	ProductName     string         `json:"product_name"`
	Views           int64          `json:"views"`
	Likes           int64          `json:"likes"`
	Shares          int64          `json:"shares"`
	Comments        int64          `json:"comments"`
	EngagementRate  float64        `json:"engagement_rate"`
	TrendingScore   int            `json:"trending_score"`
	DurationSeconds int            `json:"duration_seconds"`
	Source          string         `json:"source"`
	Hashtags        datatypes.JSON `json:"hashtags"`
	Transcription   *string        `json:"transcription"`
	RevenueEstimate float64        `json:"revenue_estimate"`
	VideoURL        string         `json:"video_url"`
	ThumbnailURL    string         `json:"thumbnail_url"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (v *ViralVideo) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// Profile holds the per-user subscription state. The plan string is the
// sole piece of authorization state in the system.
type Profile struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Email     string    `gorm:"index" json:"email"`
	FullName  string    `json:"full_name"`
	Plan      string    `gorm:"not null;default:free" json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// SavedItem is a favorite/bookmark join row. Exactly one of ProductID or
// VideoID is set.
type SavedItem struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	ProductID *string   `gorm:"type:uuid" json:"product_id"`
	VideoID   *string   `gorm:"type:uuid" json:"video_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *SavedItem) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ProductRankingHistory is an append-only daily snapshot of product rank
// positions, used for day-over-day rank deltas.
type ProductRankingHistory struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_ranking_product_date" json:"product_id"`
	RankPosition  int       `gorm:"not null" json:"rank_position"`
	TrendingScore int       `json:"trending_score"`
	SnapshotDate  string    `gorm:"type:date;not null;uniqueIndex:idx_ranking_product_date" json:"snapshot_date"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *ProductRankingHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// Notification is a user-facing alert row.
type Notification struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        *string   `gorm:"type:uuid;index" json:"user_id"`
	ProductID     *string   `gorm:"type:uuid" json:"product_id"`
	Type          string    `gorm:"not null;default:trending" json:"type"`
	Title         string    `gorm:"not null" json:"title"`
	Message       string    `gorm:"not null" json:"message"`
	TrendingScore int       `json:"trending_score"`
	IsRead        bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// UserRole grants admin capabilities outside the plan system.
type UserRole struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Role      string    `gorm:"not null;default:user" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
