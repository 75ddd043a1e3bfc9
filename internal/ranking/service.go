// Package ranking maintains the daily top-product snapshots and derives
// day-over-day rank movement for the dashboard.
package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vyralhq/vyral-backend/internal/models"
	"github.com/vyralhq/vyral-backend/internal/store"
)

const (
	dateLayout = "2006-01-02"

	// Rows captured per daily snapshot. Larger than the dashboard's
	// top-10 so products can enter the board with a known previous rank.
	snapshotSize = 50

	displaySize = 10
)

// Store is the subset of the persistence layer the ranking flow uses.
type Store interface {
	TopProducts(ctx context.Context, limit int) ([]models.ViralProduct, error)
	HasSnapshotForDate(ctx context.Context, date string) (bool, error)
	InsertRankingSnapshots(ctx context.Context, snapshots []models.ProductRankingHistory) error
	RankPositionsForDate(ctx context.Context, date string) (map[string]int, error)
}

// Service computes and serves product rankings
type Service struct {
	store Store
}

// NewService creates a new ranking service
func NewService(st Store) *Service {
	return &Service{store: st}
}

// Snapshot records today's rank positions. Runs are idempotent per day:
// a second invocation on the same date is a no-op.
func (s *Service) Snapshot(ctx context.Context, now time.Time) (int, error) {
	date := now.UTC().Format(dateLayout)

	exists, err := s.store.HasSnapshotForDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("failed to check snapshot for %s: %w", date, err)
	}
	if exists {
		logrus.Debugf("Ranking snapshot for %s already taken", date)
		return 0, nil
	}

	products, err := s.store.TopProducts(ctx, snapshotSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load top products: %w", err)
	}
	if len(products) == 0 {
		return 0, nil
	}

	snapshots := make([]models.ProductRankingHistory, len(products))
	for i, product := range products {
		snapshots[i] = models.ProductRankingHistory{
			ProductID:     product.ID,
			RankPosition:  i + 1,
			TrendingScore: product.TrendingScore,
			SnapshotDate:  date,
		}
	}

	if err := s.store.InsertRankingSnapshots(ctx, snapshots); err != nil {
		return 0, fmt.Errorf("failed to insert ranking snapshots: %w", err)
	}

	logrus.Infof("Recorded ranking snapshot for %s (%d products)", date, len(snapshots))
	return len(snapshots), nil
}

// Ranking returns the current top products with their movement against
// a past snapshot. period is "today" (compare to yesterday) or "week"
// (compare to seven days ago). Products absent from the comparison
// snapshot get a nil RankChange.
func (s *Service) Ranking(ctx context.Context, period string, now time.Time) ([]store.RankedProduct, error) {
	days := 1
	if period == "week" {
		days = 7
	}
	compareDate := now.UTC().AddDate(0, 0, -days).Format(dateLayout)

	products, err := s.store.TopProducts(ctx, displaySize)
	if err != nil {
		return nil, fmt.Errorf("failed to load top products: %w", err)
	}
	if len(products) == 0 {
		return []store.RankedProduct{}, nil
	}

	previous, err := s.store.RankPositionsForDate(ctx, compareDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking for %s: %w", compareDate, err)
	}

	ranked := make([]store.RankedProduct, len(products))
	for i, product := range products {
		currentRank := i + 1
		entry := store.RankedProduct{Product: product, Rank: currentRank}

		if previousRank, ok := previous[product.ID]; ok {
			change := previousRank - currentRank
			entry.RankChange = &change
		}
		ranked[i] = entry
	}
	return ranked, nil
}
