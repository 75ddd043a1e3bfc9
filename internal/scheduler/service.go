// Package scheduler runs the recurring jobs: the daily ranking
// snapshot, the image migration sweep and the trending alert scan.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vyralhq/vyral-backend/internal/config"
	"github.com/vyralhq/vyral-backend/internal/pipeline"
)

// Snapshotter records the daily rank positions.
type Snapshotter interface {
	Snapshot(ctx context.Context, now time.Time) (int, error)
}

// ImageMigrator moves expiring CDN images into storage.
type ImageMigrator interface {
	Enabled() bool
	MigratePending(ctx context.Context, limit int) (int, error)
}

// Alerter raises trending-product notifications.
type Alerter interface {
	NotifyTrending(ctx context.Context) (int, error)
}

// Scraper runs a full scrape pass with the default query rotation.
type Scraper interface {
	ScrapeProducts(ctx context.Context, query, category string) (*pipeline.Result, error)
	ScrapeVideos(ctx context.Context, query string) (*pipeline.Result, error)
}

const migrationBatch = 50

// Service handles scheduling of the recurring jobs
type Service struct {
	config  *config.Config
	ranking Snapshotter
	images  ImageMigrator
	alerter Alerter
	scraper Scraper
	cron    *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, ranking Snapshotter, images ImageMigrator, alerter Alerter, scraper Scraper) *Service {
	return &Service{
		config:  cfg,
		ranking: ranking,
		images:  images,
		alerter: alerter,
		scraper: scraper,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Start registers and begins the scheduled jobs
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.RankingSnapshotSpec, func() {
		logrus.Info("Starting scheduled ranking snapshot")
		count, err := s.ranking.Snapshot(context.Background(), time.Now())
		if err != nil {
			logrus.Errorf("Ranking snapshot failed: %v", err)
			return
		}
		if count > 0 {
			if _, err := s.alerter.NotifyTrending(context.Background()); err != nil {
				logrus.Errorf("Trending alert scan failed: %v", err)
			}
		}
	})
	if err != nil {
		return err
	}

	if s.images != nil && s.images.Enabled() {
		_, err = s.cron.AddFunc(s.config.ImageMigrationSpec, func() {
			logrus.Info("Starting scheduled image migration")
			migrated, err := s.images.MigratePending(context.Background(), migrationBatch)
			if err != nil {
				logrus.Errorf("Image migration failed: %v", err)
				return
			}
			logrus.Infof("Image migration moved %d images", migrated)
		})
		if err != nil {
			return err
		}
	}

	if s.scraper != nil && s.config.ScrapeSpec != "" {
		_, err = s.cron.AddFunc(s.config.ScrapeSpec, func() {
			logrus.Info("Starting scheduled scrape run")
			if _, err := s.scraper.ScrapeProducts(context.Background(), "", ""); err != nil {
				logrus.Errorf("Scheduled product scrape failed: %v", err)
			}
			if _, err := s.scraper.ScrapeVideos(context.Background(), ""); err != nil {
				logrus.Errorf("Scheduled video scrape failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (snapshot %q, image migration %q)",
		s.config.RankingSnapshotSpec, s.config.ImageMigrationSpec)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
