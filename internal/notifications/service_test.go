package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vyralhq/vyral-backend/internal/config"
	"github.com/vyralhq/vyral-backend/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) TopProducts(ctx context.Context, limit int) ([]models.ViralProduct, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ViralProduct), args.Error(1)
}

func (m *mockStore) HasNotificationForProduct(ctx context.Context, productID string, since time.Time) (bool, error) {
	args := m.Called(ctx, productID, since)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestNotifyTrendingCreatesBroadcastRows(t *testing.T) {
	st := new(mockStore)
	st.On("TopProducts", mock.Anything, scanLimit).Return([]models.ViralProduct{
		{ID: "prod-a", ProductName: "Fone viral", TrendingScore: 95},
		{ID: "prod-b", ProductName: "Mochila", TrendingScore: 70},
	}, nil)
	st.On("HasNotificationForProduct", mock.Anything, "prod-a", mock.Anything).Return(false, nil)
	st.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.UserID == nil &&
			*n.ProductID == "prod-a" &&
			n.Type == "trending" &&
			n.TrendingScore == 95
	})).Return(nil)

	service := NewService(&config.Config{}, st)
	count, err := service.NotifyTrending(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	st.AssertExpectations(t)
}

func TestNotifyTrendingSuppressesRepeatAlerts(t *testing.T) {
	st := new(mockStore)
	st.On("TopProducts", mock.Anything, scanLimit).Return([]models.ViralProduct{
		{ID: "prod-a", ProductName: "Fone viral", TrendingScore: 95},
	}, nil)
	st.On("HasNotificationForProduct", mock.Anything, "prod-a", mock.Anything).Return(true, nil)

	service := NewService(&config.Config{}, st)
	count, err := service.NotifyTrending(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, count)
	st.AssertNotCalled(t, "CreateNotification")
}

func TestNotifyTrendingNothingAboveThreshold(t *testing.T) {
	st := new(mockStore)
	st.On("TopProducts", mock.Anything, scanLimit).Return([]models.ViralProduct{
		{ID: "prod-a", TrendingScore: 89},
	}, nil)

	service := NewService(&config.Config{}, st)
	count, err := service.NotifyTrending(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, count)
	st.AssertNotCalled(t, "HasNotificationForProduct")
}

func TestBuildEmailBodies(t *testing.T) {
	service := NewService(&config.Config{}, new(mockStore))
	products := []models.ViralProduct{
		{ProductName: "Fone viral", TrendingScore: 95, VideoViews: 100000, ShopName: "Lojinha", TikTokURL: "https://www.tiktok.com/@a/video/1"},
	}

	html, err := service.buildEmailHTML(products)
	assert.NoError(t, err)
	assert.Contains(t, html, "Fone viral")
	assert.Contains(t, html, "https://www.tiktok.com/@a/video/1")

	text := service.buildEmailText(products)
	assert.Contains(t, text, "1. Fone viral")
	assert.Contains(t, text, "Score: 95")
}
