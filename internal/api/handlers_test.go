package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vyralhq/vyral-backend/internal/billing"
	"github.com/vyralhq/vyral-backend/internal/llm"
	"github.com/vyralhq/vyral-backend/internal/models"
	"github.com/vyralhq/vyral-backend/internal/pipeline"
	"github.com/vyralhq/vyral-backend/internal/store"
)

const (
	testJWTSecret     = "test-jwt-secret"
	testWebhookSecret = "whsec_test"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertProduct(ctx context.Context, product *models.ViralProduct) (bool, error) {
	args := m.Called(ctx, product)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) UpsertVideo(ctx context.Context, video *models.ViralVideo) (bool, error) {
	args := m.Called(ctx, video)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.ViralProduct, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.ViralProduct), args.Get(1).(int64), args.Error(2)
}

func (m *mockStore) ListVideos(ctx context.Context, filter store.VideoFilter) ([]models.ViralVideo, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.ViralVideo), args.Get(1).(int64), args.Error(2)
}

func (m *mockStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *mockStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *mockStore) EnsureProfile(ctx context.Context, userID, email string) (*models.Profile, error) {
	args := m.Called(ctx, userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *mockStore) UpdatePlan(ctx context.Context, userID, plan string) error {
	args := m.Called(ctx, userID, plan)
	return args.Error(0)
}

func (m *mockStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ToggleSavedItem(ctx context.Context, userID string, productID, videoID *string) (bool, error) {
	args := m.Called(ctx, userID, productID, videoID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListSavedItems(ctx context.Context, userID string) ([]models.SavedItem, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.SavedItem), args.Error(1)
}

func (m *mockStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockStore) HasNotificationForProduct(ctx context.Context, productID string, since time.Time) (bool, error) {
	args := m.Called(ctx, productID, since)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *mockStore) TopProducts(ctx context.Context, limit int) ([]models.ViralProduct, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.ViralProduct), args.Error(1)
}

func (m *mockStore) HasSnapshotForDate(ctx context.Context, date string) (bool, error) {
	args := m.Called(ctx, date)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) InsertRankingSnapshots(ctx context.Context, snapshots []models.ProductRankingHistory) error {
	args := m.Called(ctx, snapshots)
	return args.Error(0)
}

func (m *mockStore) RankPositionsForDate(ctx context.Context, date string) (map[string]int, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *mockStore) ListImageMigrationCandidates(ctx context.Context, limit int) ([]models.ViralProduct, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.ViralProduct), args.Error(1)
}

func (m *mockStore) UpdateProductImage(ctx context.Context, productID, imageURL string) error {
	args := m.Called(ctx, productID, imageURL)
	return args.Error(0)
}

func (m *mockStore) ListVideosWithoutTranscription(ctx context.Context, limit int) ([]models.ViralVideo, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.ViralVideo), args.Error(1)
}

func (m *mockStore) GetVideo(ctx context.Context, videoID string) (*models.ViralVideo, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ViralVideo), args.Error(1)
}

func (m *mockStore) SetTranscription(ctx context.Context, videoID, transcription string) error {
	args := m.Called(ctx, videoID, transcription)
	return args.Error(0)
}

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) ScrapeProducts(ctx context.Context, query, category string) (*pipeline.Result, error) {
	args := m.Called(ctx, query, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

func (m *mockScraper) ScrapeVideos(ctx context.Context, query string) (*pipeline.Result, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

type mockBiller struct {
	mock.Mock
}

func (m *mockBiller) HandleEvent(ctx context.Context, event *billing.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockBiller) CheckSubscription(ctx context.Context, userID, email string) (*billing.SubscriptionStatus, error) {
	args := m.Called(ctx, userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.SubscriptionStatus), args.Error(1)
}

func (m *mockBiller) CheckoutURL(ctx context.Context, email, priceID, successURL, cancelURL string) (string, error) {
	args := m.Called(ctx, email, priceID, successURL, cancelURL)
	return args.String(0), args.Error(1)
}

func (m *mockBiller) PortalURL(ctx context.Context, email, returnURL string) (string, error) {
	args := m.Called(ctx, email, returnURL)
	return args.String(0), args.Error(1)
}

type mockAI struct {
	mock.Mock
}

func (m *mockAI) TranscribeVideos(ctx context.Context, videoID string, limit int) (*llm.TranscribeResult, error) {
	args := m.Called(ctx, videoID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.TranscribeResult), args.Error(1)
}

func (m *mockAI) GenerateScript(ctx context.Context, prompt string) (*llm.Script, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Script), args.Error(1)
}

type mockRanker struct {
	mock.Mock
}

func (m *mockRanker) Ranking(ctx context.Context, period string, now time.Time) ([]store.RankedProduct, error) {
	args := m.Called(ctx, period, now)
	return args.Get(0).([]store.RankedProduct), args.Error(1)
}

type mockImages struct {
	mock.Mock
}

func (m *mockImages) Enabled() bool { return true }

func (m *mockImages) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	args := m.Called(ctx, imageURL)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *mockImages) MigratePending(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

type testDeps struct {
	store   *mockStore
	scraper *mockScraper
	biller  *mockBiller
	ai      *mockAI
	ranker  *mockRanker
	images  *mockImages
}

func newTestServer() (*Server, *testDeps) {
	deps := &testDeps{
		store:   new(mockStore),
		scraper: new(mockScraper),
		biller:  new(mockBiller),
		ai:      new(mockAI),
		ranker:  new(mockRanker),
		images:  new(mockImages),
	}
	server := NewServer(deps.store, deps.scraper, deps.biller, deps.ai, deps.ranker, deps.images, testJWTSecret, testWebhookSecret)
	return server, deps
}

func signToken(t *testing.T, userID, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(server *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer()
	rec := doJSON(server, "GET", "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestScrapeProductsEndpoint(t *testing.T) {
	server, deps := newTestServer()
	deps.scraper.On("ScrapeProducts", mock.Anything, "fashion haul TikTok Shop", "").
		Return(&pipeline.Result{Count: 15, Source: "primary", Message: "15 novos produtos adicionados via primary!"}, nil)

	rec := doJSON(server, "POST", "/functions/scrape-tiktok-products", "", map[string]string{"query": "fashion haul TikTok Shop"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(15), body["count"])
	assert.Equal(t, true, body["success"])
}

func TestAuthRequiredEndpointsRejectAnonymous(t *testing.T) {
	server, _ := newTestServer()

	for _, path := range []string{"/functions/check-subscription", "/functions/transcribe-videos"} {
		rec := doJSON(server, "POST", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	server, _ := newTestServer()
	rec := doJSON(server, "POST", "/functions/check-subscription", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTranscribeGatedByPlan(t *testing.T) {
	server, deps := newTestServer()
	deps.store.On("EnsureProfile", mock.Anything, "user-1", "ana@example.com").
		Return(&models.Profile{UserID: "user-1", Plan: "free"}, nil)

	token := signToken(t, "user-1", "ana@example.com")
	rec := doJSON(server, "POST", "/functions/transcribe-videos", token, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	deps.ai.AssertNotCalled(t, "TranscribeVideos")
}

func TestTranscribeAllowedForPro(t *testing.T) {
	server, deps := newTestServer()
	deps.store.On("EnsureProfile", mock.Anything, "user-1", "ana@example.com").
		Return(&models.Profile{UserID: "user-1", Plan: "pro"}, nil)
	deps.ai.On("TranscribeVideos", mock.Anything, "", 5).
		Return(&llm.TranscribeResult{Count: 3, Message: "3 vídeos transcritos com sucesso!"}, nil)

	token := signToken(t, "user-1", "ana@example.com")
	rec := doJSON(server, "POST", "/functions/transcribe-videos", token, map[string]int{"limit": 5})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)
}

func TestGenerateVideoActions(t *testing.T) {
	server, deps := newTestServer()
	deps.store.On("EnsureProfile", mock.Anything, "user-1", "ana@example.com").
		Return(&models.Profile{UserID: "user-1", Plan: "business"}, nil)
	deps.ai.On("GenerateScript", mock.Anything, "roteiro").
		Return(&llm.Script{Script: "CENA 1", Message: "ok", OperationName: "op_123"}, nil)

	token := signToken(t, "user-1", "ana@example.com")

	rec := doJSON(server, "POST", "/functions/generate-video", token, map[string]string{"action": "generate", "prompt": "roteiro"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "op_123")

	rec = doJSON(server, "POST", "/functions/generate-video", token, map[string]string{"action": "poll"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"done":true`)

	rec = doJSON(server, "POST", "/functions/generate-video", token, map[string]string{"action": "dance"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImageProxyRequiresURL(t *testing.T) {
	server, _ := newTestServer()
	rec := doJSON(server, "POST", "/functions/image-proxy", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImageProxyServesBytes(t *testing.T) {
	server, deps := newTestServer()
	deps.images.On("Fetch", mock.Anything, "https://cdn.example.com/a.jpg").
		Return([]byte("jpeg"), "image/jpeg", nil)

	rec := doJSON(server, "POST", "/functions/image-proxy", "", map[string]string{"url": "https://cdn.example.com/a.jpg"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "jpeg", rec.Body.String())
}

func TestImageProxyFallsBackToPublicProxy(t *testing.T) {
	server, deps := newTestServer()
	deps.images.On("Fetch", mock.Anything, "https://p16-sign.tiktokcdn.com/a.jpg").
		Return(nil, "", assert.AnError)

	rec := doJSON(server, "POST", "/functions/image-proxy", "", map[string]string{"url": "https://p16-sign.tiktokcdn.com/a.jpg"})

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "images.weserv.nl")
}

func TestMigrateImagesRequiresAdmin(t *testing.T) {
	server, deps := newTestServer()
	deps.store.On("IsAdmin", mock.Anything, "user-1").Return(false, nil)

	token := signToken(t, "user-1", "ana@example.com")
	rec := doJSON(server, "POST", "/functions/migrate-images", token, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMigrateImagesAsAdmin(t *testing.T) {
	server, deps := newTestServer()
	deps.store.On("IsAdmin", mock.Anything, "user-1").Return(true, nil)
	deps.images.On("MigratePending", mock.Anything, 50).Return(12, nil)

	token := signToken(t, "user-1", "ana@example.com")
	rec := doJSON(server, "POST", "/functions/migrate-images", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"migrated":12`)
}

func TestCheckSubscriptionEndpoint(t *testing.T) {
	server, deps := newTestServer()
	deps.biller.On("CheckSubscription", mock.Anything, "user-1", "ana@example.com").
		Return(&billing.SubscriptionStatus{Subscribed: true, Plan: "pro"}, nil)

	token := signToken(t, "user-1", "ana@example.com")
	rec := doJSON(server, "POST", "/functions/check-subscription", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"plan":"pro"`)
}

func TestStripeWebhookValidSignature(t *testing.T) {
	server, deps := newTestServer()
	deps.biller.On("HandleEvent", mock.Anything, mock.MatchedBy(func(e *billing.Event) bool {
		return e.Type == "customer.subscription.deleted"
	})).Return(nil)

	payload := []byte(`{"id":"evt_1","type":"customer.subscription.deleted","data":{"object":{}}}`)
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", billing.ComputeSignatureHeader(payload, time.Now().Unix(), testWebhookSecret))

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
	deps.biller.AssertExpectations(t)
}

func TestStripeWebhookInvalidSignature(t *testing.T) {
	server, deps := newTestServer()

	payload := []byte(`{"id":"evt_1","type":"customer.subscription.deleted"}`)
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=123,v1=bogus")

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	deps.biller.AssertNotCalled(t, "HandleEvent")
}

func TestListProductsEndpoint(t *testing.T) {
	server, deps := newTestServer()
	deps.store.On("ListProducts", mock.Anything, store.ProductFilter{
		Category: "Moda",
		OrderBy:  "trending_score",
		Limit:    10,
	}).Return([]models.ViralProduct{{ID: "prod-1", ProductName: "Vestido"}}, int64(1), nil)

	rec := doJSON(server, "GET", "/api/products?category=Moda&order_by=trending_score&limit=10", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
	assert.Contains(t, rec.Body.String(), "Vestido")
}

func TestExportProductsEndpoint(t *testing.T) {
	server, deps := newTestServer()
	deps.store.On("EnsureProfile", mock.Anything, "user-1", "ana@example.com").
		Return(&models.Profile{UserID: "user-1", Plan: "pro"}, nil)
	deps.store.On("ListProducts", mock.Anything, mock.Anything).
		Return([]models.ViralProduct{{ProductName: "Fone, viral"}}, int64(1), nil)

	token := signToken(t, "user-1", "ana@example.com")
	rec := doJSON(server, "GET", "/api/products/export", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "produtos-virais-")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\uFEFF"))
	assert.Contains(t, rec.Body.String(), `"Fone, viral"`)
}

func TestExportGatedForFreePlan(t *testing.T) {
	server, deps := newTestServer()
	deps.store.On("EnsureProfile", mock.Anything, "user-1", "ana@example.com").
		Return(&models.Profile{UserID: "user-1", Plan: "free"}, nil)

	token := signToken(t, "user-1", "ana@example.com")
	rec := doJSON(server, "GET", "/api/products/export", token, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRankingEndpoint(t *testing.T) {
	server, deps := newTestServer()
	change := 2
	deps.ranker.On("Ranking", mock.Anything, "week", mock.Anything).Return([]store.RankedProduct{
		{Product: models.ViralProduct{ID: "prod-1"}, Rank: 1, RankChange: &change},
	}, nil)

	rec := doJSON(server, "GET", "/api/ranking?period=week", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rank_change":2`)
}

func TestToggleSavedItemValidation(t *testing.T) {
	server, deps := newTestServer()
	token := signToken(t, "user-1", "ana@example.com")

	rec := doJSON(server, "POST", "/api/saved-items", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	productID := "prod-1"
	deps.store.On("ToggleSavedItem", mock.Anything, "user-1", &productID, (*string)(nil)).Return(true, nil)

	rec = doJSON(server, "POST", "/api/saved-items", token, map[string]string{"product_id": "prod-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"saved":true`)
}

func TestProfileEndpointIncludesLimits(t *testing.T) {
	server, deps := newTestServer()
	deps.store.On("EnsureProfile", mock.Anything, "user-1", "ana@example.com").
		Return(&models.Profile{UserID: "user-1", Plan: "starter"}, nil)

	token := signToken(t, "user-1", "ana@example.com")
	rec := doJSON(server, "GET", "/api/profile", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"searchesPerDay":20`)
}

func TestCORSPreflight(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		requestMethod string
	}{
		{name: "scrape function", path: "/functions/scrape-tiktok-products", requestMethod: "POST"},
		{name: "authed GET-only profile route", path: "/api/profile", requestMethod: "GET"},
		{name: "GET-only export route", path: "/api/products/export", requestMethod: "GET"},
		{name: "GET-only notifications route", path: "/api/notifications", requestMethod: "GET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer()
			req := httptest.NewRequest("OPTIONS", tt.path, nil)
			req.Header.Set("Origin", "https://app.example.com")
			req.Header.Set("Access-Control-Request-Method", tt.requestMethod)
			req.Header.Set("Access-Control-Request-Headers", "authorization")
			rec := httptest.NewRecorder()
			server.Router().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "authorization")
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), tt.requestMethod)
		})
	}
}
