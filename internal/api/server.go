// Package api exposes the dashboard's HTTP surface: the scrape/AI
// function endpoints, the Stripe webhook and the CRUD routes backing
// the React frontend.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vyralhq/vyral-backend/internal/billing"
	"github.com/vyralhq/vyral-backend/internal/llm"
	"github.com/vyralhq/vyral-backend/internal/pipeline"
	"github.com/vyralhq/vyral-backend/internal/store"
)

// ImageProxy serves and migrates re-hosted cover images.
type ImageProxy interface {
	Enabled() bool
	Fetch(ctx context.Context, imageURL string) ([]byte, string, error)
	MigratePending(ctx context.Context, limit int) (int, error)
}

// Scraper runs scrape jobs on demand.
type Scraper interface {
	ScrapeProducts(ctx context.Context, query, category string) (*pipeline.Result, error)
	ScrapeVideos(ctx context.Context, query string) (*pipeline.Result, error)
}

// Biller syncs plans with Stripe and opens billing sessions.
type Biller interface {
	HandleEvent(ctx context.Context, event *billing.Event) error
	CheckSubscription(ctx context.Context, userID, email string) (*billing.SubscriptionStatus, error)
	CheckoutURL(ctx context.Context, email, priceID, successURL, cancelURL string) (string, error)
	PortalURL(ctx context.Context, email, returnURL string) (string, error)
}

// AIService drives the LLM-backed features.
type AIService interface {
	TranscribeVideos(ctx context.Context, videoID string, limit int) (*llm.TranscribeResult, error)
	GenerateScript(ctx context.Context, prompt string) (*llm.Script, error)
}

// Ranker serves the ranking board.
type Ranker interface {
	Ranking(ctx context.Context, period string, now time.Time) ([]store.RankedProduct, error)
}

// Server carries the handler dependencies
type Server struct {
	store   store.Store
	scraper Scraper
	biller  Biller
	ai      AIService
	ranker  Ranker
	images  ImageProxy

	jwtSecret     string
	webhookSecret string
}

// NewServer creates the HTTP server wiring
func NewServer(st store.Store, scraper Scraper, biller Biller, ai AIService, ranker Ranker, images ImageProxy, jwtSecret, webhookSecret string) *Server {
	return &Server{
		store:         st,
		scraper:       scraper,
		biller:        biller,
		ai:            ai,
		ranker:        ranker,
		images:        images,
		jwtSecret:     jwtSecret,
		webhookSecret: webhookSecret,
	}
}

// Router builds the route table. The CORS layer wraps the whole router
// rather than registering per route: mux skips Use middleware on method
// mismatches, which would leave preflights on GET-only routes without
// the Access-Control headers.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Function-style endpoints the dashboard invokes directly
	router.HandleFunc("/functions/scrape-tiktok-products", s.handleScrapeProducts).Methods("POST")
	router.HandleFunc("/functions/scrape-tiktok-videos", s.handleScrapeVideos).Methods("POST")
	router.HandleFunc("/functions/transcribe-videos", s.authMiddleware(s.requirePlanFeature("transcriptions", s.handleTranscribeVideos))).Methods("POST")
	router.HandleFunc("/functions/generate-video", s.authMiddleware(s.requirePlanFeature("aiScripts", s.handleGenerateVideo))).Methods("POST")
	router.HandleFunc("/functions/image-proxy", s.handleImageProxy).Methods("POST")
	router.HandleFunc("/functions/migrate-images", s.authMiddleware(s.requireAdmin(s.handleMigrateImages))).Methods("POST")
	router.HandleFunc("/functions/check-subscription", s.authMiddleware(s.handleCheckSubscription)).Methods("POST")
	router.HandleFunc("/functions/create-checkout", s.authMiddleware(s.handleCreateCheckout)).Methods("POST")
	router.HandleFunc("/functions/customer-portal", s.authMiddleware(s.handleCustomerPortal)).Methods("POST")

	// Stripe pushes events here
	router.HandleFunc("/webhooks/stripe", s.handleStripeWebhook).Methods("POST")

	// Dashboard data
	router.HandleFunc("/api/products", s.handleListProducts).Methods("GET")
	router.HandleFunc("/api/products/export", s.authMiddleware(s.requirePlanFeature("aiScripts", s.handleExportProducts))).Methods("GET")
	router.HandleFunc("/api/videos", s.handleListVideos).Methods("GET")
	router.HandleFunc("/api/ranking", s.handleRanking).Methods("GET")

	router.HandleFunc("/api/profile", s.authMiddleware(s.handleProfile)).Methods("GET")
	router.HandleFunc("/api/saved-items", s.authMiddleware(s.handleListSavedItems)).Methods("GET")
	router.HandleFunc("/api/saved-items", s.authMiddleware(s.handleToggleSavedItem)).Methods("POST")
	router.HandleFunc("/api/notifications", s.authMiddleware(s.handleListNotifications)).Methods("GET")
	router.HandleFunc("/api/notifications/{id}/read", s.authMiddleware(s.handleMarkNotificationRead)).Methods("POST")

	return corsMiddleware(router)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
