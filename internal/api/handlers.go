package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/vyralhq/vyral-backend/internal/billing"
	"github.com/vyralhq/vyral-backend/internal/export"
	"github.com/vyralhq/vyral-backend/internal/images"
	"github.com/vyralhq/vyral-backend/internal/plans"
	"github.com/vyralhq/vyral-backend/internal/store"
)

const maxWebhookBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// requirePlanFeature gates a handler behind the plan table.
func (s *Server) requirePlanFeature(feature string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := s.store.EnsureProfile(r.Context(), userIDFrom(r.Context()), emailFrom(r.Context()))
		if err != nil {
			logrus.Errorf("Failed to load profile: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
		if !plans.CanAccessFeature(profile.Plan, feature) {
			writeError(w, http.StatusForbidden, "Recurso disponível a partir do plano Pro.")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// requireAdmin gates a handler behind the user_roles table.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		isAdmin, err := s.store.IsAdmin(r.Context(), userIDFrom(r.Context()))
		if err != nil {
			logrus.Errorf("Failed to check admin role: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to check role")
			return
		}
		if !isAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) handleScrapeProducts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query    string `json:"query"`
		Category string `json:"category"`
	}
	decodeOptional(r, &body)

	result, err := s.scraper.ScrapeProducts(r.Context(), body.Query, body.Category)
	if err != nil {
		logrus.Errorf("Product scrape failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": result.Message,
		"count":   result.Count,
		"source":  result.Source,
	})
}

func (s *Server) handleScrapeVideos(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	decodeOptional(r, &body)

	result, err := s.scraper.ScrapeVideos(r.Context(), body.Query)
	if err != nil {
		logrus.Errorf("Video scrape failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": result.Message,
		"count":   result.Count,
		"source":  result.Source,
	})
}

func (s *Server) handleTranscribeVideos(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VideoID string `json:"video_id"`
		Limit   int    `json:"limit"`
	}
	decodeOptional(r, &body)

	result, err := s.ai.TranscribeVideos(r.Context(), body.VideoID, body.Limit)
	if err != nil {
		logrus.Errorf("Transcription failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": result.Message,
		"count":   result.Count,
	})
}

func (s *Server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
		Prompt string `json:"prompt"`
	}
	decodeOptional(r, &body)

	switch body.Action {
	case "generate":
		script, err := s.ai.GenerateScript(r.Context(), body.Prompt)
		if err != nil {
			logrus.Errorf("Script generation failed: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":       true,
			"script":        script.Script,
			"message":       script.Message,
			"operationName": script.OperationName,
		})

	case "poll":
		// Generation is synchronous; polling clients complete immediately
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"done":    true,
			"message": "Script gerado com sucesso!",
		})

	default:
		writeError(w, http.StatusBadRequest, `Invalid action. Use "generate" or "poll".`)
	}
}

func (s *Server) handleImageProxy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	data, contentType, err := s.images.Fetch(r.Context(), body.URL)
	if err != nil {
		// CDN refused us; hand the client a public proxy instead
		http.Redirect(w, r, images.FallbackProxyURL(body.URL), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleMigrateImages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Limit int `json:"limit"`
	}
	decodeOptional(r, &body)
	if body.Limit <= 0 {
		body.Limit = 50
	}

	migrated, err := s.images.MigratePending(r.Context(), body.Limit)
	if err != nil {
		logrus.Errorf("Image migration failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"migrated": migrated,
	})
}

func (s *Server) handleCheckSubscription(w http.ResponseWriter, r *http.Request) {
	status, err := s.biller.CheckSubscription(r.Context(), userIDFrom(r.Context()), emailFrom(r.Context()))
	if err != nil {
		logrus.Errorf("Subscription check failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PriceID    string `json:"price_id"`
		SuccessURL string `json:"success_url"`
		CancelURL  string `json:"cancel_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PriceID == "" {
		writeError(w, http.StatusBadRequest, "price_id is required")
		return
	}

	url, err := s.biller.CheckoutURL(r.Context(), emailFrom(r.Context()), body.PriceID, body.SuccessURL, body.CancelURL)
	if err != nil {
		logrus.Errorf("Checkout session failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleCustomerPortal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReturnURL string `json:"return_url"`
	}
	decodeOptional(r, &body)

	url, err := s.biller.PortalURL(r.Context(), emailFrom(r.Context()), body.ReturnURL)
	if err != nil {
		logrus.Errorf("Portal session failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := billing.VerifySignature(payload, signature, s.webhookSecret, billing.DefaultSignatureTolerance); err != nil {
		logrus.Warnf("Webhook signature verification failed: %v", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var event billing.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	if err := s.biller.HandleEvent(r.Context(), &event); err != nil {
		logrus.Errorf("Webhook handler error: %v", err)
		writeError(w, http.StatusInternalServerError, "webhook handler error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	filter := store.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		OrderBy:  r.URL.Query().Get("order_by"),
		Limit:    intParam(r, "limit"),
		Offset:   intParam(r, "offset"),
	}

	products, total, err := s.store.ListProducts(r.Context(), filter)
	if err != nil {
		logrus.Errorf("Failed to list products: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    total,
	})
}

func (s *Server) handleExportProducts(w http.ResponseWriter, r *http.Request) {
	filter := store.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		OrderBy:  r.URL.Query().Get("order_by"),
		Limit:    1000,
	}

	products, _, err := s.store.ListProducts(r.Context(), filter)
	if err != nil {
		logrus.Errorf("Failed to export products: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to export products")
		return
	}

	filename := fmt.Sprintf("produtos-virais-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(export.Render(export.ProductColumns, products))
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	filter := store.VideoFilter{
		Search:  r.URL.Query().Get("search"),
		OrderBy: r.URL.Query().Get("order_by"),
		Limit:   intParam(r, "limit"),
		Offset:  intParam(r, "offset"),
	}

	videos, total, err := s.store.ListVideos(r.Context(), filter)
	if err != nil {
		logrus.Errorf("Failed to list videos: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"videos": videos,
		"total":  total,
	})
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "today"
	}

	ranking, err := s.ranker.Ranking(r.Context(), period, time.Now())
	if err != nil {
		logrus.Errorf("Failed to build ranking: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to build ranking")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ranking": ranking})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.EnsureProfile(r.Context(), userIDFrom(r.Context()), emailFrom(r.Context()))
	if err != nil {
		logrus.Errorf("Failed to load profile: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": profile,
		"limits":  plans.GetLimits(profile.Plan),
	})
}

func (s *Server) handleListSavedItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListSavedItems(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		logrus.Errorf("Failed to list saved items: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list saved items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleToggleSavedItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID *string `json:"product_id"`
		VideoID   *string `json:"video_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if (body.ProductID == nil) == (body.VideoID == nil) {
		writeError(w, http.StatusBadRequest, "exactly one of product_id or video_id is required")
		return
	}

	saved, err := s.store.ToggleSavedItem(r.Context(), userIDFrom(r.Context()), body.ProductID, body.VideoID)
	if err != nil {
		logrus.Errorf("Failed to toggle saved item: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle saved item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.store.ListNotifications(r.Context(), userIDFrom(r.Context()), intParam(r, "limit"))
	if err != nil {
		logrus.Errorf("Failed to list notifications: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.MarkNotificationRead(r.Context(), userIDFrom(r.Context()), id); err != nil {
		logrus.Errorf("Failed to mark notification read: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decodeOptional tolerates empty or absent request bodies.
func decodeOptional(r *http.Request, v interface{}) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(v)
}

func intParam(r *http.Request, name string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return value
}
