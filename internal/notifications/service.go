package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/vyralhq/vyral-backend/internal/config"
	"github.com/vyralhq/vyral-backend/internal/models"
)

const (
	// Products at or above this score raise a trending alert
	trendingThreshold = 90

	// How far back to look when suppressing repeat alerts for a product
	alertCooldown = 24 * time.Hour

	scanLimit = 20
)

// Store is the subset of the persistence layer the alert flow uses.
type Store interface {
	TopProducts(ctx context.Context, limit int) ([]models.ViralProduct, error)
	HasNotificationForProduct(ctx context.Context, productID string, since time.Time) (bool, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Service raises trending-product alerts as notification rows and,
// when SMTP is configured, as a digest email
type Service struct {
	config *config.Config
	store  Store
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// NewService creates a new notification service
func NewService(cfg *config.Config, store Store) *Service {
	return &Service{config: cfg, store: store}
}

// NotifyTrending scans the current top products and creates a broadcast
// notification for each one crossing the trending threshold. Alerts for
// the same product are suppressed for a day.
func (s *Service) NotifyTrending(ctx context.Context) (int, error) {
	products, err := s.store.TopProducts(ctx, scanLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to load top products: %w", err)
	}

	var alerted []models.ViralProduct
	for _, product := range products {
		if product.TrendingScore < trendingThreshold {
			continue
		}

		exists, err := s.store.HasNotificationForProduct(ctx, product.ID, time.Now().Add(-alertCooldown))
		if err != nil {
			logrus.Errorf("Failed to check existing alerts for product %s: %v", product.ID, err)
			continue
		}
		if exists {
			continue
		}

		productID := product.ID
		notification := &models.Notification{
			UserID:        nil, // broadcast
			ProductID:     &productID,
			Type:          "trending",
			Title:         "Produto em alta 🔥",
			Message:       fmt.Sprintf("%s atingiu score %d de tendência", product.ProductName, product.TrendingScore),
			TrendingScore: product.TrendingScore,
		}
		if err := s.store.CreateNotification(ctx, notification); err != nil {
			logrus.Errorf("Failed to create notification for product %s: %v", product.ID, err)
			continue
		}
		alerted = append(alerted, product)
	}

	if len(alerted) > 0 && s.emailConfigured() {
		if err := s.sendDigestEmail(alerted); err != nil {
			logrus.Errorf("Failed to send alert email: %v", err)
		} else {
			logrus.Infof("Sent trending alert email for %d products", len(alerted))
		}
	}

	return len(alerted), nil
}

func (s *Service) emailConfigured() bool {
	return s.config.SMTPHost != "" && s.config.AlertEmail != ""
}

func (s *Service) sendDigestEmail(products []models.ViralProduct) error {
	subject := fmt.Sprintf("Vyral: %d produtos em alta", len(products))

	htmlBody, err := s.buildEmailHTML(products)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.AlertEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.buildEmailText(products))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var emailTemplate = template.Must(template.New("alert").Parse(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Produtos em alta</title></head>
<body style="font-family: Arial, sans-serif;">
	<h1>Produtos em alta no TikTok Shop</h1>
	{{range .}}
	<div style="border-left: 4px solid #e91e63; padding: 10px; margin: 10px 0;">
		<strong>{{.ProductName}}</strong><br>
		Score: {{.TrendingScore}} | Views: {{.VideoViews}} | Loja: {{.ShopName}}<br>
		{{if .TikTokURL}}<a href="{{.TikTokURL}}">Ver no TikTok</a>{{end}}
	</div>
	{{end}}
</body>
</html>
`))

func (s *Service) buildEmailHTML(products []models.ViralProduct) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, products); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Service) buildEmailText(products []models.ViralProduct) string {
	var text strings.Builder
	text.WriteString("Produtos em alta no TikTok Shop\n")
	text.WriteString("===============================\n")

	for i, product := range products {
		text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, product.ProductName))
		text.WriteString(fmt.Sprintf("   Score: %d | Views: %d | Loja: %s\n",
			product.TrendingScore, product.VideoViews, product.ShopName))
		if product.TikTokURL != "" {
			text.WriteString(fmt.Sprintf("   %s\n", product.TikTokURL))
		}
	}
	return text.String()
}
