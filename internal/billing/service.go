// Package billing keeps profiles.plan in sync with Stripe. Two redundant
// paths feed the same mapping: webhook events pushed by Stripe and a
// client-triggered poll against the live subscription list. Both skip
// profiles on the "master" plan, which is a manual override.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vyralhq/vyral-backend/internal/models"
)

const fallbackPlan = "starter"

// ProfileStore is the subset of the store the billing sync mutates.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdatePlan(ctx context.Context, userID, plan string) error
}

// SubscriptionStatus is the check-subscription response body.
type SubscriptionStatus struct {
	Subscribed      bool       `json:"subscribed"`
	Plan            string     `json:"plan"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty"`
	ProductID       string     `json:"product_id,omitempty"`
}

// Service is the billing sync service
type Service struct {
	stripe  StripeClient
	store   ProfileStore
	planMap map[string]string
}

// NewService creates a new billing service. planMap maps Stripe product
// IDs to plan names.
func NewService(stripe StripeClient, store ProfileStore, planMap map[string]string) *Service {
	return &Service{
		stripe:  stripe,
		store:   store,
		planMap: planMap,
	}
}

// planFor maps a Stripe product ID to a plan name, defaulting to starter
// for products missing from the map.
func (s *Service) planFor(productID string) string {
	if plan, ok := s.planMap[productID]; ok {
		return plan
	}
	return fallbackPlan
}

// HandleEvent applies one verified webhook event to the profile store.
// Unhandled event types are logged and acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	logrus.Infof("Processing Stripe event %s (%s)", event.ID, event.Type)

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return fmt.Errorf("failed to decode subscription event: %w", err)
		}

		switch sub.Status {
		case "active", "trialing":
			return s.applyPlanByCustomer(ctx, sub.Customer, s.planFor(sub.ProductID()))
		case "canceled", "unpaid", "past_due":
			return s.applyPlanByCustomer(ctx, sub.Customer, "free")
		}
		return nil

	case "customer.subscription.deleted":
		var sub Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return fmt.Errorf("failed to decode subscription event: %w", err)
		}
		return s.applyPlanByCustomer(ctx, sub.Customer, "free")

	case "invoice.payment_failed":
		var invoice Invoice
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return fmt.Errorf("failed to decode invoice event: %w", err)
		}
		logrus.Warnf("Payment failed for customer %s", invoice.Customer)
		return nil

	default:
		logrus.Debugf("Unhandled Stripe event type: %s", event.Type)
		return nil
	}
}

// applyPlanByCustomer resolves the Stripe customer to a local profile
// and writes the plan, unless the profile is on the master override.
func (s *Service) applyPlanByCustomer(ctx context.Context, customerID, plan string) error {
	customer, err := s.stripe.RetrieveCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to retrieve customer %s: %w", customerID, err)
	}
	if customer.Email == "" {
		return nil
	}

	profile, err := s.store.GetProfileByEmail(ctx, customer.Email)
	if err != nil {
		return fmt.Errorf("failed to look up profile for %s: %w", customer.Email, err)
	}
	if profile == nil {
		logrus.Debugf("No profile for Stripe customer %s, skipping", customerID)
		return nil
	}
	if profile.Plan == "master" {
		return nil
	}

	if err := s.store.UpdatePlan(ctx, profile.UserID, plan); err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	logrus.Infof("Updated %s to plan %s", customer.Email, plan)
	return nil
}

// CheckSubscription re-derives a user's plan from the live Stripe
// subscription list and syncs the profile row. A profile with no Stripe
// customer keeps a manually-set paid plan rather than being downgraded.
func (s *Service) CheckSubscription(ctx context.Context, userID, email string) (*SubscriptionStatus, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	currentPlan := "free"
	if profile != nil {
		currentPlan = profile.Plan
	}
	if currentPlan == "master" {
		return &SubscriptionStatus{Subscribed: true, Plan: "master"}, nil
	}

	customer, err := s.stripe.CustomerByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up Stripe customer: %w", err)
	}
	if customer == nil {
		if currentPlan != "free" {
			// Manually-set plan with no Stripe record, leave it alone
			return &SubscriptionStatus{Subscribed: false, Plan: currentPlan}, nil
		}
		if err := s.store.UpdatePlan(ctx, userID, "free"); err != nil {
			return nil, fmt.Errorf("failed to update plan: %w", err)
		}
		return &SubscriptionStatus{Subscribed: false, Plan: "free"}, nil
	}

	subscription, err := s.stripe.ActiveSubscription(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if subscription == nil {
		if err := s.store.UpdatePlan(ctx, userID, "free"); err != nil {
			return nil, fmt.Errorf("failed to update plan: %w", err)
		}
		return &SubscriptionStatus{Subscribed: false, Plan: "free"}, nil
	}

	plan := s.planFor(subscription.ProductID())
	if err := s.store.UpdatePlan(ctx, userID, plan); err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	end := subscription.PeriodEnd()
	return &SubscriptionStatus{
		Subscribed:      true,
		Plan:            plan,
		SubscriptionEnd: &end,
		ProductID:       subscription.ProductID(),
	}, nil
}

// CheckoutURL starts a subscription checkout and returns the hosted
// payment page URL.
func (s *Service) CheckoutURL(ctx context.Context, email, priceID, successURL, cancelURL string) (string, error) {
	session, err := s.stripe.CreateCheckoutSession(ctx, email, priceID, successURL, cancelURL)
	if err != nil {
		return "", err
	}
	return session.URL, nil
}

// PortalURL opens the billing portal for the user's Stripe customer.
func (s *Service) PortalURL(ctx context.Context, email, returnURL string) (string, error) {
	customer, err := s.stripe.CustomerByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up Stripe customer: %w", err)
	}
	if customer == nil {
		return "", fmt.Errorf("no Stripe customer for %s", email)
	}

	session, err := s.stripe.CreatePortalSession(ctx, customer.ID, returnURL)
	if err != nil {
		return "", err
	}
	return session.URL, nil
}
