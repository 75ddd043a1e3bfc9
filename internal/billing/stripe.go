package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// Customer is the slice of the Stripe customer object we read.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Price carries the product reference used for plan mapping.
type Price struct {
	ID      string `json:"id"`
	Product string `json:"product"`
}

// SubscriptionItem is one line of a subscription.
type SubscriptionItem struct {
	Price Price `json:"price"`
}

// Subscription is the slice of the Stripe subscription object we read.
type Subscription struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// ProductID returns the product of the first subscription item.
func (s *Subscription) ProductID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.Product
}

// PeriodEnd converts the Unix expiry to a time.
func (s *Subscription) PeriodEnd() time.Time {
	return time.Unix(s.CurrentPeriodEnd, 0).UTC()
}

// Invoice is the slice of the Stripe invoice object we read.
type Invoice struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

// Event is a Stripe webhook event envelope. Data.Object is decoded
// per event type.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the slice of the checkout session object we read.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PortalSession is the slice of the billing portal session we read.
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StripeClient is the outbound Stripe surface the billing service needs.
type StripeClient interface {
	CustomerByEmail(ctx context.Context, email string) (*Customer, error)
	RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error)
	ActiveSubscription(ctx context.Context, customerID string) (*Subscription, error)
	CreateCheckoutSession(ctx context.Context, email, priceID, successURL, cancelURL string) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)
}

// RestClient talks to the Stripe REST API with form-encoded requests.
type RestClient struct {
	client *resty.Client
}

// Ensure RestClient implements StripeClient
var _ StripeClient = (*RestClient)(nil)

// NewRestClient creates a Stripe REST client authenticated with the
// secret key.
func NewRestClient(secretKey string) *RestClient {
	return &RestClient{
		client: resty.New().
			SetBaseURL(stripeAPIBase).
			SetAuthToken(secretKey).
			SetTimeout(15 * time.Second),
	}
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

// CustomerByEmail returns the first customer matching the email, or nil
// when Stripe knows no such customer.
func (c *RestClient) CustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	var out listEnvelope[Customer]
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"email": email, "limit": "1"}).
		SetResult(&out).
		Get("/customers")
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("stripe customers list returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	return &out.Data[0], nil
}

// RetrieveCustomer fetches one customer by ID.
func (c *RestClient) RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var out Customer
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/customers/" + customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve customer %s: %w", customerID, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("stripe customer retrieve returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// ActiveSubscription returns the customer's first active subscription,
// or nil when there is none.
func (c *RestClient) ActiveSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	var out listEnvelope[Subscription]
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"customer": customerID,
			"status":   "active",
			"limit":    "1",
		}).
		SetResult(&out).
		Get("/subscriptions")
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("stripe subscriptions list returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	return &out.Data[0], nil
}

// CreateCheckoutSession starts a subscription checkout for the given
// price and returns the hosted payment page.
func (c *RestClient) CreateCheckoutSession(ctx context.Context, email, priceID, successURL, cancelURL string) (*CheckoutSession, error) {
	var out CheckoutSession
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"mode":                    "subscription",
			"customer_email":          email,
			"line_items[0][price]":    priceID,
			"line_items[0][quantity]": "1",
			"success_url":             successURL,
			"cancel_url":              cancelURL,
		}).
		SetResult(&out).
		Post("/checkout/sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("stripe checkout session returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// CreatePortalSession opens the Stripe billing portal for a customer.
func (c *RestClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	var out PortalSession
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"customer":   customerID,
			"return_url": returnURL,
		}).
		SetResult(&out).
		Post("/billing_portal/sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("stripe portal session returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}
