package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const searchRetries = 2

// fetcher is the one retrying HTTP GET shared by both vendor clients.
// Only 429 responses are retried; everything else resolves immediately.
type fetcher struct {
	client          *resty.Client
	apiKey          string
	initialInterval time.Duration
}

func newFetcher(apiKey string) *fetcher {
	return &fetcher{
		client:          resty.New().SetTimeout(30 * time.Second),
		apiKey:          apiKey,
		initialInterval: 2 * time.Second,
	}
}

// get issues a RapidAPI GET and returns the raw body. It retries 429s
// with exponential backoff and returns ErrExhausted once retries are spent
// or the transport fails, so the pipeline can move to the fallback vendor.
// Non-429 error statuses and empty bodies return (nil, nil): treated as
// "no results", the caller just tries its next query string.
func (f *fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	hostHeader := ""
	if u, err := url.Parse(rawURL); err == nil {
		hostHeader = u.Host
	}

	var body []byte

	operation := func() error {
		resp, err := f.client.R().
			SetContext(ctx).
			SetHeader("X-RapidAPI-Key", f.apiKey).
			SetHeader("X-RapidAPI-Host", hostHeader).
			Get(rawURL)

		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrExhausted, err))
		}

		if resp.StatusCode() == http.StatusTooManyRequests {
			logrus.Warnf("Rate limited by %s, backing off", hostHeader)
			return fmt.Errorf("rate limited (429)")
		}

		if !resp.IsSuccess() || len(resp.Body()) == 0 {
			logrus.Debugf("Provider %s returned status %d with %d bytes", hostHeader, resp.StatusCode(), len(resp.Body()))
			body = nil
			return nil
		}

		body = resp.Body()
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialInterval
	b.MaxInterval = 8 * time.Second
	b.Multiplier = 2.0

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, searchRetries), ctx)); err != nil {
		// Retries spent on 429s, or a permanent transport failure
		return nil, fmt.Errorf("%w: %v", ErrExhausted, err)
	}

	return body, nil
}
