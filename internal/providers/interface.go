package providers

import (
	"context"
	"errors"
)

// ErrExhausted signals that a provider cannot serve any more requests in
// this run (quota exceeded or vendor outage) and the caller should switch
// to the next provider.
var ErrExhausted = errors.New("provider exhausted")

// Item is the normalized shape shared by both vendor response formats.
type Item struct {
	Description  string
	Views        int64
	Likes        int64
	Shares       int64
	Comments     int64
	AuthorHandle string
	AuthorName   string
	CoverURL     string
	VideoID      string
	Duration     int // seconds
}

// Provider interface defines the contract for TikTok data vendors
type Provider interface {
	Name() string
	Enabled() bool
	// Search returns normalized items for a free-text query. An empty
	// slice means "no results for this query, try the next one";
	// ErrExhausted means "stop using this provider".
	Search(ctx context.Context, query string) ([]Item, error)
}
