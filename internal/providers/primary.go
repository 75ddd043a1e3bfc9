package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"

	"github.com/sirupsen/logrus"
)

// PrimaryProvider implements the tiktok-api23 search API
type PrimaryProvider struct {
	baseURL string
	fetcher *fetcher
}

type primarySearchResponse struct {
	Data []struct {
		Item *primaryItem `json:"item"`
		// Some entries carry the item at the top level instead
		primaryItem
	} `json:"data"`
}

type primaryItem struct {
	Desc  string `json:"desc"`
	Stats struct {
		PlayCount    int64 `json:"playCount"`
		DiggCount    int64 `json:"diggCount"`
		ShareCount   int64 `json:"shareCount"`
		CommentCount int64 `json:"commentCount"`
	} `json:"stats"`
	Author struct {
		UniqueID string `json:"uniqueId"`
		Nickname string `json:"nickname"`
	} `json:"author"`
	Video struct {
		Cover    string `json:"cover"`
		ID       string `json:"id"`
		Duration int    `json:"duration"`
	} `json:"video"`
}

// NewPrimaryProvider creates the primary vendor client. baseURL is the
// scheme+host, e.g. "https://tiktok-api23.p.rapidapi.com".
func NewPrimaryProvider(baseURL, apiKey string) *PrimaryProvider {
	return &PrimaryProvider{
		baseURL: baseURL,
		fetcher: newFetcher(apiKey),
	}
}

func (p *PrimaryProvider) Name() string {
	return "primary"
}

func (p *PrimaryProvider) Enabled() bool {
	return p.fetcher.apiKey != ""
}

func (p *PrimaryProvider) Search(ctx context.Context, query string) ([]Item, error) {
	// Random page offset gives some result variety across runs
	cursor := rand.Intn(2) * 10
	searchURL := fmt.Sprintf("%s/api/search/general?keyword=%s&count=20&cursor=%d",
		p.baseURL, url.QueryEscape(query), cursor)

	logrus.Debugf("[primary] Searching: %s", query)

	body, err := p.fetcher.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp primarySearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logrus.Errorf("[primary] Failed to parse response: %v", err)
		return nil, nil
	}

	var items []Item
	for _, entry := range resp.Data {
		raw := entry.Item
		if raw == nil {
			raw = &entry.primaryItem
		}
		if raw.Desc == "" && raw.Stats.PlayCount == 0 {
			continue
		}
		items = append(items, Item{
			Description:  raw.Desc,
			Views:        raw.Stats.PlayCount,
			Likes:        raw.Stats.DiggCount,
			Shares:       raw.Stats.ShareCount,
			Comments:     raw.Stats.CommentCount,
			AuthorHandle: raw.Author.UniqueID,
			AuthorName:   raw.Author.Nickname,
			CoverURL:     raw.Video.Cover,
			VideoID:      raw.Video.ID,
			Duration:     raw.Video.Duration,
		})
	}

	return items, nil
}
