package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// FallbackProvider implements the tiktok-scraper7 feed search API, used
// when the primary vendor is exhausted. Same contract, different JSON
// shape (snake_case fields, videos nested under data).
type FallbackProvider struct {
	baseURL string
	region  string
	fetcher *fetcher
}

type fallbackSearchResponse struct {
	Data json.RawMessage `json:"data"`
}

type fallbackVideoList struct {
	Videos []fallbackVideo `json:"videos"`
}

type fallbackVideo struct {
	Title      string `json:"title"`
	Desc       string `json:"desc"`
	PlayCount  int64  `json:"play_count"`
	DiggCount  int64  `json:"digg_count"`
	ShareCount int64  `json:"share_count"`
	Comments   int64  `json:"comment_count"`
	Author     struct {
		UniqueID string `json:"unique_id"`
		Nickname string `json:"nickname"`
	} `json:"author"`
	Cover       string `json:"cover"`
	OriginCover string `json:"origin_cover"`
	VideoID     string `json:"video_id"`
	ID          string `json:"id"`
	Duration    int    `json:"duration"`
}

// NewFallbackProvider creates the fallback vendor client
func NewFallbackProvider(baseURL, apiKey, region string) *FallbackProvider {
	return &FallbackProvider{
		baseURL: baseURL,
		region:  strings.ToLower(region),
		fetcher: newFetcher(apiKey),
	}
}

func (p *FallbackProvider) Name() string {
	return "fallback"
}

func (p *FallbackProvider) Enabled() bool {
	return p.fetcher.apiKey != ""
}

func (p *FallbackProvider) Search(ctx context.Context, query string) ([]Item, error) {
	searchURL := fmt.Sprintf("%s/feed/search?keywords=%s&count=20&cursor=0&region=%s&publish_time=0&sort_type=0",
		p.baseURL, url.QueryEscape(query), p.region)

	logrus.Debugf("[fallback] Searching: %s", query)

	body, err := p.fetcher.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp fallbackSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logrus.Errorf("[fallback] Failed to parse response: %v", err)
		return nil, nil
	}

	// data is either {videos: [...]} or a bare array
	var videos []fallbackVideo
	var list fallbackVideoList
	if err := json.Unmarshal(resp.Data, &list); err == nil && len(list.Videos) > 0 {
		videos = list.Videos
	} else if err := json.Unmarshal(resp.Data, &videos); err != nil {
		logrus.Debugf("[fallback] Unrecognized data shape: %v", err)
		return nil, nil
	}

	var items []Item
	for _, v := range videos {
		desc := v.Title
		if desc == "" {
			desc = v.Desc
		}
		cover := v.Cover
		if cover == "" {
			cover = v.OriginCover
		}
		videoID := v.VideoID
		if videoID == "" {
			videoID = v.ID
		}
		items = append(items, Item{
			Description:  desc,
			Views:        v.PlayCount,
			Likes:        v.DiggCount,
			Shares:       v.ShareCount,
			Comments:     v.Comments,
			AuthorHandle: v.Author.UniqueID,
			AuthorName:   v.Author.Nickname,
			CoverURL:     cover,
			VideoID:      videoID,
			Duration:     v.Duration,
		})
	}

	return items, nil
}
