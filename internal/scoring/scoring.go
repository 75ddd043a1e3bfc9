// Package scoring derives the presentation heuristics shown on the
// dashboard: a bounded trending score from log-scaled engagement and a
// linear revenue/sales estimate from view counts.
package scoring

import "math"

const (
	scoreFloor   = 40
	scoreCeiling = 100

	// Engagement-rate bonus is capped so a tiny video with a huge rate
	// cannot out-rank genuinely large engagement numbers.
	rateBonusCap = 25.0

	revenuePerView = 0.02
	salesPerView   = 0.001
)

// TrendingScore maps raw engagement counters to a score in [40,100].
// Monotonic non-decreasing in likes+shares and in engagementRate.
func TrendingScore(likes, shares int64, engagementRate float64) int {
	engagement := float64(likes + shares)
	if engagement < 1 {
		engagement = 1
	}
	if engagementRate < 0 {
		engagementRate = 0
	}

	bonus := engagementRate * 3
	if bonus > rateBonusCap {
		bonus = rateBonusCap
	}

	score := int(math.Round(float64(scoreFloor) + 8*math.Log10(engagement) + bonus))
	if score < scoreFloor {
		score = scoreFloor
	}
	if score > scoreCeiling {
		score = scoreCeiling
	}
	return score
}

// RevenueEstimate is a linear heuristic over view count.
func RevenueEstimate(views int64) float64 {
	if views < 0 {
		return 0
	}
	return math.Round(float64(views) * revenuePerView)
}

// SalesEstimate is a linear heuristic over view count.
func SalesEstimate(views int64) int64 {
	if views < 0 {
		return 0
	}
	return int64(math.Round(float64(views) * salesPerView))
}

// EngagementRate returns interactions per view as a percentage.
func EngagementRate(likes, shares, comments, views int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(likes+shares+comments) / float64(views) * 100
}
