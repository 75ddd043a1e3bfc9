// Package plans holds the static subscription tiers and the feature-gate
// lookup. Plans are data, not behavior: the only authorization state in
// the system is the plan string on the user's profile.
package plans

// Feature names accepted by CanAccessFeature.
const (
	FeatureTranscriptions = "transcriptions"
	FeatureAIScripts      = "aiScripts"
	FeatureAlerts         = "alerts"
)

// Unlimited marks a quota with no daily cap.
const Unlimited = -1

// Limits is the per-tier feature matrix.
type Limits struct {
	SearchesPerDay int  `json:"searchesPerDay"`
	Transcriptions bool `json:"transcriptions"`
	AIScripts      bool `json:"aiScripts"`
	Alerts         bool `json:"alerts"`
}

// Plan describes one subscription tier.
type Plan struct {
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Limits Limits  `json:"limits"`
}

// Table maps plan keys to their tiers. "free" is intentionally absent:
// unknown plans fall back to starter limits, which is also the free
// behavior the dashboard expects.
var Table = map[string]Plan{
	"starter": {
		Name:  "Starter",
		Price: 29.9,
		Limits: Limits{
			SearchesPerDay: 20,
			Transcriptions: false,
			AIScripts:      false,
			Alerts:         false,
		},
	},
	"pro": {
		Name:  "Pro",
		Price: 60,
		Limits: Limits{
			SearchesPerDay: Unlimited,
			Transcriptions: true,
			AIScripts:      true,
			Alerts:         true,
		},
	},
	"business": {
		Name:  "Business",
		Price: 120,
		Limits: Limits{
			SearchesPerDay: Unlimited,
			Transcriptions: true,
			AIScripts:      true,
			Alerts:         true,
		},
	},
	"master": {
		Name:  "Master",
		Price: 0,
		Limits: Limits{
			SearchesPerDay: Unlimited,
			Transcriptions: true,
			AIScripts:      true,
			Alerts:         true,
		},
	},
}

// GetLimits returns the limits for a plan, falling back to starter for
// unknown plans (including "free").
func GetLimits(plan string) Limits {
	if p, ok := Table[plan]; ok {
		return p.Limits
	}
	return Table["starter"].Limits
}

// CanAccessFeature reports whether a plan may use a gated feature.
// "master" is an unconditional override.
func CanAccessFeature(plan, feature string) bool {
	if plan == "master" {
		return true
	}

	limits := GetLimits(plan)
	switch feature {
	case FeatureTranscriptions:
		return limits.Transcriptions
	case FeatureAIScripts:
		return limits.AIScripts
	case FeatureAlerts:
		return limits.Alerts
	default:
		return false
	}
}
