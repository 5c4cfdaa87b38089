package models

import "time"

// InsightType classifies a single generated observation.
type InsightType string

const (
	InsightTypeSummary    InsightType = "summary"
	InsightTypeWarning    InsightType = "warning"
	InsightTypeSuggestion InsightType = "suggestion"
	InsightTypeTrend      InsightType = "trend"
	InsightTypeAnomaly    InsightType = "anomaly"
)

// GenerationSource records which engine produced an insight or narrative.
type GenerationSource string

const (
	SourceRuleEngine GenerationSource = "rule-engine"
	SourceAIModel    GenerationSource = "ai-model"
)

// NarrativeStatus drives the UI messaging around the optional AI narrative.
type NarrativeStatus string

const (
	NarrativeNotRequested NarrativeStatus = "not-requested"
	NarrativeGenerated    NarrativeStatus = "generated"
	NarrativeFailed       NarrativeStatus = "failed"
)

// Icon glyphs are a fixed presentation enum; the UI maps them to assets.
const (
	IconChartBar      = "chart-bar"
	IconAlertTriangle = "alert-triangle"
	IconLightbulb     = "lightbulb"
	IconTrendingUp    = "trending-up"
	IconZap           = "zap"
)

// InsightMetadata is a sparse, free-form context record. Which fields are
// populated varies by insight type; none are validated beyond shape.
type InsightMetadata struct {
	KPI       string   `json:"kpi,omitempty"`
	Dimension string   `json:"dimension,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	// Change is preformatted ("+50.0%" or "n/a") so non-numeric deltas
	// never leak a bogus finite number.
	Change string `json:"change,omitempty"`
	Period string `json:"period,omitempty"`
}

// Insight is one discrete observation over the compared groups. Insights are
// immutable once created and are only persisted inside a CachedInsightsPayload.
type Insight struct {
	ID          string           `json:"id"`
	DatasetID   string           `json:"datasetId"`
	Type        InsightType      `json:"type"`
	Severity    int              `json:"severity"` // 1..5, higher is more urgent
	Icon        string           `json:"icon"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Metadata    *InsightMetadata `json:"metadata,omitempty"`
	GeneratedBy GenerationSource `json:"generatedBy"`
	Confidence  float64          `json:"confidence"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// BusinessNarrative is the optional LLM-produced executive summary layered on
// top of the rule-engine insights.
type BusinessNarrative struct {
	Summary            string           `json:"summary"`
	RecommendedActions []string         `json:"recommendedActions"`
	Language           string           `json:"language"`
	GeneratedBy        GenerationSource `json:"generatedBy"`
	Confidence         float64          `json:"confidence"`
	GeneratedAt        time.Time        `json:"generatedAt"`
}

// CachedInsightsPayload is the cache value. A payload is immutable once
// cached; regeneration replaces the whole payload, never patches it.
type CachedInsightsPayload struct {
	Insights          []Insight          `json:"insights"`
	NarrativeStatus   NarrativeStatus    `json:"narrativeStatus"`
	BusinessNarrative *BusinessNarrative `json:"businessNarrative,omitempty"`
}

// DashboardFilters maps categorical field names to allowed values.
// Values within one field are OR-ed; fields are AND-ed together. An empty or
// absent list for a field means no constraint on that field.
type DashboardFilters struct {
	Categorical map[string][]string `json:"categorical,omitempty"`
}

// CacheContext qualifies a cache entry by language and prompt version so a
// regenerated prompt template never serves stale narratives.
type CacheContext struct {
	Language      string `json:"language"`
	PromptVersion string `json:"promptVersion"`
}
