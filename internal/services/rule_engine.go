package services

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/compara-core/internal/config"
	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

// ruleEngineConfidence is fixed near 1.0: the engine is deterministic, not
// probabilistic.
const ruleEngineConfidence = 0.95

// Delta is the group A vs group B relative change for one metric.
// Defined is false when B = 0 and A != 0; such deltas must render as "n/a",
// never as a finite number.
type Delta struct {
	Pct     float64
	Defined bool
	Trend   string // "up" | "down" | "neutral"
}

// Format renders the delta for human-readable messages.
func (d Delta) Format() string {
	if !d.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", d.Pct)
}

// KPIComparison is the overall A-vs-B aggregate for one KPI column.
type KPIComparison struct {
	KPI   models.KPIField
	SumA  float64
	SumB  float64
	Delta Delta
}

// DimensionalComparison is the A-vs-B gap for one KPI restricted to one
// category of one categorical dimension.
type DimensionalComparison struct {
	Dimension string
	Category  string
	KPI       models.KPIField
	SumA      float64
	SumB      float64
	Delta     Delta
}

// Analysis is the deterministic statistical picture a single request sees.
// Both the insight synthesis and the narrative prompt are grounded on it.
type Analysis struct {
	FilteredRows int
	KPIs         []KPIComparison
	Dimensions   []DimensionalComparison
}

// TopSegments returns the n dimensional comparisons with the largest positive
// relative gap, best first.
func (a *Analysis) TopSegments(n int) []DimensionalComparison {
	var positive []DimensionalComparison
	for _, dc := range a.Dimensions {
		if dc.Delta.Defined && dc.Delta.Pct > 0 {
			positive = append(positive, dc)
		}
	}
	sort.SliceStable(positive, func(i, j int) bool {
		return positive[i].Delta.Pct > positive[j].Delta.Pct
	})
	if len(positive) > n {
		positive = positive[:n]
	}
	return positive
}

// WeakestKPIs returns the n KPI comparisons with the largest negative
// relative gap, worst first.
func (a *Analysis) WeakestKPIs(n int) []KPIComparison {
	var negative []KPIComparison
	for _, kc := range a.KPIs {
		if kc.Delta.Defined && kc.Delta.Pct < 0 {
			negative = append(negative, kc)
		}
	}
	sort.SliceStable(negative, func(i, j int) bool {
		return negative[i].Delta.Pct < negative[j].Delta.Pct
	})
	if len(negative) > n {
		negative = negative[:n]
	}
	return negative
}

// RuleEngine computes deterministic statistical insights over filtered
// dataset rows. Pure in-memory computation, no I/O.
type RuleEngine struct {
	cfg    config.InsightsConfig
	logger logger.Logger
}

func NewRuleEngine(cfg config.InsightsConfig, log logger.Logger) *RuleEngine {
	return &RuleEngine{cfg: cfg, logger: log}
}

// GenerateInsights runs the full pipeline: filter, aggregate, compare,
// synthesize. Empty filtered data yields an empty slice, never an error.
func (e *RuleEngine) GenerateInsights(dataset *models.Dataset, filters models.DashboardFilters) []models.Insight {
	analysis := e.Analyze(dataset, filters)
	return e.Synthesize(dataset, analysis)
}

// Analyze filters the rows and computes every KPI and dimensional comparison.
func (e *RuleEngine) Analyze(dataset *models.Dataset, filters models.DashboardFilters) *Analysis {
	rows := filterRows(dataset.Rows, filters)
	analysis := &Analysis{FilteredRows: len(rows)}
	if len(rows) == 0 {
		return analysis
	}

	for _, kpi := range dataset.Schema.KPIFields {
		sumA, sumB := sumByGroup(rows, kpi.ColumnName)
		analysis.KPIs = append(analysis.KPIs, KPIComparison{
			KPI:   kpi,
			SumA:  sumA,
			SumB:  sumB,
			Delta: e.computeDelta(sumA, sumB),
		})
	}

	for _, dim := range dataset.Schema.CategoricalFields {
		for _, category := range categoriesOf(rows, dim) {
			scoped := rowsWithCategory(rows, dim, category)
			for _, kpi := range dataset.Schema.KPIFields {
				sumA, sumB := sumByGroup(scoped, kpi.ColumnName)
				if sumA == 0 && sumB == 0 {
					continue
				}
				analysis.Dimensions = append(analysis.Dimensions, DimensionalComparison{
					Dimension: dim,
					Category:  category,
					KPI:       kpi,
					SumA:      sumA,
					SumB:      sumB,
					Delta:     e.computeDelta(sumA, sumB),
				})
			}
		}
	}

	// Rank dimensional comparisons by gap magnitude; undefined deltas last.
	sort.SliceStable(analysis.Dimensions, func(i, j int) bool {
		di, dj := analysis.Dimensions[i].Delta, analysis.Dimensions[j].Delta
		if di.Defined != dj.Defined {
			return di.Defined
		}
		return abs(di.Pct) > abs(dj.Pct)
	})

	return analysis
}

// Synthesize turns an analysis into ordered insight records: summary first,
// then warnings, a suggestion for the weakest KPI, a trend for the top
// performer, and anomalies for outsized dimensional gaps.
func (e *RuleEngine) Synthesize(dataset *models.Dataset, analysis *Analysis) []models.Insight {
	if analysis.FilteredRows == 0 || len(analysis.KPIs) == 0 {
		e.logger.Debug("No rows after filtering, zero insights", "dataset_id", dataset.ID)
		return []models.Insight{}
	}

	now := time.Now().UTC()
	insights := []models.Insight{e.summaryInsight(dataset, analysis, now)}

	for _, kc := range analysis.KPIs {
		if kc.Delta.Defined && kc.Delta.Pct <= -e.cfg.WarningThresholdPct {
			insights = append(insights, e.warningInsight(dataset, kc, now))
		}
	}

	if weakest := analysis.WeakestKPIs(1); len(weakest) > 0 && weakest[0].Delta.Pct <= -e.cfg.WarningThresholdPct {
		insights = append(insights, e.suggestionInsight(dataset, weakest[0], now))
	}

	if top := analysis.TopSegments(1); len(top) > 0 && top[0].Delta.Pct >= e.cfg.WarningThresholdPct {
		insights = append(insights, e.trendInsight(dataset, top[0], now))
	}

	for _, dc := range analysis.Dimensions {
		if dc.Delta.Defined && abs(dc.Delta.Pct) >= e.cfg.AnomalyThresholdPct {
			insights = append(insights, e.anomalyInsight(dataset, dc, now))
		}
	}

	return insights
}

func (e *RuleEngine) summaryInsight(dataset *models.Dataset, analysis *Analysis, now time.Time) models.Insight {
	primary := analysis.KPIs[0]
	msg := fmt.Sprintf("Across %d filtered rows, %s moved %s for group A versus group B.",
		analysis.FilteredRows, primary.KPI.Label, primary.Delta.Format())
	if len(analysis.KPIs) > 1 {
		msg += " Other KPIs:"
		for _, kc := range analysis.KPIs[1:] {
			msg += fmt.Sprintf(" %s %s,", kc.KPI.Label, kc.Delta.Format())
		}
		msg = msg[:len(msg)-1] + "."
	}

	return e.newInsight(dataset.ID, models.InsightTypeSummary, models.IconChartBar,
		"Overall comparison", msg, severityForTrend(primary.Delta), &models.InsightMetadata{
			KPI:    primary.KPI.ColumnName,
			Change: primary.Delta.Format(),
		}, now)
}

func (e *RuleEngine) warningInsight(dataset *models.Dataset, kc KPIComparison, now time.Time) models.Insight {
	value := kc.SumA
	return e.newInsight(dataset.ID, models.InsightTypeWarning, models.IconAlertTriangle,
		fmt.Sprintf("%s is falling behind", kc.KPI.Label),
		fmt.Sprintf("%s dropped %s for group A compared with group B (%.2f vs %.2f).",
			kc.KPI.Label, kc.Delta.Format(), kc.SumA, kc.SumB),
		e.severityForMagnitude(abs(kc.Delta.Pct), e.cfg.WarningThresholdPct),
		&models.InsightMetadata{KPI: kc.KPI.ColumnName, Value: &value, Change: kc.Delta.Format()}, now)
}

func (e *RuleEngine) suggestionInsight(dataset *models.Dataset, kc KPIComparison, now time.Time) models.Insight {
	return e.newInsight(dataset.ID, models.InsightTypeSuggestion, models.IconLightbulb,
		fmt.Sprintf("Review %s", kc.KPI.Label),
		fmt.Sprintf("%s shows the widest negative gap (%s). Reviewing its drivers in group A should be the first follow-up.",
			kc.KPI.Label, kc.Delta.Format()),
		2, &models.InsightMetadata{KPI: kc.KPI.ColumnName, Change: kc.Delta.Format()}, now)
}

func (e *RuleEngine) trendInsight(dataset *models.Dataset, dc DimensionalComparison, now time.Time) models.Insight {
	return e.newInsight(dataset.ID, models.InsightTypeTrend, models.IconTrendingUp,
		fmt.Sprintf("%s leads in %s", dc.Category, dc.KPI.Label),
		fmt.Sprintf("Within %s, %q outperforms group B on %s by %s.",
			dc.Dimension, dc.Category, dc.KPI.Label, dc.Delta.Format()),
		severityForTrend(dc.Delta),
		&models.InsightMetadata{KPI: dc.KPI.ColumnName, Dimension: dc.Dimension, Change: dc.Delta.Format()}, now)
}

func (e *RuleEngine) anomalyInsight(dataset *models.Dataset, dc DimensionalComparison, now time.Time) models.Insight {
	return e.newInsight(dataset.ID, models.InsightTypeAnomaly, models.IconZap,
		fmt.Sprintf("Outsized gap in %s for %s", dc.KPI.Label, dc.Category),
		fmt.Sprintf("The %s segment %q diverges by %s on %s between the two groups.",
			dc.Dimension, dc.Category, dc.Delta.Format(), dc.KPI.Label),
		e.severityForMagnitude(abs(dc.Delta.Pct), e.cfg.AnomalyThresholdPct),
		&models.InsightMetadata{KPI: dc.KPI.ColumnName, Dimension: dc.Dimension, Change: dc.Delta.Format()}, now)
}

func (e *RuleEngine) newInsight(datasetID string, typ models.InsightType, icon, title, message string, severity int, meta *models.InsightMetadata, now time.Time) models.Insight {
	return models.Insight{
		ID:          uuid.NewString(),
		DatasetID:   datasetID,
		Type:        typ,
		Severity:    severity,
		Icon:        icon,
		Title:       title,
		Message:     message,
		Metadata:    meta,
		GeneratedBy: models.SourceRuleEngine,
		Confidence:  ruleEngineConfidence,
		GeneratedAt: now,
	}
}

// computeDelta applies the dashboard's delta formula: (A-B)/B*100. B = 0
// with A != 0 is undefined; both zero is a defined 0% (no movement).
func (e *RuleEngine) computeDelta(a, b float64) Delta {
	if b == 0 {
		if a == 0 {
			return Delta{Pct: 0, Defined: true, Trend: "neutral"}
		}
		return Delta{Defined: false, Trend: "up"}
	}
	pct := (a - b) / b * 100
	trend := "neutral"
	if abs(pct) >= e.cfg.NeutralBandPct {
		if pct > 0 {
			trend = "up"
		} else {
			trend = "down"
		}
	}
	return Delta{Pct: pct, Defined: true, Trend: trend}
}

// severityForMagnitude scales 1..5 with how far past the threshold the gap is.
func (e *RuleEngine) severityForMagnitude(magnitude, threshold float64) int {
	if threshold <= 0 {
		return 3
	}
	ratio := magnitude / threshold
	switch {
	case ratio < 1:
		return 1
	case ratio < 1.5:
		return 2
	case ratio < 2:
		return 3
	case ratio < 3:
		return 4
	default:
		return 5
	}
}

func severityForTrend(d Delta) int {
	if d.Trend == "down" {
		return 3
	}
	return 1
}

// filterRows applies the categorical filters: AND across fields, OR within a
// field's value list; an empty or missing list passes everything through.
func filterRows(rows []models.DatasetRow, filters models.DashboardFilters) []models.DatasetRow {
	if len(filters.Categorical) == 0 {
		return rows
	}

	var out []models.DatasetRow
	for _, row := range rows {
		if rowMatches(row, filters.Categorical) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatches(row models.DatasetRow, categorical map[string][]string) bool {
	for field, allowed := range categorical {
		if len(allowed) == 0 {
			continue
		}
		value := row.Columns[field]
		found := false
		for _, v := range allowed {
			if v == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sumByGroup(rows []models.DatasetRow, column string) (sumA, sumB float64) {
	for _, row := range rows {
		v, err := strconv.ParseFloat(row.Columns[column], 64)
		if err != nil {
			continue
		}
		switch row.SourceGroup {
		case models.GroupA:
			sumA += v
		case models.GroupB:
			sumB += v
		}
	}
	return sumA, sumB
}

// categoriesOf returns the distinct values of a categorical column in first-seen
// order, keeping the analysis deterministic for identical input.
func categoriesOf(rows []models.DatasetRow, column string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		v := row.Columns[column]
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func rowsWithCategory(rows []models.DatasetRow, column, category string) []models.DatasetRow {
	var out []models.DatasetRow
	for _, row := range rows {
		if row.Columns[column] == category {
			out = append(out, row)
		}
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
