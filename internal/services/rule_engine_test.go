package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/compara-core/internal/config"
	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

func testInsightsConfig() config.InsightsConfig {
	return config.InsightsConfig{
		WarningThresholdPct: 10,
		AnomalyThresholdPct: 30,
		NeutralBandPct:      1,
		TopSegments:         3,
	}
}

func row(group, country, revenue, orders string) models.DatasetRow {
	return models.DatasetRow{
		SourceGroup: group,
		Columns:     map[string]string{"country": country, "revenue": revenue, "orders": orders},
	}
}

// testDataset: revenue A-sum=300 / B-sum=200 -> overall delta +50%, trend up.
func testDataset() *models.Dataset {
	return &models.Dataset{
		ID:      "ds-1",
		OwnerID: "user-1",
		Name:    "Q2 comparison",
		Schema: models.SchemaMapping{
			DimensionField: "country",
			KPIFields: []models.KPIField{
				{ColumnName: "revenue", Label: "Revenue", Format: "currency"},
				{ColumnName: "orders", Label: "Orders", Format: "number"},
			},
			CategoricalFields: []string{"country"},
		},
		Rows: []models.DatasetRow{
			row(models.GroupA, "CO", "100", "10"),
			row(models.GroupA, "MX", "200", "5"),
			row(models.GroupB, "CO", "50", "12"),
			row(models.GroupB, "MX", "150", "8"),
		},
	}
}

func TestRuleEngine_OverallDelta(t *testing.T) {
	engine := NewRuleEngine(testInsightsConfig(), logger.NewNop())

	analysis := engine.Analyze(testDataset(), models.DashboardFilters{})
	require.Len(t, analysis.KPIs, 2)

	revenue := analysis.KPIs[0]
	assert.Equal(t, 300.0, revenue.SumA)
	assert.Equal(t, 200.0, revenue.SumB)
	assert.InDelta(t, 50.0, revenue.Delta.Pct, 0.001)
	assert.Equal(t, "up", revenue.Delta.Trend)
}

func TestRuleEngine_FiltersAndAcrossOrWithin(t *testing.T) {
	engine := NewRuleEngine(testInsightsConfig(), logger.NewNop())
	ds := testDataset()

	co := engine.Analyze(ds, models.DashboardFilters{Categorical: map[string][]string{"country": {"CO"}}})
	assert.Equal(t, 2, co.FilteredRows)
	assert.Equal(t, 100.0, co.KPIs[0].SumA)

	both := engine.Analyze(ds, models.DashboardFilters{Categorical: map[string][]string{"country": {"MX", "CO"}}})
	assert.Equal(t, 4, both.FilteredRows)

	// Empty list for a field is no constraint.
	empty := engine.Analyze(ds, models.DashboardFilters{Categorical: map[string][]string{"country": {}}})
	assert.Equal(t, 4, empty.FilteredRows)
}

func TestRuleEngine_EmptyFilteredDataYieldsZeroInsights(t *testing.T) {
	engine := NewRuleEngine(testInsightsConfig(), logger.NewNop())

	insights := engine.GenerateInsights(testDataset(), models.DashboardFilters{
		Categorical: map[string][]string{"country": {"BR"}},
	})
	assert.Empty(t, insights)
}

func TestRuleEngine_DeltaZeroBaseline(t *testing.T) {
	engine := NewRuleEngine(testInsightsConfig(), logger.NewNop())

	d := engine.computeDelta(100, 0)
	assert.False(t, d.Defined)
	assert.Equal(t, "n/a", d.Format())

	// Both zero is defined 0%, not undefined.
	z := engine.computeDelta(0, 0)
	assert.True(t, z.Defined)
	assert.Equal(t, "neutral", z.Trend)
}

func TestRuleEngine_ZeroBaselineInsightRendersNA(t *testing.T) {
	engine := NewRuleEngine(testInsightsConfig(), logger.NewNop())
	ds := &models.Dataset{
		ID: "ds-2",
		Schema: models.SchemaMapping{
			KPIFields:         []models.KPIField{{ColumnName: "revenue", Label: "Revenue", Format: "currency"}},
			CategoricalFields: []string{"country"},
		},
		Rows: []models.DatasetRow{
			row(models.GroupA, "CO", "100", "0"),
			row(models.GroupB, "CO", "0", "0"),
		},
	}

	insights := engine.GenerateInsights(ds, models.DashboardFilters{})
	require.NotEmpty(t, insights)

	summary := insights[0]
	assert.Equal(t, models.InsightTypeSummary, summary.Type)
	require.NotNil(t, summary.Metadata)
	assert.Equal(t, "n/a", summary.Metadata.Change)
	assert.Contains(t, summary.Message, "n/a")
}

func TestRuleEngine_NeutralBand(t *testing.T) {
	engine := NewRuleEngine(testInsightsConfig(), logger.NewNop())

	d := engine.computeDelta(100.5, 100)
	assert.Equal(t, "neutral", d.Trend)

	u := engine.computeDelta(102, 100)
	assert.Equal(t, "up", u.Trend)
}

func TestRuleEngine_WarningAndSeverity(t *testing.T) {
	engine := NewRuleEngine(testInsightsConfig(), logger.NewNop())
	ds := &models.Dataset{
		ID: "ds-3",
		Schema: models.SchemaMapping{
			KPIFields: []models.KPIField{{ColumnName: "revenue", Label: "Revenue", Format: "currency"}},
		},
		Rows: []models.DatasetRow{
			// A=60 vs B=100 -> -40%, past warning (10) and anomaly (30).
			{SourceGroup: models.GroupA, Columns: map[string]string{"revenue": "60"}},
			{SourceGroup: models.GroupB, Columns: map[string]string{"revenue": "100"}},
		},
	}

	insights := engine.GenerateInsights(ds, models.DashboardFilters{})

	var warning *models.Insight
	for i := range insights {
		if insights[i].Type == models.InsightTypeWarning {
			warning = &insights[i]
		}
	}
	require.NotNil(t, warning, "expected a warning insight for a -40%% KPI")
	assert.Equal(t, models.IconAlertTriangle, warning.Icon)
	assert.Equal(t, models.SourceRuleEngine, warning.GeneratedBy)
	assert.GreaterOrEqual(t, warning.Severity, 4)
	assert.LessOrEqual(t, warning.Severity, 5)
}

func TestRuleEngine_TopSegmentsAndWeakestKPIs(t *testing.T) {
	engine := NewRuleEngine(testInsightsConfig(), logger.NewNop())
	analysis := engine.Analyze(testDataset(), models.DashboardFilters{})

	top := analysis.TopSegments(3)
	require.NotEmpty(t, top)
	// CO revenue: A=100 vs B=50 -> +100%, the widest positive gap.
	assert.Equal(t, "CO", top[0].Category)
	assert.Equal(t, "revenue", top[0].KPI.ColumnName)

	weak := analysis.WeakestKPIs(3)
	require.NotEmpty(t, weak)
	// Orders: A=15 vs B=20 -> -25%.
	assert.Equal(t, "orders", weak[0].KPI.ColumnName)
	assert.InDelta(t, -25.0, weak[0].Delta.Pct, 0.001)
}

func TestRuleEngine_InsightOrderIsDeterministic(t *testing.T) {
	engine := NewRuleEngine(testInsightsConfig(), logger.NewNop())

	first := engine.GenerateInsights(testDataset(), models.DashboardFilters{})
	second := engine.GenerateInsights(testDataset(), models.DashboardFilters{})

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Type, second[i].Type)
		assert.Equal(t, first[i].Title, second[i].Title)
		assert.Equal(t, first[i].Message, second[i].Message)
	}
}
