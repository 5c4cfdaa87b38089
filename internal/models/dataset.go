package models

import "time"

// Source groups tagged on every row of an uploaded dataset pair.
const (
	GroupA = "A"
	GroupB = "B"
)

// KPIField describes one numeric column aggregated and compared per group.
type KPIField struct {
	ColumnName string `json:"columnName"`
	Label      string `json:"label"`
	Format     string `json:"format"` // "currency" | "number" | "percent"
}

// SchemaMapping is produced at upload time by the (external) CSV importer.
type SchemaMapping struct {
	DimensionField    string     `json:"dimensionField"`
	KPIFields         []KPIField `json:"kpiFields"`
	CategoricalFields []string   `json:"categoricalFields"`
}

// AIConfig carries the per-dataset AI feature flag.
type AIConfig struct {
	Enabled bool `json:"enabled"`
}

// DatasetRow is a single parsed CSV row tagged with its source group. Column
// values stay as strings; KPI columns are parsed on aggregation.
type DatasetRow struct {
	SourceGroup string            `json:"sourceGroup"`
	Columns     map[string]string `json:"columns"`
}

// Dataset is the comparison unit: two row groups plus the schema mapping that
// names KPI and categorical columns. Persistence of datasets themselves lives
// outside this service; the insights pipeline only reads them.
type Dataset struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"ownerId"`
	Name      string        `json:"name"`
	Schema    SchemaMapping `json:"schemaMapping"`
	AI        AIConfig      `json:"aiConfig"`
	Rows      []DatasetRow  `json:"data"`
	CreatedAt time.Time     `json:"createdAt"`
}
