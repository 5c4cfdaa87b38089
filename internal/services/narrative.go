package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/platformbuilds/compara-core/internal/models"
)

// NarrativeRequest carries everything the language model needs to ground its
// response: the dataset schema, the deterministic analysis, and the
// rule-engine insights computed for the same request.
type NarrativeRequest struct {
	Dataset     *models.Dataset
	Analysis    *Analysis
	Insights    []models.Insight
	Language    string
	UserContext string
}

// NarrativeGenerator produces the optional executive narrative. Any failure
// (network, timeout, malformed model output) must surface as an error; a
// partial or guessed narrative is never returned.
type NarrativeGenerator interface {
	GenerateNarrative(ctx context.Context, req NarrativeRequest) (*models.BusinessNarrative, error)
}

// buildNarrativePrompt assembles the grounding context. Segment and KPI
// selection reuses the rule engine's ranking so the narrative and the
// insights never disagree about what matters.
func buildNarrativePrompt(req NarrativeRequest, topN int) string {
	var b strings.Builder

	language := "Spanish"
	if req.Language == "en" {
		language = "English"
	}

	fmt.Fprintf(&b, "You are a business analyst comparing two data sources (group A vs group B) for the dataset %q.\n", req.Dataset.Name)
	fmt.Fprintf(&b, "KPI columns: ")
	for i, kpi := range req.Dataset.Schema.KPIFields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%s)", kpi.Label, kpi.Format)
	}
	fmt.Fprintf(&b, "\nCategorical dimensions: %s\n\n", strings.Join(req.Dataset.Schema.CategoricalFields, ", "))

	if top := req.Analysis.TopSegments(topN); len(top) > 0 {
		b.WriteString("Best performing segments:\n")
		for _, dc := range top {
			fmt.Fprintf(&b, "- %s=%q: %s at %s (A %.2f vs B %.2f)\n",
				dc.Dimension, dc.Category, dc.KPI.Label, dc.Delta.Format(), dc.SumA, dc.SumB)
		}
		b.WriteString("\n")
	}
	if weak := req.Analysis.WeakestKPIs(topN); len(weak) > 0 {
		b.WriteString("Weakest KPIs:\n")
		for _, kc := range weak {
			fmt.Fprintf(&b, "- %s: %s (A %.2f vs B %.2f)\n",
				kc.KPI.Label, kc.Delta.Format(), kc.SumA, kc.SumB)
		}
		b.WriteString("\n")
	}

	if len(req.Insights) > 0 {
		b.WriteString("Rule-based findings:\n")
		for _, ins := range req.Insights {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", ins.Type, ins.Title, ins.Message)
		}
		b.WriteString("\n")
	}

	if req.UserContext != "" {
		fmt.Fprintf(&b, "Additional business context from the user: %s\n\n", req.UserContext)
	}

	fmt.Fprintf(&b, "Write an executive summary in %s and up to 4 recommended actions.\n", language)
	b.WriteString(`Respond with JSON only, exactly this shape: {"summary": string, "recommendedActions": [string], "confidence": number between 0 and 1}`)

	return b.String()
}
