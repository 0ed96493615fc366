package oracle

import (
	"fmt"
	"slices"
	"strings"

	"icpscout/internal/domain"
	"icpscout/internal/icp"
	"icpscout/internal/port"
)

// Identity is one deduplicated company as the oracle sees it.
type Identity struct {
	Key          string
	Name         string
	Aliases      []string
	AttendeeName string
	Title        string
	TeamSize     *int
	Flags        []domain.FlagKind
}

func (id Identity) has(kind domain.FlagKind) bool {
	return slices.Contains(id.Flags, kind)
}

// BuildResearchPrompt returns the combined research and scoring prompt for one company.
func BuildResearchPrompt(r *icp.Rubric, id Identity, mode domain.ResearchMode, scoringMode domain.ScoringMode, results []port.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the company %q and score how well it fits the Ideal Customer Profile (ICP) below.\n\n", id.Name)

	b.WriteString("ICP:\n")
	b.WriteString(r.Summary())
	b.WriteString("\n")

	b.WriteString("Conference signals:\n")
	if len(id.Aliases) > 1 {
		fmt.Fprintf(&b, "- Name variants seen in the documents: %s\n", strings.Join(id.Aliases, "; "))
	}
	if id.AttendeeName != "" {
		fmt.Fprintf(&b, "- Attendee: %s\n", id.AttendeeName)
	}
	if id.Title != "" {
		fmt.Fprintf(&b, "- Contact title: %s\n", id.Title)
	} else {
		b.WriteString("- Contact title: unknown\n")
	}
	if id.TeamSize != nil {
		fmt.Fprintf(&b, "- Team size at the event: %d\n", *id.TeamSize)
	}
	b.WriteString("\n")

	switch mode {
	case domain.ResearchWebSearchProviderA:
		b.WriteString("Use web search to confirm industry, headcount, field service operations and CRM/FSM tooling before scoring.\n\n")
	case domain.ResearchWebSearchProviderB:
		b.WriteString("Base the research on these web search results:\n")
		if len(results) == 0 {
			b.WriteString("(no results found)\n")
		}
		for i, res := range results {
			fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n", i+1, res.Title, res.URL, res.Description)
		}
		b.WriteString("\n")
	default:
		b.WriteString("Use what you already know about the company. Say \"unknown\" rather than guessing.\n\n")
	}

	b.WriteString(`Return ONLY valid JSON with no markdown formatting, no code fences, no explanation, just the raw JSON object:
{
  "canonical_name": "official company name",
  "name_confidence": "high/medium/low",
  "same_entity": true,
  "industry": "specific industry vertical",
  "employee_count": 0,
`)
	if scoringMode == domain.ScoringDecomposed {
		w := r.Weights
		fmt.Fprintf(&b, `  "sub_scores": {
    "industry": 0-%d,
    "size": 0-%d,
    "tech": 0-%d,
    "ops": 0-%d,
    "persona": 0-%d,
    "adjustment": %d to %d
  },
`, w.Industry, w.Size, w.Tech, w.Ops, w.Persona, w.AdjustmentMin, w.AdjustmentMax)
	} else {
		b.WriteString(`  "icp_score": 0-100,
`)
	}
	b.WriteString(`  "rationale": "one or two sentences on the fit",
  "reasoning": ["specific reason based on ICP criteria"],
  "talking_points": ["pain point, value prop or use case for the booth conversation"],
  "contact_suggestion": "best buyer persona title to approach, or empty"
}

Rules:
- "same_entity" says whether all name variants refer to one company.
- "employee_count" is a number; use null when unknown.
- "name_confidence" is "high" only when you are sure which company this is.
`)
	return b.String()
}
