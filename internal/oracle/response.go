package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"icpscout/internal/domain"
	"icpscout/internal/icp"
	"icpscout/internal/scoring"
)

// judgement is the JSON object the oracle is asked to return.
type judgement struct {
	CanonicalName     string            `json:"canonical_name"`
	NameConfidence    string            `json:"name_confidence"`
	SameEntity        *bool             `json:"same_entity"`
	Industry          string            `json:"industry"`
	EmployeeCount     json.RawMessage   `json:"employee_count"`
	ICPScore          *float64          `json:"icp_score"`
	SubScores         *domain.SubScores `json:"sub_scores"`
	Rationale         string            `json:"rationale"`
	Reasoning         []string          `json:"reasoning"`
	TalkingPoints     []string          `json:"talking_points"`
	ContactSuggestion string            `json:"contact_suggestion"`
}

func judgementSchema(mode domain.ScoringMode) map[string]any {
	str := map[string]any{"type": []any{"string", "null"}}
	strs := map[string]any{"type": "array", "items": str}
	integer := map[string]any{"type": "integer"}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"canonical_name":     str,
			"name_confidence":    str,
			"same_entity":        map[string]any{"type": []any{"boolean", "null"}},
			"industry":           str,
			"employee_count":     map[string]any{"type": []any{"number", "string", "null"}},
			"icp_score":          map[string]any{"type": "number"},
			"rationale":          str,
			"reasoning":          strs,
			"talking_points":     strs,
			"contact_suggestion": map[string]any{"type": []any{"string", "null"}},
			"sub_scores": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"industry": integer, "size": integer, "tech": integer,
					"ops": integer, "persona": integer, "adjustment": integer,
				},
				"required": []any{"industry", "size", "tech", "ops", "persona"},
			},
		},
	}
	if mode == domain.ScoringDecomposed {
		schema["required"] = []any{"sub_scores"}
	} else {
		schema["required"] = []any{"icp_score"}
	}
	return schema
}

// compileSchema compiles the judgement schema for a scoring mode.
func compileSchema(mode domain.ScoringMode) (*jsonschema.Schema, error) {
	b, err := json.Marshal(judgementSchema(mode))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("judgement.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("judgement.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// extractJSON strips code fences and any prose around the first JSON object.
func extractJSON(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// decodeJudgement validates text against schema and decodes it.
func decodeJudgement(text string, schema *jsonschema.Schema) (*judgement, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return nil, &MalformedResponseError{Reason: "no JSON object in response", Raw: text}
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &MalformedResponseError{Reason: "invalid JSON", Raw: raw, Err: err}
	}
	if err := schema.Validate(v); err != nil {
		return nil, &MalformedResponseError{Reason: "json does not match schema", Raw: raw, Err: err}
	}
	var j judgement
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, &MalformedResponseError{Reason: "decoding judgement", Raw: raw, Err: err}
	}
	return &j, nil
}

// employeeCount reads a number or a loose string such as "5,000+".
func (j *judgement) employeeCount() int {
	raw := bytes.TrimSpace(j.EmployeeCount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(math.Max(0, math.Round(n)))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return icp.ParseEmployeeCount(s)
	}
	return 0
}

// toResult scores a decoded judgement and derives the flags it resolves.
func (c *Client) toResult(j *judgement, id Identity) (*domain.ResearchResult, error) {
	jd := scoring.Judgement{SubScores: j.SubScores}
	if j.ICPScore != nil {
		score := int(math.Round(*j.ICPScore))
		jd.Score = &score
	}
	scored, err := scoring.Score(c.policy, jd)
	if err != nil {
		return nil, &MalformedResponseError{Reason: "scoring", Err: err}
	}

	res := &domain.ResearchResult{
		CompanyName:       id.Name,
		CanonicalName:     strings.TrimSpace(j.CanonicalName),
		Industry:          strings.TrimSpace(j.Industry),
		ICPScore:          scored.Score,
		SubScores:         scored.SubScores,
		FitLevel:          c.thresholds.FitLevel(scored.Score),
		RecommendedAction: c.thresholds.RecommendedAction(scored.Score),
		Rationale:         strings.TrimSpace(j.Rationale),
		Reasoning:         j.Reasoning,
		TalkingPoints:     j.TalkingPoints,
		ContactSuggestion: strings.TrimSpace(j.ContactSuggestion),
		Status:            domain.StatusResearched,
	}
	if strings.EqualFold(res.Industry, "unknown") {
		res.Industry = ""
	}
	if res.Rationale == "" && len(j.Reasoning) > 0 {
		res.Rationale = strings.Join(j.Reasoning, "; ")
	}
	if n := j.employeeCount(); n > 0 {
		res.EmployeeCount = &n
		res.EmployeeSizeBracket = c.rubric.SizeBracket(n)
	}

	if id.has(domain.FlagMissingSize) && res.EmployeeCount != nil {
		res.ResolvedFlags = append(res.ResolvedFlags, domain.FlagMissingSize)
	}
	if id.has(domain.FlagMissingContact) && res.ContactSuggestion != "" {
		res.ResolvedFlags = append(res.ResolvedFlags, domain.FlagMissingContact)
	}
	if id.has(domain.FlagAmbiguousName) && res.CanonicalName != "" && strings.EqualFold(j.NameConfidence, "high") {
		res.ResolvedFlags = append(res.ResolvedFlags, domain.FlagAmbiguousName)
	}
	if id.has(domain.FlagPossibleDuplicate) && j.SameEntity != nil && *j.SameEntity {
		res.ResolvedFlags = append(res.ResolvedFlags, domain.FlagPossibleDuplicate)
	}
	return res, nil
}
