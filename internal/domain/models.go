package domain

import (
	"slices"
	"strings"
	"time"
)

// RawBlock is one run of text produced by the segmenter. Blocks are immutable
// once emitted and are referenced by Seq from candidate records.
type RawBlock struct {
	Seq      int       `json:"seq"`
	Text     string    `json:"text"`
	FontSize float64   `json:"font_size"`
	Font     string    `json:"font"`
	Bold     bool      `json:"bold"`
	Page     int       `json:"page"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Line     int       `json:"line"`
	Column   int       `json:"column"`
	Source   string    `json:"source"`
	DocIndex int       `json:"doc_index"`
	Role     BlockRole `json:"role"`
}

// Contact holds the reachable details of a company's representative.
type Contact struct {
	Title string `json:"title,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// IsZero reports whether no contact detail is known.
func (c Contact) IsZero() bool {
	return c.Title == "" && c.Email == "" && c.Phone == ""
}

// String renders the contact as a single cell value.
func (c Contact) String() string {
	var parts []string
	for _, p := range []string{c.Title, c.Email, c.Phone} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " | ")
}

// QualityFlag marks a known weakness of an extracted record.
type QualityFlag struct {
	Kind FlagKind `json:"kind"`
	Note string   `json:"note,omitempty"`
}

// CandidateRecord is one company mention found by the extractor.
type CandidateRecord struct {
	ID           string        `json:"id"`
	Order        int           `json:"order"`
	CompanyName  string        `json:"company_name"`
	AttendeeName string        `json:"attendee_name,omitempty"`
	Contact      Contact       `json:"contact"`
	TeamSize     *int          `json:"team_size,omitempty"`
	Roles        []MentionRole `json:"roles,omitempty"`
	Sources      []string      `json:"sources,omitempty"`
	SourceBlocks []int         `json:"source_blocks,omitempty"`
	Confidence   float64       `json:"confidence"`
	Flags        []QualityFlag `json:"quality_flags"`
}

// HasFlag reports whether the record carries a flag of the given kind.
func (r *CandidateRecord) HasFlag(kind FlagKind) bool {
	return slices.ContainsFunc(r.Flags, func(f QualityFlag) bool { return f.Kind == kind })
}

// AddFlag attaches a flag unless one of the same kind is already present.
func (r *CandidateRecord) AddFlag(kind FlagKind, note string) {
	if r.HasFlag(kind) {
		return
	}
	r.Flags = append(r.Flags, QualityFlag{Kind: kind, Note: note})
}

// RemoveFlag drops every flag of the given kind.
func (r *CandidateRecord) RemoveFlag(kind FlagKind) {
	r.Flags = slices.DeleteFunc(r.Flags, func(f QualityFlag) bool { return f.Kind == kind })
}

// FlagKinds returns the kinds of all attached flags in attachment order.
func (r *CandidateRecord) FlagKinds() []FlagKind {
	kinds := make([]FlagKind, 0, len(r.Flags))
	for _, f := range r.Flags {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

// Completeness counts the optional fields that are populated.
func (r *CandidateRecord) Completeness() int {
	n := 0
	if r.AttendeeName != "" {
		n++
	}
	if r.TeamSize != nil {
		n++
	}
	if r.Contact.Title != "" {
		n++
	}
	if r.Contact.Email != "" {
		n++
	}
	if r.Contact.Phone != "" {
		n++
	}
	return n
}

// Clone returns a deep copy of the record.
func (r *CandidateRecord) Clone() *CandidateRecord {
	c := *r
	if r.TeamSize != nil {
		size := *r.TeamSize
		c.TeamSize = &size
	}
	c.Roles = slices.Clone(r.Roles)
	c.Sources = slices.Clone(r.Sources)
	c.SourceBlocks = slices.Clone(r.SourceBlocks)
	c.Flags = slices.Clone(r.Flags)
	return &c
}

// SubScores is the decomposed ICP breakdown returned in decomposed scoring mode.
type SubScores struct {
	Industry   int `json:"industry"`
	Size       int `json:"size"`
	Tech       int `json:"tech"`
	Ops        int `json:"ops"`
	Persona    int `json:"persona"`
	Adjustment int `json:"adjustment"`
}

// ResearchResult is the oracle's judgement for one company identity.
// It is not modified after the oracle client returns it.
type ResearchResult struct {
	CompanyName         string         `json:"company_name"`
	CanonicalName       string         `json:"canonical_name,omitempty"`
	Industry            string         `json:"industry,omitempty"`
	EmployeeCount       *int           `json:"employee_count,omitempty"`
	EmployeeSizeBracket string         `json:"employee_size_bracket,omitempty"`
	ICPScore            int            `json:"icp_score"`
	FitLevel            FitLevel       `json:"fit_level,omitempty"`
	RecommendedAction   string         `json:"recommended_action,omitempty"`
	Rationale           string         `json:"rationale,omitempty"`
	Reasoning           []string       `json:"reasoning,omitempty"`
	TalkingPoints       []string       `json:"talking_points,omitempty"`
	SubScores           *SubScores     `json:"sub_scores,omitempty"`
	ResolvedFlags       []FlagKind     `json:"resolved_flags,omitempty"`
	ContactSuggestion   string         `json:"contact_suggestion,omitempty"`
	Status              ResearchStatus `json:"status"`
	Error               string         `json:"error,omitempty"`
	Attempts            int            `json:"attempts"`
	ModelUsed           string         `json:"model_used,omitempty"`
}

// Resolves reports whether the oracle evidence resolves the given flag.
func (r *ResearchResult) Resolves(kind FlagKind) bool {
	return r != nil && r.Status == StatusResearched && slices.Contains(r.ResolvedFlags, kind)
}

// CanonicalRecord is the final, deduplicated and enriched row for one company.
type CanonicalRecord struct {
	CompanyName         string            `json:"company_name"`
	Aliases             []string          `json:"aliases,omitempty"`
	AttendeeName        string            `json:"attendee_name,omitempty"`
	TeamSize            *int              `json:"team_size,omitempty"`
	TeamSizeSource      string            `json:"team_size_source,omitempty"`
	Contact             Contact           `json:"contact"`
	Industry            string            `json:"industry,omitempty"`
	EmployeeSizeBracket string            `json:"employee_size_bracket,omitempty"`
	ICPScore            int               `json:"icp_score"`
	FitLevel            FitLevel          `json:"fit_level,omitempty"`
	RecommendedAction   string            `json:"recommended_action,omitempty"`
	Rationale           string            `json:"rationale,omitempty"`
	TalkingPoints       []string          `json:"talking_points,omitempty"`
	SubScores           *SubScores        `json:"sub_scores,omitempty"`
	UnresolvedFlags     []FlagKind        `json:"unresolved_flags,omitempty"`
	Status              ResearchStatus    `json:"status"`
	Error               string            `json:"error,omitempty"`
	Order               int               `json:"order"`
	Sources             []string          `json:"sources,omitempty"`
	Provenance          map[string]string `json:"provenance,omitempty"`
}

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID           string     `db:"id" json:"id"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at"`
	ResearchMode string     `db:"research_mode" json:"research_mode"`
	ScoringMode  string     `db:"scoring_mode" json:"scoring_mode"`
	Model        string     `db:"model" json:"model"`
	Documents    int        `db:"documents" json:"documents"`
	Candidates   int        `db:"candidates" json:"candidates"`
	Identities   int        `db:"identities" json:"identities"`
	Researched   int        `db:"researched" json:"researched"`
	Failed       int        `db:"failed" json:"failed"`
	Cancelled    int        `db:"cancelled" json:"cancelled"`
	HighFit      int        `db:"high_fit" json:"high_fit"`
	Status       string     `db:"status" json:"status"`
	ErrorMessage string     `db:"error_message" json:"error_message"`
}

// StoreEvent is one entry in the context store's change log.
type StoreEvent struct {
	RunID     string    `db:"run_id" json:"run_id"`
	Seq       int       `db:"seq" json:"seq"`
	Kind      string    `db:"kind" json:"kind"`
	Key       string    `db:"company_key" json:"company_key"`
	Field     string    `db:"field" json:"field"`
	Stage     string    `db:"stage" json:"stage"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
