package reconcile

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"icpscout/internal/domain"
	"icpscout/internal/scoring"
	"icpscout/internal/store"
	"icpscout/internal/textutil"
)

// notResearched is the error text of identities the run never reached.
const notResearched = "run stopped before this company was researched"

// Engine turns store entries into canonical records.
type Engine struct {
	thresholds scoring.Thresholds
}

// NewEngine creates an Engine that derives fit levels with t.
func NewEngine(t scoring.Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Reconcile applies research evidence to every entry and returns one
// canonical record per identity in detection order. Extraction values are
// only replaced when the research resolves the flag on that field, and
// unresolved flags stay on the record. Running it again on the same store
// yields the same records.
func (e *Engine) Reconcile(st *store.Store) ([]domain.CanonicalRecord, error) {
	var out []domain.CanonicalRecord
	for _, key := range st.Keys() {
		res, err := st.Result(key)
		if err != nil {
			return nil, err
		}
		if err := applyEvidence(st, key, res); err != nil {
			return nil, err
		}
		snap, err := st.Get(key)
		if err != nil {
			return nil, err
		}
		out = append(out, e.canonical(snap))
	}
	slices.SortStableFunc(out, func(a, b domain.CanonicalRecord) int { return a.Order - b.Order })
	return out, nil
}

func applyEvidence(st *store.Store, key string, res *domain.ResearchResult) error {
	if res == nil || res.Status != domain.StatusResearched {
		return nil
	}
	var updates []store.Update
	if res.Resolves(domain.FlagMissingSize) && res.EmployeeCount != nil && *res.EmployeeCount > 0 {
		updates = append(updates, store.Update{
			Field: store.FieldTeamSize, Value: strconv.Itoa(*res.EmployeeCount),
			Stage: domain.SourceResearch, Resolves: domain.FlagMissingSize,
		})
	}
	if res.Resolves(domain.FlagMissingContact) && res.ContactSuggestion != "" {
		updates = append(updates, store.Update{
			Field: store.FieldContactTitle, Value: res.ContactSuggestion,
			Stage: domain.SourceResearch, Resolves: domain.FlagMissingContact,
		})
	}
	if res.Resolves(domain.FlagAmbiguousName) && res.CanonicalName != "" {
		updates = append(updates, store.Update{
			Field: store.FieldCompanyName, Value: textutil.CleanCompanyName(res.CanonicalName),
			Stage: domain.SourceResearch, Resolves: domain.FlagAmbiguousName,
		})
	}
	for _, u := range updates {
		if _, err := st.Fill(key, u); err != nil {
			return fmt.Errorf("reconcile: applying %s to %q: %w", u.Field, key, err)
		}
	}
	if res.Resolves(domain.FlagPossibleDuplicate) {
		if _, err := st.ResolveFlag(key, domain.FlagPossibleDuplicate, domain.SourceResearch, "oracle confirmed aliases are one company"); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) canonical(snap store.Snapshot) domain.CanonicalRecord {
	rec := snap.Record
	c := domain.CanonicalRecord{
		CompanyName:     rec.CompanyName,
		AttendeeName:    rec.AttendeeName,
		TeamSize:        rec.TeamSize,
		Contact:         rec.Contact,
		UnresolvedFlags: rec.FlagKinds(),
		Order:           rec.Order,
		Sources:         rec.Sources,
		Provenance:      maps.Clone(snap.Provenance),
	}
	if c.Provenance == nil {
		c.Provenance = map[string]string{}
	}
	if rec.TeamSize != nil {
		c.TeamSizeSource = c.Provenance[store.FieldTeamSize]
	}
	for _, m := range snap.Mentions {
		name := textutil.CleanCompanyName(m.CompanyName)
		if name != c.CompanyName && !slices.Contains(c.Aliases, name) {
			c.Aliases = append(c.Aliases, name)
		}
	}

	res := snap.Result
	if res == nil {
		c.Status = domain.StatusCancelled
		c.Error = notResearched
		return c
	}
	c.Status = res.Status
	c.Error = res.Error
	if res.Status != domain.StatusResearched {
		return c
	}
	c.Industry = res.Industry
	c.EmployeeSizeBracket = res.EmployeeSizeBracket
	c.ICPScore = res.ICPScore
	c.FitLevel = e.thresholds.FitLevel(res.ICPScore)
	c.RecommendedAction = e.thresholds.RecommendedAction(res.ICPScore)
	c.Rationale = res.Rationale
	c.TalkingPoints = res.TalkingPoints
	c.SubScores = res.SubScores
	for _, f := range []string{"industry", "icp_score", "fit_level", "recommended_action", "rationale", "talking_points"} {
		c.Provenance[f] = domain.SourceResearch
	}
	return c
}
