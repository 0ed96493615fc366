package pipeline

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"icpscout/internal/domain"
	"icpscout/internal/store"
)

const topAccountLimit = 10

// TopAccount is one of the best scoring researched companies.
type TopAccount struct {
	CompanyName string          `json:"company_name"`
	ICPScore    int             `json:"icp_score"`
	FitLevel    domain.FitLevel `json:"fit_level"`
}

// Summary aggregates a finished run.
type Summary struct {
	Documents   int                     `json:"documents"`
	Candidates  int                     `json:"candidates"`
	Identities  int                     `json:"identities"`
	Researched  int                     `json:"researched"`
	Failed      int                     `json:"failed"`
	Cancelled   int                     `json:"cancelled"`
	ByFit       map[domain.FitLevel]int `json:"by_fit_level"`
	Industries  map[string]int          `json:"industries"`
	Enrichments int                     `json:"enrichments"`
	Resolutions int                     `json:"resolutions"`
	Conflicts   int                     `json:"conflicts"`
	Unresolved  int                     `json:"rows_with_unresolved_flags"`
	Top         []TopAccount            `json:"top_accounts"`
}

// Summarize computes run totals from the extraction, the final rows and the
// store change log.
func Summarize(ex *Extraction, rows []domain.CanonicalRecord, events []domain.StoreEvent) Summary {
	s := Summary{
		Identities: len(rows),
		ByFit:      map[domain.FitLevel]int{},
		Industries: map[string]int{},
	}
	if ex != nil {
		s.Documents = ex.Documents
		s.Candidates = len(ex.Records)
		s.Conflicts = len(ex.Conflicts)
	}

	var researched []domain.CanonicalRecord
	for _, r := range rows {
		if len(r.UnresolvedFlags) > 0 {
			s.Unresolved++
		}
		switch r.Status {
		case domain.StatusResearched:
			s.Researched++
			s.ByFit[r.FitLevel]++
			industry := r.Industry
			if industry == "" {
				industry = "unknown"
			}
			s.Industries[industry]++
			researched = append(researched, r)
		case domain.StatusResearchFailed:
			s.Failed++
		default:
			s.Cancelled++
		}
	}

	for _, e := range events {
		switch e.Kind {
		case store.EventEnrich:
			s.Enrichments++
		case store.EventResolve:
			s.Resolutions++
		case store.EventConflict:
			s.Conflicts++
		}
	}

	slices.SortStableFunc(researched, func(a, b domain.CanonicalRecord) int {
		return cmp.Or(cmp.Compare(b.ICPScore, a.ICPScore), cmp.Compare(a.Order, b.Order))
	})
	for _, r := range researched[:min(len(researched), topAccountLimit)] {
		s.Top = append(s.Top, TopAccount{CompanyName: r.CompanyName, ICPScore: r.ICPScore, FitLevel: r.FitLevel})
	}
	return s
}

// Log writes the summary as structured log lines.
func (s Summary) Log(log *zap.Logger) {
	log.Info("pipeline: summary",
		zap.Int("documents", s.Documents),
		zap.Int("candidates", s.Candidates),
		zap.Int("identities", s.Identities),
		zap.Int("researched", s.Researched),
		zap.Int("failed", s.Failed),
		zap.Int("cancelled", s.Cancelled),
		zap.Int("high", s.ByFit[domain.FitHigh]),
		zap.Int("medium", s.ByFit[domain.FitMedium]),
		zap.Int("low", s.ByFit[domain.FitLow]),
		zap.Int("skip", s.ByFit[domain.FitSkip]),
		zap.Int("enrichments", s.Enrichments),
		zap.Int("resolutions", s.Resolutions),
		zap.Int("conflicts", s.Conflicts),
		zap.Int("unresolved_rows", s.Unresolved))
	for i, t := range s.Top {
		log.Info("pipeline: top account",
			zap.Int("rank", i+1),
			zap.String("company", t.CompanyName),
			zap.Int("icp_score", t.ICPScore),
			zap.String("fit_level", string(t.FitLevel)))
	}
	if len(s.Industries) > 0 {
		log.Info("pipeline: industry breakdown", zap.Any("industries", s.Industries))
	}
}
