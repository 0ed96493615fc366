// Package reconcile deduplicates candidate records into company identities
// and merges extraction and research data into canonical records.
package reconcile

import (
	"cmp"
	"slices"
	"strings"

	"github.com/agext/levenshtein"

	"icpscout/internal/domain"
	"icpscout/internal/textutil"
)

// DedupeConfig controls when two company names are the same entity.
type DedupeConfig struct {
	// MaxDistance is the largest edit distance between normalized names
	// still treated as a match. Short names get a smaller budget.
	MaxDistance int
	// MinSubstringLen is the shortest normalized name that may match as a
	// whole-word part of a longer one.
	MinSubstringLen int
}

// DefaultDedupe returns the tuned defaults.
func DefaultDedupe() DedupeConfig {
	return DedupeConfig{MaxDistance: 2, MinSubstringLen: 4}
}

// Group is the set of records that refer to one company identity.
type Group struct {
	Key     string
	Members []domain.CandidateRecord
	// Aliases are the distinct normalized names seen in the group.
	Aliases []string
}

// Cluster partitions records into identity groups. The partition depends
// only on the pairwise name relation, so it does not change with input
// order. Members are ordered by detection order and groups by their first
// member.
func Cluster(records []domain.CandidateRecord, cfg DedupeConfig) []Group {
	recs := slices.Clone(records)
	slices.SortStableFunc(recs, func(a, b domain.CandidateRecord) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), strings.Compare(a.ID, b.ID))
	})

	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = textutil.CompanyKey(r.CompanyName)
	}

	uf := newUnionFind(len(recs))
	for i := range recs {
		for j := i + 1; j < len(recs); j++ {
			if SameEntity(keys[i], keys[j], cfg) {
				uf.union(i, j)
			}
		}
	}

	byRoot := map[int]int{}
	var groups []Group
	for i, r := range recs {
		root := uf.find(i)
		gi, ok := byRoot[root]
		if !ok {
			key := keys[i]
			if key == "" {
				key = "record:" + r.ID
			}
			gi = len(groups)
			byRoot[root] = gi
			groups = append(groups, Group{Key: key})
		}
		g := &groups[gi]
		g.Members = append(g.Members, r)
		if keys[i] != "" && !slices.Contains(g.Aliases, keys[i]) {
			g.Aliases = append(g.Aliases, keys[i])
		}
	}
	return groups
}

// SameEntity compares two normalized names. Empty names never match.
func SameEntity(a, b string, cfg DedupeConfig) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	// edit budget grows with length so short names need an exact match
	budget := min(cfg.MaxDistance, len([]rune(short))/5)
	if budget > 0 && levenshtein.Distance(a, b, nil) <= budget {
		return true
	}
	if cfg.MinSubstringLen > 0 && len([]rune(short)) >= cfg.MinSubstringLen {
		return strings.Contains(" "+long+" ", " "+short+" ")
	}
	return false
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union links the larger root under the smaller so roots stay the earliest index.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
