package reconcile

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"icpscout/internal/domain"
	"icpscout/internal/store"
)

// Merge folds a group into one record. The most complete member is the
// base (then highest confidence, then earliest); other members only fill
// its gaps. Disagreements keep the base value and are returned as conflicts.
func Merge(g Group) (*domain.CandidateRecord, []domain.ReconciliationConflict) {
	if len(g.Members) == 0 {
		return nil, nil
	}
	base := g.Members[0]
	for _, m := range g.Members[1:] {
		if better(m, base) {
			base = m
		}
	}

	merged := base.Clone()
	merged.ID = g.Members[0].ID
	merged.Order = g.Members[0].Order

	var conflicts []domain.ReconciliationConflict
	for _, m := range g.Members {
		if m.ID == base.ID && m.Order == base.Order {
			continue
		}
		mergeString(&merged.AttendeeName, m.AttendeeName, g.Key, store.FieldAttendeeName, &conflicts)
		mergeString(&merged.Contact.Title, m.Contact.Title, g.Key, store.FieldContactTitle, &conflicts)
		mergeString(&merged.Contact.Email, m.Contact.Email, g.Key, store.FieldContactEmail, &conflicts)
		mergeString(&merged.Contact.Phone, m.Contact.Phone, g.Key, store.FieldContactPhone, &conflicts)

		if m.TeamSize != nil && (merged.TeamSize == nil || *m.TeamSize > *merged.TeamSize) {
			size := *m.TeamSize
			merged.TeamSize = &size
		}
		merged.Confidence = max(merged.Confidence, m.Confidence)
	}

	merged.Roles, merged.Sources, merged.SourceBlocks = nil, nil, nil
	merged.Flags = nil
	ambiguous := true
	for _, m := range g.Members {
		for _, r := range m.Roles {
			if !slices.Contains(merged.Roles, r) {
				merged.Roles = append(merged.Roles, r)
			}
		}
		for _, s := range m.Sources {
			if !slices.Contains(merged.Sources, s) {
				merged.Sources = append(merged.Sources, s)
			}
		}
		merged.SourceBlocks = append(merged.SourceBlocks, m.SourceBlocks...)
		for _, f := range m.Flags {
			merged.AddFlag(f.Kind, f.Note)
		}
		if !m.HasFlag(domain.FlagAmbiguousName) {
			ambiguous = false
		}
	}
	slices.Sort(merged.SourceBlocks)
	merged.SourceBlocks = slices.Compact(merged.SourceBlocks)

	// a flag survives only if no member supplies the field it is about
	if merged.TeamSize != nil {
		merged.RemoveFlag(domain.FlagMissingSize)
	}
	if merged.AttendeeName != "" || !merged.Contact.IsZero() {
		merged.RemoveFlag(domain.FlagMissingContact)
	}
	if !ambiguous {
		merged.RemoveFlag(domain.FlagAmbiguousName)
	}
	if len(g.Aliases) > 1 {
		merged.AddFlag(domain.FlagPossibleDuplicate, "merged aliases: "+strings.Join(g.Aliases, ", "))
	}
	return merged, conflicts
}

// better reports whether a should replace b as merge base.
func better(a, b domain.CandidateRecord) bool {
	if c := cmp.Compare(a.Completeness(), b.Completeness()); c != 0 {
		return c > 0
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Order < b.Order
}

// mergeString fills an empty base value and reports disagreement otherwise.
func mergeString(base *string, other, key, field string, conflicts *[]domain.ReconciliationConflict) {
	switch {
	case other == "" || strings.EqualFold(*base, other):
		return
	case *base == "":
		*base = other
	default:
		*conflicts = append(*conflicts, domain.ReconciliationConflict{Key: key, Field: field, Kept: *base, Discarded: other})
	}
}

// Register merges every group and adds it to the store under the group key.
func Register(st *store.Store, groups []Group) ([]domain.ReconciliationConflict, error) {
	var all []domain.ReconciliationConflict
	for _, g := range groups {
		merged, conflicts := Merge(g)
		if merged == nil {
			continue
		}
		if err := st.Add(g.Key, merged, g.Members); err != nil {
			return all, fmt.Errorf("reconcile.Register: %w", err)
		}
		all = append(all, conflicts...)
	}
	return all, nil
}
