package domain

import "fmt"

// BlockRole is the structural role the segmenter assigns to a text block.
type BlockRole string

const (
	RoleHeading BlockRole = "heading"
	RoleName    BlockRole = "name"
	RoleTitle   BlockRole = "title"
	RoleCompany BlockRole = "company"
	RoleBio     BlockRole = "bio"
	RoleBody    BlockRole = "body"
	RoleNoise   BlockRole = "noise"
)

// FlagKind enumerates record quality problems detected during extraction.
type FlagKind string

const (
	FlagAmbiguousName     FlagKind = "ambiguous_name"
	FlagMissingSize       FlagKind = "missing_size"
	FlagMissingContact    FlagKind = "missing_contact"
	FlagPossibleDuplicate FlagKind = "possible_duplicate"
)

// MentionRole describes how a company appeared in the source documents.
type MentionRole string

const (
	MentionSpeaker  MentionRole = "speaker"
	MentionAttendee MentionRole = "attendee"
	MentionListed   MentionRole = "listed"
)

// ResearchMode selects where the oracle gets its company knowledge from.
type ResearchMode string

const (
	ResearchTrainingData       ResearchMode = "training_data"
	ResearchWebSearchProviderA ResearchMode = "web_search_provider_a"
	ResearchWebSearchProviderB ResearchMode = "web_search_provider_b"
)

// ParseResearchMode validates a configured research mode.
func ParseResearchMode(s string) (ResearchMode, error) {
	switch m := ResearchMode(s); m {
	case ResearchTrainingData, ResearchWebSearchProviderA, ResearchWebSearchProviderB:
		return m, nil
	}
	return "", fmt.Errorf("unknown research mode: %q", s)
}

// ScoringMode selects the scoring policy.
type ScoringMode string

const (
	ScoringHolistic   ScoringMode = "holistic"
	ScoringDecomposed ScoringMode = "decomposed"
)

// ParseScoringMode validates a configured scoring mode.
func ParseScoringMode(s string) (ScoringMode, error) {
	switch m := ScoringMode(s); m {
	case ScoringHolistic, ScoringDecomposed:
		return m, nil
	}
	return "", fmt.Errorf("unknown scoring mode: %q", s)
}

// FitLevel is the discrete tier derived from an ICP score.
type FitLevel string

const (
	FitHigh   FitLevel = "High"
	FitMedium FitLevel = "Medium"
	FitLow    FitLevel = "Low"
	FitSkip   FitLevel = "Skip"
)

// ResearchStatus is the terminal state of the research step for one identity.
type ResearchStatus string

const (
	StatusResearched     ResearchStatus = "researched"
	StatusResearchFailed ResearchStatus = "research_failed"
	StatusCancelled      ResearchStatus = "cancelled"
)

// Recommended actions attached to scored companies.
const (
	ActionPriorityOutreach = "Priority outreach"
	ActionBoothApproach    = "Booth approach"
	ActionResearchMore     = "Research more"
	ActionSkip             = "Skip"
)

// Field provenance labels used by the context store and reconciliation.
const (
	SourceExtraction = "extraction"
	SourceResearch   = "research"
	SourceMerge      = "merge"
)
