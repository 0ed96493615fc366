package segment

import (
	"icpscout/internal/domain"
	"icpscout/internal/textutil"
)

const (
	maxHeadingWords     = 12
	maxBoldHeadingWords = 8
	minBioWords         = 12
)

// classify assigns a structural role. Typography decides headings; text
// heuristics decide everything else.
func (s *Segmenter) classify(b domain.RawBlock, body float64, cellsOnLine int) domain.BlockRole {
	text := b.Text
	words := textutil.WordCount(text)

	if textutil.IsNoise(text) {
		return domain.RoleNoise
	}
	if body > 0 && words <= maxHeadingWords {
		if b.FontSize >= body*s.opts.HeadingRatio {
			return domain.RoleHeading
		}
		if b.Bold && cellsOnLine == 1 && words <= maxBoldHeadingWords && b.FontSize >= body-0.25 {
			return domain.RoleHeading
		}
	}

	if _, ok := textutil.SplitInline(text); ok {
		return domain.RoleName
	}
	if _, _, ok := textutil.SplitSizeCue(text); ok {
		return domain.RoleCompany
	}
	switch {
	case textutil.HasLegalSuffix(text):
		return domain.RoleCompany
	case textutil.IsJobTitle(text):
		return domain.RoleTitle
	case textutil.HasCompanyMarker(text):
		return domain.RoleCompany
	case textutil.IsPersonName(text):
		return domain.RoleName
	case words > minBioWords:
		return domain.RoleBio
	}
	return domain.RoleBody
}
