package extract

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icpscout/internal/domain"
	"icpscout/internal/segment"
)

type ln struct {
	role domain.BlockRole
	text string
}

// lines builds single-cell blocks, one per line, in the given order.
func lines(source string, items ...ln) []domain.RawBlock {
	out := make([]domain.RawBlock, len(items))
	for i, s := range items {
		out[i] = domain.RawBlock{Seq: i, Text: s.text, Role: s.role, Page: 1, Line: i, Source: source}
	}
	return out
}

func extract(blocks []domain.RawBlock) *Result {
	return New().Extract(slices.Values(blocks))
}

func TestExtract_AcmeMentionedTwice(t *testing.T) {
	blocks := lines("fieldserve.pdf",
		ln{domain.RoleHeading, "Speakers"},
		ln{domain.RoleName, "Jane Doe"},
		ln{domain.RoleTitle, "VP of Customer Support"},
		ln{domain.RoleCompany, "Acme Corp"},
		ln{domain.RoleHeading, "Attendees"},
		ln{domain.RoleCompany, "ACME Corporation"},
	)

	res := extract(blocks)
	require.Len(t, res.Records, 2)

	speaker := res.Records[0]
	assert.Equal(t, "Acme", speaker.CompanyName)
	assert.Equal(t, "Jane Doe", speaker.AttendeeName)
	assert.Equal(t, "VP of Customer Support", speaker.Contact.Title)
	assert.Equal(t, []domain.MentionRole{domain.MentionSpeaker}, speaker.Roles)
	assert.Equal(t, []int{1, 2, 3}, speaker.SourceBlocks)
	assert.InDelta(t, 0.85, speaker.Confidence, 1e-9)
	assert.Equal(t, []domain.FlagKind{domain.FlagMissingSize}, speaker.FlagKinds())

	listed := res.Records[1]
	assert.Equal(t, "ACME", listed.CompanyName)
	assert.Equal(t, 1, listed.Order)
	assert.True(t, listed.HasFlag(domain.FlagMissingSize))
	assert.True(t, listed.HasFlag(domain.FlagMissingContact))
	assert.False(t, listed.HasFlag(domain.FlagAmbiguousName))

	assert.Equal(t, 2, res.Stats.Records)
	assert.Equal(t, 2, res.Stats.Flags[domain.FlagMissingSize])
	assert.Equal(t, 1, res.Stats.Patterns[PatternSequential])
}

func TestExtract_InlineAndSizeCue(t *testing.T) {
	blocks := lines("roster.pdf",
		ln{domain.RoleName, "Raj Patel | Chief Customer Officer | Hooli"},
		ln{domain.RoleBody, "raj@hooli.com"},
		ln{domain.RoleCompany, "Initech (12 attendees)"},
	)

	res := extract(blocks)
	require.Len(t, res.Records, 2)

	hooli := res.Records[0]
	assert.Equal(t, "Hooli", hooli.CompanyName)
	assert.Equal(t, "Raj Patel", hooli.AttendeeName)
	assert.Equal(t, domain.Contact{Title: "Chief Customer Officer", Email: "raj@hooli.com"}, hooli.Contact)
	assert.Equal(t, []int{0, 1}, hooli.SourceBlocks)

	initech := res.Records[1]
	assert.Equal(t, "Initech", initech.CompanyName)
	require.NotNil(t, initech.TeamSize)
	assert.Equal(t, 12, *initech.TeamSize)
	assert.InDelta(t, 0.95, initech.Confidence, 1e-9)
	assert.Equal(t, []domain.FlagKind{domain.FlagMissingContact}, initech.FlagKinds())
}

func TestExtract_InlineCommaBeforeLegalSuffix(t *testing.T) {
	blocks := lines("speakers.pdf",
		ln{domain.RoleBody, "Jane Doe, VP of Operations, Acme, Inc."},
		ln{domain.RoleBody, "Bob Roe, Director of Field Service, Globex, Inc."},
	)

	res := extract(blocks)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Acme", res.Records[0].CompanyName)
	assert.Equal(t, "VP of Operations", res.Records[0].Contact.Title)
	assert.Equal(t, "Jane Doe", res.Records[0].AttendeeName)
	assert.Equal(t, "Globex", res.Records[1].CompanyName)
	assert.Equal(t, "Director of Field Service", res.Records[1].Contact.Title)
	assert.Equal(t, 2, res.Stats.Patterns[PatternInline])
}

func TestExtract_HeadingContext(t *testing.T) {
	blocks := lines("profiles.pdf",
		ln{domain.RoleHeading, "FieldServe Expo 2024"},
		ln{domain.RoleHeading, "Northwind Networks"},
		ln{domain.RoleName, "Maria Garcia"},
		ln{domain.RoleTitle, "Director of Field Operations"},
		ln{domain.RoleBio, "Maria leads a team of 40 engineers across three continents and is based in Austin."},
		ln{domain.RoleBody, "maria@northwind.com"},
		ln{domain.RoleHeading, "Zenith Dynamics"},
	)

	res := extract(blocks)
	require.Len(t, res.Records, 2)

	nw := res.Records[0]
	assert.Equal(t, "Northwind Networks", nw.CompanyName)
	assert.Equal(t, "Maria Garcia", nw.AttendeeName)
	assert.Equal(t, "Director of Field Operations", nw.Contact.Title)
	assert.Equal(t, "maria@northwind.com", nw.Contact.Email)
	require.NotNil(t, nw.TeamSize)
	assert.Equal(t, 40, *nw.TeamSize)
	assert.Empty(t, nw.Flags)
	assert.InDelta(t, 0.75, nw.Confidence, 1e-9)

	zenith := res.Records[1]
	assert.True(t, zenith.HasFlag(domain.FlagAmbiguousName))
	assert.True(t, zenith.HasFlag(domain.FlagMissingSize))
	assert.True(t, zenith.HasFlag(domain.FlagMissingContact))
}

func TestExtract_StandaloneLineIsAmbiguous(t *testing.T) {
	blocks := lines("sponsors.pdf",
		ln{domain.RoleBody, "Dunder Mifflin Paper"},
		ln{domain.RoleBody, "Thanks to everyone who joined us this year."},
	)

	res := extract(blocks)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Dunder Mifflin Paper", res.Records[0].CompanyName)
	assert.InDelta(t, 0.6, res.Records[0].Confidence, 1e-9)
	assert.True(t, res.Records[0].HasFlag(domain.FlagAmbiguousName))
}

func TestExtract_TableFromSegmenter(t *testing.T) {
	row := func(y float64, cells ...string) []segment.TextRun {
		out := make([]segment.TextRun, len(cells))
		for i, c := range cells {
			out[i] = segment.TextRun{Text: c, Font: "Helvetica", FontSize: 10, X: 50 + float64(i)*200, Y: y}
		}
		return out
	}
	var runs []segment.TextRun
	runs = append(runs, row(700, "Company", "Name", "Title")...)
	runs = append(runs, row(680, "Globex", "John Smith", "Director of Service")...)
	runs = append(runs, row(660, "Initech Labs", "Peter Gibbons", "Support Manager")...)
	runs = append(runs, row(640, "ACME Corporation", "Wile Coyote", "Head of Operations")...)
	docs := []segment.Document{{Name: "attendees.pdf", Pages: []segment.Page{{Number: 1, Runs: runs}}}}

	res := New().Extract(segment.New(segment.DefaultOptions()).Blocks(docs))
	require.Len(t, res.Records, 3)

	want := []struct{ company, attendee, title string }{
		{"Globex", "John Smith", "Director of Service"},
		{"Initech Labs", "Peter Gibbons", "Support Manager"},
		{"ACME", "Wile Coyote", "Head of Operations"},
	}
	for i, w := range want {
		r := res.Records[i]
		assert.Equal(t, w.company, r.CompanyName)
		assert.Equal(t, w.attendee, r.AttendeeName)
		assert.Equal(t, w.title, r.Contact.Title)
		assert.Equal(t, []domain.MentionRole{domain.MentionAttendee}, r.Roles)
		assert.Equal(t, []domain.FlagKind{domain.FlagMissingSize}, r.FlagKinds())
	}
	assert.Equal(t, 3, res.Stats.Patterns[PatternTable])
}

func TestExtract_Deterministic(t *testing.T) {
	blocks := lines("fieldserve.pdf",
		ln{domain.RoleName, "Jane Doe"},
		ln{domain.RoleTitle, "VP of Customer Support"},
		ln{domain.RoleCompany, "Acme Corp"},
	)
	a := extract(blocks)
	b := extract(blocks)
	assert.Equal(t, a.Records, b.Records)
	assert.NotEmpty(t, a.Records[0].ID)

	other := extract(lines("other.pdf",
		ln{domain.RoleName, "Jane Doe"},
		ln{domain.RoleTitle, "VP of Customer Support"},
		ln{domain.RoleCompany, "Acme Corp"},
	))
	assert.NotEqual(t, a.Records[0].ID, other.Records[0].ID)
}
