package csvexport

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icpscout/internal/domain"
)

func intPtr(n int) *int { return &n }

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBOM(&buf))
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	w.Flush()
	require.NoError(t, w.Error())

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, BOM))

	row, err := csv.NewReader(bytes.NewReader(data[len(BOM):])).Read()
	require.NoError(t, err)
	assert.Len(t, row, 12)
	assert.Equal(t, "company_name", row[0])
	assert.Equal(t, "talking_points", row[6])
	assert.Equal(t, "rationale", row[11])
}

func TestWriteRecords_Researched(t *testing.T) {
	rec := domain.CanonicalRecord{
		CompanyName:       "Acme",
		Industry:          "Industrial equipment",
		TeamSize:          intPtr(5000),
		ICPScore:          78,
		FitLevel:          domain.FitHigh,
		RecommendedAction: domain.ActionPriorityOutreach,
		TalkingPoints:     []string{"Scaling support", "First-time fix, faster"},
		Contact:           domain.Contact{Title: "VP of Customer Support", Email: "jane@acme.com"},
		AttendeeName:      "Jane Doe",
		Status:            domain.StatusResearched,
		Rationale:         "Large field service org.",
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRecords([]domain.CanonicalRecord{rec}))
	w.Flush()
	require.NoError(t, w.Error())

	row, err := csv.NewReader(&buf).Read()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Acme",
		"Industrial equipment",
		"5000",
		"78",
		"High",
		"Priority outreach",
		"Scaling support; First-time fix, faster",
		"VP of Customer Support | jane@acme.com",
		"Jane Doe",
		"researched",
		"",
		"Large field service org.",
	}, row)
}

func TestRow_FailedKeepsScoreColumnsEmpty(t *testing.T) {
	row := Row(&domain.CanonicalRecord{
		CompanyName:     "Hooli",
		Status:          domain.StatusResearchFailed,
		Error:           "claude timed out",
		UnresolvedFlags: []domain.FlagKind{domain.FlagMissingSize, domain.FlagMissingContact},
	})
	assert.Equal(t, "", row[2])
	assert.Equal(t, "", row[3])
	assert.Equal(t, "", row[4])
	assert.Equal(t, "research_failed", row[9])
	assert.Equal(t, "missing_size, missing_contact", row[10])
	assert.Equal(t, "claude timed out", row[11])
}
