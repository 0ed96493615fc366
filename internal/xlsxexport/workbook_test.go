package xlsxexport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"icpscout/internal/domain"
)

func TestBuild(t *testing.T) {
	size := 5000
	recs := []domain.CanonicalRecord{
		{
			CompanyName:       "Acme",
			Industry:          "Industrial equipment",
			TeamSize:          &size,
			ICPScore:          78,
			FitLevel:          domain.FitHigh,
			RecommendedAction: domain.ActionPriorityOutreach,
			Status:            domain.StatusResearched,
		},
		{
			CompanyName:     "Hooli",
			Status:          domain.StatusCancelled,
			UnresolvedFlags: []domain.FlagKind{domain.FlagMissingSize},
		},
	}

	data, err := Build(recs)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, SheetName, f.GetSheetName(0))
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "company_name", rows[0][0])
	assert.Equal(t, []string{"Acme", "Industrial equipment", "5000", "78", "High", "Priority outreach"}, rows[1][:6])
	assert.Equal(t, "Hooli", rows[2][0])
	assert.Equal(t, "cancelled", rows[2][9])
	assert.Equal(t, "missing_size", rows[2][10])
}

func TestBuild_Empty(t *testing.T) {
	data, err := Build(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
