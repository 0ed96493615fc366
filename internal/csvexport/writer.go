package csvexport

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"icpscout/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Columns defines the header row shared by the CSV and XLSX outputs.
var Columns = []string{
	"company_name",
	"industry",
	"team_size",
	"icp_score",
	"fit_level",
	"recommended_action",
	"talking_points",
	"contact",
	"attendee_name",
	"status",
	"unresolved_flags",
	"rationale",
}

// Writer wraps csv.Writer for exporting canonical records as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteBOM writes the UTF-8 byte order mark. Call it before the header.
func WriteBOM(w io.Writer) error {
	_, err := w.Write(BOM)
	return err
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(Columns)
}

// WriteRecords converts canonical records to CSV rows and writes them.
func (w *Writer) WriteRecords(recs []domain.CanonicalRecord) error {
	for i := range recs {
		if err := w.csv.Write(Row(&recs[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// Row converts one record into cells in Columns order. Score columns stay
// empty for companies that were not researched.
func Row(r *domain.CanonicalRecord) []string {
	row := make([]string, len(Columns))
	row[0] = r.CompanyName
	row[1] = r.Industry
	if r.TeamSize != nil {
		row[2] = strconv.Itoa(*r.TeamSize)
	}
	if r.Status == domain.StatusResearched {
		row[3] = strconv.Itoa(r.ICPScore)
		row[4] = string(r.FitLevel)
		row[5] = r.RecommendedAction
	}
	row[6] = strings.Join(r.TalkingPoints, "; ")
	row[7] = r.Contact.String()
	row[8] = r.AttendeeName
	row[9] = string(r.Status)
	row[10] = joinFlags(r.UnresolvedFlags)
	row[11] = r.Rationale
	if r.Rationale == "" && r.Error != "" {
		row[11] = r.Error
	}
	return row
}

func joinFlags(flags []domain.FlagKind) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
