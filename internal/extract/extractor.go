// Package extract groups segmented blocks into candidate company records.
package extract

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"icpscout/internal/domain"
	"icpscout/internal/textutil"
)

// Detection confidences per pattern.
const (
	confInline     = 0.85
	confSizeCue    = 0.95
	confTable      = 0.8
	confSequential = 0.85
	confHeading    = 0.75
	confCompany    = 0.7
	confStandalone = 0.6
)

// Pattern names reported in Stats.
const (
	PatternInline     = "inline"
	PatternSizeCue    = "size_cue"
	PatternTable      = "table"
	PatternSequential = "sequential"
	PatternHeading    = "heading"
	PatternStandalone = "standalone"
)

// blocks further apart than this do not belong to the same record
const maxAttachDistance = 3

// Stats summarises one extraction pass.
type Stats struct {
	Documents int                     `json:"documents"`
	Blocks    int                     `json:"blocks"`
	Noise     int                     `json:"noise_blocks"`
	Records   int                     `json:"records"`
	Patterns  map[string]int          `json:"patterns"`
	Flags     map[domain.FlagKind]int `json:"flags"`
}

// Result is the extractor output: records in detection order plus stats.
type Result struct {
	Records []domain.CandidateRecord
	Stats   Stats
}

// Extractor is stateless and deterministic: the same blocks always produce
// the same records, IDs included.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract consumes blocks once and returns the detected records.
func (e *Extractor) Extract(blocks iter.Seq[domain.RawBlock]) *Result {
	st := &state{
		blocks: slices.Collect(blocks),
		ctx:    -1,
		last:   -1,
		name:   -1,
		stats: Stats{
			Patterns: map[string]int{},
			Flags:    map[domain.FlagKind]int{},
		},
	}
	st.layout()
	for i := 0; i < len(st.blocks); {
		i = st.step(i)
	}
	st.finish()
	return &Result{Records: st.recs, Stats: st.stats}
}

type lineKey struct{ doc, page, line int }

type colKey struct{ doc, col int }

type state struct {
	blocks  []domain.RawBlock
	cells   map[lineKey]int
	columns map[colKey]domain.BlockRole
	recs    []domain.CandidateRecord

	ctx  int // record opened by a company heading, -1 if none
	last int // most recent record, -1 if none
	name int // block index of a pending person name, -1 if none

	stats Stats
}

func keyOf(b domain.RawBlock) lineKey {
	return lineKey{b.DocIndex, b.Page, b.Line}
}

// layout counts cells per line and infers a role per table column from the
// majority role of its cells across the document.
func (st *state) layout() {
	st.cells = map[lineKey]int{}
	docs := map[int]bool{}
	for _, b := range st.blocks {
		st.cells[keyOf(b)]++
		docs[b.DocIndex] = true
	}
	st.stats.Documents = len(docs)
	st.stats.Blocks = len(st.blocks)

	counts := map[colKey]map[domain.BlockRole]int{}
	for _, b := range st.blocks {
		if st.cells[keyOf(b)] < 2 || b.Role == domain.RoleNoise || b.Role == domain.RoleHeading {
			continue
		}
		k := colKey{b.DocIndex, b.Column}
		if counts[k] == nil {
			counts[k] = map[domain.BlockRole]int{}
		}
		counts[k][b.Role]++
	}

	st.columns = map[colKey]domain.BlockRole{}
	for k, byRole := range counts {
		best, bestN := domain.BlockRole(""), 0
		for _, role := range []domain.BlockRole{domain.RoleCompany, domain.RoleName, domain.RoleTitle, domain.RoleBody, domain.RoleBio} {
			if byRole[role] > bestN {
				best, bestN = role, byRole[role]
			}
		}
		st.columns[k] = best
	}
}

func (st *state) step(i int) int {
	b := st.blocks[i]
	if st.cells[keyOf(b)] > 1 && (i == 0 || keyOf(st.blocks[i-1]) != keyOf(b)) {
		if next, ok := st.row(i); ok {
			return next
		}
	}
	return st.single(i)
}

func (st *state) single(i int) int {
	b := st.blocks[i]
	switch b.Role {
	case domain.RoleNoise:
		st.stats.Noise++
		return i + 1
	case domain.RoleHeading:
		st.heading(i)
		return i + 1
	}

	if in, ok := textutil.SplitInline(b.Text); ok {
		idx := st.emit(b, in.Company, domain.MentionSpeaker, confInline, PatternInline)
		st.recs[idx].AttendeeName = in.Name
		st.recs[idx].Contact.Title = in.Title
		st.ctx, st.name = -1, -1
		return i + 1
	}
	if company, size, ok := textutil.SplitSizeCue(b.Text); ok && textutil.IsValidCompanyName(company) {
		idx := st.emit(b, company, domain.MentionAttendee, confSizeCue, PatternSizeCue)
		st.recs[idx].TeamSize = &size
		st.ctx, st.name = -1, -1
		return i + 1
	}
	if textutil.IsContactLine(b.Text) {
		st.contact(b)
		return i + 1
	}

	switch b.Role {
	case domain.RoleName:
		return st.person(i)
	case domain.RoleTitle:
		return st.title(i)
	case domain.RoleCompany:
		return st.company(i)
	case domain.RoleBio:
		st.bio(b)
		return i + 1
	default:
		return st.body(i)
	}
}

var eventWords = map[string]bool{
	"summit": true, "expo": true, "conference": true, "forum": true, "track": true,
	"session": true, "sessions": true, "agenda": true, "keynote": true, "panel": true,
	"workshop": true, "welcome": true, "day": true, "speakers": true, "attendees": true,
	"sponsors": true, "exhibitors": true, "program": true, "schedule": true, "reception": true,
}

// isSectionText reports lines that structure the document rather than name
// a company.
func isSectionText(s string) bool {
	if textutil.IsSectionLabel(s) || !textutil.IsValidCompanyName(s) {
		return true
	}
	for _, w := range strings.Fields(textutil.Fold(s)) {
		if eventWords[strings.Trim(w, ",.:;()&-")] {
			return true
		}
	}
	return false
}

func (st *state) heading(i int) {
	b := st.blocks[i]
	st.ctx = -1
	st.name = -1
	if isSectionText(b.Text) || (textutil.IsJobTitle(b.Text) && !textutil.HasCompanyMarker(b.Text)) {
		return
	}
	// a person-shaped heading followed by a job title introduces a speaker
	if textutil.IsPersonName(b.Text) {
		if j := st.next(i); j >= 0 && st.blocks[j].Role == domain.RoleTitle {
			st.name = i
			return
		}
	}
	idx := st.emit(b, b.Text, domain.MentionListed, confHeading, PatternHeading)
	if !textutil.HasCompanyMarker(b.Text) {
		st.recs[idx].AddFlag(domain.FlagAmbiguousName, "heading is not clearly a company")
	}
	st.ctx = idx
}

// person handles a name block: inside a heading context it is the attendee,
// otherwise it may start a sequential speaker entry.
func (st *state) person(i int) int {
	b := st.blocks[i]
	if st.ctx >= 0 {
		r := &st.recs[st.ctx]
		if r.AttendeeName == "" {
			r.AttendeeName = b.Text
			r.SourceBlocks = append(r.SourceBlocks, b.Seq)
		}
		return i + 1
	}

	st.name = i
	j := st.next(i)
	if j < 0 {
		return i + 1
	}
	if next, ok := st.sequential(i, j); ok {
		return next
	}
	return i + 1
}

// sequential matches name/title/company on consecutive lines, or
// name followed by a "Title, Company" or "Title at Company" line.
func (st *state) sequential(nameIdx, j int) (int, bool) {
	nb, tb := st.blocks[nameIdx], st.blocks[j]
	switch tb.Role {
	case domain.RoleTitle:
		if k := st.next(j); k >= 0 {
			if company, size, ok := companyLike(st.blocks[k]); ok {
				idx := st.emit(nb, company, domain.MentionSpeaker, confSequential, PatternSequential, tb.Seq, st.blocks[k].Seq)
				st.recs[idx].AttendeeName = nb.Text
				st.recs[idx].Contact.Title = tb.Text
				st.recs[idx].TeamSize = size
				st.name = -1
				return k + 1, true
			}
		}
		if title, company, ok := titleAtCompany(tb.Text, false); ok {
			st.speaker(nb, tb, title, company)
			return j + 1, true
		}
	case domain.RoleCompany:
		if title, company, ok := titleAtCompany(tb.Text, true); ok {
			st.speaker(nb, tb, title, company)
			return j + 1, true
		}
		if company, size, ok := companyLike(tb); ok {
			idx := st.emit(nb, company, domain.MentionSpeaker, confSequential, PatternSequential, tb.Seq)
			st.recs[idx].AttendeeName = nb.Text
			st.recs[idx].TeamSize = size
			st.name = -1
			return j + 1, true
		}
	}
	return 0, false
}

func (st *state) speaker(nb, tb domain.RawBlock, title, company string) {
	idx := st.emit(nb, company, domain.MentionSpeaker, confSequential, PatternSequential, tb.Seq)
	st.recs[idx].AttendeeName = nb.Text
	st.recs[idx].Contact.Title = title
	st.name = -1
}

func (st *state) title(i int) int {
	b := st.blocks[i]
	if st.ctx >= 0 {
		r := &st.recs[st.ctx]
		if r.Contact.Title == "" {
			r.Contact.Title = b.Text
			r.SourceBlocks = append(r.SourceBlocks, b.Seq)
		}
		return i + 1
	}
	if st.pendingName(b) {
		if next, ok := st.sequential(st.name, i); ok {
			return next
		}
	}
	return i + 1
}

func (st *state) company(i int) int {
	b := st.blocks[i]
	if st.pendingName(b) {
		if next, ok := st.sequential(st.name, i); ok {
			return next
		}
	}
	st.ctx, st.name = -1, -1
	if isSectionText(b.Text) {
		return i + 1
	}
	idx := st.emit(b, b.Text, domain.MentionListed, confCompany, PatternStandalone)
	if !textutil.HasLegalSuffix(b.Text) && textutil.PersonShaped(b.Text) {
		st.recs[idx].AddFlag(domain.FlagAmbiguousName, "reads as both a person and a company")
	}
	return i + 1
}

func (st *state) bio(b domain.RawBlock) {
	target := st.target(b)
	if target < 0 {
		return
	}
	r := &st.recs[target]
	if n, ok := textutil.FindSizeCue(b.Text); ok && r.TeamSize == nil {
		r.TeamSize = &n
		r.SourceBlocks = append(r.SourceBlocks, b.Seq)
	}
	fillContact(r, b)
}

func (st *state) body(i int) int {
	b := st.blocks[i]
	if st.ctx >= 0 {
		st.bio(b)
		return i + 1
	}
	if !standaloneCompany(b.Text) {
		st.bio(b)
		return i + 1
	}
	idx := st.emit(b, b.Text, domain.MentionListed, confStandalone, PatternStandalone)
	st.recs[idx].AddFlag(domain.FlagAmbiguousName, "standalone line without company markers")
	st.name = -1
	return i + 1
}

func (st *state) contact(b domain.RawBlock) {
	if target := st.target(b); target >= 0 {
		fillContact(&st.recs[target], b)
	}
}

// row turns the cells of one table line into a record. It reports false when
// the line has no company cell so the cells are handled one by one.
func (st *state) row(i int) (int, bool) {
	end := i
	for end < len(st.blocks) && keyOf(st.blocks[end]) == keyOf(st.blocks[i]) {
		end++
	}
	cells := st.blocks[i:end]

	header := true
	for _, c := range cells {
		if c.Role != domain.RoleNoise && !textutil.IsSectionLabel(c.Text) {
			header = false
			break
		}
	}
	if header {
		st.ctx, st.name = -1, -1
		return end, true
	}

	var (
		company, attendee, title string
		size                     *int
		fallback                 string
		seqs                     []int
	)
	for _, c := range cells {
		text := c.Text
		if textutil.IsContactLine(text) {
			continue
		}
		if n, err := strconv.Atoi(text); err == nil && n > 0 && n < 1000 {
			size = &n
			seqs = append(seqs, c.Seq)
			continue
		}
		role := st.columns[colKey{c.DocIndex, c.Column}]
		if role == "" {
			role = c.Role
		}
		switch {
		case role == domain.RoleCompany && company == "":
			company = text
			if name, n, ok := textutil.SplitSizeCue(text); ok {
				company, size = name, &n
			}
		case role == domain.RoleName && attendee == "" && textutil.PersonShaped(text):
			attendee = text
		case role == domain.RoleTitle && title == "":
			title = text
		case fallback == "" && c.Role != domain.RoleNoise && c.Role != domain.RoleHeading &&
			textutil.IsValidCompanyName(text) && !textutil.IsPersonName(text) && !textutil.IsJobTitle(text):
			fallback = text
		default:
			continue
		}
		seqs = append(seqs, c.Seq)
	}
	if company == "" {
		company = fallback
	}
	if company == "" || isSectionText(company) {
		return i, false
	}

	role := domain.MentionListed
	if attendee != "" || size != nil {
		role = domain.MentionAttendee
	}
	idx := st.emit(cells[0], company, role, confTable, PatternTable, seqs...)
	r := &st.recs[idx]
	r.AttendeeName = attendee
	r.Contact.Title = title
	r.TeamSize = size
	for _, c := range cells {
		if textutil.IsContactLine(c.Text) {
			fillContact(r, c)
		}
	}
	st.ctx, st.name = -1, -1
	return end, true
}

func (st *state) emit(first domain.RawBlock, company string, role domain.MentionRole, conf float64, pattern string, seqs ...int) int {
	blocks := append([]int{first.Seq}, seqs...)
	slices.Sort(blocks)
	rec := domain.CandidateRecord{
		ID:           recordID(first.Source, first.Seq),
		Order:        len(st.recs),
		CompanyName:  textutil.CleanCompanyName(company),
		Roles:        []domain.MentionRole{role},
		Sources:      []string{first.Source},
		SourceBlocks: slices.Compact(blocks),
		Confidence:   conf,
	}
	st.recs = append(st.recs, rec)
	st.last = len(st.recs) - 1
	st.stats.Patterns[pattern]++
	return st.last
}

func (st *state) finish() {
	for i := range st.recs {
		r := &st.recs[i]
		if textutil.IsPersonName(r.CompanyName) {
			r.AddFlag(domain.FlagAmbiguousName, "company name looks like a person")
		}
		if r.TeamSize == nil {
			r.AddFlag(domain.FlagMissingSize, "no team size cue")
		}
		if r.AttendeeName == "" && r.Contact.IsZero() {
			r.AddFlag(domain.FlagMissingContact, "no attendee or contact details")
		}
		for _, f := range r.Flags {
			st.stats.Flags[f.Kind]++
		}
	}
	st.stats.Records = len(st.recs)
}

// next returns the index of the next non-noise block after i, or -1.
func (st *state) next(i int) int {
	for j := i + 1; j < len(st.blocks); j++ {
		if st.blocks[j].Role != domain.RoleNoise {
			return j
		}
	}
	return -1
}

func (st *state) pendingName(b domain.RawBlock) bool {
	if st.name < 0 {
		return false
	}
	nb := st.blocks[st.name]
	return nb.DocIndex == b.DocIndex && b.Seq-nb.Seq <= maxAttachDistance
}

// target picks the record a contact or bio line belongs to: the open heading
// context, else the most recent record if it ended close by.
func (st *state) target(b domain.RawBlock) int {
	if st.ctx >= 0 {
		return st.ctx
	}
	if st.last < 0 {
		return -1
	}
	r := &st.recs[st.last]
	lastSeq := r.SourceBlocks[len(r.SourceBlocks)-1]
	if r.Sources[0] != b.Source || b.Seq-lastSeq > maxAttachDistance {
		return -1
	}
	return st.last
}

func fillContact(r *domain.CandidateRecord, b domain.RawBlock) {
	touched := false
	if e := textutil.FindEmail(b.Text); e != "" && r.Contact.Email == "" {
		r.Contact.Email = e
		touched = true
	}
	if p := textutil.FindPhone(b.Text); p != "" && r.Contact.Phone == "" {
		r.Contact.Phone = p
		touched = true
	}
	if touched {
		r.SourceBlocks = append(r.SourceBlocks, b.Seq)
	}
}

// companyLike accepts a company-role block, a size-cue line, or a short
// capitalised body line that cannot be anything else.
func companyLike(b domain.RawBlock) (string, *int, bool) {
	if name, n, ok := textutil.SplitSizeCue(b.Text); ok && textutil.IsValidCompanyName(name) {
		return name, &n, true
	}
	switch b.Role {
	case domain.RoleCompany:
		return b.Text, nil, !isSectionText(b.Text)
	case domain.RoleBody:
		return b.Text, nil, standaloneCompany(b.Text)
	}
	return "", nil, false
}

// titleAtCompany splits "Title at Company" and, when comma is set,
// "Title, Company" where the company part carries a company marker.
func titleAtCompany(s string, comma bool) (string, string, bool) {
	title, company, ok := textutil.SplitTitleCompany(s)
	if !ok || !textutil.IsJobTitle(title) || !textutil.IsValidCompanyName(company) {
		return "", "", false
	}
	if textutil.IsJobTitle(company) && !textutil.HasCompanyMarker(company) {
		return "", "", false
	}
	isAt := strings.Contains(strings.ToLower(s), " at ") || strings.Contains(s, "@")
	if !isAt && (!comma || !textutil.HasCompanyMarker(company)) {
		return "", "", false
	}
	return title, company, true
}

func standaloneCompany(s string) bool {
	if len(s) <= 5 || textutil.WordCount(s) > 6 || isSectionText(s) {
		return false
	}
	if !unicode.IsUpper([]rune(s)[0]) || textutil.IsJobTitle(s) || textutil.IsContactLine(s) {
		return false
	}
	return !strings.ContainsAny(s, ".!?;") || textutil.HasLegalSuffix(s)
}

func recordID(source string, seq int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", source, seq))).String()
}
