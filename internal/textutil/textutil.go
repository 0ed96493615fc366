// Package textutil holds the line-level heuristics shared by the segmenter
// and the extractor.
package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize trims, collapses internal whitespace and applies NFKC.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Fold is Normalize plus lower-casing, for comparisons.
func Fold(s string) string {
	return strings.ToLower(Normalize(s))
}

var (
	pageNumberRe = regexp.MustCompile(`^(page\s+)?\d+(\s*(of|/)\s*\d+)?$`)
	timeRe       = regexp.MustCompile(`^\d{1,2}[:.]\d{2}`)
	clockRe      = regexp.MustCompile(`(?i)\b\d{1,2}([:.]\d{2})?\s*(am|pm)\b`)
	dayRe        = regexp.MustCompile(`(?i)\bday\s+\d+\b`)
	punctOnlyRe  = regexp.MustCompile(`^[\W_]+$`)
	titleRe      = regexp.MustCompile(`(?i)\b(VP|SVP|EVP|AVP|Vice President|Director|Manager|Head of|Head|Chief|CEO|COO|CTO|CFO|CIO|CCO|CMO|President|Chairman|Founder|Co-Founder|Partner|Lead|Engineer|Architect|Officer|Principal|Analyst|Consultant|Specialist)\b`)
	loneTitleRe  = regexp.MustCompile(`(?i)^(VP|Director|Manager|CEO|COO|CTO|CFO|President|Chief|Head)$`)
	emailRe      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe      = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
)

var noiseWords = map[string]bool{
	"page": true, "agenda": true, "schedule": true, "copyright": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// skipWords are single-line labels that are never company names.
var skipWords = map[string]bool{
	"page": true, "agenda": true, "schedule": true, "conference": true, "workshop": true,
	"keynote": true, "session": true, "break": true, "lunch": true, "dinner": true,
	"welcome": true, "opening": true, "closing": true, "panel": true, "discussion": true,
	"q&a": true, "networking": true, "speakers": true, "speaker": true, "attendees": true,
	"attendee": true, "attendee list": true, "speaker list": true, "sponsors": true,
	"exhibitors": true, "name": true, "company": true, "title": true, "organization": true,
	"email": true, "phone": true, "role": true, "position": true, "team size": true,
	"contact": true, "registration": true, "coffee break": true, "breakout": true,
}

var legalSuffixes = []string{
	"inc", "inc.", "incorporated", "llc", "l.l.c.", "corp", "corp.", "corporation",
	"ltd", "ltd.", "limited", "gmbh", "plc", "ag", "s.a.", "sa", "co", "co.", "llp", "pty",
}

var companyKeywords = []string{
	"group", "technologies", "technology", "systems", "solutions", "networks", "labs",
	"holdings", "industries", "partners", "services", "software", "telecom", "medical",
	"manufacturing", "energy", "logistics", "communications", "devices", "data", "analytics",
	"international", "global", "enterprises", "ventures", "robotics", "automation", "health",
}

// IsNoise reports header/footer lines, page numbers and timestamps.
func IsNoise(s string) bool {
	s = Normalize(s)
	if s == "" {
		return true
	}
	if len(s) > 100 {
		return false
	}
	lower := strings.ToLower(s)
	if pageNumberRe.MatchString(lower) || timeRe.MatchString(s) || punctOnlyRe.MatchString(s) {
		return true
	}
	if strings.Contains(lower, "©") || strings.Contains(lower, "all rights reserved") {
		return true
	}
	if len(s) >= 50 {
		return false
	}
	if clockRe.MatchString(s) || dayRe.MatchString(s) {
		return true
	}
	for _, w := range strings.Fields(lower) {
		if noiseWords[strings.Trim(w, ",.:;|-")] {
			return true
		}
	}
	return false
}

// IsSectionLabel reports generic section labels such as "Speakers" or "Lunch".
func IsSectionLabel(s string) bool {
	return skipWords[Fold(s)]
}

// IsJobTitle reports a short line dominated by a job title.
func IsJobTitle(s string) bool {
	s = Normalize(s)
	if s == "" || len(strings.Fields(s)) > 10 {
		return false
	}
	return titleRe.MatchString(s)
}

// PersonShaped reports 2-4 words that each start with an upper-case letter
// and contain no digits.
func PersonShaped(s string) bool {
	words := strings.Fields(Normalize(s))
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return false
		}
		for _, c := range r {
			if unicode.IsDigit(c) {
				return false
			}
		}
	}
	return true
}

// IsPersonName reports a person-shaped line that carries no company marker
// and no job title.
func IsPersonName(s string) bool {
	return PersonShaped(s) && !HasCompanyMarker(s) && !IsJobTitle(s) && !IsSectionLabel(s)
}

// IsValidCompanyName rejects lines that can never be company names.
func IsValidCompanyName(s string) bool {
	s = Normalize(s)
	if len(s) < 3 {
		return false
	}
	if _, err := strconv.Atoi(s); err == nil {
		return false
	}
	if IsLegalSuffix(s) || punctOnlyRe.MatchString(s) || IsSectionLabel(s) || loneTitleRe.MatchString(s) {
		return false
	}
	if emailRe.MatchString(s) {
		return false
	}
	return unicode.IsLetter([]rune(s)[0]) || unicode.IsDigit([]rune(s)[0])
}

// HasLegalSuffix reports a trailing corporate form such as "Inc." or "GmbH".
func HasLegalSuffix(s string) bool {
	words := strings.Fields(Fold(s))
	if len(words) < 2 {
		return false
	}
	last := strings.Trim(words[len(words)-1], ",")
	for _, suf := range legalSuffixes {
		if last == suf {
			return true
		}
	}
	return false
}

// IsLegalSuffix reports a string that is nothing but a corporate form.
func IsLegalSuffix(s string) bool {
	s = strings.Trim(Fold(s), " ,")
	for _, suf := range legalSuffixes {
		if s == suf {
			return true
		}
	}
	return false
}

// HasCompanyMarker reports a legal suffix or an industry keyword.
func HasCompanyMarker(s string) bool {
	if HasLegalSuffix(s) {
		return true
	}
	for _, w := range strings.Fields(Fold(s)) {
		w = strings.Trim(w, ",.()")
		for _, kw := range companyKeywords {
			if w == kw {
				return true
			}
		}
	}
	return false
}

var displaySuffixes = []string{
	", Inc.", ", Inc", " Inc.", " Inc", ", LLC", " LLC", " Corp.", " Corp",
	" Corporation", ", Ltd.", " Ltd.", " Ltd", " Limited",
}

// CleanCompanyName collapses whitespace and strips a trailing legal form for display.
func CleanCompanyName(s string) string {
	s = Normalize(s)
	s = strings.Trim(s, " ,;:-–—|")
	for _, suf := range displaySuffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			s = strings.TrimSuffix(s, suf)
			break
		}
	}
	return strings.TrimSpace(strings.TrimRight(s, ","))
}

// FindEmail returns the first e-mail address in s.
func FindEmail(s string) string {
	return emailRe.FindString(s)
}

// FindPhone returns the first phone-like number in s.
func FindPhone(s string) string {
	m := phoneRe.FindString(s)
	digits := 0
	for _, c := range m {
		if unicode.IsDigit(c) {
			digits++
		}
	}
	if digits < 9 {
		return ""
	}
	return strings.TrimSpace(m)
}

// IsContactLine reports a line that holds only an e-mail address and/or a phone number.
func IsContactLine(s string) bool {
	rest := emailRe.ReplaceAllString(s, "")
	if p := FindPhone(rest); p != "" {
		rest = strings.Replace(rest, p, "", 1)
	}
	rest = strings.Trim(Fold(rest), " |,;:/-")
	for _, label := range []string{"email", "e-mail", "phone", "tel", "mobile", "t", "e", "m"} {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, label))
		rest = strings.Trim(rest, " |,;:/-")
	}
	return rest == "" && (FindEmail(s) != "" || FindPhone(s) != "")
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
