package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "Acme Corp (Team of 4)", "Acme Corp (4 attendees)", "Acme Corp (4)"
	teamParenRe = regexp.MustCompile(`(?i)^(.+?)\s*\(\s*(?:team of\s+)?(\d{1,3}|[a-z]+)(?:\s+(?:attendees|people|delegates|members|persons))?\s*\)\s*$`)
	// "Acme Corp - 4 attendees", "Acme Corp: team of 4"
	teamDashRe = regexp.MustCompile(`(?i)^(.+?)\s*[-–—:|]\s*(?:team of\s+)?(\d{1,3}|[a-z]+)(?:\s+(?:attendees|people|delegates|members|persons))\s*$`)
	teamOfRe   = regexp.MustCompile(`(?i)^(.+?)\s*[-–—:|]\s*team of\s+(\d{1,3}|[a-z]+)\s*$`)
	// free text: "a team of 12", "15-person team", "8 attendees"
	teamTextRe = regexp.MustCompile(`(?i)\b(?:team of\s+(\d{1,3}|[a-z]+)|(\d{1,3})[- ](?:person|people|member) team|(\d{1,3})\s+(?:attendees|delegates))\b`)

	inlineDashRe = regexp.MustCompile(`\s+[—–-]\s+`)
	atRe         = regexp.MustCompile(`(?i)\s+(?:at|@)\s+`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20,
}

func parseSize(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, n > 0
	}
	n, ok := numberWords[strings.ToLower(s)]
	return n, ok
}

// SplitSizeCue recognises "Company (Team of N)" style lines and returns the
// company part and the team size.
func SplitSizeCue(s string) (company string, size int, ok bool) {
	s = Normalize(s)
	for _, re := range []*regexp.Regexp{teamParenRe, teamDashRe, teamOfRe} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, valid := parseSize(m[2])
		if !valid {
			continue
		}
		return strings.TrimSpace(m[1]), n, true
	}
	return "", 0, false
}

// FindSizeCue scans free text such as a bio for an explicit team size.
func FindSizeCue(s string) (int, bool) {
	m := teamTextRe.FindStringSubmatch(Normalize(s))
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		if n, ok := parseSize(g); ok {
			return n, true
		}
	}
	return 0, false
}

// Inline is a single-line speaker entry.
type Inline struct {
	Name    string
	Title   string
	Company string
}

// SplitInline recognises "Name — Title, Company", "Name, Title, Company",
// "Name | Title | Company" and "Name — Title at Company".
func SplitInline(s string) (Inline, bool) {
	s = Normalize(s)

	if parts := joinLegalSuffix(splitTrim(s, "|"), " "); len(parts) >= 3 {
		return inlineFrom(parts[0], strings.Join(parts[1:len(parts)-1], ", "), parts[len(parts)-1])
	}

	if loc := inlineDashRe.FindStringIndex(s); loc != nil {
		name, rest := s[:loc[0]], s[loc[1]:]
		if title, company, ok := splitTitleCompany(rest); ok {
			return inlineFrom(name, title, company)
		}
	}

	if parts := joinLegalSuffix(splitTrim(s, ","), ", "); len(parts) >= 3 {
		return inlineFrom(parts[0], strings.Join(parts[1:len(parts)-1], ", "), parts[len(parts)-1])
	}
	return Inline{}, false
}

// SplitTitleCompany splits "VP Support, Acme Corp" or "VP Support at Acme Corp".
func SplitTitleCompany(s string) (title, company string, ok bool) {
	return splitTitleCompany(Normalize(s))
}

func splitTitleCompany(s string) (string, string, bool) {
	if loc := atRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[:loc[0]]), strings.TrimSpace(s[loc[1]:]), true
	}
	i := strings.LastIndex(s, ",")
	// "VP Ops, Acme, Inc." splits before "Acme"
	if i > 0 && IsLegalSuffix(s[i+1:]) {
		i = strings.LastIndex(s[:i], ",")
	}
	if i > 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
	}
	return "", "", false
}

// joinLegalSuffix folds a trailing part that is only a legal form back onto
// the part before it, so "Acme, Inc." stays one company.
func joinLegalSuffix(parts []string, sep string) []string {
	if n := len(parts); n >= 2 && IsLegalSuffix(parts[n-1]) {
		joined := parts[n-2] + sep + parts[n-1]
		return append(parts[:n-2:n-2], joined)
	}
	return parts
}

func inlineFrom(name, title, company string) (Inline, bool) {
	name, title, company = strings.TrimSpace(name), strings.TrimSpace(title), strings.TrimSpace(company)
	if !IsPersonName(name) || !IsValidCompanyName(company) || (IsJobTitle(company) && !HasCompanyMarker(company)) {
		return Inline{}, false
	}
	if title != "" && !IsJobTitle(title) {
		return Inline{}, false
	}
	return Inline{Name: name, Title: title, Company: company}, true
}

func splitTrim(s, sep string) []string {
	raw := strings.Split(s, sep)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
