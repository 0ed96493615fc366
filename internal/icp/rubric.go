// Package icp holds the Ideal Customer Profile rubric companies are scored against.
package icp

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"icpscout/internal/scoring"
)

//go:embed rubric.yaml
var defaultRubric []byte

// Rubric describes the seller and the profile of a good-fit customer.
type Rubric struct {
	Seller struct {
		Name  string `yaml:"name"`
		Pitch string `yaml:"pitch"`
	} `yaml:"seller"`
	Industries struct {
		Primary  []string `yaml:"primary"`
		Adjacent []string `yaml:"adjacent"`
	} `yaml:"industries"`
	CompanySize struct {
		MinEmployees   int `yaml:"min_employees"`
		IdealEmployees int `yaml:"ideal_employees"`
	} `yaml:"company_size"`
	TechStack  []string `yaml:"tech_stack"`
	Operations []string `yaml:"operations"`
	Personas   struct {
		Perfect  []string `yaml:"perfect"`
		Relevant []string `yaml:"relevant"`
	} `yaml:"personas"`
	PainPoints []string        `yaml:"pain_points"`
	Penalties  []string        `yaml:"penalties"`
	Weights    scoring.Weights `yaml:"weights"`
}

// Default returns the built-in rubric.
func Default() (*Rubric, error) {
	return parse(defaultRubric)
}

// Load reads a rubric from path, or returns the built-in one when path is empty.
func Load(path string) (*Rubric, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("icp.Load: %w", err)
	}
	r, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("icp.Load %s: %w", path, err)
	}
	return r, nil
}

func parse(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing rubric: %w", err)
	}
	if r.Seller.Name == "" {
		return nil, fmt.Errorf("rubric has no seller name")
	}
	if r.Weights == (scoring.Weights{}) {
		r.Weights = scoring.DefaultWeights
	}
	if err := r.Weights.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Summary renders the rubric as prompt text.
func (r *Rubric) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Seller: %s\n%s\n\n", r.Seller.Name, r.Seller.Pitch)
	fmt.Fprintf(&b, "Primary industries: %s\n", strings.Join(r.Industries.Primary, ", "))
	fmt.Fprintf(&b, "Adjacent industries: %s\n", strings.Join(r.Industries.Adjacent, ", "))
	fmt.Fprintf(&b, "Company size: %d+ employees, ideally %d+\n", r.CompanySize.MinEmployees, r.CompanySize.IdealEmployees)
	fmt.Fprintf(&b, "Tech stack signals: %s\n", strings.Join(r.TechStack, ", "))
	fmt.Fprintf(&b, "Operations signals: %s\n", strings.Join(r.Operations, "; "))
	fmt.Fprintf(&b, "Buyer personas: %s\n", strings.Join(r.Personas.Perfect, ", "))
	fmt.Fprintf(&b, "Pain points: %s\n", strings.Join(r.PainPoints, "; "))
	if len(r.Penalties) > 0 {
		fmt.Fprintf(&b, "Penalties: %s\n", strings.Join(r.Penalties, "; "))
	}
	return b.String()
}

// SizeBracket buckets an employee count against the rubric's size targets.
func (r *Rubric) SizeBracket(employees int) string {
	switch {
	case employees <= 0:
		return ""
	case employees >= r.CompanySize.IdealEmployees:
		return fmt.Sprintf("enterprise (%d+)", r.CompanySize.IdealEmployees)
	case employees >= r.CompanySize.MinEmployees:
		return fmt.Sprintf("mid-market (%d-%d)", r.CompanySize.MinEmployees, r.CompanySize.IdealEmployees-1)
	default:
		return fmt.Sprintf("small (<%d)", r.CompanySize.MinEmployees)
	}
}

var digitsRe = regexp.MustCompile(`\d+`)

// ParseEmployeeCount reads loosely formatted headcounts such as "about 5,000",
// "1000-5000" or "10k+". A range yields its midpoint. Unknown yields 0.
func ParseEmployeeCount(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "unknown" {
		return 0
	}
	s = strings.NewReplacer(",", "", "+", "", "approximately", "", "about", "", "~", "").Replace(s)
	s = strings.TrimSpace(s)

	if lo, hi, ok := strings.Cut(s, "-"); ok {
		a, errA := parseCount(lo)
		b, errB := parseCount(hi)
		if errA == nil && errB == nil {
			return (a + b) / 2
		}
	}
	n, err := parseCount(s)
	if err != nil {
		return 0
	}
	return n
}

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	mult := 1
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	m := digitsRe.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("no digits in %q", s)
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}
