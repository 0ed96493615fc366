// Package store is the shared context store both pipeline stages write into.
//
// Every company identity has one entry holding its merged record, the raw
// mentions it came from, per-field provenance and the research result.
// Entries are locked individually; the store lock only guards the key map.
// Field writes never clobber: a populated field is only replaced when the
// write resolves a quality flag the record carries.
package store

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"icpscout/internal/domain"
	"icpscout/internal/textutil"
)

// Fields that can be written through Fill.
const (
	FieldCompanyName  = "company_name"
	FieldAttendeeName = "attendee_name"
	FieldContactTitle = "contact.title"
	FieldContactEmail = "contact.email"
	FieldContactPhone = "contact.phone"
	FieldTeamSize     = "team_size"
)

// Event kinds recorded in the change log.
const (
	EventEnrich   = "enrich"
	EventResolve  = "resolve"
	EventConflict = "conflict"
	EventResearch = "research"
	EventUpdate   = "update"
)

// Outcome reports what a Fill did.
type Outcome string

const (
	OutcomeWritten     Outcome = "written"
	OutcomeAgreed      Outcome = "agreed"
	OutcomeKept        Outcome = "kept"
	OutcomeOverwritten Outcome = "overwritten"
)

// Update is one proposed field write.
type Update struct {
	Field string
	Value string
	Stage string
	// Resolves names the flag whose evidence this write carries. Only such
	// a write may replace an existing value.
	Resolves domain.FlagKind
}

// Key returns the identity key for a company name.
func Key(name string) string {
	return textutil.CompanyKey(name)
}

type entry struct {
	mu         sync.Mutex
	record     *domain.CandidateRecord
	mentions   []domain.CandidateRecord
	provenance map[string]string
	result     *domain.ResearchResult
}

// Snapshot is a point-in-time copy of one entry.
type Snapshot struct {
	Key        string
	Record     domain.CandidateRecord
	Mentions   []domain.CandidateRecord
	Provenance map[string]string
	Result     *domain.ResearchResult
}

// Store holds one entry per company identity.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	evMu   sync.Mutex
	events []domain.StoreEvent
	now    func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: map[string]*entry{},
		now:     time.Now,
	}
}

// Add registers a merged record under key together with the mentions it was
// merged from. Registration order is the detection order kept by Snapshot.
func (s *Store) Add(key string, rec *domain.CandidateRecord, mentions []domain.CandidateRecord) error {
	if key == "" {
		return fmt.Errorf("store.Add: empty key for %q", rec.CompanyName)
	}
	e := &entry{
		record:     rec.Clone(),
		provenance: map[string]string{},
	}
	for _, m := range mentions {
		e.mentions = append(e.mentions, *m.Clone())
	}
	for _, f := range []string{FieldCompanyName, FieldAttendeeName, FieldContactTitle, FieldContactEmail, FieldContactPhone, FieldTeamSize} {
		if v, _ := getField(e.record, f); v != "" {
			e.provenance[f] = domain.SourceExtraction
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return fmt.Errorf("store.Add: key %q already registered", key)
	}
	s.entries[key] = e
	s.order = append(s.order, key)
	return nil
}

func (s *Store) entry(key string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("store: %q: %w", key, domain.ErrUnknownIdentity)
	}
	return e, nil
}

// Fill proposes a value for one field of key's record.
//
//	unset field                   -> written
//	equal value                   -> agreed
//	different, flag being resolved -> overwritten, flag removed
//	different otherwise            -> kept, logged as a conflict
func (s *Store) Fill(key string, u Update) (Outcome, error) {
	e, err := s.entry(key)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(u.Value)

	e.mu.Lock()
	defer e.mu.Unlock()

	cur, err := getField(e.record, u.Field)
	if err != nil {
		return "", err
	}
	if value == "" {
		return OutcomeKept, nil
	}
	resolving := u.Resolves != "" && e.record.HasFlag(u.Resolves)

	switch {
	case cur == "":
		if err := setField(e.record, u.Field, value); err != nil {
			return "", err
		}
		e.provenance[u.Field] = u.Stage
		if resolving {
			e.record.RemoveFlag(u.Resolves)
			s.log(EventResolve, key, u.Field, u.Stage, fmt.Sprintf("%s resolved: set %q", u.Resolves, value))
		} else {
			s.log(EventEnrich, key, u.Field, u.Stage, fmt.Sprintf("set %q", value))
		}
		return OutcomeWritten, nil

	case strings.EqualFold(cur, value):
		if resolving {
			e.record.RemoveFlag(u.Resolves)
			s.log(EventResolve, key, u.Field, u.Stage, fmt.Sprintf("%s resolved: confirmed %q", u.Resolves, cur))
		}
		return OutcomeAgreed, nil

	case resolving:
		if err := setField(e.record, u.Field, value); err != nil {
			return "", err
		}
		e.provenance[u.Field] = u.Stage
		e.record.RemoveFlag(u.Resolves)
		s.log(EventResolve, key, u.Field, u.Stage, fmt.Sprintf("%s resolved: %q replaced by %q", u.Resolves, cur, value))
		return OutcomeOverwritten, nil

	default:
		c := &domain.ReconciliationConflict{Key: key, Field: u.Field, Kept: cur, Discarded: value}
		s.log(EventConflict, key, u.Field, u.Stage, c.Error())
		return OutcomeKept, nil
	}
}

// ResolveFlag removes a flag on oracle evidence that carries no field value.
// It reports whether the flag was present.
func (s *Store) ResolveFlag(key string, kind domain.FlagKind, stage, note string) (bool, error) {
	e, err := s.entry(key)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.record.HasFlag(kind) {
		return false, nil
	}
	e.record.RemoveFlag(kind)
	s.log(EventResolve, key, "", stage, fmt.Sprintf("%s resolved: %s", kind, note))
	return true, nil
}

// Flag adds a quality flag to key's record.
func (s *Store) Flag(key string, kind domain.FlagKind, stage, note string) error {
	e, err := s.entry(key)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.record.HasFlag(kind) {
		return nil
	}
	e.record.AddFlag(kind, note)
	s.log(EventUpdate, key, "", stage, fmt.Sprintf("flagged %s: %s", kind, note))
	return nil
}

// Attach stores the research result for key. A later call replaces it.
func (s *Store) Attach(key string, res *domain.ResearchResult) error {
	e, err := s.entry(key)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.result = res
	e.mu.Unlock()

	detail := string(res.Status)
	if res.Error != "" {
		detail += ": " + res.Error
	}
	s.log(EventResearch, key, "", domain.SourceResearch, detail)
	return nil
}

// Result returns the research result attached to key, or nil.
func (s *Store) Result(key string) (*domain.ResearchResult, error) {
	e, err := s.entry(key)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, nil
}

// Get returns a copy of key's entry.
func (s *Store) Get(key string) (Snapshot, error) {
	e, err := s.entry(key)
	if err != nil {
		return Snapshot{}, err
	}
	return e.snapshot(key), nil
}

// Snapshot copies every entry in registration order.
func (s *Store) Snapshot() []Snapshot {
	s.mu.RLock()
	keys := slices.Clone(s.order)
	entries := make([]*entry, len(keys))
	for i, k := range keys {
		entries[i] = s.entries[k]
	}
	s.mu.RUnlock()

	out := make([]Snapshot, len(keys))
	for i, e := range entries {
		out[i] = e.snapshot(keys[i])
	}
	return out
}

// Keys returns the registered keys in registration order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Len returns the number of identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Events returns a copy of the change log.
func (s *Store) Events() []domain.StoreEvent {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	return slices.Clone(s.events)
}

func (s *Store) log(kind, key, field, stage, detail string) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	s.events = append(s.events, domain.StoreEvent{
		Seq:       len(s.events) + 1,
		Kind:      kind,
		Key:       key,
		Field:     field,
		Stage:     stage,
		Detail:    detail,
		CreatedAt: s.now().UTC(),
	})
}

func (e *entry) snapshot(key string) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		Key:        key,
		Record:     *e.record.Clone(),
		Provenance: maps.Clone(e.provenance),
		Result:     e.result,
	}
	for _, m := range e.mentions {
		snap.Mentions = append(snap.Mentions, *m.Clone())
	}
	return snap
}

func getField(r *domain.CandidateRecord, field string) (string, error) {
	switch field {
	case FieldCompanyName:
		return r.CompanyName, nil
	case FieldAttendeeName:
		return r.AttendeeName, nil
	case FieldContactTitle:
		return r.Contact.Title, nil
	case FieldContactEmail:
		return r.Contact.Email, nil
	case FieldContactPhone:
		return r.Contact.Phone, nil
	case FieldTeamSize:
		if r.TeamSize == nil {
			return "", nil
		}
		return strconv.Itoa(*r.TeamSize), nil
	}
	return "", fmt.Errorf("store: unknown field %q", field)
}

func setField(r *domain.CandidateRecord, field, value string) error {
	switch field {
	case FieldCompanyName:
		r.CompanyName = value
	case FieldAttendeeName:
		r.AttendeeName = value
	case FieldContactTitle:
		r.Contact.Title = value
	case FieldContactEmail:
		r.Contact.Email = value
	case FieldContactPhone:
		r.Contact.Phone = value
	case FieldTeamSize:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("store: team size %q is not a count", value)
		}
		r.TeamSize = &n
	default:
		return fmt.Errorf("store: unknown field %q", field)
	}
	return nil
}
