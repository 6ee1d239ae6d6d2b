package engine

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Part names the two halves of an HTTP interaction. Message interactions use
// PartRequest for their contents.
type Part string

const (
	PartRequest  Part = "request"
	PartResponse Part = "response"
)

// Target names a rule category within a part, mirroring the pact-file
// matchingRules categories.
type Target string

const (
	TargetBody     Target = "body"
	TargetHeader   Target = "header"
	TargetPath     Target = "path"
	TargetQuery    Target = "query"
	TargetStatus   Target = "status"
	TargetMetadata Target = "metadata"
)

// Valid reports whether t names a known interaction target.
func (t Target) Valid() bool {
	switch t {
	case TargetBody, TargetHeader, TargetPath, TargetQuery, TargetStatus, TargetMetadata:
		return true
	}
	return false
}

// ProviderState is a named fixture the provider establishes before
// verification, with optional parameters.
type ProviderState struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

type recordState int

const (
	stateDeclared recordState = iota
	stateTemplated
	stateSealed
)

type interactionSlot struct {
	template Value
	rules    *RuleTree
}

// InteractionRecord is one reusable contract unit: per-part, per-target
// expected templates and their rule trees. Records are mutable while being
// authored and seal when added to a Pact; matching and generation are
// read-only and safe to run concurrently against a sealed record.
type InteractionRecord struct {
	Description string
	Key         string

	mu             sync.RWMutex
	providerStates []ProviderState
	slots          map[Part]map[Target]*interactionSlot
	state          recordState
}

func NewInteraction(description string) *InteractionRecord {
	return &InteractionRecord{
		Description: description,
		slots:       map[Part]map[Target]*interactionSlot{},
	}
}

// Given appends a provider state. Records may carry several.
func (r *InteractionRecord) Given(name string, params map[string]interface{}) *InteractionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providerStates = append(r.providerStates, ProviderState{Name: name, Params: params})
	return r
}

func (r *InteractionRecord) ProviderStates() []ProviderState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderState, len(r.providerStates))
	copy(out, r.providerStates)
	return out
}

// WithTemplate attaches the expected value for a part/target, converting the
// host value. The record moves to the templated state.
func (r *InteractionRecord) WithTemplate(part Part, target Target, host interface{}) error {
	if !target.Valid() {
		return errors.Errorf("unknown rule target %q", target)
	}
	value, err := FromHost(host)
	if err != nil {
		return errors.Wrapf(err, "template for %s %s", part, target)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == stateSealed {
		return errSealed(r.Description)
	}
	r.slot(part, target).template = value
	r.state = stateTemplated
	return nil
}

// WithRules attaches the rule tree for a part/target.
func (r *InteractionRecord) WithRules(part Part, target Target, rules *RuleTree) error {
	if !target.Valid() {
		return errors.Errorf("unknown rule target %q", target)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == stateSealed {
		return errSealed(r.Description)
	}
	r.slot(part, target).rules = rules
	r.state = stateTemplated
	return nil
}

func (r *InteractionRecord) slot(part Part, target Target) *interactionSlot {
	targets, ok := r.slots[part]
	if !ok {
		targets = map[Target]*interactionSlot{}
		r.slots[part] = targets
	}
	s, ok := targets[target]
	if !ok {
		s = &interactionSlot{}
		targets[target] = s
	}
	return s
}

func (r *InteractionRecord) lookup(part Part, target Target) (*interactionSlot, bool) {
	targets, ok := r.slots[part]
	if !ok {
		return nil, false
	}
	s, ok := targets[target]
	return s, ok
}

// Template returns the expected value for a part/target, if one is set.
func (r *InteractionRecord) Template(part Part, target Target) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.lookup(part, target)
	if !ok || s.template == nil {
		return nil, false
	}
	return s.template, true
}

// Rules returns the rule tree for a part/target; never nil.
func (r *InteractionRecord) Rules(part Part, target Target) *RuleTree {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.lookup(part, target)
	if !ok || s.rules == nil {
		return NewRuleTree()
	}
	return s.rules
}

// Targets lists the targets holding a template or rules for the part.
func (r *InteractionRecord) Targets(part Part) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Target
	for _, t := range []Target{TargetPath, TargetQuery, TargetHeader, TargetBody, TargetStatus, TargetMetadata} {
		if _, ok := r.lookup(part, t); ok {
			out = append(out, t)
		}
	}
	return out
}

// Match evaluates an actual host value against the part/target template and
// rules. Mismatches come back as data; only API misuse is an error.
func (r *InteractionRecord) Match(part Part, target Target, actualHost interface{}) (MatchResult, error) {
	actual, err := FromHost(actualHost)
	if err != nil {
		return MatchResult{}, errors.Wrapf(err, "actual value for %s %s", part, target)
	}

	r.mu.RLock()
	s, ok := r.lookup(part, target)
	r.mu.RUnlock()
	if !ok || s.template == nil {
		return MatchResult{}, errors.Errorf("interaction %q has no %s %s template", r.Description, part, target)
	}

	result := ApplyMatchers(s.rules, s.template, actual)
	log.WithFields(log.Fields{
		"interaction": r.Description,
		"part":        part,
		"target":      target,
		"matched":     result.Matched,
	}).Debug("evaluated interaction")
	return result, nil
}

// Generate synthesizes the concrete value for a part/target by applying the
// generator rules to the template.
func (r *InteractionRecord) Generate(part Part, target Target, ctx *GenerationContext) (Value, error) {
	r.mu.RLock()
	s, ok := r.lookup(part, target)
	r.mu.RUnlock()
	if !ok || s.template == nil {
		return nil, errors.Errorf("interaction %q has no %s %s template", r.Description, part, target)
	}
	return ApplyGenerators(s.rules, s.template, ctx)
}

func (r *InteractionRecord) seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = stateSealed
}

// Sealed reports whether the record has been added to a Pact.
func (r *InteractionRecord) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == stateSealed
}

func errSealed(description string) error {
	return errors.Errorf("interaction %q is sealed and cannot be modified", description)
}

// InteractionStore is a concurrency-safe set of records, addressable by
// description and by key.
type InteractionStore struct {
	interactions sync.Map
}

func (s *InteractionStore) Store(record *InteractionRecord) {
	s.interactions.Store(record.Description, record)
	if record.Key != "" {
		s.interactions.Store(record.Key, record)
	}
}

func (s *InteractionStore) Load(key string) (*InteractionRecord, bool) {
	result, ok := s.interactions.Load(key)
	if !ok {
		return nil, false
	}
	return result.(*InteractionRecord), true
}

func (s *InteractionStore) All() []*InteractionRecord {
	seen := map[*InteractionRecord]bool{}
	var records []*InteractionRecord
	s.interactions.Range(func(_, v interface{}) bool {
		record := v.(*InteractionRecord)
		if !seen[record] {
			seen[record] = true
			records = append(records, record)
		}
		return true
	})
	return records
}

func (s *InteractionStore) Clear() {
	s.interactions.Range(func(k, _ interface{}) bool {
		s.interactions.Delete(k)
		return true
	})
}

// Pact owns a set of sealed interaction records for one consumer/provider
// pair. Records never outlive their Pact.
type Pact struct {
	Consumer string
	Provider string

	store InteractionStore
}

func NewPact(consumer, provider string) *Pact {
	return &Pact{Consumer: consumer, Provider: provider}
}

// Add seals the record and takes ownership of it.
func (p *Pact) Add(record *InteractionRecord) {
	record.seal()
	p.store.Store(record)
}

func (p *Pact) Interaction(key string) (*InteractionRecord, bool) {
	return p.store.Load(key)
}

func (p *Pact) Interactions() []*InteractionRecord {
	return p.store.All()
}
