package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/traillog/traillog/backend/go-services/internal/persistence"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
	"github.com/traillog/traillog/backend/go-services/pkg/metrics"
)

// Step names one of the three migration phases.
type Step string

const (
	StepRename  Step = "rename"
	StepDefault Step = "set_default"
	StepRemove  Step = "remove"
)

// Plan is the declared shape of one entity type.
type Plan struct {
	Entity string
	Fields []FieldDescriptor
}

// PlanFor derives the plan of entity type T.
func PlanFor[T any]() Plan {
	return Plan{Entity: persistence.CollectionName[T](""), Fields: Describe[T]()}
}

func (p Plan) field(name string) (FieldDescriptor, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// StepResult is the outcome of one rename, default or removal.
type StepResult struct {
	Step     Step   `bson:"step" json:"step"`
	Field    string `bson:"field" json:"field"`
	Target   string `bson:"target,omitempty" json:"target,omitempty"`
	Modified int64  `bson:"modified" json:"modified"`
	Error    string `bson:"error,omitempty" json:"error,omitempty"`

	// Skipped marks a step held back because a rename it depends on failed.
	Skipped bool `bson:"skipped,omitempty" json:"skipped,omitempty"`
}

// Report records one migration run against one collection.
type Report struct {
	ID         string       `bson:"_id" json:"id"`
	Entity     string       `bson:"entity" json:"entity"`
	Collection string       `bson:"collection" json:"collection"`
	StartedAt  time.Time    `bson:"startedAt" json:"startedAt"`
	FinishedAt time.Time    `bson:"finishedAt" json:"finishedAt"`
	Steps      []StepResult `bson:"steps" json:"steps"`
}

func (r *Report) EntityID() string           { return r.ID }
func (r *Report) SetEntityID(id string)      { r.ID = id }
func (r *Report) CollectionBaseName() string { return "MigrationRun" }

// Modified sums the modified-document counts of one step.
func (r *Report) Modified(step Step) int64 {
	var n int64
	for _, s := range r.Steps {
		if s.Step == step {
			n += s.Modified
		}
	}
	return n
}

func (r *Report) Skipped() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Skipped {
			out = append(out, s)
		}
	}
	return out
}

func (r *Report) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Error != "" {
			out = append(out, s)
		}
	}
	return out
}

// ReportSink persists run reports.
type ReportSink interface {
	SaveReport(ctx context.Context, r *Report) error
}

type Option func(*Migrator)

// WithClock replaces the clock used for date defaults and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Migrator) { m.now = now }
}

// WithReportSink persists every report after its run.
func WithReportSink(s ReportSink) Option {
	return func(m *Migrator) { m.sink = s }
}

// Migrator applies directives to stored documents.
type Migrator struct {
	now  func() time.Time
	sink ReportSink
}

func New(opts ...Option) *Migrator {
	m := &Migrator{now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run brings the documents of target to the shape of plan: renames first,
// then default filling of absent fields, then removals. A failing step is
// logged and recorded in the report and the remaining steps still run; the
// returned error joins all step failures.
//
// A failed rename holds back the default of its target and the removal of
// its source in the same run. Either would leave the rename unable to match
// on the next run, which must be able to retry it.
func (m *Migrator) Run(ctx context.Context, target persistence.FieldMigrator, plan Plan, d Directive) (*Report, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	col := target.CollectionName()
	rep := &Report{ID: uuid.NewString(), Entity: plan.Entity, Collection: col, StartedAt: m.now().UTC()}
	var errs []error

	record := func(res StepResult, err error) {
		if err != nil {
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s %s %s: %w", col, res.Step, res.Field, err))
			metrics.MigrationFailures.WithLabelValues(col, string(res.Step)).Inc()
			logger.With(logger.Fields{"collection": col, "step": res.Step, "field": res.Field}).Errorf("migration step failed: %v", err)
		} else if !res.Skipped {
			metrics.MigrationDocuments.WithLabelValues(col, string(res.Step)).Add(float64(res.Modified))
		}
		rep.Steps = append(rep.Steps, res)
	}
	skip := func(step Step, field, rename string) {
		logger.Warnf("migration %s: %s of %s held back until rename %s succeeds", col, step, field, rename)
		record(StepResult{Step: step, Field: field, Skipped: true}, nil)
	}

	pendingTo := make(map[string]string)
	pendingFrom := make(map[string]string)
	for _, r := range d.Renames {
		n, err := target.RenameField(ctx, r.From, r.To)
		if err == nil {
			logger.Infof("migration %s: renamed %s -> %s on %d documents", col, r.From, r.To, n)
		} else {
			label := r.From + " -> " + r.To
			pendingTo[r.To] = label
			pendingFrom[r.From] = label
		}
		record(StepResult{Step: StepRename, Field: r.From, Target: r.To, Modified: n}, err)
	}

	now := m.now()
	for _, name := range defaultFields(plan, d) {
		if rename, held := pendingTo[name]; held {
			skip(StepDefault, name, rename)
			continue
		}
		value, err := m.defaultFor(plan, d, name, now)
		if err != nil {
			record(StepResult{Step: StepDefault, Field: name}, err)
			continue
		}
		n, err := target.SetFieldDefault(ctx, name, value)
		if err == nil && n > 0 {
			logger.Infof("migration %s: set default of %s on %d documents", col, name, n)
		}
		record(StepResult{Step: StepDefault, Field: name, Modified: n}, err)
	}

	for _, name := range d.Remove {
		if rename, held := pendingFrom[name]; held {
			skip(StepRemove, name, rename)
			continue
		}
		n, err := target.UnsetField(ctx, name)
		if err == nil {
			logger.Infof("migration %s: removed %s from %d documents", col, name, n)
		}
		record(StepResult{Step: StepRemove, Field: name, Modified: n}, err)
	}

	rep.FinishedAt = m.now().UTC()
	if m.sink != nil {
		if err := m.sink.SaveReport(ctx, rep); err != nil {
			logger.Warnf("migration %s: report %s not saved: %v", col, rep.ID, err)
		}
	}
	return rep, errors.Join(errs...)
}

// defaultFields lists the declared fields plus fields only named in the
// directive's defaults, in a stable order. The identity field is always
// present and is skipped.
func defaultFields(plan Plan, d Directive) []string {
	var names []string
	seen := make(map[string]bool)
	for _, f := range plan.Fields {
		if f.Name == persistence.IdentityField || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		names = append(names, f.Name)
	}
	var extra []string
	for name := range d.Defaults {
		if !seen[name] && name != persistence.IdentityField {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func (m *Migrator) defaultFor(plan Plan, d Directive, name string, now time.Time) (any, error) {
	f, declared := plan.field(name)
	override, ok := d.Defaults[name]
	switch {
	case ok && declared:
		return coerce(f, override)
	case ok:
		return override, nil
	default:
		return DefaultValue(f, now), nil
	}
}

// Target is a registered entity type: its plan and the store holding it.
type Target struct {
	Plan  Plan
	Store persistence.FieldMigrator
}

// Registry maps entity names used in directive files to their targets.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]Target)}
}

// Register adds entity type T stored in store under its type name.
func Register[T any](r *Registry, store persistence.FieldMigrator) {
	plan := PlanFor[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[plan.Entity] = Target{Plan: plan, Store: store}
}

func (r *Registry) Lookup(entity string) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[entity]
	return t, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.targets))
	for name := range r.targets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RunAll applies each directive to its registered target. Unknown entities
// and failed steps are reported in the joined error; other directives still run.
func (m *Migrator) RunAll(ctx context.Context, r *Registry, directives []Directive) ([]*Report, error) {
	var reports []*Report
	var errs []error
	for _, d := range directives {
		t, ok := r.Lookup(d.Entity)
		if !ok {
			logger.Errorf("migration: no registered entity %q", d.Entity)
			errs = append(errs, fmt.Errorf("unknown entity %q", d.Entity))
			continue
		}
		rep, err := m.Run(ctx, t.Store, t.Plan, d)
		if rep != nil {
			reports = append(reports, rep)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// Complete appends an empty directive for every registered entity the list
// does not mention, so those collections still get their defaults filled.
func (r *Registry) Complete(directives []Directive) []Directive {
	named := make(map[string]bool, len(directives))
	for _, d := range directives {
		named[d.Entity] = true
	}
	out := append([]Directive(nil), directives...)
	for _, name := range r.Names() {
		if !named[name] {
			out = append(out, Directive{Entity: name})
		}
	}
	return out
}
