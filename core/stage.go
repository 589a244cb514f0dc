package core

import (
	"fmt"
	"maps"

	"github.com/signalsfoundry/rfcascade/model"
)

// Stage is one element of a chain: the declared spec plus the values the
// evaluator derives for it. Lookups go raw, then cascade, then computed,
// then the kind's formula, whose result is memoized in the computed cache.
//
// A Stage is not safe for concurrent use; the evaluator owns it for the
// duration of an evaluation.
type Stage struct {
	Spec model.StageSpec

	position int
	env      model.Globals
	formulas *formulaSet

	computed  map[Metric]float64
	cascade   map[Metric]float64
	values    map[Metric]float64
	resolving map[Metric]bool
	warning   string
}

// NewStage wraps spec. The stage resolves against default globals until the
// evaluator binds it.
func NewStage(spec model.StageSpec) *Stage {
	s := &Stage{Spec: spec}
	s.Reset()
	s.bind(model.DefaultGlobals())
	return s
}

// Kind is shorthand for s.Spec.Kind.
func (s *Stage) Kind() model.StageKind { return s.Spec.Kind }

// Enabled reports whether the evaluator will walk this stage.
func (s *Stage) Enabled() bool { return s.Spec.Enabled }

// Label identifies the stage in errors and warnings.
func (s *Stage) Label() string {
	if s.position > 0 {
		return fmt.Sprintf("%d (%s)", s.position, s.Spec.PartNumber)
	}
	return fmt.Sprintf("%q", s.Spec.PartNumber)
}

// Strategy names the formula set selected for the stage's kind and the
// system direction.
func (s *Stage) Strategy() string { return s.formulas.name }

// Warning is the degradation notice from the last bind, if any.
func (s *Stage) Warning() string { return s.warning }

// Reset drops every derived value. Raw parameters are untouched.
func (s *Stage) Reset() {
	s.computed = make(map[Metric]float64)
	s.cascade = make(map[Metric]float64)
	s.values = make(map[Metric]float64)
	s.resolving = make(map[Metric]bool)
}

// Get resolves key. Per-lookup failures come back as *ParameterError.
func (s *Stage) Get(key Metric) (float64, error) {
	if !key.Valid() {
		return 0, s.errorf(key, ErrUnknownMetricKey)
	}
	if v, ok := effectiveRaw(s.Spec, key); ok {
		return v, nil
	}
	if v, ok := s.cascade[key]; ok {
		return v, nil
	}
	if v, ok := s.computed[key]; ok {
		return v, nil
	}
	f, ok := s.formulas.lookup(key)
	if !ok {
		return 0, s.errorf(key, ErrUnknownParameter)
	}
	if s.resolving[key] {
		return 0, s.errorf(key, ErrCyclicDependency)
	}
	s.resolving[key] = true
	defer delete(s.resolving, key)

	v, err := f(s)
	if err != nil {
		return 0, err
	}
	s.computed[key] = v
	return v, nil
}

// Value returns the result a registered metric produced for this stage in
// the last evaluation.
func (s *Stage) Value(key Metric) (float64, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Values returns a copy of every metric result from the last evaluation.
func (s *Stage) Values() map[Metric]float64 { return maps.Clone(s.values) }

// Cascade returns a copy of the values pushed during the last evaluation.
func (s *Stage) Cascade() map[Metric]float64 { return maps.Clone(s.cascade) }

// Computed returns a copy of the memoized formula results.
func (s *Stage) Computed() map[Metric]float64 { return maps.Clone(s.computed) }

func (s *Stage) push(key Metric, v float64) { s.cascade[key] = v }

func (s *Stage) record(key Metric, v float64) { s.values[key] = v }

// bind selects the formula set for the stage under g and records any
// degradation warning.
func (s *Stage) bind(g model.Globals) string {
	s.env = g
	s.formulas = strategyFor(s.Spec.Kind, g.Direction)
	s.warning = ""
	if s.formulas.degraded {
		s.warning = fmt.Sprintf("%s is not valid as an array element in %s mode; treated as a %s",
			s.Spec.Kind.Title(), directionTitle(g.Direction), s.formulas.name)
	}
	return s.warning
}

func (s *Stage) errorf(key Metric, err error) error {
	return &ParameterError{Stage: s.Label(), Key: key, Err: err}
}

func directionTitle(d model.Direction) string {
	if d.IsTX() {
		return "transmit"
	}
	return "receive"
}
