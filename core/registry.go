package core

import (
	"fmt"

	"github.com/signalsfoundry/rfcascade/model"
)

// Pushed is a value a metric wrote into the stage's cascade map.
type Pushed struct {
	Key   Metric
	Value float64
}

// Step is the outcome of running one metric on one stage. Acc is the
// accumulator to hand to the next metric; read-only metrics return their
// input unchanged.
type Step struct {
	Value float64
	Acc   Accumulator
	Side  []Pushed
}

// Formula computes a metric from the accumulator and the current stage.
type Formula func(acc Accumulator, s *Stage) (Step, error)

// Visibility says in which direction a metric is meaningful to show.
type Visibility int

const (
	VisibleAlways Visibility = iota
	VisibleRX
	VisibleTX
)

// Unit classifies a metric for display conversion.
type Unit int

const (
	UnitNone Unit = iota
	// UnitPower is watts, shown in dBm.
	UnitPower
	// UnitRatio is a linear power ratio, shown in dB.
	UnitRatio
	// UnitTemperature is kelvin.
	UnitTemperature
	// UnitCount is a plain number.
	UnitCount
	// UnitRatioPerKelvin is 1/K, shown in dB/K.
	UnitRatioPerKelvin
	// UnitDB is already in decibels.
	UnitDB
	// UnitDBm is already in dBm.
	UnitDBm
)

// MetricDef declares one evaluated metric.
type MetricDef struct {
	Key     Metric
	Phase   Phase
	Formula Formula
	// Pushes stores the formula's value in the stage's cascade map.
	Pushes bool

	Title       string
	Description string
	Unit        Unit
	Visibility  Visibility
	// Default marks metrics shown when the user hasn't picked any.
	Default bool
}

// Registry is a validated, phase-ordered set of metric definitions.
type Registry struct {
	defs    []MetricDef
	byKey   map[Metric]int
	byPhase [phaseCount][]int
}

// NewRegistry validates defs and indexes them by key and phase. Order within
// a phase is the order given.
func NewRegistry(defs ...MetricDef) (*Registry, error) {
	r := &Registry{
		defs:  make([]MetricDef, 0, len(defs)),
		byKey: make(map[Metric]int, len(defs)),
	}
	for _, d := range defs {
		if !d.Key.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownMetricKey, int(d.Key))
		}
		if !d.Phase.Valid() {
			return nil, fmt.Errorf("%s: %w: %d", d.Key, ErrUnknownPhase, int(d.Phase))
		}
		if d.Formula == nil {
			return nil, fmt.Errorf("%w: %s has no formula", ErrInvalidRegistry, d.Key)
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, fmt.Errorf("%w: %s registered twice", ErrInvalidRegistry, d.Key)
		}
		if d.Key.IsRaw() && d.Pushes {
			return nil, fmt.Errorf("%w: raw parameter %s can't be pushed", ErrInvalidRegistry, d.Key)
		}
		if d.Title == "" {
			d.Title = d.Key.String()
		}
		idx := len(r.defs)
		r.defs = append(r.defs, d)
		r.byKey[d.Key] = idx
		r.byPhase[d.Phase] = append(r.byPhase[d.Phase], idx)
	}
	return r, nil
}

func mustRegistry(defs ...MetricDef) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

var defaultRegistry = mustRegistry(builtinMetrics()...)

// DefaultRegistry returns the built-in metric set.
func DefaultRegistry() *Registry { return defaultRegistry }

// Phase returns the definitions run in phase p, in execution order.
func (r *Registry) Phase(p Phase) []MetricDef {
	if !p.Valid() {
		return nil
	}
	out := make([]MetricDef, len(r.byPhase[p]))
	for i, idx := range r.byPhase[p] {
		out[i] = r.defs[idx]
	}
	return out
}

// Lookup finds a definition by key.
func (r *Registry) Lookup(key Metric) (MetricDef, bool) {
	idx, ok := r.byKey[key]
	if !ok {
		return MetricDef{}, false
	}
	return r.defs[idx], true
}

// Defs returns every definition in phase order.
func (r *Registry) Defs() []MetricDef {
	out := make([]MetricDef, 0, len(r.defs))
	for _, p := range Phases() {
		out = append(out, r.Phase(p)...)
	}
	return out
}

// Len is the number of registered metrics.
func (r *Registry) Len() int { return len(r.defs) }

// Hidden reports whether key should be hidden for a system running in dir.
// Unregistered keys are never hidden. The engine evaluates hidden metrics
// regardless; this only drives presentation.
func (r *Registry) Hidden(key Metric, dir model.Direction) bool {
	d, ok := r.Lookup(key)
	if !ok {
		return false
	}
	switch d.Visibility {
	case VisibleRX:
		return dir.IsTX()
	case VisibleTX:
		return !dir.IsTX()
	}
	return false
}

// Catalog returns the definitions visible in dir, in phase order.
func (r *Registry) Catalog(dir model.Direction) []MetricDef {
	var out []MetricDef
	for _, d := range r.Defs() {
		if !r.Hidden(d.Key, dir) {
			out = append(out, d)
		}
	}
	return out
}
