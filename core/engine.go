package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/rfcascade/internal/logging"
	"github.com/signalsfoundry/rfcascade/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/rfcascade/core"

// EvaluationRecorder receives a summary of every evaluation. It is
// implemented by the observability package.
type EvaluationRecorder interface {
	ObserveEvaluation(chain string, stages int, elapsed time.Duration, warnings, lookupErrors int)
}

// Warning is a non-fatal notice raised while binding a stage.
type Warning struct {
	Stage      int
	PartNumber string
	Kind       model.StageKind
	Message    string
}

func (w Warning) String() string {
	return fmt.Sprintf("stage %d (%s): %s", w.Stage, w.PartNumber, w.Message)
}

// Result is the outcome of one evaluation.
type Result struct {
	ID      string
	Chain   string
	Globals model.Globals
	// Stages mirrors the chain, disabled stages included. Disabled stages
	// carry no values.
	Stages []*Stage
	Sink   *Stage
	// Final is the accumulator after the sink.
	Final    Accumulator
	Warnings []Warning
	// Errors holds per-lookup failures. They don't stop the evaluation.
	Errors  []error
	Elapsed time.Duration
}

// Err joins the lookup errors, or returns nil.
func (r *Result) Err() error { return errors.Join(r.Errors...) }

// Evaluator walks chains through the registered metric phases. It holds no
// per-evaluation state and may be shared between goroutines; the chains it
// evaluates may not.
type Evaluator struct {
	registry *Registry
	log      logging.Logger
	recorder EvaluationRecorder
	tracer   trace.Tracer
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRegistry replaces the built-in metric set.
func WithRegistry(r *Registry) Option {
	return func(e *Evaluator) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithLogger sets the logger used for warnings and lookup failures.
func WithLogger(l logging.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRecorder attaches an evaluation metrics sink.
func WithRecorder(r EvaluationRecorder) Option {
	return func(e *Evaluator) { e.recorder = r }
}

// NewEvaluator returns an evaluator using the built-in registry unless
// overridden.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		registry: DefaultRegistry(),
		log:      logging.Noop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the metric set the evaluator runs.
func (e *Evaluator) Registry() *Registry { return e.registry }

// EvaluateSpec builds a chain from spec and evaluates it.
func (e *Evaluator) EvaluateSpec(ctx context.Context, spec model.ChainSpec) (*Result, error) {
	return e.Evaluate(ctx, NewChain(spec))
}

// Evaluate resets every stage, then walks the enabled stages and the sink
// in order, running all five phases on each and threading the accumulator
// through. Evaluating the same chain twice gives identical values.
func (e *Evaluator) Evaluate(ctx context.Context, c *Chain) (*Result, error) {
	if c == nil {
		return nil, errors.New("core: nil chain")
	}
	if err := ValidateGlobals(c.Globals); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "core.Evaluate", trace.WithAttributes(
		attribute.String("chain.name", c.Name),
		attribute.Int("chain.stages", len(c.Stages)),
		attribute.String("chain.direction", string(c.Globals.Direction)),
	))
	defer span.End()

	log := logging.FromContext(ctx, e.log).With(logging.Chain(c.Name))
	start := time.Now()

	res := &Result{
		ID:      uuid.NewString(),
		Chain:   c.Name,
		Globals: c.Globals,
		Stages:  append([]*Stage(nil), c.Stages...),
		Sink:    c.sink,
	}

	for i, st := range c.Stages {
		st.Reset()
		st.position = i + 1
	}
	c.sink.Reset()
	c.sink.position = len(c.Stages) + 1

	walk := make([]*Stage, 0, len(c.Stages)+1)
	for _, st := range c.Stages {
		if st.Enabled() {
			walk = append(walk, st)
		}
	}
	walk = append(walk, c.sink)

	acc := NewAccumulator(c.Globals)
	for _, st := range walk {
		if msg := st.bind(c.Globals); msg != "" {
			w := Warning{Stage: st.position, PartNumber: st.Spec.PartNumber, Kind: st.Spec.Kind, Message: msg}
			res.Warnings = append(res.Warnings, w)
			log.Warn(ctx, "stage degraded", logging.Stage(w.Stage), logging.String("kind", string(w.Kind)), logging.String("detail", msg))
		}
		var errs []error
		acc, errs = e.runStage(acc, st)
		for _, err := range errs {
			log.Warn(ctx, "parameter lookup failed", logging.Stage(st.position), logging.Err(err))
		}
		res.Errors = append(res.Errors, errs...)
	}
	res.Final = acc
	res.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int("evaluation.warnings", len(res.Warnings)),
		attribute.Int("evaluation.lookup_errors", len(res.Errors)),
	)
	if err := res.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup errors")
	}
	if e.recorder != nil {
		e.recorder.ObserveEvaluation(c.Name, len(walk)-1, res.Elapsed, len(res.Warnings), len(res.Errors))
	}
	log.Debug(ctx, "chain evaluated",
		logging.String("evaluation_id", res.ID),
		logging.Int("stages", len(walk)-1),
		logging.Duration("elapsed_seconds", res.Elapsed),
		logging.Float64("system_gain_db", linearToDB(acc.SignalPowerIdeal/acc.SignalPowerIn)),
		logging.Float64("system_nf_db", linearToDB(acc.NoiseFactor())),
	)
	return res, nil
}

func (e *Evaluator) runStage(acc Accumulator, st *Stage) (Accumulator, []error) {
	var errs []error
	for _, p := range Phases() {
		var perr []error
		acc, _, perr = e.runPhase(p, acc, st)
		errs = append(errs, perr...)
	}
	return acc, errs
}

// runPhase runs every metric of phase p on st. Pushes are applied as they
// are produced so later metrics in the same phase can read them; they are
// also returned. A failing metric leaves the accumulator untouched.
func (e *Evaluator) runPhase(p Phase, acc Accumulator, st *Stage) (Accumulator, []Pushed, []error) {
	var (
		pushed []Pushed
		errs   []error
	)
	for _, def := range e.registry.Phase(p) {
		step, err := def.Formula(acc, st)
		if err != nil {
			var perr *ParameterError
			if !errors.As(err, &perr) {
				err = st.errorf(def.Key, err)
			}
			errs = append(errs, err)
			continue
		}
		acc = step.Acc
		for _, kv := range step.Side {
			st.push(kv.Key, kv.Value)
			pushed = append(pushed, kv)
		}
		if def.Pushes {
			st.push(def.Key, step.Value)
			pushed = append(pushed, Pushed{Key: def.Key, Value: step.Value})
		}
		st.record(def.Key, step.Value)
	}
	return acc, pushed, errs
}

// ValidateGlobals rejects inputs the cascade can't be evaluated under.
func ValidateGlobals(g model.Globals) error {
	switch {
	case !(g.BandwidthHz > 0) || math.IsInf(g.BandwidthHz, 0):
		return fmt.Errorf("%w: bandwidth must be positive, got %g", ErrInvalidGlobals, g.BandwidthHz)
	case !(g.InputPowerW > 0) || math.IsInf(g.InputPowerW, 0):
		return fmt.Errorf("%w: input power must be positive, got %g W", ErrInvalidGlobals, g.InputPowerW)
	case !(g.SystemTemperatureK >= 0):
		return fmt.Errorf("%w: system temperature must be non-negative, got %g K", ErrInvalidGlobals, g.SystemTemperatureK)
	case !(g.NoiseTemperatureInputK > 0) || math.IsInf(g.NoiseTemperatureInputK, 0):
		return fmt.Errorf("%w: input noise temperature must be positive, got %g K", ErrInvalidGlobals, g.NoiseTemperatureInputK)
	case g.Direction != "" && g.Direction != model.DirectionRX && g.Direction != model.DirectionTX:
		return fmt.Errorf("%w: direction %q", ErrInvalidGlobals, g.Direction)
	}
	return nil
}
