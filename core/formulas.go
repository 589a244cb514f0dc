package core

import (
	"math"

	"github.com/signalsfoundry/rfcascade/model"
)

// formula computes one derived value for a stage. It reads other values
// through s.Get, which memoizes and guards against cycles.
type formula func(s *Stage) (float64, error)

// formulaSet is the dispatch table for one kind under one direction.
// Overrides shadow the baseline shared by every kind.
type formulaSet struct {
	name      string
	overrides map[Metric]formula
	// degraded marks a fallback chosen because the kind can't act as an
	// array element in the current direction.
	degraded bool
}

func (fs *formulaSet) lookup(key Metric) (formula, bool) {
	if f, ok := fs.overrides[key]; ok {
		return f, true
	}
	f, ok := baseline[key]
	return f, ok
}

type strategyKey struct {
	kind model.StageKind
	tx   bool
}

var (
	baseline   map[Metric]formula
	strategies map[strategyKey]*formulaSet
	fallback   *formulaSet
)

func init() {
	baseline = baselineFormulas()
	fallback = &formulaSet{name: "generic"}

	plain := func(kind model.StageKind) *formulaSet {
		return &formulaSet{name: string(kind)}
	}
	antenna := &formulaSet{name: "antenna", overrides: antennaFormulas()}
	arrayCombiner := &formulaSet{name: "corporate combiner", overrides: combinerFormulas(true)}
	combiner := &formulaSet{name: "combiner", overrides: combinerFormulas(false)}
	degradedCombiner := &formulaSet{name: "combiner", overrides: combinerFormulas(false), degraded: true}
	arrayDivider := &formulaSet{name: "corporate divider", overrides: dividerFormulas(true)}
	divider := &formulaSet{name: "divider", overrides: dividerFormulas(false)}
	degradedDivider := &formulaSet{name: "divider", overrides: dividerFormulas(false), degraded: true}

	strategies = make(map[strategyKey]*formulaSet)
	for _, tx := range []bool{false, true} {
		strategies[strategyKey{model.KindAmplifier, tx}] = plain(model.KindAmplifier)
		strategies[strategyKey{model.KindPassive, tx}] = plain(model.KindPassive)
		strategies[strategyKey{model.KindNode, tx}] = plain(model.KindNode)
		strategies[strategyKey{model.KindAntenna, tx}] = antenna
		strategies[strategyKey{model.KindCombiner, tx}] = combiner
		strategies[strategyKey{model.KindDivider, tx}] = divider
	}
	strategies[strategyKey{model.KindCorporateCombiner, false}] = arrayCombiner
	strategies[strategyKey{model.KindCorporateCombiner, true}] = degradedCombiner
	strategies[strategyKey{model.KindCorporateDivider, true}] = arrayDivider
	strategies[strategyKey{model.KindCorporateDivider, false}] = degradedDivider
}

func strategyFor(kind model.StageKind, dir model.Direction) *formulaSet {
	if fs, ok := strategies[strategyKey{kind, dir.IsTX()}]; ok {
		return fs
	}
	return fallback
}

// effectiveRaw returns the declared value of a raw key after the kind's
// normalization. Nothing here is written back to the StageSpec.
func effectiveRaw(spec model.StageSpec, key Metric) (float64, bool) {
	switch key {
	case Gain:
		if isPassiveFamily(spec.Kind) {
			return -math.Abs(spec.GainDB), true
		}
		return spec.GainDB, true
	case NoiseFigure:
		switch spec.Kind {
		case model.KindAntenna:
			return 0, true
		case model.KindPassive, model.KindCombiner, model.KindCorporateCombiner:
			return math.Abs(spec.GainDB), true
		case model.KindDivider, model.KindCorporateDivider:
			return math.Abs(spec.GainDB) + 10*math.Log10(float64(legs(spec))), true
		}
		return spec.NoiseFigureDB, true
	case P1dB:
		return optional(spec.P1dBDBm)
	case IP3:
		return optional(spec.IP3DBm)
	case IP2:
		return optional(spec.IP2DBm)
	case TemperatureOffset:
		return spec.TemperatureOffsetK, true
	case Legs:
		if spec.Kind.HasLegs() {
			return float64(legs(spec)), true
		}
	}
	return 0, false
}

func isPassiveFamily(kind model.StageKind) bool {
	return kind == model.KindPassive || kind.HasLegs()
}

func legs(spec model.StageSpec) int { return max(1, spec.Legs) }

func optional(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// interceptOrder selects which nonlinearity rating a formula works on.
type interceptOrder int

const (
	order1dB interceptOrder = iota
	order3
	order2
)

type interceptKeys struct {
	rating      Metric
	output      Metric
	input       Metric
	system      Metric
	systemInput Metric
	// offsetDB is the difference between the input- and output-referred
	// ratings of a device with no gain (1 dB for compression).
	offsetDB float64
}

var intercepts = [...]interceptKeys{
	order1dB: {P1dB, OP1dB, IP1dB, SystemOP1dB, SystemIP1dB, 1},
	order3:   {IP3, OIP3, IIP3, SystemOIP3, SystemIIP3, 0},
	order2:   {IP2, OIP2, IIP2, SystemOIP2, SystemIIP2, 0},
}

func baselineFormulas() map[Metric]formula {
	f := map[Metric]formula{
		SignalPowerGain:            fromDB(Gain),
		ElectronicGain:             alias(SignalPowerGain),
		SinglePathGain:             alias(SignalPowerGain),
		ElementCount:               constant(1),
		ArrayGain:                  constant(1),
		NegativeNoiseFigure:        constant(1),
		PhysicalTemperature:        physicalTemperature,
		NoiseTemperature:           noiseTemperature,
		NoiseTemperatureSinglePath: alias(NoiseTemperature),
		NoiseFigurePhysical:        noiseFigurePhysical,
		NoiseFactor:                alias(NoiseFigurePhysical),
	}
	for o, k := range intercepts {
		f[k.output] = outputIntercept(interceptOrder(o))
		f[k.input] = inputIntercept(interceptOrder(o))
	}
	return f
}

func antennaFormulas() map[Metric]formula {
	return map[Metric]formula{
		ElectronicGain:      constant(1),
		SinglePathGain:      constant(1),
		ArrayGain:           fromDB(Gain),
		NegativeNoiseFigure: fromDB(Gain),
	}
}

// combinerFormulas covers both combiner flavours. As an array element the
// combiner sums element_count paths; otherwise it is a coherent power
// combiner whose whole gain is electronic.
func combinerFormulas(array bool) map[Metric]formula {
	f := map[Metric]formula{
		SignalPowerGain:            product(fromDB(Gain), alias(Legs)),
		SinglePathGain:             quotient(fromDB(Gain), alias(Legs)),
		NoiseTemperatureSinglePath: combinerSinglePathNoiseTemperature,
	}
	if array {
		f[ElectronicGain] = fromDB(Gain)
		f[ElementCount] = alias(Legs)
		f[ArrayGain] = alias(Legs)
		f[NegativeNoiseFigure] = alias(Legs)
	}
	return f
}

// dividerFormulas covers both divider flavours. Only the array divider
// multiplies the element count.
func dividerFormulas(array bool) map[Metric]formula {
	split := quotient(fromDB(Gain), alias(Legs))
	f := map[Metric]formula{
		SignalPowerGain: split,
		ElectronicGain:  split,
		SinglePathGain:  split,
	}
	if array {
		f[ElementCount] = alias(Legs)
		f[ArrayGain] = alias(Legs)
	}
	return f
}

func constant(v float64) formula {
	return func(*Stage) (float64, error) { return v, nil }
}

func alias(key Metric) formula {
	return func(s *Stage) (float64, error) { return s.Get(key) }
}

func fromDB(key Metric) formula {
	return func(s *Stage) (float64, error) {
		v, err := s.Get(key)
		if err != nil {
			return 0, err
		}
		return dbToLinear(v), nil
	}
}

func product(a, b formula) formula {
	return func(s *Stage) (float64, error) {
		x, err := a(s)
		if err != nil {
			return 0, err
		}
		y, err := b(s)
		if err != nil {
			return 0, err
		}
		return x * y, nil
	}
}

func quotient(a, b formula) formula {
	return func(s *Stage) (float64, error) {
		x, err := a(s)
		if err != nil {
			return 0, err
		}
		y, err := b(s)
		if err != nil {
			return 0, err
		}
		return x / y, nil
	}
}

func physicalTemperature(s *Stage) (float64, error) {
	off, err := s.Get(TemperatureOffset)
	if err != nil {
		return 0, err
	}
	return s.env.SystemTemperatureK + off, nil
}

func noiseTemperature(s *Stage) (float64, error) {
	nf, err := s.Get(NoiseFigure)
	if err != nil {
		return 0, err
	}
	t, err := s.Get(PhysicalTemperature)
	if err != nil {
		return 0, err
	}
	return (dbToLinear(nf) - 1) * t, nil
}

func combinerSinglePathNoiseTemperature(s *Stage) (float64, error) {
	nf, err := s.Get(NoiseFigure)
	if err != nil {
		return 0, err
	}
	n, err := s.Get(Legs)
	if err != nil {
		return 0, err
	}
	t, err := s.Get(PhysicalTemperature)
	if err != nil {
		return 0, err
	}
	return (dbToLinear(nf)*n - 1) * t, nil
}

func noiseFigurePhysical(s *Stage) (float64, error) {
	nt, err := s.Get(NoiseTemperature)
	if err != nil {
		return 0, err
	}
	return 1 + nt/model.T0, nil
}

// outputIntercept converts the declared rating to an output-referred value
// in watts according to the stage's linearity reference.
func outputIntercept(o interceptOrder) formula {
	k := intercepts[o]
	return func(s *Stage) (float64, error) {
		if s.Spec.Linearity == model.LinearityIgnore || s.Spec.Linearity == "" {
			return math.Inf(1), nil
		}
		dbm, err := s.Get(k.rating)
		if err != nil {
			return 0, err
		}
		if s.Spec.Linearity == model.LinearityInputReferred {
			g, err := s.Get(SignalPowerGain)
			if err != nil {
				return 0, err
			}
			dbm += linearToDB(g) - k.offsetDB
		}
		return model.DBmToWatts(dbm), nil
	}
}

func inputIntercept(o interceptOrder) formula {
	k := intercepts[o]
	return func(s *Stage) (float64, error) {
		out, err := s.Get(k.output)
		if err != nil {
			return 0, err
		}
		if math.IsInf(out, 1) {
			return out, nil
		}
		g, err := s.Get(SignalPowerGain)
		if err != nil {
			return 0, err
		}
		return referToInput(out, g, k.offsetDB), nil
	}
}

// referToInput moves an output-referred rating through gain g to the input.
func referToInput(out, g, offsetDB float64) float64 {
	if math.IsInf(out, 1) {
		return out
	}
	return out / g * dbToLinear(offsetDB)
}

func dbToLinear(db float64) float64 { return math.Pow(10, db/10) }

func linearToDB(v float64) float64 { return 10 * math.Log10(v) }
