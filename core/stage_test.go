package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/rfcascade/model"
)

func TestStageResolvesRawBeforeFormulas(t *testing.T) {
	st := NewStage(amp(12, 3))
	got, err := st.Get(Gain)
	if err != nil {
		t.Fatalf("Get(gain) error: %v", err)
	}
	if got != 12 {
		t.Fatalf("Get(gain) = %v, want 12", got)
	}
	if _, ok := st.Computed()[Gain]; ok {
		t.Fatalf("raw value should not be cached")
	}
}

func TestStageMemoizesFormulaResults(t *testing.T) {
	st := NewStage(amp(10, 3))
	if _, err := st.Get(NoiseFigurePhysical); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	cached := st.Computed()
	for _, key := range []Metric{NoiseFigurePhysical, NoiseTemperature, PhysicalTemperature} {
		if _, ok := cached[key]; !ok {
			t.Fatalf("%s not memoized; cache = %v", key, cached)
		}
	}

	st.Reset()
	if len(st.Computed()) != 0 || len(st.Cascade()) != 0 || len(st.Values()) != 0 {
		t.Fatalf("Reset left derived values behind")
	}
}

func TestStageCascadeShadowsComputed(t *testing.T) {
	st := NewStage(amp(10, 3))
	st.computed[SignalPowerOut] = 1
	st.push(SignalPowerOut, 2)
	got, err := st.Get(SignalPowerOut)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != 2 {
		t.Fatalf("Get(signal_power_out) = %v, want pushed value 2", got)
	}
}

func TestStageUnknownParameter(t *testing.T) {
	st := NewStage(amp(10, 3))

	_, err := st.Get(Legs)
	if !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("Get(legs) on amplifier err = %v, want ErrUnknownParameter", err)
	}
	var perr *ParameterError
	if !errors.As(err, &perr) || perr.Key != Legs {
		t.Fatalf("expected ParameterError naming legs, got %#v", err)
	}

	// pushed-only keys have no formula before evaluation
	if _, err := st.Get(SNRIn); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("Get(snr_in) err = %v, want ErrUnknownParameter", err)
	}
	if _, err := st.Get(Metric(-4)); !errors.Is(err, ErrUnknownMetricKey) {
		t.Fatalf("Get(invalid) err = %v, want ErrUnknownMetricKey", err)
	}
}

func TestStageDetectsCycles(t *testing.T) {
	st := NewStage(amp(10, 3))
	st.formulas = &formulaSet{
		name: "loop",
		overrides: map[Metric]formula{
			SignalPowerGain: alias(ElectronicGain),
			ElectronicGain:  alias(SinglePathGain),
			SinglePathGain:  alias(SignalPowerGain),
		},
	}

	_, err := st.Get(SignalPowerGain)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("Get err = %v, want ErrCyclicDependency", err)
	}
	if len(st.resolving) != 0 {
		t.Fatalf("resolving set not unwound: %v", st.resolving)
	}
	if len(st.Computed()) != 0 {
		t.Fatalf("failed lookups must not be cached: %v", st.Computed())
	}
}

func TestPassiveFamilyNormalization(t *testing.T) {
	tests := []struct {
		name     string
		spec     model.StageSpec
		wantGain float64
		wantNF   float64
	}{
		{
			name:     "passive with positive gain",
			spec:     model.StageSpec{Kind: model.KindPassive, GainDB: 3, NoiseFigureDB: 9},
			wantGain: -3,
			wantNF:   3,
		},
		{
			name:     "combiner",
			spec:     model.StageSpec{Kind: model.KindCombiner, GainDB: -0.5, Legs: 4},
			wantGain: -0.5,
			wantNF:   0.5,
		},
		{
			name:     "divider adds split loss to noise figure",
			spec:     model.StageSpec{Kind: model.KindCorporateDivider, GainDB: -1, Legs: 4},
			wantGain: -1,
			wantNF:   1 + 10*math.Log10(4),
		},
		{
			name:     "antenna is noiseless",
			spec:     model.StageSpec{Kind: model.KindAntenna, GainDB: 6, NoiseFigureDB: 2},
			wantGain: 6,
			wantNF:   0,
		},
		{
			name:     "amplifier as declared",
			spec:     model.StageSpec{Kind: model.KindAmplifier, GainDB: 20, NoiseFigureDB: 1.5},
			wantGain: 20,
			wantNF:   1.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStage(tt.spec)
			g, err := st.Get(Gain)
			if err != nil {
				t.Fatalf("Get(gain) error: %v", err)
			}
			nf, err := st.Get(NoiseFigure)
			if err != nil {
				t.Fatalf("Get(noise_figure) error: %v", err)
			}
			if math.Abs(g-tt.wantGain) > 1e-12 || math.Abs(nf-tt.wantNF) > 1e-12 {
				t.Fatalf("gain/nf = %v/%v, want %v/%v", g, nf, tt.wantGain, tt.wantNF)
			}
			if tt.spec.GainDB != st.Spec.GainDB || tt.spec.NoiseFigureDB != st.Spec.NoiseFigureDB {
				t.Fatalf("normalization wrote back into the StageSpec")
			}
		})
	}
}

func TestLegsClampToOne(t *testing.T) {
	st := NewStage(model.StageSpec{Kind: model.KindCombiner, GainDB: -1, Legs: 0})
	n, err := st.Get(Legs)
	if err != nil {
		t.Fatalf("Get(legs) error: %v", err)
	}
	if n != 1 {
		t.Fatalf("legs = %v, want 1", n)
	}
}

func TestCombinerSinglePathNoiseTemperature(t *testing.T) {
	st := NewStage(model.StageSpec{Kind: model.KindCombiner, GainDB: -1, Legs: 4})
	got, err := st.Get(NoiseTemperatureSinglePath)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	want := (dbToLinear(1)*4 - 1) * model.T0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("single path noise temperature = %v, want %v", got, want)
	}
}

func TestTemperatureOffsetRaisesNoiseTemperature(t *testing.T) {
	spec := amp(10, 3)
	spec.TemperatureOffsetK = 60
	st := NewStage(spec)
	st.bind(testGlobals(model.DirectionRX))

	phys, err := st.Get(PhysicalTemperature)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if phys != 350 {
		t.Fatalf("physical temperature = %v, want 350", phys)
	}
	nt, _ := st.Get(NoiseTemperature)
	if want := (dbToLinear(3) - 1) * 350; math.Abs(nt-want) > 1e-9 {
		t.Fatalf("noise temperature = %v, want %v", nt, want)
	}
}
