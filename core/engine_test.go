package core

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/rfcascade/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGlobals(dir model.Direction) model.Globals {
	return model.Globals{
		SystemTemperatureK:     290,
		BandwidthHz:            1,
		InputPowerW:            model.DBmToWatts(-10),
		NoiseTemperatureInputK: 290,
		Direction:              dir,
	}
}

func amp(gainDB, nfDB float64) model.StageSpec {
	s := model.DefaultStageSpec(model.KindAmplifier)
	s.GainDB = gainDB
	s.NoiseFigureDB = nfDB
	s.Linearity = model.LinearityIgnore
	return s
}

func evaluate(t *testing.T, dir model.Direction, stages ...model.StageSpec) *Result {
	t.Helper()
	res, err := NewEvaluator().EvaluateSpec(context.Background(), model.ChainSpec{
		Name:    t.Name(),
		Globals: testGlobals(dir),
		Stages:  stages,
	})
	require.NoError(t, err)
	return res
}

func value(t *testing.T, s *Stage, key Metric) float64 {
	t.Helper()
	v, ok := s.Value(key)
	require.Truef(t, ok, "%s not evaluated on %s", key, s.Label())
	return v
}

func TestEvaluateSingleAmplifier(t *testing.T) {
	spec := model.DefaultStageSpec(model.KindAmplifier)
	res := evaluate(t, model.DirectionRX, spec)
	require.NoError(t, res.Err())
	st := res.Stages[0]

	assert.InDelta(t, 13, linearToDB(value(t, st, SystemSignalGainIdeal)), 1e-9)
	assert.InDelta(t, 3.1623, value(t, st, SystemNoiseFactor), 1e-4)
	assert.InDelta(t, -2, model.WattsToDBm(value(t, st, SystemIP1dB)), 1e-9)
	assert.InDelta(t, 10, model.WattsToDBm(value(t, st, SystemOP1dB)), 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	chain := NewChain(model.ChainSpec{
		Globals: testGlobals(model.DirectionRX),
		Stages: []model.StageSpec{
			model.DefaultStageSpec(model.KindAntenna),
			model.DefaultStageSpec(model.KindAmplifier),
			model.DefaultStageSpec(model.KindCorporateCombiner),
			model.DefaultStageSpec(model.KindPassive),
		},
	})
	ev := NewEvaluator()

	first, err := ev.Evaluate(context.Background(), chain)
	require.NoError(t, err)
	snapshot := make([]map[Metric]float64, len(first.Stages))
	for i, st := range first.Stages {
		snapshot[i] = st.Values()
	}
	sink := first.Sink.Values()

	second, err := ev.Evaluate(context.Background(), chain)
	require.NoError(t, err)
	for i, st := range second.Stages {
		assert.Equal(t, snapshot[i], st.Values(), "stage %d", i+1)
	}
	assert.Equal(t, sink, second.Sink.Values())
	assert.Equal(t, first.Final, second.Final)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSystemGainIsSumOfStageGains(t *testing.T) {
	passive := model.DefaultStageSpec(model.KindPassive)
	passive.GainDB = -3
	res := evaluate(t, model.DirectionRX, amp(10, 2), passive, amp(20, 4))

	assert.InDelta(t, 27, linearToDB(value(t, res.Sink, SystemSignalGainIdeal)), 1e-9)
	assert.InDelta(t, 10, linearToDB(value(t, res.Stages[0], SystemSignalGainIdeal)), 1e-9)
	assert.InDelta(t, 7, linearToDB(value(t, res.Stages[1], SystemSignalGainIdeal)), 1e-9)
}

func TestNoiseFactorFollowsFriis(t *testing.T) {
	res := evaluate(t, model.DirectionRX, amp(10, 3), amp(20, 6))

	f1 := dbToLinear(3)
	f2 := dbToLinear(6)
	g1 := dbToLinear(10)
	want := f1 + (f2-1)/g1

	got := value(t, res.Stages[1], SystemNoiseFactor)
	assert.InEpsilon(t, want, got, 1e-9)
	assert.InEpsilon(t, want, value(t, res.Sink, SystemNoiseFactor), 1e-9)
	assert.InDelta(t, model.T0*(want-1), value(t, res.Sink, SystemNoiseTemperature), 1e-6)
}

func TestIdenticalInterceptsHalve(t *testing.T) {
	a := amp(0, 3)
	a.Linearity = model.LinearityOutputReferred
	a.IP3DBm = model.Float(20)
	res := evaluate(t, model.DirectionRX, a, a)

	got := model.WattsToDBm(value(t, res.Stages[1], SystemOIP3))
	assert.InDelta(t, 20-10*math.Log10(2), got, 1e-9)
}

func TestInputReferredRatingIsMovedToOutput(t *testing.T) {
	a := amp(13, 5)
	a.Linearity = model.LinearityInputReferred
	a.P1dBDBm = model.Float(-2)
	a.IP3DBm = model.Float(7)
	res := evaluate(t, model.DirectionRX, a)
	st := res.Stages[0]

	assert.InDelta(t, 10, model.WattsToDBm(value(t, st, OP1dB)), 1e-9)
	assert.InDelta(t, -2, model.WattsToDBm(value(t, st, IP1dB)), 1e-9)
	assert.InDelta(t, 20, model.WattsToDBm(value(t, st, OIP3)), 1e-9)
	assert.InDelta(t, 7, model.WattsToDBm(value(t, st, IIP3)), 1e-9)
}

func TestIgnoredLinearityIsInfinite(t *testing.T) {
	res := evaluate(t, model.DirectionRX, amp(10, 2))
	st := res.Stages[0]
	for _, key := range []Metric{OP1dB, IP1dB, OIP3, IIP3, SystemOP1dB, SystemIP1dB, SystemOIP2} {
		assert.True(t, math.IsInf(value(t, st, key), 1), "%s", key)
	}
	assert.True(t, math.IsInf(value(t, st, BackoffFromP1dB), 1))
}

func TestCorporateCombinerDegradesInTransmit(t *testing.T) {
	corp := model.DefaultStageSpec(model.KindCorporateCombiner)
	corp.Legs = 4
	plain := model.DefaultStageSpec(model.KindCombiner)
	plain.Legs = 4
	plain.PartNumber = corp.PartNumber

	degraded := evaluate(t, model.DirectionTX, amp(10, 2), corp)
	reference := evaluate(t, model.DirectionTX, amp(10, 2), plain)

	require.Len(t, degraded.Warnings, 1)
	assert.Equal(t, 2, degraded.Warnings[0].Stage)
	assert.Equal(t, model.KindCorporateCombiner, degraded.Warnings[0].Kind)
	assert.Empty(t, reference.Warnings)

	assert.Equal(t, reference.Stages[1].Values(), degraded.Stages[1].Values())
	assert.Equal(t, reference.Final, degraded.Final)
	assert.Equal(t, 1.0, value(t, degraded.Stages[1], SystemElementCount))
	assert.Equal(t, "combiner", degraded.Stages[1].Strategy())
}

func TestCorporateDividerDegradesInReceive(t *testing.T) {
	corp := model.DefaultStageSpec(model.KindCorporateDivider)
	corp.Legs = 8
	plain := model.DefaultStageSpec(model.KindDivider)
	plain.Legs = 8
	plain.PartNumber = corp.PartNumber

	degraded := evaluate(t, model.DirectionRX, corp)
	reference := evaluate(t, model.DirectionRX, plain)

	require.Len(t, degraded.Warnings, 1)
	assert.Equal(t, reference.Stages[0].Values(), degraded.Stages[0].Values())
}

func TestPlainCombinerNeverWarns(t *testing.T) {
	for _, dir := range []model.Direction{model.DirectionRX, model.DirectionTX} {
		res := evaluate(t, dir, model.DefaultStageSpec(model.KindCombiner), model.DefaultStageSpec(model.KindDivider))
		assert.Empty(t, res.Warnings, "%s", dir)
		assert.Equal(t, 1.0, value(t, res.Sink, SystemElementCount))
	}
}

func TestCorporateCombinerCountsElementsInReceive(t *testing.T) {
	corp := model.DefaultStageSpec(model.KindCorporateCombiner)
	corp.Legs = 4
	res := evaluate(t, model.DirectionRX, model.DefaultStageSpec(model.KindAntenna), amp(20, 2), corp)
	require.Empty(t, res.Warnings)

	st := res.Stages[2]
	assert.Equal(t, 4.0, value(t, st, SystemElementCount))
	assert.Equal(t, 1.0, st.Cascade()[ElementCountIn])
	assert.InDelta(t, 4*dbToLinear(4), value(t, st, SystemArrayGain), 1e-9)
	// legs * 10^(-1/10), the declared loss applied once to the summed paths
	assert.InDelta(t, 4*dbToLinear(-1), value(t, st, SignalPowerGain), 1e-12)
}

func TestCorporateDividerCountsElementsInTransmit(t *testing.T) {
	corp := model.DefaultStageSpec(model.KindCorporateDivider)
	corp.Legs = 16
	res := evaluate(t, model.DirectionTX, corp, amp(20, 5), model.DefaultStageSpec(model.KindAntenna))
	require.Empty(t, res.Warnings)

	assert.Equal(t, 16.0, value(t, res.Sink, SystemElementCount))
	div := res.Stages[0]
	assert.InDelta(t, dbToLinear(-1)/16, value(t, div, SignalPowerGain), 1e-12)

	ant := res.Stages[2]
	want := value(t, ant, SignalPowerOut) * 16 * value(t, ant, SystemArrayGain)
	assert.InEpsilon(t, want, value(t, ant, SystemEIRP), 1e-12)
}

func TestAntennaContributesArrayGainOnly(t *testing.T) {
	ant := model.DefaultStageSpec(model.KindAntenna)
	ant.GainDB = 10
	ant.NoiseFigureDB = 7
	res := evaluate(t, model.DirectionRX, ant)
	st := res.Stages[0]

	assert.InDelta(t, 10, value(t, st, SystemArrayGain), 1e-12)
	assert.Equal(t, 1.0, value(t, st, SystemElectronicGain))
	assert.Equal(t, 0.0, value(t, st, NoiseTemperature))
	assert.InDelta(t, 1, value(t, st, SystemNoiseFactor), 1e-12)
}

func TestHiddenMetricsAreStillEvaluated(t *testing.T) {
	res := evaluate(t, model.DirectionRX, amp(10, 2))
	reg := DefaultRegistry()
	require.True(t, reg.Hidden(SystemEIRP, model.DirectionRX))

	_, ok := res.Stages[0].Value(SystemEIRP)
	assert.True(t, ok)
}

func TestDisabledStagesAreSkipped(t *testing.T) {
	off := amp(20, 3)
	off.Enabled = false
	res := evaluate(t, model.DirectionRX, amp(10, 2), off)

	assert.InDelta(t, 10, linearToDB(value(t, res.Sink, SystemSignalGainIdeal)), 1e-9)
	assert.Empty(t, res.Stages[1].Values())
	assert.Empty(t, res.Stages[1].Cascade())
}

func TestEmptyChainReachesSink(t *testing.T) {
	res := evaluate(t, model.DirectionRX)
	assert.Equal(t, 1.0, value(t, res.Sink, SystemSignalGainIdeal))
	assert.InDelta(t, 1, value(t, res.Sink, SystemNoiseFactor), 1e-12)
	assert.Equal(t, model.KindNode, res.Sink.Kind())
}

func TestLookupFailuresAreCollected(t *testing.T) {
	a := amp(10, 2)
	a.Linearity = model.LinearityOutputReferred
	a.IP2DBm = nil
	res := evaluate(t, model.DirectionRX, a)

	require.Error(t, res.Err())
	assert.ErrorIs(t, res.Err(), ErrUnknownParameter)

	var perr *ParameterError
	require.ErrorAs(t, res.Errors[0], &perr)
	assert.Contains(t, perr.Error(), "ip2")

	// everything that doesn't depend on IP2 is still there
	assert.InDelta(t, 10, linearToDB(value(t, res.Sink, SystemSignalGainIdeal)), 1e-9)
	_, ok := res.Stages[0].Value(SystemOIP2)
	assert.False(t, ok)
}

func TestPhasesDoNotMutateCallerAccumulator(t *testing.T) {
	st := NewStage(amp(10, 2))
	acc := NewAccumulator(testGlobals(model.DirectionRX))
	before := acc

	next, pushed, errs := NewEvaluator().runPhase(PhaseSystemOutput, acc, st)
	require.Empty(t, errs)
	assert.Equal(t, before, acc)
	assert.NotEqual(t, acc, next)
	assert.NotEmpty(t, pushed)
}

type fakeRecorder struct {
	calls    int
	stages   int
	warnings int
}

func (f *fakeRecorder) ObserveEvaluation(_ string, stages int, _ time.Duration, warnings, _ int) {
	f.calls++
	f.stages = stages
	f.warnings = warnings
}

func TestEvaluatorReportsToRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	ev := NewEvaluator(WithRecorder(rec))
	_, err := ev.EvaluateSpec(context.Background(), model.ChainSpec{
		Globals: testGlobals(model.DirectionTX),
		Stages:  []model.StageSpec{amp(10, 2), model.DefaultStageSpec(model.KindCorporateCombiner)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 2, rec.stages)
	assert.Equal(t, 1, rec.warnings)
}

func TestEvaluateRejectsInvalidGlobals(t *testing.T) {
	cases := map[string]func(*model.Globals){
		"zero bandwidth":              func(g *model.Globals) { g.BandwidthHz = 0 },
		"zero input power":            func(g *model.Globals) { g.InputPowerW = 0 },
		"negative system temperature": func(g *model.Globals) { g.SystemTemperatureK = -1 },
		"zero input noise":            func(g *model.Globals) { g.NoiseTemperatureInputK = 0 },
		"negative input noise":        func(g *model.Globals) { g.NoiseTemperatureInputK = -290 },
		"infinite input noise":        func(g *model.Globals) { g.NoiseTemperatureInputK = math.Inf(1) },
		"unknown direction":           func(g *model.Globals) { g.Direction = "up" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := testGlobals(model.DirectionRX)
			mutate(&g)
			_, err := NewEvaluator().EvaluateSpec(context.Background(), model.ChainSpec{
				Globals: g,
				Stages:  []model.StageSpec{amp(10, 2)},
			})
			assert.ErrorIs(t, err, ErrInvalidGlobals)
		})
	}

	_, err := NewEvaluator().Evaluate(context.Background(), nil)
	assert.Error(t, err)
}

func TestGOverTIsInfiniteWhileNoiseless(t *testing.T) {
	for gain := 0.0; gain <= 20; gain++ {
		ant := model.DefaultStageSpec(model.KindAntenna)
		ant.GainDB = gain
		st := evaluate(t, model.DirectionRX, ant).Stages[0]
		assert.Equalf(t, 0.0, value(t, st, SystemNoiseTemperature), "antenna gain %v dB", gain)
		assert.Truef(t, math.IsInf(value(t, st, SystemGOverT), 1), "antenna gain %v dB", gain)
	}

	st := evaluate(t, model.DirectionRX, amp(10, 0)).Stages[0]
	assert.True(t, math.IsInf(value(t, st, SystemGOverT), 1))

	corp := model.DefaultStageSpec(model.KindCorporateCombiner)
	corp.Legs = 4
	res := evaluate(t, model.DirectionRX, model.DefaultStageSpec(model.KindAntenna), amp(20, 2), corp)
	assert.True(t, math.IsInf(value(t, res.Stages[0], SystemGOverT), 1))
	assert.False(t, math.IsInf(value(t, res.Stages[1], SystemGOverT), 0))
}

func TestGOverTOfSingleAmplifier(t *testing.T) {
	st := evaluate(t, model.DirectionRX, amp(13, 5)).Stages[0]
	temp := model.T0 * (dbToLinear(5) - 1)
	assert.InDelta(t, temp, value(t, st, SystemNoiseTemperature), 1e-9)
	assert.InEpsilon(t, 1/temp, value(t, st, SystemGOverT), 1e-9)
}

func TestNoiseFigureContributionAndBackoff(t *testing.T) {
	second := model.DefaultStageSpec(model.KindAmplifier)
	second.GainDB = 10
	second.NoiseFigureDB = 3
	res := evaluate(t, model.DirectionRX, model.DefaultStageSpec(model.KindAmplifier), second)
	first, last := res.Stages[0], res.Stages[1]

	assert.InDelta(t, 5, linearToDB(value(t, first, NoiseFigureContribution)), 1e-9)
	// +3 dBm out against a 10 dBm OP1dB
	assert.InDelta(t, 7, linearToDB(value(t, first, BackoffFromP1dB)), 1e-9)

	// Friis: F1 + (F2-1)/G1
	system := dbToLinear(5) + (dbToLinear(3)-1)/dbToLinear(13)
	assert.InDelta(t, system, value(t, last, SystemNoiseFactor), 1e-9)
	assert.InDelta(t, linearToDB(system)-5, linearToDB(value(t, last, NoiseFigureContribution)), 1e-9)
	// +13 dBm out overdrives the 10 dBm OP1dB
	assert.InDelta(t, -3, linearToDB(value(t, last, BackoffFromP1dB)), 1e-9)
}

func TestSinglePathNoiseFigureThroughCombiner(t *testing.T) {
	corp := model.DefaultStageSpec(model.KindCorporateCombiner)
	corp.Legs = 4
	res := evaluate(t, model.DirectionRX, model.DefaultStageSpec(model.KindAntenna), amp(20, 2), corp)
	lna, comb := res.Stages[1], res.Stages[2]

	assert.InDelta(t, 2, linearToDB(value(t, lna, SystemNoiseFactorSinglePath)), 1e-9)
	assert.InDelta(t, 2, linearToDB(value(t, lna, NoiseFigureContributionSinglePath)), 1e-9)

	// the combiner adds legs*F-1 of noise to one path but only F-1 coherently
	assert.InDelta(t, 2.0071, linearToDB(value(t, comb, SystemNoiseFactor)), 1e-4)
	assert.InDelta(t, 2.1092, linearToDB(value(t, comb, SystemNoiseFactorSinglePath)), 1e-4)
	assert.InDelta(t, 0.1092, linearToDB(value(t, comb, NoiseFigureContributionSinglePath)), 1e-4)

	f := value(t, comb, SystemNoiseFactor)
	assert.InEpsilon(t, 4/(model.T0*(f-1)), value(t, comb, SystemGOverT), 1e-9)
}

func TestCombineReciprocal(t *testing.T) {
	inf := math.Inf(1)
	assert.True(t, math.IsInf(combineReciprocal(inf, 10, inf), 1))
	assert.InDelta(t, 5.0, combineReciprocal(inf, 10, 5), 1e-12)
	assert.InDelta(t, 50.0, combineReciprocal(5, 10, inf), 1e-12)
	assert.InDelta(t, 25.0, combineReciprocal(5, 10, 50), 1e-12)
}
