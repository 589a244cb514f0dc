package core

import (
	"math"

	"github.com/signalsfoundry/rfcascade/model"
)

// builtinMetrics is the standard metric set, in execution order within each
// phase. Later system-output metrics read the accumulator already advanced
// by earlier ones, so the order there matters.
func builtinMetrics() []MetricDef {
	var defs []MetricDef
	defs = append(defs, deviceOutputMetrics()...)
	defs = append(defs, systemOutputMetrics()...)
	defs = append(defs, systemCascadeMetrics()...)
	defs = append(defs, systemAutoMetrics()...)
	defs = append(defs, deviceCascadeMetrics()...)
	return defs
}

func deviceOutputMetrics() []MetricDef {
	device := func(key Metric, title string, unit Unit, desc string) MetricDef {
		return MetricDef{
			Key:         key,
			Phase:       PhaseDeviceOutput,
			Formula:     readStage(key),
			Title:       title,
			Unit:        unit,
			Description: desc,
		}
	}
	return []MetricDef{
		device(SignalPowerGain, "Gain", UnitRatio, "Signal power gain of the device including any split or combine gain."),
		device(ArrayGain, "Aperture Gain", UnitRatio, "Gain the device contributes to the array."),
		device(PhysicalTemperature, "Physical Temp", UnitTemperature, "System temperature plus the device's offset."),
		device(NoiseTemperature, "Noise Temp", UnitTemperature, "Equivalent input noise temperature at the physical temperature."),
		device(NoiseFigurePhysical, "Noise Figure", UnitRatio, "Noise figure at the physical temperature, referred to 290 K."),
		device(IP1dB, "IP1dB", UnitPower, "Input-referred 1 dB compression point."),
		device(OP1dB, "OP1dB", UnitPower, "Output-referred 1 dB compression point."),
		device(IIP3, "IIP3", UnitPower, "Input-referred third-order intercept."),
		device(OIP3, "OIP3", UnitPower, "Output-referred third-order intercept."),
		device(IIP2, "IIP2", UnitPower, "Input-referred second-order intercept."),
		device(OIP2, "OIP2", UnitPower, "Output-referred second-order intercept."),
	}
}

func systemOutputMetrics() []MetricDef {
	return []MetricDef{
		{
			Key: SignalPowerOut, Phase: PhaseSystemOutput, Formula: signalPowerOut, Pushes: true,
			Title: "Signal Out", Unit: UnitPower, Default: true,
			Description: "Coherent signal power at the device output, ignoring compression.",
		},
		{
			Key: NoisePowerOut, Phase: PhaseSystemOutput, Formula: noisePowerOut, Pushes: true,
			Title: "Noise Out", Unit: UnitPower, Default: true,
			Description: "Noise power at the device output.",
		},
		systemInterceptDef(order1dB, "System OP1dB", "Cascaded output-referred 1 dB compression point."),
		systemInterceptDef(order3, "System OIP3", "Cascaded output-referred third-order intercept."),
		systemInterceptDef(order2, "System OIP2", "Cascaded output-referred second-order intercept."),
		{
			Key: SystemElementCount, Phase: PhaseSystemOutput, Formula: systemElementCount, Pushes: true,
			Title: "Elements", Unit: UnitCount,
			Description: "Number of array elements feeding or fed by this point.",
		},
		{
			Key: SystemSinglePathGain, Phase: PhaseSystemOutput, Formula: systemSinglePathGain, Pushes: true,
			Title: "Single Path Gain", Unit: UnitRatio, Visibility: VisibleRX,
			Description: "Gain seen by the signal along one element's path.",
		},
		{
			Key: SystemArrayGain, Phase: PhaseSystemOutput, Formula: systemArrayGain, Pushes: true,
			Title: "Array Gain", Unit: UnitRatio,
			Description: "Cascaded aperture gain.",
		},
	}
}

func systemCascadeMetrics() []MetricDef {
	return []MetricDef{
		{
			Key: SystemNoiseFactor, Phase: PhaseSystemCascade, Formula: fromAccumulator(Accumulator.NoiseFactor),
			Title: "System NF", Unit: UnitRatio, Default: true,
			Description: "Cascaded noise figure of the coherent signal.",
		},
		systemInputInterceptDef(order1dB, "System IP1dB", "Cascaded input-referred 1 dB compression point."),
		systemInputInterceptDef(order3, "System IIP3", "Cascaded input-referred third-order intercept."),
		systemInputInterceptDef(order2, "System IIP2", "Cascaded input-referred second-order intercept."),
		{
			Key: SystemEIRP, Phase: PhaseSystemCascade, Formula: systemEIRP,
			Title: "EIRP", Unit: UnitPower, Visibility: VisibleTX, Default: true,
			Description: "Effective isotropic radiated power.",
		},
		{
			Key: SystemElectronicGain, Phase: PhaseSystemCascade,
			Formula: fromAccumulator(func(a Accumulator) float64 { return a.ElectronicGain }),
			Title:   "Electronic Gain", Unit: UnitRatio,
			Description: "Cascaded gain of the electronics, excluding aperture gain.",
		},
		{
			Key: SystemNoiseTemperature, Phase: PhaseSystemCascade,
			Formula: fromAccumulator(systemNoiseTemperature),
			Title:   "System Noise Temp", Unit: UnitTemperature,
			Description: "Cascaded noise temperature referred to 290 K.",
		},
		{
			Key: SystemGOverT, Phase: PhaseSystemCascade, Formula: fromAccumulator(systemGOverT),
			Title: "G/T", Unit: UnitRatioPerKelvin, Visibility: VisibleRX, Default: true,
			Description: "Element count over system noise temperature.",
		},
		{
			Key: SystemNoiseFactorSinglePath, Phase: PhaseSystemCascade,
			Formula: fromAccumulator(Accumulator.NoiseFactorSinglePath),
			Title:   "Single Path NF", Unit: UnitRatio, Visibility: VisibleRX,
			Description: "Cascaded noise figure seen by one element's path.",
		},
	}
}

func systemAutoMetrics() []MetricDef {
	auto := func(key Metric, title string, unit Unit, def bool, desc string) MetricDef {
		return MetricDef{
			Key:         key,
			Phase:       PhaseSystemAuto,
			Formula:     readStage(key),
			Title:       title,
			Unit:        unit,
			Default:     def,
			Description: desc,
		}
	}
	return []MetricDef{
		auto(SignalPowerIn, "Signal In", UnitPower, false, "Coherent signal power at the device input."),
		auto(SystemSignalGainIdeal, "System Gain", UnitRatio, true, "Cascaded signal gain from the chain input, ignoring compression."),
		auto(NoisePowerIn, "Noise In", UnitPower, false, "Noise power at the device input."),
		auto(SNRIn, "SNR In", UnitRatio, false, "Signal-to-noise ratio at the device input."),
		auto(SNROut, "SNR Out", UnitRatio, true, "Signal-to-noise ratio at the device output."),
	}
}

func deviceCascadeMetrics() []MetricDef {
	return []MetricDef{
		{
			Key: NoiseFigureContribution, Phase: PhaseDeviceCascade, Formula: noiseFigureContribution, Pushes: true,
			Title: "NF Contribution", Unit: UnitRatio, Default: true,
			Description: "SNR degradation caused by this device.",
		},
		{
			Key: BackoffFromP1dB, Phase: PhaseDeviceCascade, Formula: backoffFromP1dB, Pushes: true,
			Title: "Backoff", Unit: UnitRatio, Default: true,
			Description: "Margin between the device's OP1dB and its output signal.",
		},
		{
			Key: NoiseFigureContributionSinglePath, Phase: PhaseDeviceCascade,
			Formula: noiseFigureContributionSinglePath, Pushes: true,
			Title: "Single Path NF Contribution", Unit: UnitRatio, Visibility: VisibleRX,
			Description: "SNR degradation of one element's path caused by this device.",
		},
	}
}

func readStage(key Metric) Formula {
	return func(acc Accumulator, s *Stage) (Step, error) {
		v, err := s.Get(key)
		if err != nil {
			return Step{Acc: acc}, err
		}
		return Step{Value: v, Acc: acc}, nil
	}
}

func fromAccumulator(f func(Accumulator) float64) Formula {
	return func(acc Accumulator, _ *Stage) (Step, error) {
		return Step{Value: f(acc), Acc: acc}, nil
	}
}

// getAll resolves keys in order and stops at the first failure.
func getAll(s *Stage, keys ...Metric) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		v, err := s.Get(k)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func signalPowerOut(acc Accumulator, s *Stage) (Step, error) {
	v, err := getAll(s, SignalPowerGain, SinglePathGain)
	if err != nil {
		return Step{Acc: acc}, err
	}
	next := acc
	next.SignalPowerIdeal *= v[0]
	next.SignalPowerSinglePath *= v[1]
	return Step{
		Value: next.SignalPowerIdeal,
		Acc:   next,
		Side: []Pushed{
			{SNRIn, acc.SNRIdeal()},
			{SNRInSinglePath, acc.SNRIdealSinglePath()},
			{SignalPowerIn, acc.SignalPowerIdeal},
			{SystemSignalGainIdeal, next.SignalPowerIdeal / next.SignalPowerIn},
		},
	}, nil
}

// noisePowerOut adds the device's own noise at its input and scales the sum
// by its electronic gain. The signal must already have been advanced.
func noisePowerOut(acc Accumulator, s *Stage) (Step, error) {
	v, err := getAll(s, ElectronicGain, NoiseTemperature, SinglePathGain, NoiseTemperatureSinglePath)
	if err != nil {
		return Step{Acc: acc}, err
	}
	ge, t, gsp, tsp := v[0], v[1], v[2], v[3]
	next := acc
	next.NoisePower = ge * (acc.KB*t + acc.NoisePower)
	next.NoisePowerSinglePath = gsp * (acc.KB*tsp + acc.NoisePowerSinglePath)
	next.ElectronicGain *= ge
	return Step{
		Value: next.NoisePower,
		Acc:   next,
		Side: []Pushed{
			{NoisePowerIn, acc.NoisePower},
			{NoisePowerInSinglePath, acc.NoisePowerSinglePath},
			{NoisePowerOutSinglePath, next.NoisePowerSinglePath},
			{SNROut, next.SNRIdeal()},
			{SNROutSinglePath, next.SNRIdealSinglePath()},
		},
	}, nil
}

func systemInterceptDef(o interceptOrder, title, desc string) MetricDef {
	k := intercepts[o]
	return MetricDef{
		Key:    k.system,
		Phase:  PhaseSystemOutput,
		Pushes: true,
		Formula: func(acc Accumulator, s *Stage) (Step, error) {
			v, err := getAll(s, k.output, SignalPowerGain)
			if err != nil {
				return Step{Acc: acc}, err
			}
			next := acc.withIntercept(o, combineReciprocal(acc.intercept(o), v[1], v[0]))
			return Step{Value: next.intercept(o), Acc: next}, nil
		},
		Title:       title,
		Unit:        UnitPower,
		Description: desc,
	}
}

func systemInputInterceptDef(o interceptOrder, title, desc string) MetricDef {
	k := intercepts[o]
	return MetricDef{
		Key:   k.systemInput,
		Phase: PhaseSystemCascade,
		Formula: func(acc Accumulator, s *Stage) (Step, error) {
			v, err := getAll(s, k.system, SystemSignalGainIdeal)
			if err != nil {
				return Step{Acc: acc}, err
			}
			return Step{Value: referToInput(v[0], v[1], k.offsetDB), Acc: acc}, nil
		},
		Title:       title,
		Unit:        UnitPower,
		Default:     o == order1dB,
		Description: desc,
	}
}

func systemElementCount(acc Accumulator, s *Stage) (Step, error) {
	v, err := getAll(s, ElementCount, NegativeNoiseFigure)
	if err != nil {
		return Step{Acc: acc}, err
	}
	next := acc
	next.ElementCount *= v[0]
	next.NegativeNoiseFigure *= v[1]
	return Step{
		Value: next.ElementCount,
		Acc:   next,
		Side: []Pushed{
			{ElementCountIn, acc.ElementCount},
			{NegativeNoiseFigureIn, acc.NegativeNoiseFigure},
		},
	}, nil
}

func systemSinglePathGain(acc Accumulator, _ *Stage) (Step, error) {
	return Step{Value: acc.SignalPowerSinglePath / acc.SignalPowerIn, Acc: acc}, nil
}

func systemArrayGain(acc Accumulator, s *Stage) (Step, error) {
	g, err := s.Get(ArrayGain)
	if err != nil {
		return Step{Acc: acc}, err
	}
	next := acc
	next.ArrayGain *= g
	return Step{
		Value: next.ArrayGain,
		Acc:   next,
		Side:  []Pushed{{ArrayGainIn, acc.ArrayGain}},
	}, nil
}

func systemEIRP(acc Accumulator, s *Stage) (Step, error) {
	p, err := s.Get(SignalPowerOut)
	if err != nil {
		return Step{Acc: acc}, err
	}
	return Step{Value: p * acc.ElementCount * acc.ArrayGain, Acc: acc}, nil
}

// noiselessTolerance bounds the rounding residue left in a noise factor
// that is exactly 1 in theory, such as after a lone antenna.
const noiselessTolerance = 1e-12

func systemNoiseTemperature(a Accumulator) float64 {
	excess := a.NoiseFactor() - 1
	if math.Abs(excess) < noiselessTolerance {
		return 0
	}
	return model.T0 * excess
}

func systemGOverT(a Accumulator) float64 {
	t := systemNoiseTemperature(a)
	if t == 0 {
		return math.Inf(1)
	}
	return a.ElementCount / t
}

func noiseFigureContribution(acc Accumulator, s *Stage) (Step, error) {
	v, err := getAll(s, SNRIn, NegativeNoiseFigureIn, SNROut)
	if err != nil {
		return Step{Acc: acc}, err
	}
	return Step{Value: (v[0] / v[1]) / (v[2] / acc.NegativeNoiseFigure), Acc: acc}, nil
}

func backoffFromP1dB(acc Accumulator, s *Stage) (Step, error) {
	v, err := getAll(s, OP1dB, SignalPowerOut)
	if err != nil {
		return Step{Acc: acc}, err
	}
	return Step{Value: v[0] / v[1], Acc: acc}, nil
}

func noiseFigureContributionSinglePath(acc Accumulator, s *Stage) (Step, error) {
	v, err := getAll(s, SNRInSinglePath, SNROutSinglePath)
	if err != nil {
		return Step{Acc: acc}, err
	}
	return Step{Value: v[0] / v[1], Acc: acc}, nil
}
