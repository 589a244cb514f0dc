package core

import (
	"math"

	"github.com/signalsfoundry/rfcascade/model"
)

// Accumulator is the running state carried from one stage to the next. It is
// passed and returned by value; a phase never mutates the caller's copy.
type Accumulator struct {
	// KB is Boltzmann's constant times the bandwidth.
	KB float64

	// SignalPowerIn is the input power, fixed for the whole evaluation.
	SignalPowerIn float64
	// SignalPowerIdeal is the coherent signal power after the last stage,
	// ignoring compression.
	SignalPowerIdeal float64
	NoisePower       float64

	SignalPowerSinglePath float64
	NoisePowerSinglePath  float64

	ElementCount        float64
	NegativeNoiseFigure float64
	ArrayGain           float64
	// ElectronicGain is the running product of the stages' electronic gains.
	ElectronicGain float64

	// Output-referred cascaded intercepts, in watts. +Inf means linear.
	P1dB float64
	OIP3 float64
	OIP2 float64

	// SNRStart is the ideal SNR at the chain input. It is also the reference
	// for the single-path noise factor.
	SNRStart float64
}

// NewAccumulator seeds the accumulator from the global inputs.
func NewAccumulator(g model.Globals) Accumulator {
	inf := math.Inf(1)
	acc := Accumulator{
		KB:                    g.KB(),
		SignalPowerIn:         g.InputPowerW,
		SignalPowerIdeal:      g.InputPowerW,
		NoisePower:            g.NoisePower(),
		SignalPowerSinglePath: g.InputPowerW,
		NoisePowerSinglePath:  g.NoisePower(),
		ElementCount:          1,
		NegativeNoiseFigure:   1,
		ArrayGain:             1,
		ElectronicGain:        1,
		P1dB:                  inf,
		OIP3:                  inf,
		OIP2:                  inf,
	}
	acc.SNRStart = acc.SNRIdeal()
	return acc
}

// SNRIdeal is the coherent signal-to-noise ratio.
func (a Accumulator) SNRIdeal() float64 { return a.SignalPowerIdeal / a.NoisePower }

// SNRIdealSinglePath is the signal-to-noise ratio seen by one path.
func (a Accumulator) SNRIdealSinglePath() float64 {
	return a.SignalPowerSinglePath / a.NoisePowerSinglePath
}

// NoiseFactor is the coherent system noise factor so far.
func (a Accumulator) NoiseFactor() float64 {
	return a.SNRStart / (a.SNRIdeal() / a.NegativeNoiseFigure)
}

// NoiseFactorSinglePath is the single-path system noise factor so far.
func (a Accumulator) NoiseFactorSinglePath() float64 {
	return a.SNRStart / a.SNRIdealSinglePath()
}

func (a Accumulator) intercept(o interceptOrder) float64 {
	switch o {
	case order1dB:
		return a.P1dB
	case order3:
		return a.OIP3
	default:
		return a.OIP2
	}
}

func (a Accumulator) withIntercept(o interceptOrder, v float64) Accumulator {
	switch o {
	case order1dB:
		a.P1dB = v
	case order3:
		a.OIP3 = v
	default:
		a.OIP2 = v
	}
	return a
}

// combineReciprocal cascades an output-referred rating v1 through a stage
// of gain g2 whose own output-referred rating is v2. Infinite inputs
// contribute nothing; when neither contributes the result is +Inf.
func combineReciprocal(v1, g2, v2 float64) float64 {
	var t1, t2 float64
	if !math.IsInf(v1, 1) {
		t1 = 1 / (v1 * g2)
	}
	if !math.IsInf(v2, 1) {
		t2 = 1 / v2
	}
	if t1 == 0 && t2 == 0 {
		return math.Inf(1)
	}
	return 1 / (t1 + t2)
}
