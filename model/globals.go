package model

import (
	"fmt"
	"math"
	"strings"
)

const (
	// Boltzmann is Boltzmann's constant in J/K.
	Boltzmann = 1.380649e-23
	// T0 is the IEEE reference temperature for noise figure, in kelvin.
	T0 = 290.0
)

// Direction is the signal flow direction of the whole system.
type Direction string

const (
	DirectionRX Direction = "rx"
	DirectionTX Direction = "tx"
)

// IsRX reports whether the system is configured as a receiver.
func (d Direction) IsRX() bool { return d != DirectionTX }

// IsTX reports whether the system is configured as a transmitter.
func (d Direction) IsTX() bool { return d == DirectionTX }

// ParseDirection maps "rx"/"tx" (any case) onto a Direction. Empty input
// defaults to RX.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rx", "receive":
		return DirectionRX, nil
	case "tx", "transmit":
		return DirectionTX, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Globals are the system-wide scalar inputs to an evaluation.
type Globals struct {
	// SystemTemperatureK is the ambient temperature every stage sits at
	// before its own offset.
	SystemTemperatureK float64
	BandwidthHz        float64
	// InputPowerW is the signal power presented to the first stage.
	InputPowerW float64
	// NoiseTemperatureInputK is the noise temperature of the source.
	NoiseTemperatureInputK float64
	Direction              Direction
}

// DefaultGlobals mirrors the factory settings of the calculator:
// 16.85 C, 1 MHz, -10 dBm, 290 K source, receive.
func DefaultGlobals() Globals {
	return Globals{
		SystemTemperatureK:     T0,
		BandwidthHz:            1e6,
		InputPowerW:            DBmToWatts(-10),
		NoiseTemperatureInputK: T0,
		Direction:              DirectionRX,
	}
}

// KB returns Boltzmann's constant scaled by the bandwidth (W/K).
func (g Globals) KB() float64 { return Boltzmann * g.BandwidthHz }

// NoisePower returns the source noise power in watts.
func (g Globals) NoisePower() float64 { return g.KB() * g.NoiseTemperatureInputK }

// DBmToWatts converts a dBm level to watts. +Inf maps to +Inf.
func DBmToWatts(dbm float64) float64 { return math.Pow(10, (dbm-30)/10) }

// WattsToDBm converts watts to dBm.
func WattsToDBm(w float64) float64 { return 10*math.Log10(w) + 30 }

// ChainSpec is a named, ordered list of stages plus the globals they are
// evaluated under.
type ChainSpec struct {
	Name    string
	Globals Globals
	Stages  []StageSpec
}

// Clone returns a deep copy so stored chains can't be mutated through a
// caller's reference.
func (c ChainSpec) Clone() ChainSpec {
	out := c
	out.Stages = make([]StageSpec, len(c.Stages))
	for i, s := range c.Stages {
		s.P1dBDBm = cloneFloat(s.P1dBDBm)
		s.IP3DBm = cloneFloat(s.IP3DBm)
		s.IP2DBm = cloneFloat(s.IP2DBm)
		out.Stages[i] = s
	}
	return out
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
