package model

import (
	"fmt"
	"math"
	"strings"
)

// StageKind identifies the hardware family of a chain element.
type StageKind string

const (
	KindAntenna           StageKind = "antenna"
	KindAmplifier         StageKind = "amplifier"
	KindPassive           StageKind = "passive"
	KindCorporateCombiner StageKind = "corporate_combiner"
	KindCorporateDivider  StageKind = "corporate_divider"
	KindCombiner          StageKind = "combiner"
	KindDivider           StageKind = "divider"
	// KindNode is the zero-effect marker used as the terminal sink of a chain.
	KindNode StageKind = "node"
)

// StageKinds lists the user-selectable kinds in menu order. KindNode is
// omitted because the evaluator appends the sink itself.
var StageKinds = []StageKind{
	KindAmplifier,
	KindPassive,
	KindCorporateCombiner,
	KindCorporateDivider,
	KindCombiner,
	KindDivider,
	KindAntenna,
}

// HasLegs reports whether the kind carries a leg (input/output) count.
func (k StageKind) HasLegs() bool {
	switch k {
	case KindCorporateCombiner, KindCorporateDivider, KindCombiner, KindDivider:
		return true
	}
	return false
}

// Title is the human readable name of the kind.
func (k StageKind) Title() string {
	switch k {
	case KindAntenna:
		return "Antenna"
	case KindAmplifier:
		return "Active"
	case KindPassive:
		return "Passive"
	case KindCorporateCombiner:
		return "Corporate Combiner"
	case KindCorporateDivider:
		return "Corporate Divider"
	case KindCombiner:
		return "Combiner"
	case KindDivider:
		return "Divider"
	case KindNode:
		return "Node"
	default:
		return string(k)
	}
}

// ParseStageKind maps user input onto a StageKind. It accepts the canonical
// names plus a few aliases ("active", "amp", "lna", "pa", ...).
func ParseStageKind(s string) (StageKind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	switch v {
	case "antenna", "ant":
		return KindAntenna, nil
	case "amplifier", "active", "amp", "lna", "pa":
		return KindAmplifier, nil
	case "passive", "tline", "cable", "attenuator":
		return KindPassive, nil
	case "corporate_combiner", "corp_combiner":
		return KindCorporateCombiner, nil
	case "corporate_divider", "corp_divider":
		return KindCorporateDivider, nil
	case "combiner":
		return KindCombiner, nil
	case "divider", "splitter":
		return KindDivider, nil
	case "node":
		return KindNode, nil
	}
	return "", fmt.Errorf("unknown stage kind %q", s)
}

// Linearity selects how the nominal P1dB/IP3/IP2 ratings are referenced.
type Linearity string

const (
	// LinearityIgnore treats the stage as perfectly linear (infinite ratings).
	LinearityIgnore         Linearity = "ignore"
	LinearityInputReferred  Linearity = "input"
	LinearityOutputReferred Linearity = "output"
)

// ParseLinearity maps user input onto a Linearity.
func ParseLinearity(s string) (Linearity, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "" || v == "ignore" || v == "none":
		return LinearityIgnore, nil
	case strings.HasPrefix(v, "input"):
		return LinearityInputReferred, nil
	case strings.HasPrefix(v, "output"):
		return LinearityOutputReferred, nil
	}
	return "", fmt.Errorf("unknown linearity %q", s)
}

// StageSpec holds the user-declared (raw) parameters of one stage. These
// values are never written by the engine.
type StageSpec struct {
	Kind       StageKind
	PartNumber string

	// GainDB is the nominal gain. For combiners and dividers it excludes
	// the split loss.
	GainDB float64
	// NoiseFigureDB is the nominal noise figure. Passive, combiner, divider
	// and antenna kinds derive their effective value from gain and legs.
	NoiseFigureDB float64

	Linearity Linearity
	// P1dBDBm, IP3DBm and IP2DBm are optional; nil means "not specified".
	// They are only consulted when Linearity is not LinearityIgnore.
	P1dBDBm *float64
	IP3DBm  *float64
	IP2DBm  *float64

	// TemperatureOffsetK is added to the system temperature to get the
	// stage's physical temperature.
	TemperatureOffsetK float64

	// Legs is the input/output count of combiners and dividers. Ignored for
	// other kinds.
	Legs int

	Enabled bool
}

// Float returns a pointer to v; handy for optional spec fields.
func Float(v float64) *float64 { return &v }

// DefaultStageSpec returns the factory parameters for a kind.
func DefaultStageSpec(kind StageKind) StageSpec {
	inf := math.Inf(1)
	spec := StageSpec{
		Kind:       kind,
		PartNumber: kind.Title(),
		Linearity:  LinearityIgnore,
		P1dBDBm:    Float(inf),
		IP3DBm:     Float(inf),
		IP2DBm:     Float(inf),
		Enabled:    true,
	}
	switch kind {
	case KindAmplifier:
		spec.PartNumber = "Amp"
		spec.GainDB = 13
		spec.NoiseFigureDB = 5
		spec.Linearity = LinearityOutputReferred
		spec.P1dBDBm = Float(10)
		spec.IP3DBm = Float(20)
		spec.IP2DBm = Float(30)
	case KindPassive:
		spec.GainDB = -1
		spec.NoiseFigureDB = 1
	case KindCorporateCombiner, KindCombiner:
		spec.PartNumber = "Combiner"
		spec.GainDB = -1
		spec.NoiseFigureDB = 1
		spec.Legs = 2
	case KindCorporateDivider, KindDivider:
		spec.PartNumber = "Divider"
		spec.GainDB = -1
		spec.Legs = 2
	case KindAntenna:
		spec.GainDB = 4
	case KindNode:
		spec.PartNumber = "[]"
	}
	return spec
}
