package core

import "fmt"

// Phase is one of the five evaluation passes run for every stage, in order.
type Phase int

const (
	// PhaseDeviceOutput holds per-stage metrics with no cascade effect.
	PhaseDeviceOutput Phase = iota
	// PhaseSystemOutput metrics advance the accumulator.
	PhaseSystemOutput
	// PhaseSystemCascade metrics derive whole-system values from the
	// accumulator and this stage's pushed values.
	PhaseSystemCascade
	// PhaseSystemAuto re-exposes values already pushed for display.
	PhaseSystemAuto
	// PhaseDeviceCascade compares the accumulator before and after the stage.
	PhaseDeviceCascade

	phaseCount
)

var phaseNames = [phaseCount]string{
	PhaseDeviceOutput:  "device-output",
	PhaseSystemOutput:  "system-output",
	PhaseSystemCascade: "system-cascade",
	PhaseSystemAuto:    "system-auto",
	PhaseDeviceCascade: "device-cascade",
}

// Phases returns the phases in execution order.
func Phases() []Phase {
	return []Phase{
		PhaseDeviceOutput,
		PhaseSystemOutput,
		PhaseSystemCascade,
		PhaseSystemAuto,
		PhaseDeviceCascade,
	}
}

// Valid reports whether p is one of the declared phases.
func (p Phase) Valid() bool { return p >= PhaseDeviceOutput && p < phaseCount }

func (p Phase) String() string {
	if !p.Valid() {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase looks a phase up by name.
func ParsePhase(name string) (Phase, error) {
	for p := PhaseDeviceOutput; p < phaseCount; p++ {
		if phaseNames[p] == name {
			return p, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownPhase, name)
}
