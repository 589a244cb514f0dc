// Package report turns evaluation results into terminal tables and JSON
// documents, converting SI values into the units engineers read them in.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/signalsfoundry/rfcascade/core"
)

// PowerUnit selects how powers in watts are displayed.
type PowerUnit string

const (
	PowerDBm  PowerUnit = "dBm"
	PowerDBW  PowerUnit = "dBW"
	PowerWatt PowerUnit = "W"
)

// ParsePowerUnit accepts dbm, dbw or w in any case. Empty means dBm.
func ParsePowerUnit(s string) (PowerUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dbm":
		return PowerDBm, nil
	case "dbw":
		return PowerDBW, nil
	case "w", "watt", "watts":
		return PowerWatt, nil
	}
	return "", fmt.Errorf("unknown power unit %q", s)
}

// Display converts an SI value into its display unit.
func Display(v float64, unit core.Unit, power PowerUnit) float64 {
	switch unit {
	case core.UnitPower:
		switch power {
		case PowerWatt:
			return v
		case PowerDBW:
			return toDB(v)
		default:
			return toDB(v) + 30
		}
	case core.UnitRatio, core.UnitRatioPerKelvin:
		return toDB(v)
	}
	return v
}

// UnitLabel is the suffix shown next to a column title.
func UnitLabel(unit core.Unit, power PowerUnit) string {
	switch unit {
	case core.UnitPower:
		if power == "" {
			return string(PowerDBm)
		}
		return string(power)
	case core.UnitRatio, core.UnitDB:
		return "dB"
	case core.UnitRatioPerKelvin:
		return "dB/K"
	case core.UnitTemperature:
		return "K"
	case core.UnitDBm:
		return "dBm"
	}
	return ""
}

// Format renders a display value. Infinities print as Inf so unrated
// stages read naturally.
func Format(v float64, unit core.Unit, power PowerUnit) string {
	switch {
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	switch {
	case unit == core.UnitCount:
		return strconv.FormatFloat(v, 'f', 0, 64)
	case unit == core.UnitPower && power == PowerWatt, unit == core.UnitNone:
		return strconv.FormatFloat(v, 'g', 4, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func toDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(v)
}
