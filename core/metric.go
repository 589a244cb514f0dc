package core

import "fmt"

// Metric identifies a numeric attribute that can be resolved on a Stage.
// The set is closed: every key the engine knows is declared here, and the
// formula dispatch tables are keyed by it.
type Metric int

const (
	metricInvalid Metric = iota

	// Raw (declared) parameters.
	Gain
	NoiseFigure
	P1dB
	IP3
	IP2
	TemperatureOffset
	Legs

	// Per-stage derived parameters.
	SignalPowerGain
	ElectronicGain
	SinglePathGain
	ElementCount
	ArrayGain
	NegativeNoiseFigure
	NoiseTemperature
	NoiseTemperatureSinglePath
	NoiseFactor
	NoiseFigurePhysical
	PhysicalTemperature
	OP1dB
	IP1dB
	OIP3
	IIP3
	OIP2
	IIP2

	// Values pushed into a stage's cascade map while walking the chain.
	SignalPowerIn
	SignalPowerOut
	SystemSignalGainIdeal
	SNRIn
	SNROut
	NoisePowerIn
	NoisePowerOut
	SNRInSinglePath
	SNROutSinglePath
	NoisePowerInSinglePath
	NoisePowerOutSinglePath
	SystemOP1dB
	SystemOIP3
	SystemOIP2
	ElementCountIn
	NegativeNoiseFigureIn
	SystemElementCount
	SystemSinglePathGain
	ArrayGainIn
	SystemArrayGain
	SystemNoiseFactor
	SystemIP1dB
	SystemIIP3
	SystemIIP2
	SystemEIRP
	SystemElectronicGain
	SystemNoiseTemperature
	SystemGOverT
	SystemNoiseFactorSinglePath
	NoiseFigureContribution
	BackoffFromP1dB
	NoiseFigureContributionSinglePath

	metricCount
)

var metricNames = [metricCount]string{
	metricInvalid: "invalid",

	Gain:              "gain",
	NoiseFigure:       "noise_figure",
	P1dB:              "p1db",
	IP3:               "ip3",
	IP2:               "ip2",
	TemperatureOffset: "temperature_offset",
	Legs:              "legs",

	SignalPowerGain:            "signal_power_gain",
	ElectronicGain:             "electronic_gain",
	SinglePathGain:             "single_path_gain",
	ElementCount:               "element_count",
	ArrayGain:                  "array_gain",
	NegativeNoiseFigure:        "negative_noise_figure",
	NoiseTemperature:           "noise_temperature",
	NoiseTemperatureSinglePath: "noise_temperature_single_path",
	NoiseFactor:                "noise_factor",
	NoiseFigurePhysical:        "noise_figure_physical",
	PhysicalTemperature:        "physical_temperature",
	OP1dB:                      "op1db",
	IP1dB:                      "ip1db",
	OIP3:                       "oip3",
	IIP3:                       "iip3",
	OIP2:                       "oip2",
	IIP2:                       "iip2",

	SignalPowerIn:                     "signal_power_in",
	SignalPowerOut:                    "signal_power_out",
	SystemSignalGainIdeal:             "system_signal_gain_ideal",
	SNRIn:                             "snr_in",
	SNROut:                            "snr_out",
	NoisePowerIn:                      "noise_power_in",
	NoisePowerOut:                     "noise_power_out",
	SNRInSinglePath:                   "snr_in_single_path",
	SNROutSinglePath:                  "snr_out_single_path",
	NoisePowerInSinglePath:            "noise_power_in_single_path",
	NoisePowerOutSinglePath:           "noise_power_out_single_path",
	SystemOP1dB:                       "system_op1db",
	SystemOIP3:                        "system_oip3",
	SystemOIP2:                        "system_oip2",
	ElementCountIn:                    "element_count_in",
	NegativeNoiseFigureIn:             "negative_noise_figure_in",
	SystemElementCount:                "system_element_count",
	SystemSinglePathGain:              "system_single_path_gain",
	ArrayGainIn:                       "array_gain_in",
	SystemArrayGain:                   "system_array_gain",
	SystemNoiseFactor:                 "system_noise_factor",
	SystemIP1dB:                       "system_ip1db",
	SystemIIP3:                        "system_iip3",
	SystemIIP2:                        "system_iip2",
	SystemEIRP:                        "system_eirp",
	SystemElectronicGain:              "system_electronic_gain",
	SystemNoiseTemperature:            "system_noise_temperature",
	SystemGOverT:                      "system_g_over_t",
	SystemNoiseFactorSinglePath:       "system_noise_factor_single_path",
	NoiseFigureContribution:           "noise_figure_contribution",
	BackoffFromP1dB:                   "backoff_from_p1db",
	NoiseFigureContributionSinglePath: "noise_figure_contribution_single_path",
}

var metricsByName = func() map[string]Metric {
	m := make(map[string]Metric, metricCount)
	for k := Metric(1); k < metricCount; k++ {
		m[metricNames[k]] = k
	}
	return m
}()

// Valid reports whether m is a declared metric.
func (m Metric) Valid() bool { return m > metricInvalid && m < metricCount }

// String returns the snake_case key of the metric.
func (m Metric) String() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricNames[m]
}

// IsRaw reports whether m is a user-declared parameter.
func (m Metric) IsRaw() bool { return m >= Gain && m <= Legs }

// ParseMetric looks a metric up by its snake_case key.
func ParseMetric(name string) (Metric, error) {
	if m, ok := metricsByName[name]; ok {
		return m, nil
	}
	return metricInvalid, fmt.Errorf("%w: %q", ErrUnknownMetricKey, name)
}

// AllMetrics returns every declared metric in declaration order.
func AllMetrics() []Metric {
	out := make([]Metric, 0, metricCount-1)
	for m := Metric(1); m < metricCount; m++ {
		out = append(out, m)
	}
	return out
}

// MarshalText lets metrics be used as JSON object keys.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMetricKey, int(m))
	}
	return []byte(metricNames[m]), nil
}

// UnmarshalText is the inverse of MarshalText.
func (m *Metric) UnmarshalText(b []byte) error {
	v, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
