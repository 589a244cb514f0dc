package report

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/signalsfoundry/rfcascade/core"
	"github.com/signalsfoundry/rfcascade/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluate(t *testing.T, dir model.Direction, stages ...model.StageSpec) *core.Result {
	t.Helper()
	spec := model.ChainSpec{Name: "bench", Globals: model.DefaultGlobals(), Stages: stages}
	spec.Globals.Direction = dir
	res, err := core.NewEvaluator().EvaluateSpec(context.Background(), spec)
	require.NoError(t, err)
	return res
}

func TestDisplayConversions(t *testing.T) {
	cases := []struct {
		v     float64
		unit  core.Unit
		power PowerUnit
		want  string
	}{
		{1e-3, core.UnitPower, PowerDBm, "0.00"},
		{1e-3, core.UnitPower, PowerDBW, "-30.00"},
		{1e-3, core.UnitPower, PowerWatt, "0.001"},
		{100, core.UnitRatio, PowerDBm, "20.00"},
		{0, core.UnitRatio, PowerDBm, "-Inf"},
		{math.Inf(1), core.UnitPower, PowerDBm, "Inf"},
		{0.01, core.UnitRatioPerKelvin, PowerDBm, "-20.00"},
		{290, core.UnitTemperature, PowerDBm, "290.00"},
		{16, core.UnitCount, PowerDBm, "16"},
		{3, core.UnitDB, PowerDBm, "3.00"},
		{math.NaN(), core.UnitRatio, PowerDBm, "NaN"},
	}
	for _, tc := range cases {
		got := Format(Display(tc.v, tc.unit, tc.power), tc.unit, tc.power)
		assert.Equal(t, tc.want, got, "value %v unit %v power %s", tc.v, tc.unit, tc.power)
	}
}

func TestParsePowerUnit(t *testing.T) {
	for in, want := range map[string]PowerUnit{"": PowerDBm, "DBM": PowerDBm, "dbw": PowerDBW, "W": PowerWatt} {
		got, err := ParsePowerUnit(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePowerUnit("hp")
	assert.Error(t, err)
}

func TestParseMetrics(t *testing.T) {
	got, err := ParseMetrics("system_noise_factor, snr_out,,")
	require.NoError(t, err)
	assert.Equal(t, []core.Metric{core.SystemNoiseFactor, core.SNROut}, got)

	_, err = ParseMetrics("snr_out,bogus")
	assert.ErrorIs(t, err, core.ErrUnknownMetricKey)
}

func TestDefaultColumnsFollowDirection(t *testing.T) {
	rx, err := Columns(Options{}, model.DirectionRX)
	require.NoError(t, err)
	tx, err := Columns(Options{}, model.DirectionTX)
	require.NoError(t, err)

	has := func(cols []Column, key core.Metric) bool {
		for _, c := range cols {
			if c.Key == key {
				return true
			}
		}
		return false
	}
	assert.True(t, has(rx, core.SystemGOverT))
	assert.False(t, has(rx, core.SystemEIRP))
	assert.True(t, has(tx, core.SystemEIRP))
	assert.False(t, has(tx, core.SystemGOverT))
}

func TestBuildAndRender(t *testing.T) {
	passive := model.DefaultStageSpec(model.KindPassive)
	passive.Enabled = false
	res := evaluate(t, model.DirectionRX, model.DefaultStageSpec(model.KindAmplifier), passive)

	tbl, err := Build(res, Options{
		Metrics: []core.Metric{core.SystemSignalGainIdeal, core.OP1dB},
		Plain:   true,
	})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)

	amp := tbl.Rows[0]
	assert.Equal(t, []string{"13.00", "10.00"}, amp.Cells)
	assert.False(t, tbl.Rows[1].Enabled)
	assert.Nil(t, tbl.Rows[1].Cells)

	out := tbl.Rows[2]
	assert.Equal(t, "Output", out.PartNumber)
	assert.Equal(t, "13.00", out.Cells[0])
	assert.Equal(t, "Inf", out.Cells[1])

	var buf bytes.Buffer
	require.NoError(t, tbl.Render(&buf))
	text := buf.String()
	assert.True(t, strings.HasPrefix(text, "bench (RX)\n"))
	for _, want := range []string{"System Gain (dB)", "OP1dB (dBm)", "Active", "off", "Output"} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, "warning:")
}

func TestBuildRejectsUnregisteredMetric(t *testing.T) {
	res := evaluate(t, model.DirectionRX)
	_, err := Build(res, Options{Metrics: []core.Metric{core.Gain}})
	assert.ErrorIs(t, err, core.ErrUnknownMetricKey)

	_, err = Build(nil, Options{})
	assert.Error(t, err)
}

func TestRenderShowsDegradationWarnings(t *testing.T) {
	res := evaluate(t, model.DirectionTX, model.DefaultStageSpec(model.KindCorporateCombiner))
	tbl, err := Build(res, Options{Plain: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.Render(&buf))
	assert.Contains(t, buf.String(), "warning: stage 1 (Combiner)")
	assert.Contains(t, buf.String(), "EIRP (dBm)")
}

func TestWriteJSON(t *testing.T) {
	res := evaluate(t, model.DirectionRX, model.DefaultStageSpec(model.KindPassive))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, res, []core.Metric{core.SystemSignalGainIdeal, core.OP1dB}))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, res.ID, doc.ID)
	assert.Equal(t, "rx", doc.Direction)
	require.Len(t, doc.Stages, 1)
	assert.Equal(t, "passive", doc.Stages[0].Kind)
	assert.Len(t, doc.Stages[0].Values, 2)
	assert.InDelta(t, math.Pow(10, -0.1), float64(doc.Stages[0].Values["system_signal_gain_ideal"]), 1e-12)
	assert.True(t, math.IsInf(float64(doc.Stages[0].Values["op1db"]), 1))
	assert.Equal(t, 2, doc.Output.Index)
	assert.Contains(t, buf.String(), `"+Inf"`)
}

func TestNumberJSON(t *testing.T) {
	for _, v := range []float64{1.5, math.Inf(1), math.Inf(-1)} {
		b, err := json.Marshal(Number(v))
		require.NoError(t, err)
		var back Number
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, v, float64(back))
	}
}

func TestWriteCatalog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCatalog(&buf, nil, model.DirectionTX, PowerDBW))
	out := buf.String()
	assert.Contains(t, out, "system_eirp")
	assert.Contains(t, out, "dBW")
	assert.NotContains(t, out, "system_g_over_t")
}
