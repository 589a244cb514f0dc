package report

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"

	"github.com/signalsfoundry/rfcascade/core"
)

// Number is a float64 that survives JSON: infinities and NaN are written
// as the strings "+Inf", "-Inf" and "NaN".
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Document is the machine readable form of an evaluation. Values are in SI
// units keyed by metric name.
type Document struct {
	ID         string        `json:"id"`
	Chain      string        `json:"chain,omitempty"`
	Direction  string        `json:"direction"`
	Stages     []StageValues `json:"stages"`
	Output     StageValues   `json:"output"`
	Warnings   []string      `json:"warnings,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
	ElapsedSec float64       `json:"elapsed_seconds"`
}

// StageValues holds one stage's results.
type StageValues struct {
	Index      int               `json:"index"`
	PartNumber string            `json:"part_number"`
	Kind       string            `json:"kind"`
	Enabled    bool              `json:"enabled"`
	Strategy   string            `json:"strategy,omitempty"`
	Values     map[string]Number `json:"values,omitempty"`
}

// NewDocument captures res. A non-empty metrics list restricts the values
// written per stage.
func NewDocument(res *core.Result, metrics []core.Metric) (*Document, error) {
	if res == nil {
		return nil, errors.New("report: nil result")
	}
	doc := &Document{
		ID:         res.ID,
		Chain:      res.Chain,
		Direction:  string(res.Globals.Direction),
		Stages:     make([]StageValues, 0, len(res.Stages)),
		ElapsedSec: res.Elapsed.Seconds(),
	}
	for i, st := range res.Stages {
		doc.Stages = append(doc.Stages, stageValues(i+1, st, metrics))
	}
	if res.Sink != nil {
		doc.Output = stageValues(len(res.Stages)+1, res.Sink, metrics)
	}
	for _, w := range res.Warnings {
		doc.Warnings = append(doc.Warnings, w.String())
	}
	for _, err := range res.Errors {
		doc.Errors = append(doc.Errors, err.Error())
	}
	return doc, nil
}

func stageValues(index int, st *core.Stage, metrics []core.Metric) StageValues {
	sv := StageValues{
		Index:      index,
		PartNumber: st.Spec.PartNumber,
		Kind:       string(st.Kind()),
		Enabled:    st.Enabled(),
	}
	if !sv.Enabled {
		return sv
	}
	sv.Strategy = st.Strategy()
	values := st.Values()
	sv.Values = make(map[string]Number, len(values))
	if len(metrics) == 0 {
		for k, v := range values {
			sv.Values[k.String()] = Number(v)
		}
		return sv
	}
	for _, k := range metrics {
		if v, ok := values[k]; ok {
			sv.Values[k.String()] = Number(v)
		}
	}
	return sv
}

// WriteJSON writes the indented document for res.
func WriteJSON(w io.Writer, res *core.Result, metrics []core.Metric) error {
	doc, err := NewDocument(res, metrics)
	if err != nil {
		return err
	}
	return doc.Encode(w)
}

// Encode writes d as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
