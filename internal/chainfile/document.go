package chainfile

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/signalsfoundry/rfcascade/model"
)

// chain file shapes; unexported so the file format can evolve separately
// from model.
type chainDoc struct {
	Name    string     `json:"name,omitempty" yaml:"name,omitempty" hcl:"name,optional"`
	Globals *globalDoc `json:"globals,omitempty" yaml:"globals,omitempty" hcl:"globals,block"`
	Stages  []stageDoc `json:"stages" yaml:"stages" hcl:"stage,block" validate:"dive"`
}

type globalDoc struct {
	SystemTemperatureK     *float64 `json:"system_temperature_k,omitempty" yaml:"system_temperature_k,omitempty" hcl:"system_temperature_k,optional" validate:"omitempty,gte=0"`
	BandwidthHz            *float64 `json:"bandwidth_hz,omitempty" yaml:"bandwidth_hz,omitempty" hcl:"bandwidth_hz,optional" validate:"omitempty,gt=0"`
	InputPowerDBm          *float64 `json:"input_power_dbm,omitempty" yaml:"input_power_dbm,omitempty" hcl:"input_power_dbm,optional" validate:"omitempty,finite"`
	NoiseTemperatureInputK *float64 `json:"noise_temperature_input_k,omitempty" yaml:"noise_temperature_input_k,omitempty" hcl:"noise_temperature_input_k,optional" validate:"omitempty,gt=0"`
	Direction              *string  `json:"direction,omitempty" yaml:"direction,omitempty" hcl:"direction,optional" validate:"omitempty,direction"`
}

type stageDoc struct {
	Kind               string   `json:"kind" yaml:"kind" hcl:"kind,label" validate:"required,stagekind"`
	PartNumber         *string  `json:"part_number,omitempty" yaml:"part_number,omitempty" hcl:"part_number,optional"`
	GainDB             *float64 `json:"gain_db,omitempty" yaml:"gain_db,omitempty" hcl:"gain_db,optional" validate:"omitempty,finite"`
	NoiseFigureDB      *float64 `json:"noise_figure_db,omitempty" yaml:"noise_figure_db,omitempty" hcl:"noise_figure_db,optional" validate:"omitempty,gte=0"`
	Linearity          *string  `json:"linearity,omitempty" yaml:"linearity,omitempty" hcl:"linearity,optional" validate:"omitempty,linearity"`
	P1dBDBm            *float64 `json:"p1db_dbm,omitempty" yaml:"p1db_dbm,omitempty" hcl:"p1db_dbm,optional"`
	IP3DBm             *float64 `json:"ip3_dbm,omitempty" yaml:"ip3_dbm,omitempty" hcl:"ip3_dbm,optional"`
	IP2DBm             *float64 `json:"ip2_dbm,omitempty" yaml:"ip2_dbm,omitempty" hcl:"ip2_dbm,optional"`
	TemperatureOffsetK *float64 `json:"temperature_offset_k,omitempty" yaml:"temperature_offset_k,omitempty" hcl:"temperature_offset_k,optional" validate:"omitempty,finite"`
	Legs               *int     `json:"legs,omitempty" yaml:"legs,omitempty" hcl:"legs,optional" validate:"omitempty,gte=1"`
	Enabled            *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty" hcl:"enabled,optional"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("stagekind", func(fl validator.FieldLevel) bool {
		_, err := model.ParseStageKind(fl.Field().String())
		return err == nil
	})
	must("direction", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDirection(fl.Field().String())
		return err == nil
	})
	must("linearity", func(fl validator.FieldLevel) bool {
		_, err := model.ParseLinearity(fl.Field().String())
		return err == nil
	})
	must("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsInf(f, 0) && !math.IsNaN(f)
	})
	return v
}

func (d *chainDoc) validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "chainDoc.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "gt", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s, got %v", field, comparison(fe.Tag()), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: invalid %s %v", field, fe.Tag(), deref(fe.Value())))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}

func comparison(tag string) string {
	if tag == "gt" {
		return ">"
	}
	return ">="
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}

// toSpec applies the document on top of the factory defaults.
func (d *chainDoc) toSpec() (model.ChainSpec, error) {
	spec := model.ChainSpec{
		Name:    d.Name,
		Globals: model.DefaultGlobals(),
		Stages:  make([]model.StageSpec, 0, len(d.Stages)),
	}
	if g := d.Globals; g != nil {
		setFloat(&spec.Globals.SystemTemperatureK, g.SystemTemperatureK)
		setFloat(&spec.Globals.BandwidthHz, g.BandwidthHz)
		setFloat(&spec.Globals.NoiseTemperatureInputK, g.NoiseTemperatureInputK)
		if g.InputPowerDBm != nil {
			spec.Globals.InputPowerW = model.DBmToWatts(*g.InputPowerDBm)
		}
		if g.Direction != nil {
			dir, err := model.ParseDirection(*g.Direction)
			if err != nil {
				return model.ChainSpec{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
			}
			spec.Globals.Direction = dir
		}
	}

	for i, sd := range d.Stages {
		kind, err := model.ParseStageKind(sd.Kind)
		if err != nil {
			return model.ChainSpec{}, fmt.Errorf("%w: stage %d: %v", ErrInvalidDocument, i+1, err)
		}
		st := model.DefaultStageSpec(kind)
		if sd.PartNumber != nil {
			st.PartNumber = *sd.PartNumber
		}
		setFloat(&st.GainDB, sd.GainDB)
		setFloat(&st.NoiseFigureDB, sd.NoiseFigureDB)
		setFloat(&st.TemperatureOffsetK, sd.TemperatureOffsetK)
		if sd.Linearity != nil {
			lin, err := model.ParseLinearity(*sd.Linearity)
			if err != nil {
				return model.ChainSpec{}, fmt.Errorf("%w: stage %d: %v", ErrInvalidDocument, i+1, err)
			}
			st.Linearity = lin
			// an explicit linearity replaces the kind's ratings wholesale
			inf := math.Inf(1)
			st.P1dBDBm, st.IP3DBm, st.IP2DBm = model.Float(inf), model.Float(inf), model.Float(inf)
		}
		if sd.P1dBDBm != nil {
			st.P1dBDBm = model.Float(*sd.P1dBDBm)
		}
		if sd.IP3DBm != nil {
			st.IP3DBm = model.Float(*sd.IP3DBm)
		}
		if sd.IP2DBm != nil {
			st.IP2DBm = model.Float(*sd.IP2DBm)
		}
		if sd.Legs != nil {
			st.Legs = *sd.Legs
		}
		if sd.Enabled != nil {
			st.Enabled = *sd.Enabled
		}
		spec.Stages = append(spec.Stages, st)
	}
	return spec, nil
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// fromSpec is the inverse of toSpec. Every value is written out explicitly
// except infinite ratings, which no format can carry; they are implied by
// an ignored linearity or by leaving the field out.
func fromSpec(spec model.ChainSpec) chainDoc {
	dir := string(spec.Globals.Direction)
	if dir == "" {
		dir = string(model.DirectionRX)
	}
	d := chainDoc{
		Name: spec.Name,
		Globals: &globalDoc{
			SystemTemperatureK:     model.Float(spec.Globals.SystemTemperatureK),
			BandwidthHz:            model.Float(spec.Globals.BandwidthHz),
			InputPowerDBm:          model.Float(model.WattsToDBm(spec.Globals.InputPowerW)),
			NoiseTemperatureInputK: model.Float(spec.Globals.NoiseTemperatureInputK),
			Direction:              &dir,
		},
		Stages: make([]stageDoc, 0, len(spec.Stages)),
	}
	for _, st := range spec.Stages {
		sd := stageDoc{
			Kind:               string(st.Kind),
			PartNumber:         stringPtr(st.PartNumber),
			GainDB:             model.Float(st.GainDB),
			NoiseFigureDB:      model.Float(st.NoiseFigureDB),
			Linearity:          stringPtr(string(st.Linearity)),
			TemperatureOffsetK: model.Float(st.TemperatureOffsetK),
			Enabled:            boolPtr(st.Enabled),
		}
		if st.Linearity == "" {
			sd.Linearity = stringPtr(string(model.LinearityIgnore))
		}
		sd.P1dBDBm = finite(st.P1dBDBm)
		sd.IP3DBm = finite(st.IP3DBm)
		sd.IP2DBm = finite(st.IP2DBm)
		if st.Kind.HasLegs() {
			legs := max(1, st.Legs)
			sd.Legs = &legs
		}
		d.Stages = append(d.Stages, sd)
	}
	return d
}

func finite(p *float64) *float64 {
	if p == nil || math.IsInf(*p, 0) || math.IsNaN(*p) {
		return nil
	}
	return model.Float(*p)
}

func stringPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
