package chainfile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/signalsfoundry/rfcascade/model"
	"github.com/zclconf/go-cty/cty"
)

// evalContext exposes physical constants to HCL expressions.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"t0":        cty.NumberFloatVal(model.T0),
			"boltzmann": cty.NumberFloatVal(model.Boltzmann),
		},
	}
}

func decodeHCL(data []byte, filename string, doc *chainDoc) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return fmt.Errorf("%w: parse hcl: %w", ErrInvalidDocument, diags)
	}
	diags = gohcl.DecodeBody(file.Body, evalContext(), doc)
	if diags.HasErrors() {
		return fmt.Errorf("%w: decode hcl: %w", ErrInvalidDocument, diags)
	}
	return nil
}

func encodeHCL(doc chainDoc) []byte {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(&doc, f.Body())
	return hclwrite.Format(f.Bytes())
}
