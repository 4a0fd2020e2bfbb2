package format

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"math/big"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// HCLExporter is an [Exporter] that writes values as HCL attributes, one per top
// level key.
type HCLExporter struct{}

// Export implements [Exporter] for [HCLExporter].
func (h HCLExporter) Export(w io.Writer, value any) error {
	m, err := mapping(value, "HCL")
	if err != nil {
		return err
	}

	file := hclwrite.NewEmptyFile()
	body := file.Body()

	for _, key := range slices.Sorted(maps.Keys(m)) {
		if !hclsyntax.ValidIdentifier(key) {
			return fmt.Errorf("HCL attribute name %q is not a valid identifier", key)
		}

		v, err := toCty(m[key])
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}

		body.SetAttributeValue(key, v)
	}

	_, err = file.WriteTo(w)

	return err
}

// HCLLoader is a [Loader] for HCL documents.
//
// Attributes load as keys of their enclosing mapping. Blocks nest under their type and
// then each of their labels, repeated unlabelled blocks of the same type load as a
// sequence. Expressions must be literal, there are no variables or functions.
type HCLLoader struct {
	// Filename is used in diagnostics.
	Filename string
}

// Load implements [Loader] for [HCLLoader].
func (h HCLLoader) Load(r io.Reader) (any, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read HCL: %w", err)
	}

	filename := h.Filename
	if filename == "" {
		filename = "<stdin>"
	}

	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("could not parse HCL: %w", diagnosticsError(diags))
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("could not parse HCL: unexpected body type %T", file.Body)
	}

	return fromBody(body)
}

// fromBody converts the attributes and blocks of an HCL body into a mapping.
func fromBody(body *hclsyntax.Body) (map[string]any, error) {
	out := make(map[string]any, len(body.Attributes)+len(body.Blocks))

	for name, attr := range body.Attributes {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %s: %w", name, diagnosticsError(diags))
		}

		native, err := fromCty(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}

		out[name] = native
	}

	for _, block := range body.Blocks {
		content, err := fromBody(block.Body)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", block.Type, err)
		}

		if err := insertBlock(out, block.Type, block.Labels, content); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// insertBlock places the content of a block under its type and labels within out.
func insertBlock(out map[string]any, typ string, labels []string, content map[string]any) error {
	existing, exists := out[typ]

	if len(labels) == 0 {
		switch current := existing.(type) {
		case nil:
			if exists {
				return fmt.Errorf("block %s conflicts with an attribute of the same name", typ)
			}

			out[typ] = content
		case map[string]any:
			out[typ] = []any{current, content}
		case []any:
			out[typ] = append(current, content)
		default:
			return fmt.Errorf("block %s conflicts with an attribute of the same name", typ)
		}

		return nil
	}

	if !exists {
		existing = map[string]any{}
		out[typ] = existing
	}

	nested, ok := existing.(map[string]any)
	if !ok {
		return fmt.Errorf("labelled block %s conflicts with an existing %s", typ, typ)
	}

	return insertBlock(nested, labels[0], labels[1:], content)
}

// fromCty converts a cty value to its natural Go counterpart.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}

	if !v.IsKnown() {
		return nil, fmt.Errorf("value of type %s is not known", v.Type().FriendlyName())
	}

	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		var i int64
		if err := gocty.FromCtyValue(v, &i); err == nil {
			return i, nil
		}

		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number: %w", err)
		}

		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, element := it.Element()

			native, err := fromCty(element)
			if err != nil {
				return nil, err
			}

			out = append(out, native)
		}

		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			key, element := it.Element()

			native, err := fromCty(element)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key.AsString(), err)
			}

			out[key.AsString()] = native
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unsupported HCL type %s", ty.FriendlyName())
	}
}

// toCty converts a normalised Go value to a cty value.
func toCty(value any) (cty.Value, error) {
	switch v := value.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case float64:
		return cty.NumberVal(big.NewFloat(v)), nil
	case []any:
		if len(v) == 0 {
			return cty.EmptyTupleVal, nil
		}

		elements := make([]cty.Value, 0, len(v))
		for i, item := range v {
			element, err := toCty(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("[%d]: %w", i, err)
			}

			elements = append(elements, element)
		}

		return cty.TupleVal(elements), nil
	case map[string]any:
		if len(v) == 0 {
			return cty.EmptyObjectVal, nil
		}

		attrs := make(map[string]cty.Value, len(v))
		for key, item := range v {
			attr, err := toCty(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("%s: %w", key, err)
			}

			attrs[key] = attr
		}

		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value %#v of type %T", value, value)
	}
}

// diagnosticsError combines the errors within diags.
func diagnosticsError(diags hcl.Diagnostics) error {
	errs := make([]error, 0, len(diags))
	for _, diag := range diags {
		if diag.Severity == hcl.DiagError {
			errs = append(errs, diag)
		}
	}

	return errors.Join(errs...)
}
