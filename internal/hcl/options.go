package hcl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// decodeOptions evaluates an `options` expression into a flat string map.
// Primitive values are converted to strings; lists, sets and tuples are
// joined with commas.
func decodeOptions(expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]string, error) {
	out := make(map[string]string)
	if expr == nil {
		return out, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return out, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("options must be known when the configuration is loaded")
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("options must be an object, got %s", ty.FriendlyName())
	}

	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		key := k.AsString()
		s, err := optionString(v)
		if err != nil {
			return nil, fmt.Errorf("option '%s': %w", key, err)
		}
		out[key] = s
	}
	return out, nil
}

func optionString(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}
	ty := v.Type()
	if ty.IsListType() || ty.IsSetType() || ty.IsTupleType() {
		var parts []string
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			s, err := optionString(elem)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		if ty.IsSetType() {
			sort.Strings(parts)
		}
		return strings.Join(parts, ","), nil
	}
	converted, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("cannot use %s as an option value: %w", ty.FriendlyName(), err)
	}
	return converted.AsString(), nil
}
