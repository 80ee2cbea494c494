package asset

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// variableBlock declares a value parameter expressions can refer to as
// var.<name>.
//
//	variable "fibre_loss" {
//	  type    = number
//	  default = 0.2
//	}
type variableBlock struct {
	Name    string         `hcl:"name,label"`
	Type    hcl.Expression `hcl:"type,optional"`
	Default hcl.Expression `hcl:"default,optional"`
}

// variableType converts a type keyword into its cty.Type. A missing type
// accepts any value.
func variableType(expr hcl.Expression) (cty.Type, hcl.Diagnostics) {
	keyword := hcl.ExprAsKeyword(expr)
	if keyword == "" {
		if v, diags := expr.Value(nil); !diags.HasErrors() && v.IsNull() {
			return cty.DynamicPseudoType, nil
		}
		return cty.NilType, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid type specification",
			Detail:   "The 'type' attribute must be a type keyword like 'string', 'number', or 'bool'.",
			Subject:  expr.Range().Ptr(),
		}}
	}

	switch keyword {
	case "string":
		return cty.String, nil
	case "number":
		return cty.Number, nil
	case "bool":
		return cty.Bool, nil
	case "any":
		return cty.DynamicPseudoType, nil
	default:
		return cty.NilType, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unsupported type",
			Detail:   fmt.Sprintf("The keyword '%s' is not a supported type. Supported types are: string, number, bool, any.", keyword),
			Subject:  expr.Range().Ptr(),
		}}
	}
}

// resolveVariables computes the value of every declared variable. Overrides
// take precedence over defaults and are parsed as HCL literals; a value that
// does not parse is taken as a plain string.
func resolveVariables(blocks []*variableBlock, overrides map[string]string) (map[string]cty.Value, error) {
	vars := make(map[string]cty.Value, len(blocks))
	for _, b := range blocks {
		if _, dup := vars[b.Name]; dup {
			return nil, fmt.Errorf("variable %q declared more than once", b.Name)
		}
		ty, diags := variableType(b.Type)
		if diags.HasErrors() {
			return nil, fmt.Errorf("variable %q: %w", b.Name, diags)
		}

		var v cty.Value
		if raw, ok := overrides[b.Name]; ok {
			v = parseOverride(b.Name, raw)
		} else {
			var diags hcl.Diagnostics
			v, diags = b.Default.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("variable %q: default must be a literal value: %w", b.Name, diags)
			}
		}
		if v.IsNull() {
			return nil, fmt.Errorf("variable %q has no default and no value was given", b.Name)
		}

		v, err := convert.Convert(v, ty)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", b.Name, err)
		}
		vars[b.Name] = v
	}

	var undeclared []string
	for name := range overrides {
		if _, ok := vars[name]; !ok {
			undeclared = append(undeclared, name)
		}
	}
	if len(undeclared) > 0 {
		sort.Strings(undeclared)
		return nil, fmt.Errorf("values given for undeclared variables: %v", undeclared)
	}
	return vars, nil
}

func parseOverride(name, raw string) cty.Value {
	expr, diags := hclsyntax.ParseExpression([]byte(raw), "var."+name, hcl.InitialPos)
	if diags.HasErrors() {
		return cty.StringVal(raw)
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.StringVal(raw)
	}
	return v
}
