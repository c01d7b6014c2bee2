package schema

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

const envFunctionName = "env"

func envFunction(lookup queryengine.EnvLookup) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			name := args[0].AsString()

			var value string
			var ok bool
			if lookup != nil {
				value, ok = lookup(name)
			}

			if !ok {
				return cty.NilVal, fmt.Errorf("Environment variable not found: %s.", name)
			}

			return cty.StringVal(value), nil
		},
	})
}

// urlExpression is a datasource url that is evaluated on demand.
type urlExpression struct {
	expr hcl.Expression
}

func (u urlExpression) Resolve(lookup queryengine.EnvLookup) (string, error) {
	ctx := &hcl.EvalContext{
		Functions: map[string]function.Function{envFunctionName: envFunction(lookup)},
	}

	value, diags := u.expr.Value(ctx)
	if diags.HasErrors() {
		return "", newDiagnostics(diags)
	}

	if value.IsNull() || !value.IsKnown() || !value.Type().Equals(cty.String) {
		return "", newDiagnostics(hcl.Diagnostics{
			errorDiagnostic("Invalid datasource url", "The url must evaluate to a string.", u.expr.Range()),
		})
	}

	return value.AsString(), nil
}
