package asset

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions are callable from parameter expressions.
var functions = map[string]function.Function{
	"abs":    stdlib.AbsoluteFunc,
	"ceil":   stdlib.CeilFunc,
	"floor":  stdlib.FloorFunc,
	"log":    stdlib.LogFunc,
	"max":    stdlib.MaxFunc,
	"min":    stdlib.MinFunc,
	"pow":    stdlib.PowFunc,
	"signum": stdlib.SignumFunc,
	"format": stdlib.FormatFunc,
}

// evalContext exposes vars as var.<name> next to the built-in functions.
func evalContext(vars map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(vars)},
		Functions: functions,
	}
}

// traversalKey renders t canonically, e.g. var.loss[0].
func traversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// references returns the unique traversals and function names used by exprs.
// Both are sorted.
func references(exprs ...hcl.Expression) ([]hcl.Traversal, []string) {
	traversals := make(map[string]hcl.Traversal)
	funcs := make(map[string]struct{})

	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, t := range expr.Variables() {
			traversals[traversalKey(t)] = t
		}
		if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
			walkForFunctions(syntaxExpr, funcs)
		}
	}

	keys := make([]string, 0, len(traversals))
	for k := range traversals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	traversalSlice := make([]hcl.Traversal, 0, len(keys))
	for _, k := range keys {
		traversalSlice = append(traversalSlice, traversals[k])
	}

	funcSlice := make([]string, 0, len(funcs))
	for f := range funcs {
		funcSlice = append(funcSlice, f)
	}
	sort.Strings(funcSlice)

	return traversalSlice, funcSlice
}

// walkForFunctions collects the names of every function call below expr.
func walkForFunctions(expr hclsyntax.Expression, funcs map[string]struct{}) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		funcs[e.Name] = struct{}{}
		for _, arg := range e.Args {
			walkForFunctions(arg, funcs)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForFunctions(e.LHS, funcs)
		walkForFunctions(e.RHS, funcs)
	case *hclsyntax.ConditionalExpr:
		walkForFunctions(e.Condition, funcs)
		walkForFunctions(e.TrueResult, funcs)
		walkForFunctions(e.FalseResult, funcs)
	case *hclsyntax.UnaryOpExpr:
		walkForFunctions(e.Val, funcs)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForFunctions(part, funcs)
		}
	case *hclsyntax.TemplateWrapExpr:
		walkForFunctions(e.Wrapped, funcs)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForFunctions(item, funcs)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForFunctions(item.KeyExpr, funcs)
			walkForFunctions(item.ValueExpr, funcs)
		}
	case *hclsyntax.ForExpr:
		walkForFunctions(e.CollExpr, funcs)
		walkForFunctions(e.KeyExpr, funcs)
		walkForFunctions(e.ValExpr, funcs)
		walkForFunctions(e.CondExpr, funcs)
	case *hclsyntax.IndexExpr:
		walkForFunctions(e.Collection, funcs)
		walkForFunctions(e.Key, funcs)
	case *hclsyntax.SplatExpr:
		walkForFunctions(e.Source, funcs)
		walkForFunctions(e.Each, funcs)
	case *hclsyntax.ParenthesesExpr:
		walkForFunctions(e.Expression, funcs)
	}
}

// unresolved describes every reference in expr that evalCtx cannot satisfy.
// Locals bound inside for expressions are not reported by Variables and so
// never show up here.
func unresolved(expr hcl.Expression, evalCtx *hcl.EvalContext) []string {
	traversals, funcs := references(expr)
	var problems []string
	declared := evalCtx.Variables["var"]

	for _, t := range traversals {
		if t.RootName() != "var" {
			problems = append(problems, fmt.Sprintf("unknown reference %s", traversalKey(t)))
			continue
		}
		if len(t) < 2 {
			problems = append(problems, "var must be followed by a variable name")
			continue
		}
		attr, ok := t[1].(hcl.TraverseAttr)
		if !ok || !declared.Type().HasAttribute(attr.Name) {
			problems = append(problems, fmt.Sprintf("undeclared variable %s", traversalKey(t[:2])))
		}
	}
	for _, f := range funcs {
		if _, ok := evalCtx.Functions[f]; !ok {
			problems = append(problems, fmt.Sprintf("unknown function %s", f))
		}
	}
	return problems
}
