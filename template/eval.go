package template

import (
	"fmt"
	"strings"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/types"
)

// scope is the variable environment during evaluation. Loop bodies push a
// child scope so loop variables shadow without mutating the caller's map.
type scope struct {
	vars   types.Vars
	parent *scope
}

func (s *scope) lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// eval renders a parsed node list against the given variables.
func eval(nodes []node, vars types.Vars) (string, error) {
	var out strings.Builder
	root := &scope{vars: vars}
	if err := evalNodes(nodes, root, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func evalNodes(nodes []node, env *scope, out *strings.Builder) error {
	for _, n := range nodes {
		switch nd := n.(type) {
		case textNode:
			out.WriteString(nd.text)

		case outputNode:
			val, err := evalExpr(nd.expr, env)
			if err != nil {
				return err
			}
			out.WriteString(CanonicalString(val))

		case ifNode:
			taken := false
			for _, branch := range nd.branches {
				val, err := evalExpr(branch.cond, env)
				if err != nil {
					return err
				}
				if truthy(val) {
					if err := evalNodes(branch.body, env, out); err != nil {
						return err
					}
					taken = true
					break
				}
			}
			if !taken && nd.elseBody != nil {
				if err := evalNodes(nd.elseBody, env, out); err != nil {
					return err
				}
			}

		case forNode:
			val, err := evalExpr(nd.seq, env)
			if err != nil {
				return err
			}
			seq, ok := val.([]any)
			if !ok {
				return typeErr(nd.line, "for loop requires a sequence, got %T", val)
			}
			for _, item := range seq {
				child := &scope{vars: types.Vars{nd.loopVar: item}, parent: env}
				if err := evalNodes(nd.body, child, out); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func evalExpr(e expr, env *scope) (any, error) {
	switch ex := e.(type) {
	case literalExpr:
		return ex.value, nil

	case pathExpr:
		val, ok := env.lookup(ex.segments[0])
		if !ok {
			return nil, undefinedErr(ex.line, ex.segments[0])
		}
		for _, seg := range ex.segments[1:] {
			m, isMap := val.(map[string]any)
			if !isMap {
				return nil, undefinedErr(ex.line, strings.Join(ex.segments, "."))
			}
			val, ok = m[seg]
			if !ok {
				return nil, undefinedErr(ex.line, strings.Join(ex.segments, "."))
			}
		}
		return val, nil

	case notExpr:
		val, err := evalExpr(ex.inner, env)
		if err != nil {
			return nil, err
		}
		return !truthy(val), nil

	case compareExpr:
		lhs, err := evalExpr(ex.lhs, env)
		if err != nil {
			return nil, err
		}
		rhs, err := evalExpr(ex.rhs, env)
		if err != nil {
			return nil, err
		}
		eq := ValueEqual(lhs, rhs)
		if ex.op == "!=" {
			return !eq, nil
		}
		return eq, nil

	default:
		return nil, fmt.Errorf("template: unknown expression %T", e)
	}
}

// truthy mirrors the truth rules of the variable tree: null and false are
// false, empty strings, empty sequences, empty mappings and zero numbers are
// false, everything else is true.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// ValueEqual compares two variable-tree values, treating all numeric types
// as one domain so values decoded from JSON compare equal to values built in
// code.
func ValueEqual(a, b any) bool {
	if an, aok := asFloat(a); aok {
		if bn, bok := asFloat(b); bok {
			return an == bn
		}
		return false
	}

	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, present := bv[k]
			if !present || !ValueEqual(v, bval) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func undefinedErr(line int, name string) error {
	err := apperrors.TemplateRender(fmt.Sprintf("undefined variable %q at line %d", name, line))
	return err.WithDetails(map[string]any{
		"reason":   apperrors.ReasonTemplateUndefined,
		"variable": name,
		"line":     line,
	})
}

func typeErr(line int, format string, args ...any) error {
	err := apperrors.TemplateRender(fmt.Sprintf("template error at line %d: %s", line, fmt.Sprintf(format, args...)))
	return err.WithDetails(map[string]any{"reason": apperrors.ReasonTemplateSyntax, "line": line})
}
