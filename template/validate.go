package template

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/types"
)

// ValidateVariables applies the variable contract and returns the effective
// map the renderer expands against:
//
//  1. Seed with every definition's default value where one is declared.
//  2. Overlay provided values; provided wins.
//  3. Every required definition must now be bound, else the call fails
//     listing the missing names sorted.
//  4. Every definition with enum_values must hold a value whose canonical
//     string form is a member.
//
// The inputs are never mutated.
func ValidateVariables(defs []types.VariableDef, provided types.Vars) (types.Vars, error) {
	effective := make(types.Vars, len(defs)+len(provided))
	for _, def := range defs {
		if def.Default != nil {
			effective[def.Name] = def.Default
		}
	}
	for k, v := range provided {
		effective[k] = v
	}

	var missing []string
	for _, def := range defs {
		if def.Required {
			if _, ok := effective[def.Name]; !ok {
				missing = append(missing, def.Name)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		err := apperrors.TemplateRender(fmt.Sprintf("missing required variables: %s", strings.Join(missing, ", ")))
		return nil, err.WithDetails(map[string]any{
			"reason":  apperrors.ReasonVariablesMissing,
			"missing": missing,
		})
	}

	for _, def := range defs {
		if len(def.EnumValues) == 0 {
			continue
		}
		val, ok := effective[def.Name]
		if !ok {
			continue
		}
		canonical := CanonicalString(val)
		if !containsString(def.EnumValues, canonical) {
			err := apperrors.TemplateRender(fmt.Sprintf(
				"variable %q must be one of [%s], got %q",
				def.Name, strings.Join(def.EnumValues, ", "), canonical))
			return nil, err.WithDetails(map[string]any{
				"reason":   apperrors.ReasonVariableInvalid,
				"variable": def.Name,
				"allowed":  def.EnumValues,
				"value":    canonical,
			})
		}
	}

	return effective, nil
}

// CanonicalString is the textual form used for enum membership checks and
// placeholder output. Booleans are lowercase "true"/"false", nulls are
// "null", numbers drop the trailing ".0" when integral, and composites use
// their compact JSON encoding.
func CanonicalString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return CanonicalString(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

func containsString(set []string, s string) bool {
	for _, member := range set {
		if member == s {
			return true
		}
	}
	return false
}
