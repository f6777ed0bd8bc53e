// Package template renders the {{variable.output.field}} substitution
// language used in node configurations.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sdap/playbook/internal/domain"
)

// varPattern matches template markers like {{summary.output.risk_level}}.
var varPattern = regexp.MustCompile(`\{\{\s*([\w.\-]+)\s*\}\}`)

// Engine substitutes dotted-path variables into template strings.
// Unknown paths render as empty strings rather than erroring, so a
// later node referencing a skipped node degrades instead of failing.
type Engine struct{}

// New creates a template engine.
func New() *Engine {
	return &Engine{}
}

// HasVariables reports whether s contains template markers.
func (e *Engine) HasVariables(s string) bool {
	return varPattern.MatchString(s)
}

// Render substitutes every marker in tmpl against vars.
func (e *Engine) Render(tmpl string, vars map[string]any) string {
	return varPattern.ReplaceAllStringFunc(tmpl, func(marker string) string {
		path := varPattern.FindStringSubmatch(marker)[1]
		return formatValue(lookup(vars, strings.Split(path, ".")))
	})
}

func lookup(vars map[string]any, path []string) any {
	var cur any = vars
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// BuildContext assembles the variable map a node's templates render
// against: one entry per prior output variable, plus document.*.
func BuildContext(outputs map[string]domain.NodeOutput, doc *domain.DocumentContext) map[string]any {
	vars := make(map[string]any, len(outputs)+1)
	for name, out := range outputs {
		entry := map[string]any{
			"success": out.Success,
			"content": out.Content,
		}
		if out.ErrorMessage != "" {
			entry["error"] = out.ErrorMessage
		}
		if out.Confidence != nil {
			entry["confidence"] = *out.Confidence
		}
		// output.* exposes the structured payload's fields.
		var data map[string]any
		if len(out.Data) > 0 && json.Unmarshal(out.Data, &data) == nil {
			entry["output"] = data
		} else {
			entry["output"] = map[string]any{}
		}
		vars[name] = entry
	}
	if doc != nil {
		vars["document"] = map[string]any{
			"id":   doc.DocumentID,
			"name": doc.Name,
			"text": doc.Text,
		}
	}
	return vars
}
