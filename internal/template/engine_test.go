package template

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sdap/playbook/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHasVariables(t *testing.T) {
	e := New()
	assert.True(t, e.HasVariables("risk is {{summary.output.risk_level}}"))
	assert.True(t, e.HasVariables("{{ document.text }}"))
	assert.False(t, e.HasVariables("plain text"))
	assert.False(t, e.HasVariables("{not a marker}"))
}

func TestRender(t *testing.T) {
	e := New()
	vars := map[string]any{
		"summary": map[string]any{
			"output":  map[string]any{"risk_level": "high", "score": 0.85},
			"content": "analysis done",
			"success": true,
		},
		"document": map[string]any{"name": "contract.pdf"},
	}

	t.Run("nested path", func(t *testing.T) {
		got := e.Render("Risk: {{summary.output.risk_level}} ({{summary.output.score}})", vars)
		assert.Equal(t, "Risk: high (0.85)", got)
	})

	t.Run("document variable", func(t *testing.T) {
		got := e.Render("File {{document.name}}", vars)
		assert.Equal(t, "File contract.pdf", got)
	})

	t.Run("boolean renders as literal", func(t *testing.T) {
		got := e.Render("{{summary.success}}", vars)
		assert.Equal(t, "true", got)
	})

	t.Run("unknown path renders empty", func(t *testing.T) {
		got := e.Render("[{{missing.output.field}}]", vars)
		assert.Equal(t, "[]", got)
	})

	t.Run("literal passes through", func(t *testing.T) {
		got := e.Render("no markers here", vars)
		assert.Equal(t, "no markers here", got)
	})
}

func TestBuildContext(t *testing.T) {
	out := domain.Ok("n1", "summary", map[string]any{"risk_level": "high"}).WithContent("done")
	vars := BuildContext(map[string]domain.NodeOutput{"summary": out}, &domain.DocumentContext{
		DocumentID: "doc-1",
		Name:       "contract.pdf",
		Text:       "full text",
	})

	e := New()
	assert.Equal(t, "high", e.Render("{{summary.output.risk_level}}", vars))
	assert.Equal(t, "done", e.Render("{{summary.content}}", vars))
	assert.Equal(t, "full text", e.Render("{{document.text}}", vars))
}

func TestBuildContextNoData(t *testing.T) {
	// A success with no structured payload still exposes an empty output map.
	out := domain.NodeOutput{Success: true, NodeID: "n1", OutputVariable: "v"}
	vars := BuildContext(map[string]domain.NodeOutput{"v": out}, nil)
	assert.Equal(t, "", New().Render("{{v.output.anything}}", vars))
}

func TestFormatValueJSONNumber(t *testing.T) {
	var data map[string]any
	dec := json.NewDecoder(strings.NewReader(`{"n": 700}`))
	dec.UseNumber()
	assert.NoError(t, dec.Decode(&data))
	assert.Equal(t, "700", formatValue(data["n"]))
}
