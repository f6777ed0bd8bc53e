package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/template"
)

// conditionConfig is the persisted shape of a condition node.
type conditionConfig struct {
	Condition   json.RawMessage `json:"condition"`
	TrueBranch  string          `json:"trueBranch"`
	FalseBranch string          `json:"falseBranch"`
}

// conditionNode is one node of the condition tree: either a leaf
// {operator, left, right?} or a compound and/or/not.
type conditionNode struct {
	Operator   string            `json:"operator"`
	Left       json.RawMessage   `json:"left"`
	Right      json.RawMessage   `json:"right"`
	Conditions []json.RawMessage `json:"conditions"`
	Condition  json.RawMessage   `json:"condition"`
}

var leafOperators = map[string]bool{
	"eq": true, "ne": true,
	"gt": true, "gte": true, "lt": true, "lte": true,
	"contains": true, "startswith": true, "endswith": true,
	"exists": true,
}

// conditionError marks a type mismatch during evaluation, e.g. a numeric
// operator applied to a non-numeric operand. It is a hard failure, not
// a false result.
type conditionError struct {
	msg string
}

func (e *conditionError) Error() string { return e.msg }

func conditionErrorf(format string, args ...any) error {
	return &conditionError{msg: fmt.Sprintf(format, args...)}
}

// ConditionExecutor evaluates the condition sub-language and selects the
// labeled branch for the run driver to follow.
type ConditionExecutor struct {
	templates TemplateRenderer
}

// NewConditionExecutor creates the condition executor.
func NewConditionExecutor(templates TemplateRenderer) *ConditionExecutor {
	return &ConditionExecutor{templates: templates}
}

func (e *ConditionExecutor) SupportedActionKinds() []domain.ActionKind {
	return []domain.ActionKind{domain.ActionKindCondition}
}

func (e *ConditionExecutor) Validate(_ context.Context, ec *domain.NodeExecutionContext) ValidationResult {
	if strings.TrimSpace(ec.Node.ConfigJSON) == "" {
		return invalid("condition node has no configuration")
	}
	var cfg conditionConfig
	if err := json.Unmarshal([]byte(ec.Node.ConfigJSON), &cfg); err != nil {
		return invalid("invalid condition configuration: %v", err)
	}
	if len(cfg.Condition) == 0 || string(cfg.Condition) == "null" {
		return invalid("condition configuration is missing the condition key")
	}
	if cfg.TrueBranch == "" && cfg.FalseBranch == "" {
		return invalid("condition node declares no branch label")
	}
	if err := validateConditionTree(cfg.Condition); err != nil {
		return invalid("%v", err)
	}
	return valid()
}

func validateConditionTree(raw json.RawMessage) error {
	var node conditionNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return fmt.Errorf("invalid condition syntax: %w", err)
	}
	op := strings.ToLower(strings.TrimSpace(node.Operator))
	switch {
	case op == "":
		return fmt.Errorf("condition is missing an operator")
	case op == "and" || op == "or":
		if len(node.Conditions) < 2 {
			return fmt.Errorf("%s requires at least two nested conditions", op)
		}
		for _, c := range node.Conditions {
			if err := validateConditionTree(c); err != nil {
				return err
			}
		}
	case op == "not":
		if len(node.Condition) == 0 || string(node.Condition) == "null" {
			return fmt.Errorf("not requires exactly one nested condition")
		}
		return validateConditionTree(node.Condition)
	case leafOperators[op]:
		if len(node.Left) == 0 || string(node.Left) == "null" {
			return fmt.Errorf("operator %s is missing its left operand", op)
		}
	default:
		return fmt.Errorf("unknown condition operator %q", node.Operator)
	}
	return nil
}

func (e *ConditionExecutor) Execute(ctx context.Context, ec *domain.NodeExecutionContext) domain.NodeOutput {
	return safeExecute(ctx, ec, func() domain.NodeOutput {
		if vr := e.Validate(ctx, ec); !vr.Valid {
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, vr.Message(), domain.CodeValidationFailed)
		}
		var cfg conditionConfig
		_ = json.Unmarshal([]byte(ec.Node.ConfigJSON), &cfg)

		vars := template.BuildContext(ec.Outputs, ec.Document)
		result, err := e.evaluate(cfg.Condition, vars)
		if err != nil {
			code := domain.CodeInternalError
			if _, ok := err.(*conditionError); ok {
				code = domain.CodeConditionError
			}
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, err.Error(), code)
		}

		branch := cfg.FalseBranch
		if result {
			branch = cfg.TrueBranch
		}
		cr := domain.ConditionResult{
			Result:         result,
			SelectedBranch: branch,
			TrueBranch:     cfg.TrueBranch,
			FalseBranch:    cfg.FalseBranch,
		}
		return domain.Ok(ec.Node.NodeID, ec.Node.OutputVariable, cr).
			WithContent(fmt.Sprintf("%t → branch: %s", result, branch))
	})
}

// evaluate walks the condition tree bottom-up.
func (e *ConditionExecutor) evaluate(raw json.RawMessage, vars map[string]any) (bool, error) {
	var node conditionNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return false, fmt.Errorf("invalid condition syntax: %w", err)
	}
	op := strings.ToLower(strings.TrimSpace(node.Operator))

	switch op {
	case "and":
		if len(node.Conditions) < 2 {
			return false, fmt.Errorf("and requires at least two nested conditions")
		}
		for _, c := range node.Conditions {
			r, err := e.evaluate(c, vars)
			if err != nil {
				return false, err
			}
			if !r {
				return false, nil
			}
		}
		return true, nil
	case "or":
		if len(node.Conditions) < 2 {
			return false, fmt.Errorf("or requires at least two nested conditions")
		}
		for _, c := range node.Conditions {
			r, err := e.evaluate(c, vars)
			if err != nil {
				return false, err
			}
			if r {
				return true, nil
			}
		}
		return false, nil
	case "not":
		r, err := e.evaluate(node.Condition, vars)
		if err != nil {
			return false, err
		}
		return !r, nil
	}

	if !leafOperators[op] {
		return false, fmt.Errorf("unknown condition operator %q", node.Operator)
	}

	left := e.renderOperand(node.Left, vars)
	right := e.renderOperand(node.Right, vars)

	switch op {
	case "eq":
		return operandsEqual(left, right), nil
	case "ne":
		return !operandsEqual(left, right), nil
	case "gt", "gte", "lt", "lte":
		lf, lok := parseNumber(left)
		rf, rok := parseNumber(right)
		if !lok || !rok {
			return false, conditionErrorf("operator %s requires numeric operands (left=%q right=%q)", op, left, right)
		}
		switch op {
		case "gt":
			return lf > rf, nil
		case "gte":
			return lf >= rf, nil
		case "lt":
			return lf < rf, nil
		default:
			return lf <= rf, nil
		}
	case "contains":
		return strings.Contains(left, right), nil
	case "startswith":
		return strings.HasPrefix(left, right), nil
	case "endswith":
		return strings.HasSuffix(left, right), nil
	case "exists":
		return strings.TrimSpace(left) != "", nil
	}
	return false, fmt.Errorf("unknown condition operator %q", node.Operator)
}

// renderOperand turns a raw operand into its evaluated string form.
// Template strings are rendered against the run context; literals of
// any JSON type pass through as their canonical text.
func (e *ConditionExecutor) renderOperand(raw json.RawMessage, vars map[string]any) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if e.templates.HasVariables(s) {
			return e.templates.Render(s, vars)
		}
		return s
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.TrimSpace(string(raw))
}

// operandsEqual compares rendered operands as their natural type:
// booleans by identity, numbers numerically, anything else as strings.
func operandsEqual(left, right string) bool {
	lb, lerr := strconv.ParseBool(strings.ToLower(left))
	rb, rerr := strconv.ParseBool(strings.ToLower(right))
	if lerr == nil && rerr == nil {
		return lb == rb
	}
	lf, lok := parseNumber(left)
	rf, rok := parseNumber(right)
	if lok && rok {
		return lf == rf
	}
	return left == right
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}
