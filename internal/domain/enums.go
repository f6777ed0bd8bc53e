// Package domain defines the core domain models for the playbook engine.
package domain

// ActionKind discriminates which executor handles a node.
type ActionKind string

const (
	ActionKindAIAnalysis    ActionKind = "ai_analysis"
	ActionKindCondition     ActionKind = "condition"
	ActionKindDeliverOutput ActionKind = "deliver_output"
	ActionKindSendEmail     ActionKind = "send_email"
	ActionKindUpdateRecord  ActionKind = "update_record"
	ActionKindCreateTask    ActionKind = "create_task"
)

// ErrorCode classifies a failed NodeOutput. Tool handlers may surface
// their own codes (e.g. rate_limit_exceeded); those pass through unchanged.
type ErrorCode string

const (
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeCancelled        ErrorCode = "cancelled"
	CodeInternalError    ErrorCode = "internal_error"
	CodeConditionError   ErrorCode = "condition_error"
	CodePolicyBlocked    ErrorCode = "policy_blocked"
)

// RunStatus represents the status of a playbook run.
type RunStatus string

const (
	RunStatusCreated   RunStatus = "CREATED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusDone      RunStatus = "DONE"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// EventType represents the type of a run event.
type EventType string

const (
	EventTypeRunStarted    EventType = "run_started"
	EventTypeNodeStarted   EventType = "node_started"
	EventTypeNodeCompleted EventType = "node_completed"
	EventTypeBranchTaken   EventType = "branch_taken"
	EventTypeRunDone       EventType = "run_done"
	EventTypeRunFailed     EventType = "run_failed"
	EventTypeRunCancelled  EventType = "run_cancelled"
)

// DeliveryType is the output rendering mode of a deliver_output node.
type DeliveryType string

const (
	DeliveryTypeJSON     DeliveryType = "json"
	DeliveryTypeText     DeliveryType = "text"
	DeliveryTypeMarkdown DeliveryType = "markdown"
	DeliveryTypeHTML     DeliveryType = "html"
)

// ValidDeliveryType reports whether s names a known delivery type.
func ValidDeliveryType(s string) bool {
	switch DeliveryType(s) {
	case DeliveryTypeJSON, DeliveryTypeText, DeliveryTypeMarkdown, DeliveryTypeHTML:
		return true
	}
	return false
}
