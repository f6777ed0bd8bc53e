// Package repository persists playbook definitions, runs and their
// node results in SQLite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sdap/playbook/internal/domain"
)

// Store is the persistence contract the service layer depends on.
type Store interface {
	CreatePlaybook(ctx context.Context, pb *domain.Playbook) error
	GetPlaybook(ctx context.Context, playbookID string) (*domain.Playbook, error)
	ListNodes(ctx context.Context, playbookID string) ([]domain.PlaybookNode, error)
	CreateNode(ctx context.Context, node *domain.PlaybookNode) error

	CreateAction(ctx context.Context, action *domain.AnalysisAction) error
	GetAction(ctx context.Context, actionID string) (*domain.AnalysisAction, error)

	CreateTool(ctx context.Context, tool *domain.AnalysisTool) error
	ListTools(ctx context.Context) ([]domain.AnalysisTool, error)

	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus, errMsg string) error

	SaveNodeResult(ctx context.Context, runID string, out *domain.NodeOutput) error
	GetNodeResults(ctx context.Context, runID string) ([]domain.NodeOutput, error)

	AppendEvent(ctx context.Context, event *domain.RunEvent) error
	GetEvents(ctx context.Context, runID string) ([]domain.RunEvent, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS playbooks (
			playbook_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_playbooks_tenant ON playbooks(tenant_id)`,
		`CREATE TABLE IF NOT EXISTS playbook_nodes (
			node_id TEXT PRIMARY KEY,
			playbook_id TEXT NOT NULL,
			action_id TEXT NOT NULL,
			tool_id TEXT,
			name TEXT NOT NULL,
			execution_order INTEGER NOT NULL,
			output_variable TEXT NOT NULL,
			config_json TEXT NOT NULL DEFAULT '{}',
			active INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (playbook_id) REFERENCES playbooks(playbook_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_playbook ON playbook_nodes(playbook_id, execution_order)`,
		`CREATE TABLE IF NOT EXISTS analysis_actions (
			action_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			system_prompt TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_tools (
			tool_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			tool_type TEXT NOT NULL,
			handler_class TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			playbook_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			document_id TEXT,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			error TEXT,
			FOREIGN KEY (playbook_id) REFERENCES playbooks(playbook_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_playbook ON runs(playbook_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS node_results (
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			output_variable TEXT NOT NULL,
			success INTEGER NOT NULL,
			content TEXT,
			data TEXT,
			confidence REAL,
			error_code TEXT,
			error_message TEXT,
			metrics TEXT,
			seq INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS run_events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreatePlaybook inserts a playbook definition.
func (s *SQLiteStore) CreatePlaybook(ctx context.Context, pb *domain.Playbook) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playbooks (playbook_id, tenant_id, name, created_at) VALUES (?, ?, ?, ?)`,
		pb.PlaybookID, pb.TenantID, pb.Name, pb.CreatedAt)
	return err
}

// GetPlaybook retrieves a playbook by ID. A missing playbook returns nil.
func (s *SQLiteStore) GetPlaybook(ctx context.Context, playbookID string) (*domain.Playbook, error) {
	var pb domain.Playbook
	err := s.db.QueryRowContext(ctx,
		`SELECT playbook_id, tenant_id, name, created_at FROM playbooks WHERE playbook_id = ?`,
		playbookID).Scan(&pb.PlaybookID, &pb.TenantID, &pb.Name, &pb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pb, nil
}

// CreateNode inserts one playbook node.
func (s *SQLiteStore) CreateNode(ctx context.Context, node *domain.PlaybookNode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playbook_nodes (node_id, playbook_id, action_id, tool_id, name, execution_order, output_variable, config_json, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.NodeID, node.PlaybookID, node.ActionID, nullString(node.ToolID), node.Name,
		node.ExecutionOrder, node.OutputVariable, node.ConfigJSON, boolInt(node.Active))
	return err
}

// ListNodes retrieves a playbook's nodes in configured order.
func (s *SQLiteStore) ListNodes(ctx context.Context, playbookID string) ([]domain.PlaybookNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, playbook_id, action_id, tool_id, name, execution_order, output_variable, config_json, active
		 FROM playbook_nodes WHERE playbook_id = ? ORDER BY execution_order ASC`, playbookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []domain.PlaybookNode
	for rows.Next() {
		var n domain.PlaybookNode
		var toolID sql.NullString
		var active int
		if err := rows.Scan(&n.NodeID, &n.PlaybookID, &n.ActionID, &toolID, &n.Name,
			&n.ExecutionOrder, &n.OutputVariable, &n.ConfigJSON, &active); err != nil {
			return nil, err
		}
		if toolID.Valid {
			n.ToolID = toolID.String
		}
		n.Active = active != 0
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// CreateAction inserts an analysis action.
func (s *SQLiteStore) CreateAction(ctx context.Context, action *domain.AnalysisAction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_actions (action_id, name, kind, system_prompt) VALUES (?, ?, ?, ?)`,
		action.ActionID, action.Name, string(action.Kind), nullString(action.SystemPrompt))
	return err
}

// GetAction retrieves an action by ID. A missing action returns nil.
func (s *SQLiteStore) GetAction(ctx context.Context, actionID string) (*domain.AnalysisAction, error) {
	var a domain.AnalysisAction
	var kind string
	var prompt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT action_id, name, kind, system_prompt FROM analysis_actions WHERE action_id = ?`,
		actionID).Scan(&a.ActionID, &a.Name, &kind, &prompt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Kind = domain.ActionKind(kind)
	if prompt.Valid {
		a.SystemPrompt = prompt.String
	}
	return &a, nil
}

// CreateTool inserts an analysis tool.
func (s *SQLiteStore) CreateTool(ctx context.Context, tool *domain.AnalysisTool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_tools (tool_id, name, tool_type, handler_class) VALUES (?, ?, ?, ?)`,
		tool.ToolID, tool.Name, tool.ToolType, tool.HandlerClass)
	return err
}

// ListTools retrieves all registered analysis tools.
func (s *SQLiteStore) ListTools(ctx context.Context) ([]domain.AnalysisTool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_id, name, tool_type, handler_class FROM analysis_tools ORDER BY tool_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []domain.AnalysisTool
	for rows.Next() {
		var t domain.AnalysisTool
		if err := rows.Scan(&t.ToolID, &t.Name, &t.ToolType, &t.HandlerClass); err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

// CreateRun inserts a run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, playbook_id, tenant_id, document_id, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.PlaybookID, run.TenantID, nullString(run.DocumentID), string(run.Status), run.StartedAt)
	return err
}

// GetRun retrieves a run by ID. A missing run returns nil.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var documentID, errMsg sql.NullString
	var endedAt sql.NullTime
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, playbook_id, tenant_id, document_id, status, started_at, ended_at, error
		 FROM runs WHERE run_id = ?`, runID).
		Scan(&run.RunID, &run.PlaybookID, &run.TenantID, &documentID, &status, &run.StartedAt, &endedAt, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	if documentID.Valid {
		run.DocumentID = documentID.String
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return &run, nil
}

// UpdateRunStatus transitions a run's status. Terminal statuses also
// stamp the end time.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus, errMsg string) error {
	switch status {
	case domain.RunStatusDone, domain.RunStatusFailed, domain.RunStatusCancelled:
		_, err := s.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, error = ?, ended_at = CURRENT_TIMESTAMP WHERE run_id = ?`,
			string(status), nullString(errMsg), runID)
		return err
	default:
		_, err := s.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, error = ? WHERE run_id = ?`,
			string(status), nullString(errMsg), runID)
		return err
	}
}

// SaveNodeResult appends one node's output to the run's result log.
func (s *SQLiteStore) SaveNodeResult(ctx context.Context, runID string, out *domain.NodeOutput) error {
	var metrics any
	if out.Metrics != nil {
		b, err := json.Marshal(out.Metrics)
		if err != nil {
			return fmt.Errorf("serialize metrics: %w", err)
		}
		metrics = string(b)
	}
	var confidence any
	if out.Confidence != nil {
		confidence = *out.Confidence
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO node_results (run_id, node_id, output_variable, success, content, data, confidence, error_code, error_message, metrics, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		         (SELECT COALESCE(MAX(seq), -1) + 1 FROM node_results WHERE run_id = ?))`,
		runID, out.NodeID, out.OutputVariable, boolInt(out.Success),
		nullString(out.Content), nullString(string(out.Data)), confidence,
		nullString(string(out.ErrorCode)), nullString(out.ErrorMessage), metrics, runID)
	return err
}

// GetNodeResults retrieves a run's node outputs in execution order.
func (s *SQLiteStore) GetNodeResults(ctx context.Context, runID string) ([]domain.NodeOutput, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, output_variable, success, content, data, confidence, error_code, error_message, metrics
		 FROM node_results WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.NodeOutput
	for rows.Next() {
		var out domain.NodeOutput
		var success int
		var content, data, errorCode, errorMessage, metrics sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&out.NodeID, &out.OutputVariable, &success, &content, &data,
			&confidence, &errorCode, &errorMessage, &metrics); err != nil {
			return nil, err
		}
		out.Success = success != 0
		if content.Valid {
			out.Content = content.String
		}
		if data.Valid {
			out.Data = json.RawMessage(data.String)
		}
		if confidence.Valid {
			c := confidence.Float64
			out.Confidence = &c
		}
		if errorCode.Valid {
			out.ErrorCode = domain.ErrorCode(errorCode.String)
		}
		if errorMessage.Valid {
			out.ErrorMessage = errorMessage.String
		}
		if metrics.Valid {
			var m domain.NodeExecutionMetrics
			if err := json.Unmarshal([]byte(metrics.String), &m); err == nil {
				out.Metrics = &m
			}
		}
		results = append(results, out)
	}
	return results, rows.Err()
}

// AppendEvent records one run event.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *domain.RunEvent) error {
	var payload any
	if len(event.Payload) > 0 {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (event_id, run_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, string(event.Type), payload)
	return err
}

// GetEvents retrieves a run's events in time order.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string) ([]domain.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, run_id, ts, type, payload FROM run_events WHERE run_id = ? ORDER BY ts ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RunEvent
	for rows.Next() {
		var e domain.RunEvent
		var eventType string
		var payload sql.NullString
		if err := rows.Scan(&e.EventID, &e.RunID, &e.Ts, &eventType, &payload); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(eventType)
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
