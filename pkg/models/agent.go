package models

import "github.com/google/uuid"

// RequestKind is the routed intent of an inbound message.
type RequestKind string

const (
	KindGeneral         RequestKind = "general"
	KindSQL             RequestKind = "sql"
	KindDashboard       RequestKind = "dashboard"
	KindSQLAndDashboard RequestKind = "sql_and_dashboard"
)

// WantsSQL reports whether the kind requires the query stage.
func (k RequestKind) WantsSQL() bool {
	return k == KindSQL || k == KindDashboard || k == KindSQLAndDashboard
}

// WantsDashboard reports whether the kind requires the visualization stage.
func (k RequestKind) WantsDashboard() bool {
	return k == KindDashboard || k == KindSQLAndDashboard
}

// AgentContext threads one request through the pipeline. Request-scoped,
// never persisted.
type AgentContext struct {
	SessionID    uuid.UUID
	UserID       string
	DatasourceID *uuid.UUID
	Text         string
	Kind         RequestKind
	Window       ConversationWindow
	Schema       *SchemaDescriptor
	Query        *QueryExecutionRecord
	Artifact     *DashboardArtifact
	RetryCount   int
}

// ResponseEnvelope is the single result of handling one request. Exactly one
// envelope is produced per request, success or failure.
type ResponseEnvelope struct {
	SessionID     uuid.UUID        `json:"session_id"`
	MessageID     uuid.UUID        `json:"message_id"`
	AssistantText string           `json:"assistant_text"`
	Kind          RequestKind      `json:"kind"`
	GeneratedSQL  string           `json:"generated_sql,omitempty"`
	Columns       []ResultColumn   `json:"columns,omitempty"`
	Rows          []map[string]any `json:"rows,omitempty"`
	RowCount      int              `json:"row_count"`
	DashboardID   *uuid.UUID       `json:"dashboard_id,omitempty"`
	Dashboard     string           `json:"dashboard,omitempty"`
	ErrorKind     string           `json:"error_kind,omitempty"`
	ElapsedMs     int64            `json:"elapsed_ms"`
}
